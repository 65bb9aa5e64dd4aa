package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/intake"
)

// EntryDocument is one entry as written in an entries file. Exactly one of
// Text or File carries the content; File is relative to the entries file.
type EntryDocument struct {
	ID           string   `yaml:"id"`
	Kind         string   `yaml:"kind"`
	Title        string   `yaml:"title"`
	Format       string   `yaml:"format"`
	Text         string   `yaml:"text"`
	File         string   `yaml:"file"`
	Duration     string   `yaml:"duration"`
	HoursPerWeek *float64 `yaml:"hoursPerWeek"`
	Achievements []string `yaml:"achievements"`
}

type entriesFile struct {
	Entries []EntryDocument `yaml:"entries"`
}

// EntrySource loads entries from YAML files and normalizes their content
// through the registered format normalizers.
type EntrySource struct {
	registry *intake.Registry
	logger   *slog.Logger
}

// NewEntrySource wires the normalizer registry.
func NewEntrySource(reg *intake.Registry, log *slog.Logger) *EntrySource {
	return &EntrySource{
		registry: reg,
		logger:   log,
	}
}

// LoadFile reads every entry listed in the file at path.
func (s *EntrySource) LoadFile(ctx context.Context, path string) ([]domain.Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entries %s: %w", path, err)
	}

	var doc entriesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse entries %s: %w", path, err)
	}
	s.debug("entries file loaded", "path", path, "count", len(doc.Entries))

	base := filepath.Dir(path)
	entries := make([]domain.Entry, 0, len(doc.Entries))
	for i, d := range doc.Entries {
		if d.File != "" && !filepath.IsAbs(d.File) {
			d.File = filepath.Join(base, d.File)
		}
		entry, err := s.Build(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Build normalizes one document into a domain entry.
func (s *EntrySource) Build(ctx context.Context, d EntryDocument) (domain.Entry, error) {
	if s.registry == nil {
		return domain.Entry{}, fmt.Errorf("normalizer registry is not configured")
	}
	if d.ID == "" {
		return domain.Entry{}, fmt.Errorf("%w: entry id is required", domain.ErrInvalidEntry)
	}

	content := []byte(d.Text)
	if d.File != "" {
		if d.Text != "" {
			return domain.Entry{}, fmt.Errorf("%w: entry %s sets both text and file", domain.ErrInvalidEntry, d.ID)
		}
		raw, err := os.ReadFile(d.File)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("entry %s: %w", d.ID, err)
		}
		content = raw
	}

	format := d.Format
	if format == "" {
		format = formatFromPath(d.File)
	}
	normalizer, err := s.registry.Resolve(format)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("entry %s: %w", d.ID, err)
	}

	text, err := normalizer.Normalize(ctx, content)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: entry %s: %v", domain.ErrInvalidEntry, d.ID, err)
	}
	s.debug("entry normalized", "entry_id", d.ID, "format", normalizer.Name(), "chars", len(text))

	return domain.Entry{
		ID:           d.ID,
		Kind:         domain.EntryKind(strings.ToLower(strings.TrimSpace(d.Kind))),
		Title:        strings.TrimSpace(d.Title),
		Text:         text,
		Duration:     strings.TrimSpace(d.Duration),
		HoursPerWeek: d.HoursPerWeek,
		Achievements: d.Achievements,
	}, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatHTML
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return intake.FormatText
	}
}

// Register adds the HTML and Markdown normalizers to reg.
func Register(reg *intake.Registry) {
	reg.Register(HTMLNormalizer{})
	reg.Register(MarkdownNormalizer{})
}

func (s *EntrySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
