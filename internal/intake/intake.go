package intake

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"NarrativeScorer/internal/ports"
)

const FormatText = "text"

// Registry keeps a mapping from format names to normalizers.
type Registry struct {
	normalizers map[string]ports.EntryNormalizer
}

// NewRegistry builds a registry that already knows plain text.
func NewRegistry() *Registry {
	r := &Registry{normalizers: map[string]ports.EntryNormalizer{}}
	r.Register(PlainText{})
	return r
}

// Register adds or replaces a normalizer implementation.
func (r *Registry) Register(n ports.EntryNormalizer) {
	if r.normalizers == nil {
		r.normalizers = map[string]ports.EntryNormalizer{}
	}
	r.normalizers[n.Name()] = n
}

// Resolve returns a normalizer by name or an error if it is absent.
// An empty name resolves to plain text.
func (r *Registry) Resolve(name string) (ports.EntryNormalizer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = FormatText
	}
	if n, ok := r.normalizers[name]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("entry format %s is not registered", name)
}

// Formats lists registered format names.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.normalizers))
	for name := range r.normalizers {
		names = append(names, name)
	}
	return names
}

// PlainText normalizes line endings and trims surrounding whitespace.
type PlainText struct{}

func (PlainText) Name() string { return FormatText }

func (PlainText) Normalize(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("text entry is not valid UTF-8")
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
