package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"NarrativeScorer/internal/ports"
)

const FormatMarkdown = "markdown"

var (
	mdFence    = regexp.MustCompile("^\\s*(```|~~~)")
	mdHeading  = regexp.MustCompile(`^\s{0,3}#{1,6}\s+`)
	mdQuote    = regexp.MustCompile(`^\s*>\s?`)
	mdBullet   = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)
	mdRule     = regexp.MustCompile(`^\s*(?:[-*_]\s*){3,}$`)
	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdEmphasis = regexp.MustCompile(`(\*\*|__|\*|~~)([^*~\n]+?)(\*\*|__|\*|~~)`)
	mdCode     = regexp.MustCompile("`([^`]*)`")
)

// MarkdownNormalizer strips Markdown syntax and keeps the prose.
type MarkdownNormalizer struct{}

var _ ports.EntryNormalizer = MarkdownNormalizer{}

// Name identifies the normalizer inside the registry.
func (MarkdownNormalizer) Name() string {
	return FormatMarkdown
}

// Normalize removes headings, list and quote markers, emphasis, links and
// images while keeping paragraph breaks. Fenced code keeps its content.
func (MarkdownNormalizer) Normalize(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("markdown entry is not valid UTF-8")
	}

	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if mdFence.MatchString(line) || mdRule.MatchString(line) {
			continue
		}
		line = mdHeading.ReplaceAllString(line, "")
		line = mdQuote.ReplaceAllString(line, "")
		line = mdBullet.ReplaceAllString(line, "")
		line = mdImage.ReplaceAllString(line, "$1")
		line = mdLink.ReplaceAllString(line, "$1")
		line = mdEmphasis.ReplaceAllString(line, "$2")
		line = mdCode.ReplaceAllString(line, "$1")
		out = append(out, strings.TrimRight(line, " \t"))
	}

	return collapseBlankLines(strings.TrimSpace(strings.Join(out, "\n"))), nil
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
