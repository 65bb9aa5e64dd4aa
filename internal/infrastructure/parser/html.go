package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"NarrativeScorer/internal/ports"
)

const FormatHTML = "html"

const (
	dropSelector  = "script, style, noscript, template, nav, header, footer, form"
	blockSelector = "p, li, h1, h2, h3, h4, h5, h6, blockquote, pre, td, th, dt, dd, figcaption, div"
)

// HTMLNormalizer turns an HTML portfolio page into paragraph text.
type HTMLNormalizer struct{}

var _ ports.EntryNormalizer = HTMLNormalizer{}

// Name identifies the normalizer inside the registry.
func (HTMLNormalizer) Name() string {
	return FormatHTML
}

// Normalize drops page chrome and joins the text of every leaf block with
// blank lines, collapsing whitespace inside each block.
func (HTMLNormalizer) Normalize(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("html entry is not valid UTF-8")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	doc.Find(dropSelector).Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	var blocks []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return collapse(doc.Find("body").Text()), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
