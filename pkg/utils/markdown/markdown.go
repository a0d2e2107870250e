// Package markdown renders episode descriptions. Descriptions arrive as loose
// text with single line breaks and bare links; the archive item page wants
// sanitized HTML and the catalog wants the text without markup.
package markdown

import (
	"bytes"
	"html"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// Document wraps description source and caches its renderings.
type Document struct {
	// Source is the description as published.
	Source string

	renderedHTML *string
	renderedText *string
}

var (
	bfRenderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.Safelink | blackfriday.NofollowLinks | blackfriday.HrefTargetBlank | blackfriday.Smartypants | blackfriday.SmartypantsDashes,
	})
	bfExtensions = blackfriday.NoIntraEmphasis | blackfriday.Autolink | blackfriday.Strikethrough | blackfriday.SpaceHeadings | blackfriday.HardLineBreak | blackfriday.NoEmptyLineBeforeBlock
	policy       = bluemonday.UGCPolicy()
	strip        = bluemonday.StrictPolicy()
)

func New(source string) *Document {
	return &Document{Source: strings.TrimSpace(source)}
}

func (d *Document) run() []byte {
	return blackfriday.Run([]byte(d.Source),
		blackfriday.WithRenderer(bfRenderer),
		blackfriday.WithExtensions(bfExtensions),
	)
}

// HTML converts the source into sanitized HTML.
func (d *Document) HTML() string {
	if d.Source == "" {
		return ""
	}
	if d.renderedHTML != nil {
		return *d.renderedHTML
	}

	out := string(bytes.TrimSpace(policy.SanitizeBytes(d.run())))
	d.renderedHTML = &out
	return out
}

// PlainText strips every tag from the rendered source.
func (d *Document) PlainText() string {
	if d.Source == "" {
		return ""
	}
	if d.renderedText != nil {
		return *d.renderedText
	}

	out := html.UnescapeString(string(bytes.TrimSpace(strip.SanitizeBytes(d.run()))))
	d.renderedText = &out
	return out
}

// TextValue implements pgtype.TextValuer. An empty description is NULL.
func (d *Document) TextValue() (pgtype.Text, error) {
	if d == nil || d.Source == "" {
		return pgtype.Text{}, nil
	}
	return pgtype.Text{String: d.PlainText(), Valid: true}, nil
}
