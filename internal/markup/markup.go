package markup

import (
	"bytes"
	"fmt"
	"html"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Renderer turns the raw text of a revision into html. It has no side effects.
type Renderer interface {
	// Render fails with apperr.ErrRender for text it cannot handle.
	Render(text string, markup model.Markup) (string, error)
}

var _ Renderer = (*Goldmark)(nil)

// Goldmark renders WIKI text as markdown and passes HTML through.
type Goldmark struct {
	md goldmark.Markdown
}

func NewGoldmark() *Goldmark {
	return &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

func (g *Goldmark) Render(text string, markup model.Markup) (string, error) {
	switch markup {
	case model.MarkupHTML:
		return text, nil
	case model.MarkupWiki, "":
		var buf bytes.Buffer
		if err := g.md.Convert([]byte(text), &buf); err != nil {
			return "", fmt.Errorf("%w: %v", apperr.ErrRender, err)
		}
		return buf.String(), nil
	}

	return "", fmt.Errorf("%w: unknown markup %q", apperr.ErrRender, markup)
}

// Fallback is stored when rendering fails, the raw text escaped in a pre block.
func Fallback(text string) string {
	return "<pre>" + html.EscapeString(text) + "</pre>"
}
