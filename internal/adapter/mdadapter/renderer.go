package mdadapter

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

// Frontmatter holds the optional metadata block of a property description.
type Frontmatter struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				&frontmatter.Extender{},
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		),
	}
}

// Render converts a property description markdown to HTML and returns the
// decoded frontmatter when the document carries one.
func (r *Renderer) Render(src []byte) (string, *Frontmatter, error) {
	var buf bytes.Buffer

	ctx := parser.NewContext()
	if err := r.md.Convert(src, &buf, parser.WithContext(ctx)); err != nil {
		return "", nil, fmt.Errorf("cannot convert markdown: %w", err)
	}

	fm := frontmatter.Get(ctx)
	if fm == nil {
		return buf.String(), nil, nil
	}

	var meta Frontmatter
	if err := fm.Decode(&meta); err != nil {
		return "", nil, fmt.Errorf("cannot decode frontmatter: %w", err)
	}

	return buf.String(), &meta, nil
}
