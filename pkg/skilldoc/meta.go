package skilldoc

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// Meta is the parsed YAML frontmatter of a skill document.
type Meta struct {
	Name        string
	Description string
	// Evolution is true when the document declares evolution metadata
	// and can participate in automatic evolution.
	Evolution bool
	// Fields holds the raw frontmatter mapping.
	Fields map[string]interface{}
}

// ParseMeta extracts the frontmatter of a skill document. Documents
// without a frontmatter block return an error; malformed YAML does too.
func ParseMeta(content []byte) (*Meta, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse skill document")
	}

	fields := meta.Get(pctx)
	if fields == nil {
		return nil, errors.New("missing frontmatter")
	}

	name, _ := fields["name"].(string)
	description, _ := fields["description"].(string)
	_, hasEvolution := fields["evolution"]

	return &Meta{
		Name:        name,
		Description: description,
		Evolution:   hasEvolution,
		Fields:      fields,
	}, nil
}
