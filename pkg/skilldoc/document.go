package skilldoc

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evolvekit/skillevo/pkg/version"
)

const headerDelimiter = "---"

// Document is the parsed model of a skill definition document: a YAML
// header (kept as a yaml.Node so key order and comments survive
// serialization) plus the body lines. Metadata rewrites mutate the model;
// the body is preserved verbatim except for changelog insertion.
type Document struct {
	header *yaml.Node // document node, nil when absent or malformed
	// rawHeader preserves the header text when it cannot be parsed as
	// YAML, so a malformed header is never destroyed by a rewrite.
	rawHeader []string
	body      []string
}

// Parse builds a Document from raw content. It never fails: a missing or
// malformed header degrades to baseline-version behavior.
func Parse(content []byte) *Document {
	lines := strings.Split(string(content), "\n")

	doc := &Document{}
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == headerDelimiter {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == headerDelimiter {
				doc.rawHeader = lines[1:i]
				doc.body = lines[i+1:]
				break
			}
		}
	}
	if doc.rawHeader == nil {
		doc.body = lines
		return doc
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(strings.Join(doc.rawHeader, "\n")), &node); err == nil && len(node.Content) > 0 && node.Content[0].Kind == yaml.MappingNode {
		doc.header = &node
	}
	return doc
}

// Version returns the document's semantic version, checking the top-level
// version key and then evolution.version, falling back to the baseline
// when the key is absent or malformed.
func (d *Document) Version() string {
	if node := d.findScalar("version"); node != nil {
		return version.Normalize(node.Value)
	}
	return version.Baseline
}

// SetVersion rewrites the version key in place, creating it when absent.
func (d *Document) SetVersion(v string) {
	d.setKey("version", v)
}

// SetUpdated rewrites the update-date key in place, creating it when
// absent. The date is a plain YYYY-MM-DD string.
func (d *Document) SetUpdated(date string) {
	d.setKey("updated", date)
}

// InsertChangelog inserts a dated entry immediately below the Changelog
// section header, preserving the order of existing entries. Documents
// without a Changelog section are left untouched.
func (d *Document) InsertChangelog(ver, date, summary string) {
	for i, line := range d.body {
		if strings.TrimSpace(line) == "## Changelog" {
			entry := []string{"", fmt.Sprintf("### v%s (%s)", ver, date), "", "- " + summary}
			rest := append([]string{}, d.body[i+1:]...)
			d.body = append(append(d.body[:i+1:i+1], entry...), rest...)
			return
		}
	}
}

// Sections returns the headings of the body's second-level sections in
// document order.
func (d *Document) Sections() []string {
	var headings []string
	for _, line := range d.body {
		if strings.HasPrefix(line, "## ") {
			headings = append(headings, strings.TrimSpace(strings.TrimPrefix(line, "## ")))
		}
	}
	return headings
}

// Bytes serializes the document. Untouched body lines are reproduced
// verbatim; the header is re-serialized from the model (or from the
// preserved raw lines when it was not parseable YAML).
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer

	switch {
	case d.header != nil:
		buf.WriteString(headerDelimiter + "\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		// Encoding a freshly parsed document node cannot fail.
		_ = enc.Encode(d.header)
		_ = enc.Close()
		buf.WriteString(headerDelimiter + "\n")
	case d.rawHeader != nil:
		buf.WriteString(headerDelimiter + "\n")
		buf.WriteString(strings.Join(d.rawHeader, "\n"))
		buf.WriteString("\n" + headerDelimiter + "\n")
	}

	buf.WriteString(strings.Join(d.body, "\n"))
	return buf.Bytes()
}

// findScalar locates the value node for key at the top level of the
// header, or nested one level down inside the evolution mapping.
func (d *Document) findScalar(key string) *yaml.Node {
	mapping := d.mapping()
	if mapping == nil {
		return nil
	}
	if node := mappingValue(mapping, key); node != nil && node.Kind == yaml.ScalarNode {
		return node
	}
	if evolution := mappingValue(mapping, "evolution"); evolution != nil && evolution.Kind == yaml.MappingNode {
		if node := mappingValue(evolution, key); node != nil && node.Kind == yaml.ScalarNode {
			return node
		}
	}
	return nil
}

func (d *Document) setKey(key, value string) {
	if node := d.findScalar(key); node != nil {
		node.SetString(value)
		return
	}

	mapping := d.mapping()
	if mapping == nil {
		// Malformed header: append the key textually rather than
		// discarding the original lines.
		if d.rawHeader != nil {
			d.rawHeader = append(d.rawHeader, fmt.Sprintf("%s: %s", key, value))
			return
		}
		// No header at all: create one.
		d.header = &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
		mapping = d.header.Content[0]
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	valueNode := &yaml.Node{}
	valueNode.SetString(value)
	mapping.Content = append(mapping.Content, keyNode, valueNode)
}

func (d *Document) mapping() *yaml.Node {
	if d.header == nil || len(d.header.Content) == 0 {
		return nil
	}
	if d.header.Content[0].Kind != yaml.MappingNode {
		return nil
	}
	return d.header.Content[0]
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
