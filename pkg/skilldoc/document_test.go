package skilldoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `---
name: pine-lead
description: Lead qualification workflow
version: "1.2.3"
updated: 2024-01-15
---

# Pine Lead

Some guidance text.

## Workflow

1. Qualify the lead.

## Changelog

### v1.2.3 (2024-01-15)

- Initial tracked version
`

func TestParseVersionTopLevel(t *testing.T) {
	doc := Parse([]byte(sampleDoc))
	assert.Equal(t, "1.2.3", doc.Version())
}

func TestParseVersionNestedUnderEvolution(t *testing.T) {
	content := `---
name: pine-lead
evolution:
  enabled: true
  version: "2.1.0"
---

Body.
`
	doc := Parse([]byte(content))
	assert.Equal(t, "2.1.0", doc.Version())
}

func TestVersionDefaultsToBaseline(t *testing.T) {
	t.Run("no frontmatter", func(t *testing.T) {
		doc := Parse([]byte("# Just a body\n"))
		assert.Equal(t, "1.0.0", doc.Version())
	})

	t.Run("no version key", func(t *testing.T) {
		doc := Parse([]byte("---\nname: x\n---\n\nBody.\n"))
		assert.Equal(t, "1.0.0", doc.Version())
	})

	t.Run("malformed version", func(t *testing.T) {
		doc := Parse([]byte("---\nversion: not.a.version\n---\n\nBody.\n"))
		assert.Equal(t, "1.0.0", doc.Version())
	})
}

func TestSetVersionAndUpdatedRewriteInPlace(t *testing.T) {
	doc := Parse([]byte(sampleDoc))
	doc.SetVersion("1.2.4")
	doc.SetUpdated("2024-02-01")

	out := string(doc.Bytes())
	assert.Contains(t, out, `version: "1.2.4"`)
	assert.Contains(t, out, "updated: 2024-02-01")
	assert.NotContains(t, out, `version: "1.2.3"`)
	// Body is untouched.
	assert.Contains(t, out, "1. Qualify the lead.")

	// Key order in the header survives.
	nameIdx := strings.Index(out, "name:")
	versionIdx := strings.Index(out, "version:")
	updatedIdx := strings.Index(out, "updated:")
	assert.Less(t, nameIdx, versionIdx)
	assert.Less(t, versionIdx, updatedIdx)
}

func TestSetVersionCreatesKeyWhenAbsent(t *testing.T) {
	doc := Parse([]byte("---\nname: x\n---\n\nBody.\n"))
	doc.SetVersion("1.0.1")
	assert.Contains(t, string(doc.Bytes()), "version: 1.0.1")
}

func TestSetVersionOnDocumentWithoutHeader(t *testing.T) {
	doc := Parse([]byte("# Body only\n"))
	doc.SetVersion("1.0.1")

	out := string(doc.Bytes())
	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.Contains(t, out, "version: 1.0.1")
	assert.Contains(t, out, "# Body only")
}

func TestSetVersionOnMalformedHeaderPreservesLines(t *testing.T) {
	content := "---\nfoo: [unclosed\n---\n\nBody.\n"
	doc := Parse([]byte(content))
	doc.SetVersion("1.0.1")

	out := string(doc.Bytes())
	assert.Contains(t, out, "foo: [unclosed")
	assert.Contains(t, out, "version: 1.0.1")
}

func TestInsertChangelog(t *testing.T) {
	doc := Parse([]byte(sampleDoc))
	doc.InsertChangelog("1.2.4", "2024-02-01", "Improve trigger wording")

	out := string(doc.Bytes())
	newIdx := strings.Index(out, "### v1.2.4 (2024-02-01)")
	oldIdx := strings.Index(out, "### v1.2.3 (2024-01-15)")
	require.NotEqual(t, -1, newIdx)
	require.NotEqual(t, -1, oldIdx)
	// New entry lands immediately below the section header, above old ones.
	assert.Less(t, newIdx, oldIdx)
	assert.Contains(t, out, "- Improve trigger wording")
}

func TestInsertChangelogWithoutSectionIsNoop(t *testing.T) {
	content := "---\nversion: \"1.0.0\"\n---\n\nBody.\n"
	doc := Parse([]byte(content))
	doc.InsertChangelog("1.0.1", "2024-02-01", "whatever")
	assert.NotContains(t, string(doc.Bytes()), "v1.0.1")
}

func TestSections(t *testing.T) {
	doc := Parse([]byte(sampleDoc))
	assert.Equal(t, []string{"Workflow", "Changelog"}, doc.Sections())
}

func TestBytesPreservesBodyVerbatim(t *testing.T) {
	doc := Parse([]byte(sampleDoc))
	out := string(doc.Bytes())
	idx := strings.Index(sampleDoc, "# Pine Lead")
	require.NotEqual(t, -1, idx)
	assert.True(t, strings.HasSuffix(out, sampleDoc[idx:]))
}
