package skilldoc

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrNoMatch reports that an edit's before-text or an insertion anchor is
// absent from the document verbatim. Operations fail closed on it.
var ErrNoMatch = errors.New("no exact match in document")

// ReplaceExact substitutes after for every verbatim occurrence of before.
// It fails closed when before is absent.
func ReplaceExact(content, before, after string) (string, error) {
	if before == "" {
		return "", errors.Wrap(ErrNoMatch, "empty before text")
	}
	if !strings.Contains(content, before) {
		return "", errors.Wrapf(ErrNoMatch, "before text %q", truncate(before, 50))
	}
	return strings.ReplaceAll(content, before, after), nil
}

// InsertAfter inserts block below the first verbatim occurrence of anchor.
func InsertAfter(content, block, anchor string) (string, error) {
	if !strings.Contains(content, anchor) {
		return "", errors.Wrapf(ErrNoMatch, "anchor %q", truncate(anchor, 50))
	}
	return strings.Replace(content, anchor, anchor+"\n\n"+block, 1), nil
}

// InsertBefore inserts block above the first verbatim occurrence of anchor.
func InsertBefore(content, block, anchor string) (string, error) {
	if !strings.Contains(content, anchor) {
		return "", errors.Wrapf(ErrNoMatch, "anchor %q", truncate(anchor, 50))
	}
	return strings.Replace(content, anchor, block+"\n\n"+anchor, 1), nil
}

// AppendToEnd appends block after the last content, separated by a blank
// line.
func AppendToEnd(content, block string) string {
	return strings.TrimRight(content, "\n") + "\n\n" + block + "\n"
}

// MergeFrontmatter inserts block into the header block immediately before
// its closing delimiter. It fails closed when the document has no header.
func MergeFrontmatter(content, block string) (string, error) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != headerDelimiter {
		return "", errors.Wrap(ErrNoMatch, "document has no frontmatter block")
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == headerDelimiter {
			rest := append([]string{}, lines[i:]...)
			merged := append(lines[:i:i], strings.TrimRight(block, "\n"))
			return strings.Join(append(merged, rest...), "\n"), nil
		}
	}
	return "", errors.Wrap(ErrNoMatch, "frontmatter block is not closed")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
