package fingerprint

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/inful/mdfp"
	"gopkg.in/yaml.v3"
)

// volatileKeys are frontmatter fields rewritten by tooling on every run; they
// never count as a content change.
var volatileKeys = []string{mdfp.FingerprintField, "lastmod", "uid", "aliases"}

// MarkdownHasher hashes markdown documents with mdfp over their body and a
// canonical form of the frontmatter, ignoring volatile keys. Other files are
// passed to Fallback.
type MarkdownHasher struct {
	Fallback ContentHasher
}

// NewMarkdownHasher returns a MarkdownHasher falling back to SHA256Hasher.
func NewMarkdownHasher() MarkdownHasher {
	return MarkdownHasher{Fallback: SHA256Hasher{}}
}

// Hash implements ContentHasher.
func (h MarkdownHasher) Hash(path string, data []byte) (string, error) {
	fallback := h.Fallback
	if fallback == nil {
		fallback = SHA256Hasher{}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
	default:
		return fallback.Hash(path, data)
	}

	fm, body, ok := splitFrontmatter(data)
	if !ok {
		return mdfp.CalculateFingerprintFromParts("", string(data)), nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(fm, &fields); err != nil {
		// Unparseable frontmatter is hashed verbatim.
		return fallback.Hash(path, data)
	}
	for _, k := range volatileKeys {
		delete(fields, k)
	}

	canonical := ""
	if len(fields) > 0 {
		out, err := yaml.Marshal(fields)
		if err != nil {
			return "", err
		}
		canonical = strings.TrimSuffix(string(out), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(canonical, string(body)), nil
}

// splitFrontmatter separates a leading "---" delimited YAML block from the
// body. ok is false when the document has no complete block.
func splitFrontmatter(data []byte) (fm, body []byte, ok bool) {
	content := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, content, false
	}
	rest := content[len("---\n"):]
	if bytes.HasPrefix(rest, []byte("---\n")) {
		return nil, rest[len("---\n"):], true
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("---")], nil, true
		}
		return nil, content, false
	}
	return rest[:end+1], rest[end+len("\n---\n"):], true
}
