// Package pathkey derives comparison keys for logical file paths according to
// the host platform's path semantics.
package pathkey

import (
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalizer turns a path into a map key. Two paths that the host file system
// treats as the same file produce the same key.
type Normalizer struct {
	// FoldCase enables Unicode case folding for case-insensitive file systems.
	FoldCase bool
}

// Host returns the normalizer matching the platform the process runs on.
func Host() Normalizer {
	return Normalizer{FoldCase: runtime.GOOS == "windows" || runtime.GOOS == "darwin"}
}

// Key returns the normalized key for p. Separators become forward slashes, a
// leading "./" is dropped and the result is NFC normalized.
func (n Normalizer) Key(p string) string {
	p = strings.TrimPrefix(filepath.ToSlash(p), "./")
	p = norm.NFC.String(p)
	if n.FoldCase {
		// cases.Caser is stateful; one per call keeps Normalizer safe to share.
		p = cases.Fold().String(p)
	}
	return p
}

// Normalize is Host().Key(p).
func Normalize(p string) string {
	return Host().Key(p)
}
