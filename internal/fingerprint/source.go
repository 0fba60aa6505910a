package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// Source resolves a logical path to its current modification time and
// content hash.
type Source interface {
	Stat(ctx context.Context, path string) (modTime time.Time, contentHash string, err error)
}

// ContentHasher hashes file content. path is passed so implementations can
// pick a strategy by file type.
type ContentHasher interface {
	Hash(path string, data []byte) (string, error)
}

// SHA256Hasher hashes raw bytes.
type SHA256Hasher struct{}

// Hash returns the hex encoded sha256 of data.
func (SHA256Hasher) Hash(_ string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FSSource reads files below Root.
type FSSource struct {
	Root   string
	Hasher ContentHasher
}

// NewFSSource creates a source rooted at root. A nil hasher means SHA256Hasher.
func NewFSSource(root string, hasher ContentHasher) *FSSource {
	if hasher == nil {
		hasher = SHA256Hasher{}
	}
	return &FSSource{Root: root, Hasher: hasher}
}

// Stat implements Source.
func (s *FSSource) Stat(ctx context.Context, path string) (time.Time, string, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, "", err
	}
	full := filepath.Join(s.Root, filepath.FromSlash(path))
	info, err := os.Stat(full)
	if err != nil {
		return time.Time{}, "", errors.WrapError(err, errors.CategoryFileSystem, "stat input file").
			WithContext("path", path).
			Build()
	}
	data, err := os.ReadFile(full) // #nosec G304 -- path is below the configured version root
	if err != nil {
		return time.Time{}, "", errors.WrapError(err, errors.CategoryFileSystem, "read input file").
			WithContext("path", path).
			Build()
	}
	hash, err := s.Hasher.Hash(path, data)
	if err != nil {
		return time.Time{}, "", errors.WrapError(err, errors.CategoryFingerprint, "hash input file").
			WithContext("path", path).
			Build()
	}
	return info.ModTime().UTC(), hash, nil
}

// List walks Root and returns the slash separated paths of regular files that
// match any of include (filepath.Match against the relative path or the base
// name). An empty include list matches everything. Hidden directories are
// skipped.
func (s *FSSource) List(include []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if d.IsDir() {
			if p != s.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchesAny(include, rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "list version inputs").
			WithContext("root", s.Root).
			Build()
	}
	slices.Sort(out)
	return out, nil
}

// Matches reports whether the slash separated relative path rel is selected
// by include, using the same rules as List.
func Matches(include []string, rel string) bool {
	return matchesAny(include, rel)
}

func matchesAny(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}
