// Package incremental plans a documentation build: it decides per version
// which inputs changed, which dependents are affected and whether cached
// output of each processor may be reused, and persists the resulting record.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/docdelta/internal/config"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// ConfigHasher produces a stable hash of build parameters.
type ConfigHasher interface {
	Hash(v any) (string, error)
}

// JSONHasher hashes the canonical JSON encoding of a value with SHA256.
// encoding/json writes map keys sorted, so equal values hash equally.
type JSONHasher struct{}

// Hash implements ConfigHasher.
func (JSONHasher) Hash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryConfig, "failed to encode parameters for hashing").Build()
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// versionParams is everything of the configuration a version's cached output
// depends on besides its files.
type versionParams struct {
	Build   map[string]any `json:"build"`
	Params  map[string]any `json:"params"`
	Include []string       `json:"include"`
}

func versionConfigHash(h ConfigHasher, build config.BuildConfig, v config.VersionConfig) (string, error) {
	include := slices.Clone(v.Include)
	slices.Sort(include)
	return h.Hash(versionParams{Build: build.Params, Params: v.Params, Include: include})
}

// HashFiles hashes the content of paths. Directories are walked; files are
// hashed in lexical order together with their path relative to the listed
// entry. Missing entries hash as their name alone so adding one later
// changes the result. An empty list hashes to "".
func HashFiles(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}
	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	h := sha256.New()
	for _, root := range sorted {
		_, _ = io.WriteString(h, "root:"+filepath.ToSlash(root)+"\n")
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", errors.WrapError(err, errors.CategoryFileSystem, "stat hashed input").
				WithContext("path", root).
				Build()
		}
		if !info.IsDir() {
			if err := hashFile(h, root, filepath.Base(root)); err != nil {
				return "", err
			}
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, werr error) error {
			if werr != nil {
				return werr
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			return hashFile(h, p, filepath.ToSlash(rel))
		})
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryFileSystem, "hash input directory").
				WithContext("path", root).
				Build()
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path, name string) error {
	f, err := os.Open(path) // #nosec G304 -- configured plugin or template path
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "open hashed input").
			WithContext("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	_, _ = io.WriteString(w, "file:"+name+"\n")
	if _, err := io.Copy(w, f); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "read hashed input").
			WithContext("path", path).
			Build()
	}
	_, _ = io.WriteString(w, "\n")
	return nil
}
