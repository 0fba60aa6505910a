package git

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// Repo is an opened repository together with the sub directory a version
// root occupies inside it.
type Repo struct {
	repo   *git.Repository
	root   string
	prefix string
	logger *slog.Logger
}

// Open opens the repository containing dir. dir may be any directory inside
// the work tree.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryVCS, "open repository").
			WithContext("dir", dir).
			Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryVCS, "open work tree").
			WithContext("dir", dir).
			Build()
	}
	root := wt.Filesystem.Root()

	prefix, err := relativePrefix(root, dir)
	if err != nil {
		return nil, err
	}
	return &Repo{repo: repo, root: root, prefix: prefix, logger: slog.Default()}, nil
}

// WithLogger sets a custom logger.
func (r *Repo) WithLogger(logger *slog.Logger) *Repo {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func relativePrefix(root, dir string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "resolve repository root").Build()
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "resolve version root").Build()
	}
	if r, evalErr := filepath.EvalSymlinks(absRoot); evalErr == nil {
		absRoot = r
	}
	if d, evalErr := filepath.EvalSymlinks(absDir); evalErr == nil {
		absDir = d
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.VCSError("version root is outside the repository").
			WithContext("root", absRoot).
			WithContext("dir", absDir).
			Build()
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	return rel + "/", nil
}

// Head returns the commit hash HEAD points at.
func (r *Repo) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryVCS, "resolve HEAD").
			WithContext("root", r.root).
			Build()
	}
	return ref.Hash().String(), nil
}

// IsAncestor reports whether commit a is reachable from commit b. A missing
// a is reported as false; a missing b is an error.
func (r *Repo) IsAncestor(a, b string) (bool, error) {
	return isAncestor(r.repo, plumbing.NewHash(a), plumbing.NewHash(b))
}

func isAncestor(repo *git.Repository, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true, nil
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repo.CommitObject(h)
		if err != nil {
			return false, errors.WrapError(err, errors.CategoryVCS, "load commit").
				WithContext("commit", h.String()).
				Build()
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false, nil
}
