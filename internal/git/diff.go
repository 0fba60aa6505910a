package git

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"git.home.luguber.info/inful/docdelta/internal/changes"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// ChangedFiles returns the files below the version root that differ between
// commits from and to, keyed by path relative to the version root. Renames
// are reported as a deletion plus a creation.
func (r *Repo) ChangedFiles(from, to string) (map[string]changes.Kind, error) {
	fromTree, err := r.tree(from)
	if err != nil {
		return nil, err
	}
	toTree, err := r.tree(to)
	if err != nil {
		return nil, err
	}
	diff, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryVCS, "diff trees").
			WithContext("from", from).
			WithContext("to", to).
			Build()
	}

	out := make(map[string]changes.Kind, len(diff))
	for _, ch := range diff {
		action, err := ch.Action()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryVCS, "classify tree change").Build()
		}
		switch action {
		case merkletrie.Insert:
			r.record(out, ch.To.Name, changes.Created)
		case merkletrie.Delete:
			r.record(out, ch.From.Name, changes.Deleted)
		case merkletrie.Modify:
			if ch.From.Name != ch.To.Name {
				r.record(out, ch.From.Name, changes.Deleted)
				r.record(out, ch.To.Name, changes.Created)
				continue
			}
			r.record(out, ch.To.Name, changes.Updated)
		}
	}
	return out, nil
}

func (r *Repo) record(out map[string]changes.Kind, name string, kind changes.BaseKind) {
	if !strings.HasPrefix(name, r.prefix) {
		return
	}
	out[strings.TrimPrefix(name, r.prefix)] = changes.Base(kind)
}

func (r *Repo) tree(rev string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryVCS, "resolve revision").
			WithContext("revision", rev).
			Build()
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryVCS, "load commit").
			WithContext("revision", rev).
			Build()
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryVCS, "load tree").
			WithContext("revision", rev).
			Build()
	}
	return tree, nil
}
