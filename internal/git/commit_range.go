package git

import (
	"log/slog"

	"git.home.luguber.info/inful/docdelta/internal/buildstate"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
)

// CommitRange returns the range a new build covers, ending at HEAD. It
// starts where the prior build ended when that commit is still part of
// HEAD's history. After a history rewrite, or without a prior range, it
// starts at HEAD, so a rewritten history never chains with the prior build.
func (r *Repo) CommitRange(prior *buildstate.CommitRange) (*buildstate.CommitRange, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	if prior == nil || prior.To == "" {
		return &buildstate.CommitRange{From: head, To: head}, nil
	}

	ok, err := r.IsAncestor(prior.To, head)
	if err != nil {
		r.logger.Warn("Cannot check ancestry of prior build commit",
			slog.String("from", prior.To),
			slog.String("head", head),
			logfields.Error(err))
		return &buildstate.CommitRange{From: head, To: head}, nil
	}
	if !ok {
		r.logger.Warn("Prior build commit is not an ancestor of HEAD",
			slog.String("from", prior.To),
			slog.String("head", head))
		return &buildstate.CommitRange{From: head, To: head}, nil
	}
	return &buildstate.CommitRange{From: prior.To, To: head}, nil
}
