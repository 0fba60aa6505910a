package incremental

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docdelta/internal/eventstore"
	"git.home.luguber.info/inful/docdelta/internal/gate"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
	"git.home.luguber.info/inful/docdelta/internal/notify"
)

// observer feeds every gate evaluation to the metrics recorder and journal.
func (e *Engine) observer(ctx context.Context, logger *slog.Logger, buildID string) gate.Observer {
	return func(ev gate.Evaluation) {
		e.recorder.IncGateDecision(string(ev.Level), ev.Authorized)
		if e.journal == nil {
			return
		}
		event, err := eventstore.NewGateEvaluated(buildID, eventstore.GateEvaluatedPayload{
			Level:      string(ev.Level),
			Version:    ev.Version,
			Unit:       ev.Unit,
			Authorized: ev.Authorized,
			Reason:     ev.Reason,
		})
		if err == nil {
			err = eventstore.Record(ctx, e.journal, event)
		}
		if err != nil {
			logger.Warn("Failed to journal gate evaluation", logfields.Error(err))
		}
	}
}

// journalEvent appends an event when a journal is configured. Journal
// failures never fail a plan.
func (e *Engine) journalEvent(ctx context.Context, logger *slog.Logger, buildID, eventType string, payload any) {
	if e.journal == nil {
		return
	}
	event, err := eventstore.NewEvent(buildID, eventType, payload)
	if err == nil {
		err = eventstore.Record(ctx, e.journal, event)
	}
	if err != nil {
		logger.Warn("Failed to journal event", slog.String("event_type", eventType), logfields.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, logger *slog.Logger, plan *Plan) {
	now := e.now().UTC()
	msgs := make([]notify.VersionPlan, 0, len(plan.Versions))
	for _, vp := range plan.Versions {
		msgs = append(msgs, notify.VersionPlan{
			BuildID:     plan.BuildID,
			Version:     vp.Name,
			Incremental: vp.Decision.OK(),
			Reason:      vp.Decision.Reason(),
			Counts:      vp.Changes.Summary(),
			Changed:     vp.Rebuild(),
			PlannedAt:   now,
		})
	}
	if err := e.publisher.Publish(ctx, msgs); err != nil {
		logger.Warn("Failed to publish plan", logfields.Error(err))
	}
}
