package commands

import (
	"context"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docdelta/internal/buildstate"
	"git.home.luguber.info/inful/docdelta/internal/config"
	"git.home.luguber.info/inful/docdelta/internal/eventstore"
	"git.home.luguber.info/inful/docdelta/internal/git"
	"git.home.luguber.info/inful/docdelta/internal/incremental"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
	"git.home.luguber.info/inful/docdelta/internal/metrics"
	"git.home.luguber.info/inful/docdelta/internal/notify"
	"git.home.luguber.info/inful/docdelta/internal/storage"
)

// runtime holds the collaborators a command opened. Close releases them in
// reverse order.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend storage.Backend
	store   *buildstate.Store
	journal eventstore.Store
	engine  *incremental.Engine
	closers []func() error
}

// openState opens the state backend and, when configured, the journal.
func openState(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}
	backend, err := buildstate.Open(string(cfg.State.Backend), cfg.State.Dir, logger)
	if err != nil {
		return nil, err
	}
	rt.backend = backend
	rt.closers = append(rt.closers, backend.Close)
	rt.store = buildstate.NewStore(backend).WithLogger(logger)

	if cfg.Journal.Path != "" {
		journal, err := eventstore.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.journal = journal
		rt.closers = append(rt.closers, journal.Close)
	}
	return rt, nil
}

// openEngine opens the state and wires the planning engine. registry may be
// nil, in which case no metrics are recorded.
func openEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, registry *prom.Registry) (*runtime, error) {
	rt, err := openState(cfg, logger)
	if err != nil {
		return nil, err
	}
	engine, err := incremental.NewEngine(cfg, rt.store)
	if err != nil {
		rt.Close()
		return nil, err
	}
	engine.WithLogger(logger)

	if cfg.VCS.Repository != "" {
		repo, err := git.Open(cfg.VCS.Repository)
		if err != nil {
			rt.Close()
			return nil, err
		}
		engine.WithCommitRanger(repo)
	}
	if rt.journal != nil {
		engine.WithJournal(rt.journal)
	}
	if registry != nil {
		engine.WithRecorder(metrics.NewPrometheusRecorder(registry))
	}
	if cfg.Notify.URL != "" {
		pub, err := notify.NewNATSPublisher(ctx, cfg.Notify, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		engine.WithPublisher(pub)
		rt.closers = append(rt.closers, pub.Close)
	}
	rt.engine = engine
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("Failed to close resource", logfields.Error(err))
		}
	}
	rt.closers = nil
}
