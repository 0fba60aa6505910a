// Package daemon keeps build plans current: it re-plans when version inputs
// change on disk and on a fixed interval, commits each plan, and serves the
// latest status and Prometheus metrics over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docdelta/internal/config"
	"git.home.luguber.info/inful/docdelta/internal/incremental"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
	"git.home.luguber.info/inful/docdelta/internal/metrics"
)

// Planner is the part of the engine the daemon drives.
type Planner interface {
	Plan(ctx context.Context, req incremental.Request) (*incremental.Plan, error)
	Commit(ctx context.Context, plan *incremental.Plan) (string, error)
}

// VersionStatus summarizes one version of the latest plan.
type VersionStatus struct {
	Name        string         `json:"name"`
	Incremental bool           `json:"incremental"`
	Reason      string         `json:"reason,omitempty"`
	Mode        string         `json:"mode"`
	Counts      map[string]int `json:"counts"`
}

// Status is the outcome of the latest run.
type Status struct {
	BuildID    string          `json:"build_id,omitempty"`
	Trigger    string          `json:"trigger"`
	At         time.Time       `json:"at"`
	RecordHash string          `json:"record_hash,omitempty"`
	Versions   []VersionStatus `json:"versions,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Daemon serializes planning runs triggered by the watcher, the scheduler
// and startup.
type Daemon struct {
	cfg      *config.Config
	planner  Planner
	registry *prom.Registry
	logger   *slog.Logger

	runMu sync.Mutex

	statusMu sync.RWMutex
	status   *Status
	runs     int
}

// New creates a daemon. registry may be nil when metrics are disabled.
func New(cfg *config.Config, planner Planner, registry *prom.Registry, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{cfg: cfg, planner: planner, registry: registry, logger: logger}
}

// Run plans once, then keeps planning on input changes and on the watch
// interval until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.Trigger(ctx, "startup", nil)

	watcher, err := NewChangeWatcher(d.cfg.Versions, d.cfg.Watch.Debounce, func(ctx context.Context, b Batch) {
		d.Trigger(ctx, "change", b)
	}, d.logger)
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()

	var scheduler *Scheduler
	if d.cfg.Watch.Interval > 0 {
		scheduler, err = NewScheduler(d.logger)
		if err != nil {
			return err
		}
		if _, err := scheduler.SchedulePeriodic(ctx, "replan", d.cfg.Watch.Interval, func(ctx context.Context) {
			d.Trigger(ctx, "scheduled", nil)
		}); err != nil {
			return err
		}
		scheduler.Start()
	}

	var srv *http.Server
	if d.cfg.Metrics.Enabled {
		srv = &http.Server{
			Addr:              d.cfg.Metrics.Listen,
			Handler:           d.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			d.logger.Info("Serving metrics", slog.String("listen", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.logger.Error("Metrics server failed", logfields.Error(err))
			}
		}()
	}

	<-ctx.Done()
	d.logger.Info("Shutting down daemon")

	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			d.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	wg.Wait()
	return nil
}

// Trigger plans and commits one build. Explicit change lists are used for
// the versions batch names; the rest are diffed.
func (d *Daemon) Trigger(ctx context.Context, trigger string, batch Batch) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	status := &Status{Trigger: trigger, At: time.Now().UTC()}
	defer d.setStatus(status)

	if err := ctx.Err(); err != nil {
		status.Error = err.Error()
		return
	}

	plan, err := d.planner.Plan(ctx, incremental.Request{Explicit: batch})
	if err != nil {
		d.logger.Error("Planning failed", slog.String("trigger", trigger), logfields.Error(err))
		status.Error = err.Error()
		return
	}
	status.BuildID = plan.BuildID
	for _, vp := range plan.Versions {
		status.Versions = append(status.Versions, VersionStatus{
			Name:        vp.Name,
			Incremental: vp.Decision.OK(),
			Reason:      vp.Decision.Reason(),
			Mode:        vp.Mode,
			Counts:      vp.Changes.Summary(),
		})
	}

	hash, err := d.planner.Commit(ctx, plan)
	if err != nil {
		d.logger.Error("Commit failed", logfields.BuildID(plan.BuildID), logfields.Error(err))
		status.Error = err.Error()
		return
	}
	status.RecordHash = hash
}

func (d *Daemon) setStatus(s *Status) {
	d.statusMu.Lock()
	d.status = s
	d.runs++
	d.statusMu.Unlock()
}

// Status returns the latest run's status, or nil before the first run.
func (d *Daemon) Status() *Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.status
}

// Runs returns how many runs have completed.
func (d *Daemon) Runs() int {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.runs
}

// Handler serves /metrics and /status.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		status := d.Status()
		if status == nil {
			http.Error(w, "no run yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}
