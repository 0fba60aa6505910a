package incremental

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/docdelta/internal/buildstate"
	"git.home.luguber.info/inful/docdelta/internal/changes"
	"git.home.luguber.info/inful/docdelta/internal/config"
	"git.home.luguber.info/inful/docdelta/internal/depgraph"
	"git.home.luguber.info/inful/docdelta/internal/depscan"
	"git.home.luguber.info/inful/docdelta/internal/eventstore"
	"git.home.luguber.info/inful/docdelta/internal/fingerprint"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
	"git.home.luguber.info/inful/docdelta/internal/gate"
	"git.home.luguber.info/inful/docdelta/internal/git"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
	"git.home.luguber.info/inful/docdelta/internal/metrics"
	"git.home.luguber.info/inful/docdelta/internal/notify"
)

// CommitRanger resolves the commit range a new build covers.
type CommitRanger interface {
	CommitRange(prior *buildstate.CommitRange) (*buildstate.CommitRange, error)
}

// Request carries per-run inputs of Plan.
type Request struct {
	// Explicit maps a version name to a caller-supplied change list. Versions
	// without an entry are classified by fingerprint diff. Prior sources a
	// list does not mention are deleted unless CompleteExplicit is set.
	Explicit map[string]map[string]changes.Kind

	// CompleteExplicit lists every current source an explicit list does not
	// mention as unchanged, so partial lists only name what changed.
	CompleteExplicit bool

	// FromGit derives explicit change lists from the repository history
	// between the prior build's end commit and HEAD.
	FromGit bool
}

// Engine plans and commits builds.
type Engine struct {
	cfg        *config.Config
	store      *buildstate.Store
	hasher     ConfigHasher
	processors []gate.Processor
	ranger     CommitRanger
	journal    eventstore.Store
	recorder   metrics.Recorder
	publisher  notify.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an engine for cfg persisting into store. Processors are
// taken from the configuration.
func NewEngine(cfg *config.Config, store *buildstate.Store) (*Engine, error) {
	e := &Engine{
		cfg:       cfg,
		store:     store,
		hasher:    JSONHasher{},
		recorder:  metrics.NoopRecorder{},
		publisher: notify.Noop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	procs, err := ProcessorsFromConfig(cfg.Processors, e.hasher)
	if err != nil {
		return nil, err
	}
	e.processors = procs
	return e, nil
}

// WithLogger sets a custom logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithProcessors replaces the processor registry.
func (e *Engine) WithProcessors(procs []gate.Processor) *Engine {
	e.processors = procs
	return e
}

// WithCommitRanger enables commit range tracking.
func (e *Engine) WithCommitRanger(r CommitRanger) *Engine {
	e.ranger = r
	return e
}

// WithJournal records gate evaluations and change summaries in j.
func (e *Engine) WithJournal(j eventstore.Store) *Engine {
	e.journal = j
	return e
}

// WithRecorder sets the metrics recorder.
func (e *Engine) WithRecorder(r metrics.Recorder) *Engine {
	if r != nil {
		e.recorder = r
	}
	return e
}

// WithPublisher sets where plan summaries are published.
func (e *Engine) WithPublisher(p notify.Publisher) *Engine {
	if p != nil {
		e.publisher = p
	}
	return e
}

// Plan loads the prior build record, plans every configured version and
// returns the plan. Nothing is persisted until Commit.
func (e *Engine) Plan(ctx context.Context, req Request) (*Plan, error) {
	started := e.now()
	prior := e.store.Load(ctx)

	record, err := e.newRecord(prior, started)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With(logfields.BuildID(record.ID))
	e.journalEvent(ctx, logger, record.ID, eventstore.TypePlanStarted, eventstore.PlanStartedPayload{
		ToolVersion: record.ToolVersion,
		Versions:    versionNames(e.cfg.Versions),
	})

	report := gate.NewReport()
	g := gate.New(report).WithLogger(logger).WithObserver(e.observer(ctx, logger, record.ID))
	buildDecision := g.CheckBuild(record, prior)

	plans := make([]*VersionPlan, len(e.cfg.Versions))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, e.cfg.Incremental.MaxParallelVersions))
	for i, vc := range e.cfg.Versions {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			vp, err := e.planVersion(ectx, versionInput{
				cfg:      vc,
				build:    buildDecision,
				prior:    prior,
				explicit: req.Explicit[vc.Name],
				complete: req.CompleteExplicit,
				fromGit:  req.FromGit,
				gate:     g.ForVersion(vc.Name),
				logger:   logger.With(logfields.Version(vc.Name)),
				buildID:  record.ID,
			})
			if err != nil {
				return err
			}
			plans[i] = vp
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "planning canceled").Build()
	}

	for _, vp := range plans {
		record.Versions = append(record.Versions, vp.Record)
	}

	plan := &Plan{
		BuildID:  record.ID,
		Build:    buildDecision,
		Versions: plans,
		Report:   report,
		Duration: e.now().Sub(started),
		Record:   record,
	}
	e.recorder.ObservePlanDuration(plan.Duration)
	e.journalEvent(ctx, logger, record.ID, eventstore.TypePlanCompleted, eventstore.PlanCompletedPayload{
		Incremental: plan.Incremental(),
		Versions:    len(plans),
		Duration:    plan.Duration,
	})
	e.publish(ctx, logger, plan)

	logger.Info("Build planned",
		slog.Bool("incremental", plan.Incremental()),
		logfields.Count(len(plans)),
		logfields.DurationMS(float64(plan.Duration.Microseconds())/1000))
	return plan, nil
}

// Commit persists the plan's record and moves the current pointer to it.
func (e *Engine) Commit(ctx context.Context, plan *Plan) (string, error) {
	if plan == nil || plan.Record == nil {
		return "", errors.InternalError("commit requires a plan").Build()
	}
	hash, err := e.store.Save(ctx, plan.Record)
	if err != nil {
		return "", err
	}
	logger := e.logger.With(logfields.BuildID(plan.BuildID))
	e.journalEvent(ctx, logger, plan.BuildID, eventstore.TypeBuildCommitted, eventstore.BuildCommittedPayload{RecordHash: hash})
	logger.Info("Build state committed", logfields.Hash(hash))
	return hash, nil
}

func (e *Engine) newRecord(prior *buildstate.BuildRecord, started time.Time) (*buildstate.BuildRecord, error) {
	pluginHash, err := HashFiles(e.cfg.Build.Plugins)
	if err != nil {
		return nil, err
	}
	templateHash, err := HashFiles(e.cfg.Build.Templates)
	if err != nil {
		return nil, err
	}
	record := &buildstate.BuildRecord{
		ID:           uuid.NewString(),
		StartedAt:    started.UTC(),
		ToolVersion:  e.cfg.Build.ToolVersion,
		PluginHash:   pluginHash,
		TemplateHash: templateHash,
	}
	if e.ranger != nil {
		var priorRange *buildstate.CommitRange
		if prior != nil {
			priorRange = prior.CommitRange
		}
		record.CommitRange, err = e.ranger.CommitRange(priorRange)
		if err != nil {
			return nil, err
		}
	}
	return record, nil
}

type versionInput struct {
	cfg      config.VersionConfig
	build    gate.Decision
	prior    *buildstate.BuildRecord
	explicit map[string]changes.Kind
	complete bool
	fromGit  bool
	gate     *gate.Gate
	logger   *slog.Logger
	buildID  string
}

func (e *Engine) planVersion(ctx context.Context, in versionInput) (*VersionPlan, error) {
	priorVersion := in.prior.Version(in.cfg.Name)

	vr := buildstate.NewVersionRecord(in.cfg.Name)
	configHash, err := versionConfigHash(e.hasher, e.cfg.Build, in.cfg)
	if err != nil {
		return nil, err
	}
	vr.ConfigHash = configHash

	current, err := e.fingerprint(ctx, in, priorVersion)
	if err != nil {
		return nil, err
	}
	vr.Fingerprints = current

	decision := in.gate.CheckVersion(in.build, vr, in.prior, gate.VersionOptions{
		ForceRebuild:    e.cfg.Build.ForceRebuild,
		ExportRawModel:  e.cfg.Build.ExportRawModel,
		ExportViewModel: e.cfg.Build.ExportViewModel,
	})

	vp := &VersionPlan{Name: in.cfg.Name, Decision: decision, Record: vr}
	if decision.OK() {
		err = e.planIncremental(ctx, in, vp, priorVersion)
	} else {
		err = e.planFull(ctx, in, vp, priorVersion)
	}
	if err != nil {
		return nil, err
	}

	for _, p := range e.processors {
		pp := ProcessorPlan{Name: p.Name(), Trace: in.gate.TraceEligibility(p)}
		if ip, ok := p.(gate.IncrementalProcessor); ok && pp.Trace.OK() {
			vr.Processors = append(vr.Processors, gate.Snapshot(ip))
		}
		var priorProcs []*buildstate.ProcessorRecord
		if priorVersion != nil {
			priorProcs = priorVersion.Processors
		}
		pp.Decision = in.gate.CheckProcessorWithTrace(decision, pp.Trace, p.Name(), vr.Processors, priorProcs)
		vp.Processors = append(vp.Processors, pp)
	}

	vp.Expanded = depgraph.BuildExpanded(vr.Graph)
	if decision.OK() {
		vr.CarryForward(priorVersion, vp.Changes)
	}

	summary := vp.Changes.Summary()
	for kind, n := range summary {
		e.recorder.AddChanges(in.cfg.Name, kind, n)
	}
	e.journalEvent(ctx, in.logger, in.buildID, eventstore.TypeChangesClassified, eventstore.ChangesClassifiedPayload{
		Version:    in.cfg.Name,
		Mode:       vp.Mode,
		Counts:     summary,
		Propagated: vp.Propagated,
	})
	in.logger.Info("Version planned",
		slog.String("mode", vp.Mode),
		slog.Bool("incremental", decision.OK()),
		logfields.Count(len(vp.Changes.ChangedPaths())))
	return vp, nil
}

// fingerprint hashes the version's sources and, as non-source entries, the
// dependency targets the prior build knew about that are not sources.
func (e *Engine) fingerprint(ctx context.Context, in versionInput, prior *buildstate.VersionRecord) (*fingerprint.Table, error) {
	started := e.now()
	src := e.source(in.cfg.Root)
	files, err := src.List(in.cfg.Include)
	if err != nil {
		return nil, err
	}
	reqs := make([]fingerprint.Request, 0, len(files))
	sources := fingerprint.NewTable()
	for _, f := range files {
		reqs = append(reqs, fingerprint.Request{Path: f, FromSource: true})
		sources.Put(fingerprint.Fingerprint{Path: f, IsFromSource: true})
	}
	if prior != nil {
		var known []string
		for _, fp := range prior.Fingerprints.Entries() {
			if !fp.IsFromSource {
				known = append(known, fp.Path)
			}
		}
		known = append(known, dependencyTargets(prior.Graph)...)
		for _, p := range existingFiles(in.cfg.Root, known) {
			if !sources.Has(p) {
				reqs = append(reqs, fingerprint.Request{Path: p})
			}
		}
	}

	table, err := fingerprint.Compute(ctx, src, reqs, e.cfg.Fingerprint.Workers)
	if err != nil {
		return nil, err
	}
	e.recorder.ObserveFingerprintDuration(in.cfg.Name, e.now().Sub(started))
	in.logger.Debug("Fingerprinted version inputs",
		logfields.Count(table.Len()),
		slog.Int("sources", len(files)))
	return table, nil
}

func (e *Engine) source(root string) *fingerprint.FSSource {
	var hasher fingerprint.ContentHasher = fingerprint.SHA256Hasher{}
	if e.cfg.Fingerprint.MarkdownAware {
		hasher = fingerprint.NewMarkdownHasher()
	}
	return fingerprint.NewFSSource(root, hasher)
}

// settleTargets brings the fingerprint table in line with the final graph:
// targets first referenced by a rescanned reporter are fingerprinted and
// recorded as created, and non-source entries no edge points at anymore are
// dropped from both the table and the change set.
func (e *Engine) settleTargets(ctx context.Context, in versionInput, vp *VersionPlan) error {
	table := vp.Record.Fingerprints
	referenced := fingerprint.NewTable()
	var missing []string
	for _, p := range dependencyTargets(vp.Record.Graph) {
		referenced.Put(fingerprint.Fingerprint{Path: p})
		if !table.Has(p) {
			missing = append(missing, p)
		}
	}

	if existing := existingFiles(in.cfg.Root, missing); len(existing) > 0 {
		reqs := make([]fingerprint.Request, 0, len(existing))
		for _, p := range existing {
			reqs = append(reqs, fingerprint.Request{Path: p})
		}
		added, err := fingerprint.Compute(ctx, e.source(in.cfg.Root), reqs, e.cfg.Fingerprint.Workers)
		if err != nil {
			return err
		}
		for _, fp := range added.Entries() {
			table.Put(fp)
			if _, ok := vp.Changes[fp.Path]; !ok {
				vp.Changes[fp.Path] = changes.Base(changes.Created)
			}
		}
	}

	for _, fp := range table.Entries() {
		if !fp.IsFromSource && !referenced.Has(fp.Path) {
			table.Delete(fp.Path)
			delete(vp.Changes, fp.Path)
		}
	}
	return nil
}

// planIncremental classifies against the prior version, rebuilds the graph
// from the prior one keeping edges of unchanged reporters, rescans changed
// files and propagates.
func (e *Engine) planIncremental(ctx context.Context, in versionInput, vp *VersionPlan, priorVersion *buildstate.VersionRecord) error {
	explicit := in.explicit
	if explicit != nil && in.complete {
		explicit = completeExplicit(explicit, vp.Record.Fingerprints)
	}
	if explicit == nil && in.fromGit {
		var err error
		explicit, err = gitChanges(in.cfg.Root, in.prior, vp.Record.Fingerprints)
		if err != nil {
			in.logger.Warn("Falling back to fingerprint diff", logfields.Error(err))
		}
	}
	vp.Mode = ModeDiff
	if explicit != nil {
		vp.Mode = ModeExplicit
	}

	input := changes.ClassifyInput{
		Explicit:   explicit,
		Current:    vp.Record.Fingerprints,
		Prior:      priorVersion.Fingerprints,
		PriorStart: in.prior.StartedAt,
	}
	set, err := changes.NewClassifier().WithLogger(in.logger).Classify(input)
	if err != nil {
		return err
	}
	if explicit != nil {
		if err := diffUnlistedTargets(set, explicit, input); err != nil {
			return err
		}
	}
	vp.Changes = set

	graph, err := reconstructGraph(priorVersion.Graph, set, in.logger)
	if err != nil {
		return err
	}
	var rescan []string
	for _, p := range set.ChangedPaths() {
		k := set[p]
		if !k.Is(changes.Created) && !k.Is(changes.Updated) {
			continue
		}
		if fp, ok := vp.Record.Fingerprints.Get(p); ok && fp.IsFromSource {
			rescan = append(rescan, p)
		}
	}
	if err := scanInto(ctx, graph, in.cfg.Root, rescan, in.logger); err != nil {
		return err
	}
	vp.Record.Graph = graph
	if err := e.settleTargets(ctx, in, vp); err != nil {
		return err
	}

	propagator := changes.NewPropagator().WithLogger(in.logger)
	if e.cfg.Incremental.Propagation == config.PropagationFixedPoint {
		vp.Propagated = propagator.PropagateToFixedPoint(graph, set, changes.TriggersBuildOrCompile)
	} else {
		vp.Propagated = propagator.Propagate(graph, set, changes.TriggersBuildOrCompile)
	}
	return nil
}

// planFull scans every source into a fresh graph, fingerprints the
// dependency targets it reports, then marks every current input created and
// every prior-only input deleted.
func (e *Engine) planFull(ctx context.Context, in versionInput, vp *VersionPlan, priorVersion *buildstate.VersionRecord) error {
	vp.Mode = ModeFull
	vp.Changes = changes.Set{}

	graph, err := reconstructGraph(nil, nil, in.logger)
	if err != nil {
		return err
	}
	if err := scanInto(ctx, graph, in.cfg.Root, vp.Record.Fingerprints.SourcePaths(), in.logger); err != nil {
		return err
	}
	vp.Record.Graph = graph
	if err := e.settleTargets(ctx, in, vp); err != nil {
		return err
	}

	set := changes.AllCreated(vp.Record.Fingerprints)
	if priorVersion != nil {
		for _, p := range priorVersion.Fingerprints.Paths() {
			if !vp.Record.Fingerprints.Has(p) {
				set[p] = changes.Base(changes.Deleted)
			}
		}
	}
	vp.Changes = set
	return nil
}

func scanInto(ctx context.Context, graph *depgraph.Graph, root string, files []string, logger *slog.Logger) error {
	if len(files) == 0 {
		return nil
	}
	edges, err := depscan.NewScanner(os.DirFS(root)).WithLogger(logger).Scan(ctx, files)
	if err != nil {
		return err
	}
	graph.AddEdges(edges)
	return nil
}

// gitChanges builds a complete explicit change list: every current input is
// listed unchanged unless the history between the prior build's end commit
// and HEAD touched it.
func gitChanges(root string, prior *buildstate.BuildRecord, current *fingerprint.Table) (map[string]changes.Kind, error) {
	if prior == nil || prior.CommitRange == nil || prior.CommitRange.To == "" {
		return nil, errors.VCSError("prior build has no recorded commit").Build()
	}
	repo, err := git.Open(root)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}
	touched, err := repo.ChangedFiles(prior.CommitRange.To, head)
	if err != nil {
		return nil, err
	}
	out := make(map[string]changes.Kind, current.Len()+len(touched))
	for _, p := range current.SourcePaths() {
		out[p] = changes.Base(changes.None)
	}
	for p, k := range touched {
		if k.Is(changes.Deleted) || current.Has(p) {
			out[p] = k
		}
	}
	return out, nil
}

// completeExplicit returns a copy of list with every current source it does
// not mention added as unchanged.
func completeExplicit(list map[string]changes.Kind, current *fingerprint.Table) map[string]changes.Kind {
	out := make(map[string]changes.Kind, current.Len()+len(list))
	for _, p := range current.SourcePaths() {
		out[p] = changes.Base(changes.None)
	}
	for p, k := range list {
		out[p] = k
	}
	return out
}

// diffUnlistedTargets classifies dependency targets an explicit list does not
// mention by comparing fingerprints, so a changed target is never missed
// because the list only names sources.
func diffUnlistedTargets(set changes.Set, explicit map[string]changes.Kind, in changes.ClassifyInput) error {
	diff, err := changes.ClassifyDiff(in.Current, in.Prior, in.PriorStart)
	if err != nil {
		return err
	}
	isTarget := func(t *fingerprint.Table, p string) bool {
		fp, ok := t.Get(p)
		return ok && !fp.IsFromSource
	}
	for p, k := range diff {
		if _, listed := explicit[p]; listed {
			continue
		}
		if isTarget(in.Current, p) || isTarget(in.Prior, p) {
			set[p] = k
		}
	}
	return nil
}

// dependencyTargets returns the distinct edge targets of g, sorted.
func dependencyTargets(g *depgraph.Graph) []string {
	if g == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, edge := range g.Edges() {
		if _, ok := seen[edge.To]; ok {
			continue
		}
		seen[edge.To] = struct{}{}
		out = append(out, edge.To)
	}
	slices.Sort(out)
	return out
}

// existingFiles keeps the slash paths that name regular files below root.
func existingFiles(root string, paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	var out []string
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		local := filepath.FromSlash(p)
		if !filepath.IsLocal(local) {
			continue
		}
		info, err := os.Stat(filepath.Join(root, local))
		if err == nil && info.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out
}

func versionNames(vs []config.VersionConfig) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Name)
	}
	return out
}
