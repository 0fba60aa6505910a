package gate

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/docdelta/internal/buildstate"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
)

// Observer is notified of every evaluation after it is recorded.
type Observer func(Evaluation)

// Gate evaluates and records incremental-reuse decisions.
type Gate struct {
	logger    *slog.Logger
	report    *Report
	observers []Observer
	version   string
	now       func() time.Time
}

// New creates a gate recording into report (a fresh one when nil).
func New(report *Report) *Gate {
	if report == nil {
		report = NewReport()
	}
	return &Gate{logger: slog.Default(), report: report, now: time.Now}
}

// WithLogger sets a custom logger.
func (g *Gate) WithLogger(logger *slog.Logger) *Gate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// WithObserver adds an observer.
func (g *Gate) WithObserver(o Observer) *Gate {
	if o != nil {
		g.observers = append(g.observers, o)
	}
	return g
}

// ForVersion returns a gate sharing g's report and observers whose
// evaluations are attributed to version.
func (g *Gate) ForVersion(version string) *Gate {
	child := *g
	child.version = version
	return &child
}

// Report returns the report evaluations are recorded in.
func (g *Gate) Report() *Report {
	return g.report
}

func (g *Gate) record(level Level, unit string, d Decision) Decision {
	e := Evaluation{
		Level:      level,
		Version:    g.version,
		Unit:       unit,
		Authorized: d.OK(),
		Reason:     d.Reason(),
		At:         g.now().UTC(),
	}
	g.report.add(e)
	for _, o := range g.observers {
		o(e)
	}

	attrs := []any{logfields.GateLevel(string(level))}
	if g.version != "" {
		attrs = append(attrs, logfields.Version(g.version))
	}
	if unit != "" {
		attrs = append(attrs, logfields.Processor(unit))
	}
	if d.OK() {
		g.logger.Debug("Incremental reuse authorized", attrs...)
	} else {
		g.logger.Info("Incremental reuse denied", append(attrs, logfields.Reason(d.Reason()))...)
	}
	return d
}

// CheckBuild compares the global inputs of the current build with the prior
// one. Commit ranges are compared only when both builds recorded one.
func (g *Gate) CheckBuild(current, prior *buildstate.BuildRecord) Decision {
	return g.record(LevelBuild, "", checkBuild(current, prior))
}

func checkBuild(current, prior *buildstate.BuildRecord) Decision {
	switch {
	case prior == nil:
		return Denied("no prior build")
	case current.ToolVersion != prior.ToolVersion:
		return Deniedf("tool version changed: %s -> %s", prior.ToolVersion, current.ToolVersion)
	case current.PluginHash != prior.PluginHash:
		return Denied("plugin set changed")
	case current.TemplateHash != prior.TemplateHash:
		return Denied("template changed")
	case current.CommitRange != nil && prior.CommitRange != nil && current.CommitRange.From != prior.CommitRange.To:
		return Deniedf("commit range does not chain: prior build ended at %s, current starts at %s",
			prior.CommitRange.To, current.CommitRange.From)
	}
	return Authorized()
}

// VersionOptions are caller choices that force full processing of a version.
type VersionOptions struct {
	ForceRebuild    bool
	ExportRawModel  bool
	ExportViewModel bool
}

// CheckVersion authorizes reuse for one documentation version. It is denied
// whenever build is.
func (g *Gate) CheckVersion(build Decision, current *buildstate.VersionRecord, prior *buildstate.BuildRecord, opts VersionOptions) Decision {
	return g.record(LevelVersion, "", checkVersion(build, current, prior, opts))
}

func checkVersion(build Decision, current *buildstate.VersionRecord, prior *buildstate.BuildRecord, opts VersionOptions) Decision {
	if !build.OK() {
		return Denied("build-level incremental disabled: " + build.Reason())
	}
	priorVersion := prior.Version(current.Name)
	switch {
	case priorVersion == nil:
		return Deniedf("no prior record for version %q", current.Name)
	case current.ConfigHash != priorVersion.ConfigHash:
		return Denied("configuration hash changed")
	case opts.ForceRebuild:
		return Denied("full rebuild forced")
	case opts.ExportRawModel:
		return Denied("raw model export requires full materialization")
	case opts.ExportViewModel:
		return Denied("view model export requires full materialization")
	}
	return Authorized()
}

// CheckProcessor authorizes reuse for the processor called name by comparing
// its current and prior records. It is denied whenever version is.
func (g *Gate) CheckProcessor(version Decision, name string, current, prior []*buildstate.ProcessorRecord) Decision {
	return g.record(LevelProcessor, name, checkProcessor(version, name, current, prior))
}

// CheckProcessorWithTrace is CheckProcessor for a processor whose trace
// eligibility was already evaluated. A trace denial is reported as the
// processor's reason instead of the processor missing from the current build.
func (g *Gate) CheckProcessorWithTrace(version, trace Decision, name string, current, prior []*buildstate.ProcessorRecord) Decision {
	d := checkProcessor(version, name, current, prior)
	if version.OK() && !trace.OK() {
		d = Denied("trace ineligible: " + trace.Reason())
	}
	return g.record(LevelProcessor, name, d)
}

func checkProcessor(version Decision, name string, current, prior []*buildstate.ProcessorRecord) Decision {
	if !version.OK() {
		return Denied("version-level incremental disabled: " + version.Reason())
	}
	cur := findProcessor(current, name)
	if cur == nil {
		return Deniedf("processor %q missing from current build", name)
	}
	prev := findProcessor(prior, name)
	if prev == nil {
		return Deniedf("processor %q missing from prior build", name)
	}
	if cur.ContextHash != prev.ContextHash {
		return Denied("incremental context changed")
	}
	if len(cur.Steps) != len(prev.Steps) {
		return Deniedf("step count changed: %d -> %d", len(prev.Steps), len(cur.Steps))
	}
	for i := range cur.Steps {
		c, p := cur.Steps[i], prev.Steps[i]
		if c.Name != p.Name {
			return Deniedf("step %d changed: %s -> %s", i, p.Name, c.Name)
		}
		if c.ContextHash != p.ContextHash {
			return Deniedf("step %d (%s) incremental context changed", i, c.Name)
		}
	}
	return Authorized()
}

func findProcessor(list []*buildstate.ProcessorRecord, name string) *buildstate.ProcessorRecord {
	for _, p := range list {
		if p != nil && p.Name == name {
			return p
		}
	}
	return nil
}

// TraceEligibility reports whether incremental metadata may be collected for
// p: the processor and every one of its steps must be incremental-capable.
// It is independent of the cascade.
func (g *Gate) TraceEligibility(p Processor) Decision {
	return g.record(LevelTrace, p.Name(), traceEligibility(p))
}

func traceEligibility(p Processor) Decision {
	if _, ok := p.(IncrementalProcessor); !ok {
		return Deniedf("processor %s is not incremental-capable", p.Name())
	}
	var offending []string
	for _, s := range p.Steps() {
		if _, ok := s.(IncrementalStep); !ok {
			offending = append(offending, s.Name())
		}
	}
	if len(offending) > 0 {
		return Denied(fmt.Sprintf("steps not incremental-capable: %s", strings.Join(offending, ", ")))
	}
	return Authorized()
}
