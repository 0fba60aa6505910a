package incremental

import (
	"time"

	"git.home.luguber.info/inful/docdelta/internal/buildstate"
	"git.home.luguber.info/inful/docdelta/internal/changes"
	"git.home.luguber.info/inful/docdelta/internal/depgraph"
	"git.home.luguber.info/inful/docdelta/internal/gate"
)

// Classification modes.
const (
	ModeExplicit = "explicit"
	ModeDiff     = "diff"
	ModeFull     = "full"
)

// Plan is the outcome of planning one build.
type Plan struct {
	BuildID  string
	Build    gate.Decision
	Versions []*VersionPlan
	Report   *gate.Report
	Duration time.Duration

	// Record is the new build record; Commit persists it.
	Record *buildstate.BuildRecord
}

// Version returns the plan for name, or nil.
func (p *Plan) Version(name string) *VersionPlan {
	for _, v := range p.Versions {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Incremental reports whether any version may reuse cached output.
func (p *Plan) Incremental() bool {
	for _, v := range p.Versions {
		if v.Decision.OK() {
			return true
		}
	}
	return false
}

// ProcessorPlan is the gate outcome of one content processor.
type ProcessorPlan struct {
	Name     string
	Trace    gate.Decision
	Decision gate.Decision
}

// VersionPlan is the outcome of planning one documentation version.
type VersionPlan struct {
	Name       string
	Decision   gate.Decision
	Mode       string
	Changes    changes.Set
	Propagated []string
	Processors []ProcessorPlan
	Expanded   *depgraph.ExpandedMap
	Record     *buildstate.VersionRecord
}

// Processor returns the plan of the processor called name.
func (v *VersionPlan) Processor(name string) (ProcessorPlan, bool) {
	for _, p := range v.Processors {
		if p.Name == name {
			return p, true
		}
	}
	return ProcessorPlan{}, false
}

// Rebuild lists the paths a renderer has to process: every changed path
// when the version is incremental, every current input otherwise. Deleted
// paths are included so their outputs can be removed.
func (v *VersionPlan) Rebuild() []string {
	if v.Decision.OK() {
		return v.Changes.ChangedPaths()
	}
	return v.Record.Fingerprints.Paths()
}
