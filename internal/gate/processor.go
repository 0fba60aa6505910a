package gate

import "git.home.luguber.info/inful/docdelta/internal/buildstate"

// Processor is a content processor made of ordered steps.
type Processor interface {
	Name() string
	Steps() []Step
}

// Step is one stage of a processor.
type Step interface {
	Name() string
}

// IncrementalProcessor is a processor that can describe the configuration
// its cached output depends on.
type IncrementalProcessor interface {
	Processor
	IncrementalContextHash() string
}

// IncrementalStep is a step that can describe the configuration its cached
// output depends on.
type IncrementalStep interface {
	Step
	IncrementalContextHash() string
}

// Snapshot records p and its steps for persistence. Steps that are not
// incremental-capable are recorded with an empty hash, which never matches a
// later build; callers normally snapshot only processors that passed
// TraceEligibility.
func Snapshot(p IncrementalProcessor) *buildstate.ProcessorRecord {
	rec := &buildstate.ProcessorRecord{
		Name:        p.Name(),
		ContextHash: p.IncrementalContextHash(),
	}
	for _, s := range p.Steps() {
		step := buildstate.StepRecord{Name: s.Name()}
		if is, ok := s.(IncrementalStep); ok {
			step.ContextHash = is.IncrementalContextHash()
		}
		rec.Steps = append(rec.Steps, step)
	}
	return rec
}
