package incremental

import (
	"git.home.luguber.info/inful/docdelta/internal/config"
	"git.home.luguber.info/inful/docdelta/internal/gate"
)

// configProcessor is a content processor declared in the configuration.
// Its context hash covers the processor's own context map.
type configProcessor struct {
	name  string
	hash  string
	steps []gate.Step
}

func (p *configProcessor) Name() string                   { return p.name }
func (p *configProcessor) Steps() []gate.Step             { return p.steps }
func (p *configProcessor) IncrementalContextHash() string { return p.hash }

// plainStep cannot describe its cached output.
type plainStep struct {
	name string
}

func (s plainStep) Name() string { return s.name }

type incrementalStep struct {
	name string
	hash string
}

func (s incrementalStep) Name() string                   { return s.name }
func (s incrementalStep) IncrementalContextHash() string { return s.hash }

// ProcessorsFromConfig turns processor declarations into gate processors.
// Steps declared with incremental: false become steps that are not
// incremental-capable.
func ProcessorsFromConfig(cfgs []config.ProcessorConfig, h ConfigHasher) ([]gate.Processor, error) {
	out := make([]gate.Processor, 0, len(cfgs))
	for _, pc := range cfgs {
		hash, err := h.Hash(pc.Context)
		if err != nil {
			return nil, err
		}
		p := &configProcessor{name: pc.Name, hash: hash}
		for _, sc := range pc.Steps {
			if !sc.IsIncremental() {
				p.steps = append(p.steps, plainStep{name: sc.Name})
				continue
			}
			stepHash, err := h.Hash(sc.Context)
			if err != nil {
				return nil, err
			}
			p.steps = append(p.steps, incrementalStep{name: sc.Name, hash: stepHash})
		}
		out = append(out, p)
	}
	return out, nil
}
