package gate

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdelta/internal/buildstate"
)

func priorBuild() *buildstate.BuildRecord {
	v := buildstate.NewVersionRecord("v1")
	v.ConfigHash = "cfg"
	return &buildstate.BuildRecord{
		ToolVersion:  "1.0",
		PluginHash:   "plug",
		TemplateHash: "tmpl",
		CommitRange:  &buildstate.CommitRange{From: "a", To: "b"},
		Versions:     []*buildstate.VersionRecord{v},
	}
}

func currentBuild() *buildstate.BuildRecord {
	return &buildstate.BuildRecord{
		ToolVersion:  "1.0",
		PluginHash:   "plug",
		TemplateHash: "tmpl",
		CommitRange:  &buildstate.CommitRange{From: "b", To: "c"},
	}
}

func TestDecision(t *testing.T) {
	assert.True(t, Authorized().OK())
	assert.Empty(t, Authorized().Reason())
	d := Denied("")
	assert.False(t, d.OK())
	assert.NotEmpty(t, d.Reason())
	assert.Equal(t, "denied: x 1", Deniedf("x %d", 1).String())
}

func TestCheckBuild(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(cur, prior *buildstate.BuildRecord) *buildstate.BuildRecord
		reason string
	}{
		{"authorized", func(_, p *buildstate.BuildRecord) *buildstate.BuildRecord { return p }, ""},
		{"no prior", func(_, _ *buildstate.BuildRecord) *buildstate.BuildRecord { return nil }, "no prior build"},
		{"tool version", func(c, p *buildstate.BuildRecord) *buildstate.BuildRecord { c.ToolVersion = "2.0"; return p }, "tool version changed: 1.0 -> 2.0"},
		{"plugins", func(c, p *buildstate.BuildRecord) *buildstate.BuildRecord { c.PluginHash = "x"; return p }, "plugin set changed"},
		{"templates", func(c, p *buildstate.BuildRecord) *buildstate.BuildRecord { c.TemplateHash = "x"; return p }, "template changed"},
		{"commit gap", func(c, p *buildstate.BuildRecord) *buildstate.BuildRecord {
			c.CommitRange.From = "z"
			return p
		}, "commit range does not chain: prior build ended at b, current starts at z"},
		{"range not recorded before", func(_, p *buildstate.BuildRecord) *buildstate.BuildRecord {
			p.CommitRange = nil
			return p
		}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur := currentBuild()
			prior := tc.mutate(cur, priorBuild())
			d := New(nil).CheckBuild(cur, prior)
			if tc.reason == "" {
				assert.True(t, d.OK(), d.Reason())
				return
			}
			assert.False(t, d.OK())
			assert.Equal(t, tc.reason, d.Reason())
		})
	}
}

func TestCheckVersion(t *testing.T) {
	prior := priorBuild()
	current := buildstate.NewVersionRecord("v1")
	current.ConfigHash = "cfg"
	g := New(nil)

	assert.True(t, g.CheckVersion(Authorized(), current, prior, VersionOptions{}).OK())

	d := g.CheckVersion(Denied("no prior build"), current, prior, VersionOptions{})
	assert.Equal(t, "build-level incremental disabled: no prior build", d.Reason())

	other := buildstate.NewVersionRecord("v2")
	assert.Equal(t, `no prior record for version "v2"`, g.CheckVersion(Authorized(), other, prior, VersionOptions{}).Reason())

	changed := buildstate.NewVersionRecord("v1")
	changed.ConfigHash = "other"
	assert.Equal(t, "configuration hash changed", g.CheckVersion(Authorized(), changed, prior, VersionOptions{}).Reason())

	assert.Equal(t, "full rebuild forced", g.CheckVersion(Authorized(), current, prior, VersionOptions{ForceRebuild: true}).Reason())
	assert.Contains(t, g.CheckVersion(Authorized(), current, prior, VersionOptions{ExportRawModel: true}).Reason(), "raw model")
	assert.Contains(t, g.CheckVersion(Authorized(), current, prior, VersionOptions{ExportViewModel: true}).Reason(), "view model")
}

func proc(name, hash string, steps ...buildstate.StepRecord) *buildstate.ProcessorRecord {
	return &buildstate.ProcessorRecord{Name: name, ContextHash: hash, Steps: steps}
}

func TestCheckProcessor(t *testing.T) {
	prior := []*buildstate.ProcessorRecord{proc("md", "h", buildstate.StepRecord{Name: "parse", ContextHash: "1"}, buildstate.StepRecord{Name: "render", ContextHash: "2"})}
	g := New(nil)

	cases := []struct {
		name    string
		version Decision
		current []*buildstate.ProcessorRecord
		reason  string
	}{
		{"authorized", Authorized(), prior, ""},
		{"version denied", Denied("full rebuild forced"), prior, "version-level incremental disabled: full rebuild forced"},
		{"missing current", Authorized(), nil, `processor "md" missing from current build`},
		{"context", Authorized(), []*buildstate.ProcessorRecord{proc("md", "x", prior[0].Steps...)}, "incremental context changed"},
		{"step count", Authorized(), []*buildstate.ProcessorRecord{proc("md", "h", prior[0].Steps[0])}, "step count changed: 2 -> 1"},
		{"step name", Authorized(), []*buildstate.ProcessorRecord{proc("md", "h", prior[0].Steps[0], buildstate.StepRecord{Name: "emit", ContextHash: "2"})}, "step 1 changed: render -> emit"},
		{"step hash", Authorized(), []*buildstate.ProcessorRecord{proc("md", "h", buildstate.StepRecord{Name: "parse", ContextHash: "9"}, prior[0].Steps[1])}, "step 0 (parse) incremental context changed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := g.CheckProcessor(tc.version, "md", tc.current, prior)
			if tc.reason == "" {
				assert.True(t, d.OK(), d.Reason())
				return
			}
			assert.Equal(t, tc.reason, d.Reason())
		})
	}

	d := g.CheckProcessor(Authorized(), "md", prior, nil)
	assert.Equal(t, `processor "md" missing from prior build`, d.Reason())
}

func TestCheckProcessorWithTrace(t *testing.T) {
	prior := []*buildstate.ProcessorRecord{proc("md", "h")}
	g := New(nil)

	trace := Denied("steps not incremental-capable: link")
	assert.Equal(t, "trace ineligible: steps not incremental-capable: link",
		g.CheckProcessorWithTrace(Authorized(), trace, "md", nil, prior).Reason())
	assert.Equal(t, "version-level incremental disabled: full rebuild forced",
		g.CheckProcessorWithTrace(Denied("full rebuild forced"), trace, "md", nil, prior).Reason())
	assert.True(t, g.CheckProcessorWithTrace(Authorized(), Authorized(), "md", prior, prior).OK())
}

func TestCascadeShortCircuits(t *testing.T) {
	report := NewReport()
	g := New(report).ForVersion("v1")

	build := g.CheckBuild(currentBuild(), nil)
	cur := buildstate.NewVersionRecord("v1")
	version := g.CheckVersion(build, cur, nil, VersionOptions{})
	processor := g.CheckProcessor(version, "md", nil, nil)

	assert.False(t, build.OK())
	assert.False(t, version.OK())
	assert.False(t, processor.OK())
	assert.Equal(t, "version-level incremental disabled: build-level incremental disabled: no prior build", processor.Reason())

	evals := report.Evaluations()
	require.Len(t, evals, 3)
	for _, e := range evals {
		assert.Equal(t, "v1", e.Version)
		assert.False(t, e.Authorized)
		assert.NotEmpty(t, e.Reason)
	}
	e, ok := report.Find(LevelProcessor, "v1", "md")
	require.True(t, ok)
	assert.Equal(t, processor.Reason(), e.Reason)
	assert.Len(t, report.Denials(), 3)
}

type stubStep struct{ name string }

func (s stubStep) Name() string { return s.name }

type incStep struct {
	stubStep
	hash string
}

func (s incStep) IncrementalContextHash() string { return s.hash }

type stubProc struct {
	name  string
	steps []Step
}

func (p stubProc) Name() string  { return p.name }
func (p stubProc) Steps() []Step { return p.steps }

type incProc struct {
	stubProc
	hash string
}

func (p incProc) IncrementalContextHash() string { return p.hash }

func TestTraceEligibility(t *testing.T) {
	g := New(nil)

	ok := incProc{stubProc{"md", []Step{incStep{stubStep{"parse"}, "1"}}}, "h"}
	assert.True(t, g.TraceEligibility(ok).OK())

	notInc := stubProc{"legacy", nil}
	assert.Equal(t, "processor legacy is not incremental-capable", g.TraceEligibility(notInc).Reason())

	mixed := incProc{stubProc{"api", []Step{stubStep{"fetch"}, incStep{stubStep{"parse"}, "1"}, stubStep{"link"}}}, "h"}
	assert.Equal(t, "steps not incremental-capable: fetch, link", g.TraceEligibility(mixed).Reason())
}

func TestSnapshot(t *testing.T) {
	p := incProc{stubProc{"api", []Step{incStep{stubStep{"parse"}, "1"}, stubStep{"link"}}}, "h"}
	rec := Snapshot(p)
	assert.Equal(t, proc("api", "h", buildstate.StepRecord{Name: "parse", ContextHash: "1"}, buildstate.StepRecord{Name: "link"}), rec)
}

func TestGate_ObserverLoggingAndConcurrency(t *testing.T) {
	var logs bytes.Buffer
	var mu sync.Mutex
	seen := 0
	g := New(nil).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))).
		WithObserver(func(Evaluation) { mu.Lock(); seen++; mu.Unlock() })

	var wg sync.WaitGroup
	for _, v := range []string{"v1", "v2", "v3", "v4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.ForVersion(v).CheckBuild(currentBuild(), nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, seen)
	assert.Len(t, g.Report().Evaluations(), 4)
	assert.Contains(t, logs.String(), "Incremental reuse denied")
	assert.Contains(t, logs.String(), "reason=\"no prior build\"")
}
