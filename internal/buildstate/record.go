// Package buildstate holds the persisted record of one build: global inputs,
// and per documentation version its configuration hash, dependency graph,
// fingerprint table, processor records and output bookkeeping.
//
// A record is created fresh for every build and saved once at the end. The
// prior build's record is loaded read-only, consulted while planning, then
// discarded.
package buildstate

import (
	"maps"
	"slices"
	"time"

	"git.home.luguber.info/inful/docdelta/internal/changes"
	"git.home.luguber.info/inful/docdelta/internal/depgraph"
	"git.home.luguber.info/inful/docdelta/internal/fingerprint"
)

// CommitRange is the VCS range a build covered.
type CommitRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BuildRecord is the top-level state of one build.
type BuildRecord struct {
	ID           string
	StartedAt    time.Time
	ToolVersion  string
	PluginHash   string
	TemplateHash string
	CommitRange  *CommitRange
	Versions     []*VersionRecord
}

// Version returns the record for name, or nil.
func (r *BuildRecord) Version(name string) *VersionRecord {
	if r == nil {
		return nil
	}
	for _, v := range r.Versions {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// StepRecord is one step of a content processor.
type StepRecord struct {
	Name        string `json:"name"`
	ContextHash string `json:"context_hash"`
}

// ProcessorRecord is a content processor and its ordered steps.
type ProcessorRecord struct {
	Name        string       `json:"name"`
	ContextHash string       `json:"context_hash"`
	Steps       []StepRecord `json:"steps"`
}

// BlobLinks are the object hashes of a version's persisted blobs.
type BlobLinks struct {
	Graph          string `json:"graph"`
	Fingerprints   string `json:"fingerprints"`
	OutputManifest string `json:"output_manifest"`
	XRefMap        string `json:"xref_map"`
	BuildLog       string `json:"build_log"`
}

// VersionRecord is the state of one documentation version.
type VersionRecord struct {
	Name           string
	ConfigHash     string
	Graph          *depgraph.Graph
	Fingerprints   *fingerprint.Table
	Processors     []*ProcessorRecord
	OutputManifest OutputManifest
	XRefMap        XRefMap
	BuildLog       BuildLog

	// Links is filled in when the record is loaded or saved.
	Links BlobLinks
}

// NewVersionRecord creates an empty record for name.
func NewVersionRecord(name string) *VersionRecord {
	return &VersionRecord{
		Name:           name,
		Graph:          depgraph.New(),
		Fingerprints:   fingerprint.NewTable(),
		OutputManifest: OutputManifest{},
		XRefMap:        XRefMap{},
		BuildLog:       BuildLog{},
	}
}

// Processor returns the processor record for name, or nil.
func (v *VersionRecord) Processor(name string) *ProcessorRecord {
	if v == nil {
		return nil
	}
	for _, p := range v.Processors {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// OutputManifest maps a source path to the output paths produced from it.
type OutputManifest map[string][]string

// XRefMap maps a cross-reference uid to the source path declaring it.
type XRefMap map[string]string

// LogEntry is one diagnostic emitted while processing a file.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// BuildLog maps a source path to its diagnostics.
type BuildLog map[string][]LogEntry

// CarryForward copies output bookkeeping for files that did not change from
// prior into v. Entries v already has win; entries of changed or deleted
// files are not copied.
func (v *VersionRecord) CarryForward(prior *VersionRecord, set changes.Set) {
	if prior == nil {
		return
	}
	if v.OutputManifest == nil {
		v.OutputManifest = OutputManifest{}
	}
	if v.XRefMap == nil {
		v.XRefMap = XRefMap{}
	}
	if v.BuildLog == nil {
		v.BuildLog = BuildLog{}
	}
	for src, outs := range prior.OutputManifest {
		if _, ok := v.OutputManifest[src]; !ok && !set.Changed(src) {
			v.OutputManifest[src] = slices.Clone(outs)
		}
	}
	for uid, src := range prior.XRefMap {
		if _, ok := v.XRefMap[uid]; !ok && !set.Changed(src) {
			v.XRefMap[uid] = src
		}
	}
	for src, entries := range prior.BuildLog {
		if _, ok := v.BuildLog[src]; !ok && !set.Changed(src) {
			v.BuildLog[src] = slices.Clone(entries)
		}
	}
}

// Sources returns the sorted source paths present in the manifest.
func (m OutputManifest) Sources() []string {
	return slices.Sorted(maps.Keys(m))
}
