// Package fingerprint records the last-known state (modification time and
// content hash) of every input file of a documentation version.
package fingerprint

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"

	"git.home.luguber.info/inful/docdelta/internal/pathkey"
)

// Fingerprint is the recorded state of one input file.
type Fingerprint struct {
	Path            string    `json:"path"`
	LastModifiedUTC time.Time `json:"last_modified_utc"`
	ContentHash     string    `json:"content_hash"`
	// IsFromSource is false for generated or externally supplied inputs.
	IsFromSource bool `json:"is_from_source"`
}

// Table maps normalized paths to fingerprints. It has a single owner and is
// not safe for concurrent mutation.
type Table struct {
	keys    pathkey.Normalizer
	entries map[string]Fingerprint
}

// NewTable creates an empty table keyed with the host path semantics.
func NewTable() *Table {
	return NewTableWith(pathkey.Host())
}

// NewTableWith creates an empty table keyed with n.
func NewTableWith(n pathkey.Normalizer) *Table {
	return &Table{keys: n, entries: make(map[string]Fingerprint)}
}

// Put inserts or replaces the entry for fp.Path.
func (t *Table) Put(fp Fingerprint) {
	fp.LastModifiedUTC = fp.LastModifiedUTC.UTC()
	t.entries[t.keys.Key(fp.Path)] = fp
}

// Get looks up path using the table's key normalization.
func (t *Table) Get(path string) (Fingerprint, bool) {
	fp, ok := t.entries[t.keys.Key(path)]
	return fp, ok
}

// Has reports whether path has an entry.
func (t *Table) Has(path string) bool {
	_, ok := t.entries[t.keys.Key(path)]
	return ok
}

// Delete removes the entry for path.
func (t *Table) Delete(path string) {
	delete(t.entries, t.keys.Key(path))
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns all fingerprints sorted by path.
func (t *Table) Entries() []Fingerprint {
	if t == nil {
		return nil
	}
	out := make([]Fingerprint, 0, len(t.entries))
	for _, fp := range t.entries {
		out = append(out, fp)
	}
	slices.SortFunc(out, func(a, b Fingerprint) int { return cmp.Compare(a.Path, b.Path) })
	return out
}

// Paths returns the recorded paths, sorted.
func (t *Table) Paths() []string {
	entries := t.Entries()
	out := make([]string, len(entries))
	for i, fp := range entries {
		out[i] = fp.Path
	}
	return out
}

// SourcePaths returns the sorted paths whose entries came from the source set.
func (t *Table) SourcePaths() []string {
	var out []string
	for _, fp := range t.Entries() {
		if fp.IsFromSource {
			out = append(out, fp.Path)
		}
	}
	return out
}

// MarshalJSON encodes the table as a list sorted by path.
func (t *Table) MarshalJSON() ([]byte, error) {
	entries := t.Entries()
	if entries == nil {
		entries = []Fingerprint{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes a list produced by MarshalJSON. Keys use host path
// semantics unless the table was created with NewTableWith.
func (t *Table) UnmarshalJSON(data []byte) error {
	var entries []Fingerprint
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if t.entries == nil {
		t.keys = pathkey.Host()
	}
	t.entries = make(map[string]Fingerprint, len(entries))
	for _, fp := range entries {
		t.Put(fp)
	}
	return nil
}
