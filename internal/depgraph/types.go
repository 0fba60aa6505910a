// Package depgraph stores typed, directed dependency edges between logical
// nodes (files or reference keys) and answers reachability queries over them.
//
// Transitivity is type-homogeneous per hop: a closure only chains edges of the
// same type, and only if that type is registered as transitive. A chain of
// "include" edges is never continued through a "link" edge even when both
// types happen to be transitive.
package depgraph

import (
	"cmp"

	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// Phase is the build phase a dependency type belongs to.
type Phase string

const (
	PhaseNone    Phase = ""
	PhaseCompile Phase = "compile"
	PhaseLink    Phase = "link"
)

// Edge records that From depends on To, as reported by ReportedBy.
// Edges are values: two edges with equal fields are the same edge.
type Edge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	ReportedBy string `json:"reported_by"`
	Type       string `json:"type"`
}

func compareEdges(a, b Edge) int {
	return cmp.Or(
		cmp.Compare(a.From, b.From),
		cmp.Compare(a.To, b.To),
		cmp.Compare(a.Type, b.Type),
		cmp.Compare(a.ReportedBy, b.ReportedBy),
	)
}

// TypeDef describes a dependency type. IsTransitive controls whether edges of
// the type chain in closures; TriggerBuild and Phase control whether a change
// reaching a node through the type forces a rebuild.
type TypeDef struct {
	Name         string `json:"name"`
	IsTransitive bool   `json:"is_transitive"`
	TriggerBuild bool   `json:"trigger_build"`
	Phase        Phase  `json:"phase,omitempty"`
}

func (d TypeDef) conflictsWith(other TypeDef) bool {
	return d.IsTransitive != other.IsTransitive || d.TriggerBuild != other.TriggerBuild
}

// ErrConflictingTypeDefinition is returned when a type is registered twice with
// different transitivity or trigger semantics.
var ErrConflictingTypeDefinition = errors.GraphError("conflicting dependency type definition").Build()

func conflictError(existing, incoming TypeDef) error {
	return errors.GraphError(ErrConflictingTypeDefinition.Message()).
		WithContext("type", incoming.Name).
		WithContext("existing_transitive", existing.IsTransitive).
		WithContext("existing_trigger_build", existing.TriggerBuild).
		WithContext("incoming_transitive", incoming.IsTransitive).
		WithContext("incoming_trigger_build", incoming.TriggerBuild).
		Build()
}
