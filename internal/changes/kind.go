// Package changes classifies input files as created, updated, deleted or
// unchanged between two builds and propagates those changes to dependents
// through the dependency graph.
package changes

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// BaseKind is the structural change of a file. Exactly one applies.
type BaseKind uint8

const (
	None BaseKind = iota
	Created
	Updated
	Deleted
)

func (b BaseKind) String() string {
	switch b {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "none"
	}
}

const dependencyUpdatedName = "dependency_updated"

// Kind is a structural change plus the additive DependencyUpdated flag. The
// zero value is an unchanged file. Kinds are only built through Base,
// DependencyUpdated and the With methods, so two structural kinds can never
// be set at once.
type Kind struct {
	base BaseKind
	dep  bool
}

// Base returns the kind with structural change b and no dependency flag.
func Base(b BaseKind) Kind {
	return Kind{base: b}
}

// DependencyUpdated returns the kind of a file that did not change itself but
// depends on something that did.
func DependencyUpdated() Kind {
	return Kind{dep: true}
}

// WithDependencyUpdated returns k with the dependency flag set.
func (k Kind) WithDependencyUpdated() Kind {
	k.dep = true
	return k
}

// WithBase replaces the structural change, keeping the dependency flag.
func (k Kind) WithBase(b BaseKind) Kind {
	k.base = b
	return k
}

// BaseKind returns the structural part of k.
func (k Kind) BaseKind() BaseKind { return k.base }

// IsDependencyUpdated reports whether the dependency flag is set.
func (k Kind) IsDependencyUpdated() bool { return k.dep }

// IsNone reports whether k carries no change at all.
func (k Kind) IsNone() bool { return k.base == None && !k.dep }

// Is reports whether the structural part of k is b.
func (k Kind) Is(b BaseKind) bool { return k.base == b }

// String renders k as its flags joined with "|", e.g. "updated|dependency_updated".
func (k Kind) String() string {
	switch {
	case k.base == None && k.dep:
		return dependencyUpdatedName
	case k.dep:
		return k.base.String() + "|" + dependencyUpdatedName
	default:
		return k.base.String()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the String form. Two structural flags are rejected.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses "none", "created", "updated", "deleted",
// "dependency_updated" or a structural flag joined with "|dependency_updated".
func ParseKind(s string) (Kind, error) {
	var k Kind
	seenBase := false
	for part := range strings.SplitSeq(strings.ToLower(strings.TrimSpace(s)), "|") {
		part = strings.TrimSpace(part)
		var b BaseKind
		switch part {
		case dependencyUpdatedName:
			k.dep = true
			continue
		case "none", "":
			b = None
		case "created":
			b = Created
		case "updated":
			b = Updated
		case "deleted":
			b = Deleted
		default:
			return Kind{}, errors.ValidationError(fmt.Sprintf("unknown change kind %q", part)).
				WithContext("input", s).
				Build()
		}
		if seenBase && b != k.base {
			return Kind{}, errors.ValidationError("change kinds created, updated and deleted are mutually exclusive").
				WithContext("input", s).
				Build()
		}
		seenBase = true
		k.base = b
	}
	return k, nil
}

// Set maps logical paths to their change kind. A path missing from the set
// is distinct from a path recorded as unchanged.
type Set map[string]Kind

// Lookup returns the recorded kind for path.
func (s Set) Lookup(path string) (Kind, bool) {
	k, ok := s[path]
	return k, ok
}

// Changed reports whether path is present with a kind other than none.
func (s Set) Changed(path string) bool {
	k, ok := s[path]
	return ok && !k.IsNone()
}

// ChangedPaths returns every path with a change, sorted.
func (s Set) ChangedPaths() []string {
	out := make([]string, 0, len(s))
	for p, k := range s {
		if !k.IsNone() {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// Summary counts paths per rendered kind.
func (s Set) Summary() map[string]int {
	out := make(map[string]int)
	for _, k := range s {
		out[k.String()]++
	}
	return out
}

// Clone returns a shallow copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for p, k := range s {
		out[p] = k
	}
	return out
}
