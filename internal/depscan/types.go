// Package depscan reports dependency edges found in documentation sources:
// include shortcodes, images and other assets, and links between documents.
package depscan

import "git.home.luguber.info/inful/docdelta/internal/depgraph"

// Built-in dependency type names.
const (
	TypeInclude = "include"
	TypeAsset   = "asset"
	TypeLink    = "link"
)

// BuiltinTypes returns the dependency types every scanned graph uses.
// Includes chain (an included file's own includes matter) and force a
// rebuild; assets force a rebuild of the page using them; links only matter
// at link time.
func BuiltinTypes() []depgraph.TypeDef {
	return []depgraph.TypeDef{
		{Name: TypeInclude, IsTransitive: true, TriggerBuild: true, Phase: depgraph.PhaseCompile},
		{Name: TypeAsset, IsTransitive: false, TriggerBuild: true, Phase: depgraph.PhaseCompile},
		{Name: TypeLink, IsTransitive: false, TriggerBuild: false, Phase: depgraph.PhaseLink},
	}
}

// RegisterBuiltins registers BuiltinTypes on g.
func RegisterBuiltins(g *depgraph.Graph) error {
	return g.RegisterTypes(BuiltinTypes())
}
