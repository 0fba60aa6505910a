package depscan

import (
	"regexp"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// includeShortcode matches {{< include "path" >}} and {{% include "path" %}}.
var includeShortcode = regexp.MustCompile(`\{\{[<%]\s*include\s+"([^"]+)"\s*[>%]\}\}`)

type reference struct {
	typ  string
	dest string
}

func scanMarkdown(body []byte) []reference {
	var refs []reference
	for _, m := range includeShortcode.FindAllSubmatch(body, -1) {
		refs = append(refs, reference{typ: TypeInclude, dest: string(m[1])})
	}

	md := goldmark.New()
	ctx := parser.NewContext()
	root := md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Image:
			refs = append(refs, reference{typ: TypeAsset, dest: string(node.Destination)})
		case *gmast.Link:
			refs = append(refs, reference{typ: TypeLink, dest: string(node.Destination)})
		}
		return gmast.WalkContinue, nil
	})
	return refs
}
