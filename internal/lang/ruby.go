package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

func init() {
	Languages["ruby"] = &Language{
		Name:       "ruby",
		Extensions: []string{".rb"},
		lang:       ruby.GetLanguage(),
		Container:  rubyEnclosingClass,
	}
}

// rubyEnclosingClass walks the parent chain of a method or singleton_method
// looking for a class or module node.
func rubyEnclosingClass(node *sitter.Node, source []byte) string {
	if node.Type() != "method" && node.Type() != "singleton_method" {
		return ""
	}
	for n := node.Parent(); n != nil; n = n.Parent() {
		if n.Type() == "class" || n.Type() == "module" {
			return childText(n, source, "constant", "scope_resolution")
		}
	}
	return ""
}
