package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
		Container:  pythonEnclosingClass,
	}
}

// pythonEnclosingClass returns the class a function_definition is a method
// of. Nested functions inside methods are not methods.
func pythonEnclosingClass(node *sitter.Node, source []byte) string {
	if node.Type() != "function_definition" {
		return ""
	}
	parent := node.Parent()
	if parent != nil && parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	if parent == nil || parent.Type() != "block" {
		return ""
	}
	class := parent.Parent()
	if class == nil || class.Type() != "class_definition" {
		return ""
	}
	return childText(class, source, "identifier")
}
