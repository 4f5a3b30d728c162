package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

func init() {
	Languages["go"] = &Language{
		Name:       "go",
		Extensions: []string{".go"},
		lang:       golang.GetLanguage(),
		Container:  goReceiverType,
	}
}

// goReceiverType extracts the receiver type name of a method_declaration.
// Navigates: method_declaration → receiver parameter_list → parameter_declaration → type.
func goReceiverType(node *sitter.Node, source []byte) string {
	if node.Type() != "method_declaration" {
		return ""
	}
	receiver := node.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}
	for i := 0; i < int(receiver.ChildCount()); i++ {
		param := receiver.Child(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typ := param.ChildByFieldName("type")
		if typ == nil {
			return ""
		}
		return goTypeName(typ, source)
	}
	return ""
}

// goTypeName unwraps pointer and generic receiver types down to the
// type identifier.
func goTypeName(typ *sitter.Node, source []byte) string {
	switch typ.Type() {
	case "type_identifier":
		return NodeText(typ, source)
	case "pointer_type", "generic_type":
		for i := 0; i < int(typ.ChildCount()); i++ {
			if name := goTypeName(typ.Child(i), source); name != "" {
				return name
			}
		}
	}
	return ""
}
