// Package xmpp provides conversion between stanzas, AST nodes and Go native types.
package xmpp

import (
	"fmt"
	"sort"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/shapestone/shape-core/pkg/ast"
)

// Property names of an element node.
const (
	PropName       = "name"
	PropAttributes = "attributes"
	PropText       = "text"
	PropChildren   = "children"
)

// ElementToNode converts a stanza to Shape's unified AST.
//
// An element becomes an *ast.ObjectNode with the properties:
//   - "name": *ast.LiteralNode (string)
//   - "attributes": *ast.ObjectNode of *ast.LiteralNode (string) values
//   - "text": *ast.LiteralNode (string)
//   - "children": *ast.ArrayDataNode of element nodes, in document order
//
// Example:
//
//	stanzas, _ := xmpp.Parse("<presence type='away'/>")
//	node := xmpp.ElementToNode(stanzas[0])
func ElementToNode(el stravaganza.Element) ast.SchemaNode {
	pos := ast.Position{}
	if el == nil {
		return ast.NewLiteralNode(nil, pos)
	}

	attrs := make(map[string]ast.SchemaNode, len(el.AllAttributes()))
	for _, a := range el.AllAttributes() {
		attrs[a.Label] = ast.NewLiteralNode(a.Value, pos)
	}

	children := make([]ast.SchemaNode, 0, len(el.AllChildren()))
	for _, child := range el.AllChildren() {
		children = append(children, ElementToNode(child))
	}

	return ast.NewObjectNode(map[string]ast.SchemaNode{
		PropName:       ast.NewLiteralNode(el.Name(), pos),
		PropAttributes: ast.NewObjectNode(attrs, pos),
		PropText:       ast.NewLiteralNode(el.Text(), pos),
		PropChildren:   ast.NewArrayDataNode(children, pos),
	}, pos)
}

// NodeToInterface converts an AST node to native Go types.
//
// For element nodes produced by ElementToNode, this converts:
//   - *ast.ObjectNode → map[string]interface{}
//   - *ast.ArrayDataNode → []interface{}
//   - *ast.LiteralNode → its value
//
// This function recursively processes nested structures.
//
// Example:
//
//	data := xmpp.NodeToInterface(xmpp.ElementToNode(stanza)).(map[string]interface{})
//	fmt.Println(data["name"])
func NodeToInterface(node ast.SchemaNode) interface{} {
	switch n := node.(type) {
	case *ast.LiteralNode:
		return n.Value()

	case *ast.ArrayDataNode:
		elements := n.Elements()
		out := make([]interface{}, len(elements))
		for i, elem := range elements {
			out[i] = NodeToInterface(elem)
		}
		return out

	case *ast.ObjectNode:
		props := n.Properties()
		out := make(map[string]interface{}, len(props))
		for k, v := range props {
			out[k] = NodeToInterface(v)
		}
		return out

	default:
		return nil
	}
}

// NodeToElement converts an element node produced by ElementToNode back to
// a stanza. Attributes are restored in label order, since AST objects do not
// keep insertion order.
func NodeToElement(node ast.SchemaNode) (stravaganza.Element, error) {
	obj, ok := node.(*ast.ObjectNode)
	if !ok {
		return nil, fmt.Errorf("xmpp: element node must be *ast.ObjectNode, got %T", node)
	}
	props := obj.Properties()

	name, err := stringProp(props, PropName)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("xmpp: element node has an empty name")
	}
	b := stravaganza.NewBuilder(name)

	if attrNode, ok := props[PropAttributes].(*ast.ObjectNode); ok {
		attrProps := attrNode.Properties()
		labels := make([]string, 0, len(attrProps))
		for label := range attrProps {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			v, err := stringProp(attrProps, label)
			if err != nil {
				return nil, err
			}
			b = b.WithAttribute(label, v)
		}
	}

	if childNode, ok := props[PropChildren].(*ast.ArrayDataNode); ok {
		for i, c := range childNode.Elements() {
			child, err := NodeToElement(c)
			if err != nil {
				return nil, fmt.Errorf("child %d: %w", i, err)
			}
			b = b.WithChild(child)
		}
	}

	if text, _ := stringProp(props, PropText); text != "" {
		b = b.WithText(text)
	}
	return b.Build(), nil
}

func stringProp(props map[string]ast.SchemaNode, key string) (string, error) {
	lit, ok := props[key].(*ast.LiteralNode)
	if !ok {
		return "", fmt.Errorf("xmpp: property %q must be a literal", key)
	}
	switch v := lit.Value().(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
