package scanner

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Kind distinguishes files from folders in the tree.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "file":
		*k = KindFile
	case "folder":
		*k = KindFolder
	default:
		return fmt.Errorf("unknown node kind %q", text)
	}
	return nil
}

// TreeNode is one filesystem entry. Children is non-nil for folders and
// always nil for files.
type TreeNode struct {
	Name     string      `json:"name" yaml:"name"`
	Path     string      `json:"path" yaml:"path"`
	Kind     Kind        `json:"type" yaml:"type"`
	Depth    int         `json:"depth" yaml:"depth"`
	Children []*TreeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// MarshalJSON emits an explicit empty children array for empty folders.
func (n *TreeNode) MarshalJSON() ([]byte, error) {
	type wire struct {
		Name     string       `json:"name"`
		Path     string       `json:"path"`
		Kind     Kind         `json:"type"`
		Depth    int          `json:"depth"`
		Children *[]*TreeNode `json:"children,omitempty"`
	}

	w := wire{Name: n.Name, Path: n.Path, Kind: n.Kind, Depth: n.Depth}
	if n.Kind == KindFolder {
		children := n.Children
		if children == nil {
			children = []*TreeNode{}
		}
		w.Children = &children
	}
	return json.Marshal(w)
}

// IsFolder reports whether the node is a folder.
func (n *TreeNode) IsFolder() bool {
	return n.Kind == KindFolder
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn stops the descent into that node's children.
func (n *TreeNode) Walk(fn func(*TreeNode) bool) {
	stack := []*TreeNode{n}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(node) {
			continue
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
}

// CountFiles returns the number of file nodes under n, n included.
func (n *TreeNode) CountFiles() int {
	count := 0
	n.Walk(func(node *TreeNode) bool {
		if node.Kind == KindFile {
			count++
		}
		return true
	})
	return count
}

// Find returns the node with the given path, or nil.
func (n *TreeNode) Find(path string) *TreeNode {
	var found *TreeNode
	n.Walk(func(node *TreeNode) bool {
		if found != nil {
			return false
		}
		if node.Path == path {
			found = node
			return false
		}
		return true
	})
	return found
}

// WriteText renders the tree with box-drawing connectors.
func WriteText(w io.Writer, root *TreeNode) error {
	if _, err := fmt.Fprintf(w, "%s/\n", root.Name); err != nil {
		return err
	}
	return writeChildren(w, root.Children, "")
}

func writeChildren(w io.Writer, children []*TreeNode, prefix string) error {
	for i, child := range children {
		last := i == len(children)-1
		connector, indent := "├── ", "│   "
		if last {
			connector, indent = "└── ", "    "
		}

		name := child.Name
		if child.IsFolder() {
			name += "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, connector, name); err != nil {
			return err
		}
		if child.IsFolder() {
			if err := writeChildren(w, child.Children, prefix+indent); err != nil {
				return err
			}
		}
	}
	return nil
}

// String renders the tree as text.
func (n *TreeNode) String() string {
	var b strings.Builder
	_ = WriteText(&b, n)
	return b.String()
}
