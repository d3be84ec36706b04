//go:build property
// +build property

package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildTree lays out files according to shape: each entry is the number
// of files to place at that nesting depth.
func buildTree(t *testing.T, shape []int) string {
	root := t.TempDir()
	dir := root
	for level, files := range shape {
		for i := 0; i < files; i++ {
			path := filepath.Join(dir, fmt.Sprintf("f%d_%d.txt", level, i))
			if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		dir = filepath.Join(dir, fmt.Sprintf("d%d", level))
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func countRegularFiles(root string) int {
	count := 0
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count
}

func TestScannerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	shapes := gen.SliceOfN(4, gen.IntRange(0, 5))

	properties.Property("tree completeness", prop.ForAll(
		func(shape []int) bool {
			root := buildTree(t, shape)
			tree, err := New(Options{}, nil).Scan(context.Background(), root)
			if err != nil {
				return false
			}
			return tree.CountFiles() == countRegularFiles(root)
		},
		shapes,
	))

	properties.Property("child depth is parent depth plus one", prop.ForAll(
		func(shape []int) bool {
			root := buildTree(t, shape)
			tree, err := New(Options{Concurrency: 2}, nil).Scan(context.Background(), root)
			if err != nil {
				return false
			}
			ok := true
			tree.Walk(func(n *TreeNode) bool {
				if n.Kind == KindFile && n.Children != nil {
					ok = false
				}
				for _, c := range n.Children {
					if c.Depth != n.Depth+1 || filepath.Dir(c.Path) != n.Path {
						ok = false
					}
				}
				return true
			})
			return ok
		},
		shapes,
	))

	properties.Property("repeated scans are identical", prop.ForAll(
		func(shape []int) bool {
			root := buildTree(t, shape)
			s := New(Options{}, nil)
			first, err1 := s.Scan(context.Background(), root)
			second, err2 := s.Scan(context.Background(), root)
			if err1 != nil || err2 != nil {
				return false
			}
			return reflect.DeepEqual(first, second)
		},
		shapes,
	))

	properties.TestingRun(t)
}
