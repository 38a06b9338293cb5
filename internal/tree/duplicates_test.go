package tree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdirstat/wdirstat/internal/tree"
)

func TestBuildDuplicateGroups(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) *tree.Item {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		return tree.NewFile(name, tree.LeafStat{SizeLogical: uint64(len(content))})
	}

	tr := tree.New()
	root := tree.NewDrive(dir)
	tr.AddRoot(root)

	a := write("a.txt", "hello world")
	b := write("b.txt", "hello world") // duplicate of a
	c := write("c.txt", "different content entirely")

	tr.AddChild(root, a)
	tr.AddChild(root, b)
	tr.AddChild(root, c)
	tr.MarkDone(root)

	pathOf := func(it *tree.Item) string {
		return filepath.Join(dir, it.Name())
	}

	groups, err := tree.BuildDuplicateGroups(root, pathOf, 2)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, uint64(len("hello world")), groups[0].Key.SizeLogical)
}
