package tree_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdirstat/wdirstat/internal/tree"
)

func TestAddChildAggregatesUpward(t *testing.T) {
	tr := tree.New()

	root := tree.NewDrive("/")
	tr.AddRoot(root)

	a := tree.NewDirectory("a")
	tr.AddChild(root, a)

	f1 := tree.NewFile("f1", tree.LeafStat{SizeLogical: 100, SizePhysical: 100})
	f2 := tree.NewFile("f2", tree.LeafStat{SizeLogical: 50, SizePhysical: 50})
	tr.AddChild(a, f1)
	tr.AddChild(a, f2)

	b := tree.NewDirectory("b")
	tr.AddChild(root, b)

	f3 := tree.NewFile("f3", tree.LeafStat{SizeLogical: 10, SizePhysical: 10})
	tr.AddChild(b, f3)

	tr.MarkDone(a)
	tr.MarkDone(b)
	tr.MarkDone(root)

	snap := root.Snapshot()
	assert.Equal(t, uint64(160), snap.SizeLogical)
	assert.Equal(t, uint64(3), snap.FilesCount)
	assert.Equal(t, uint64(2), snap.FoldersCount)
	assert.True(t, snap.Done)
}

func TestHardlinkAccountedOnce(t *testing.T) {
	tr := tree.New()
	root := tree.NewDrive("/")
	tr.AddRoot(root)

	reg := tr.Hardlinks()
	key := tree.HardlinkKey{Volume: 1, FileID: 42}

	x := tree.NewFile("x", tree.LeafStat{SizeLogical: 100, SizePhysical: 100})

	if _, first := reg.Claim(key, x); !first {
		t.Fatal("expected first claim to succeed")
	}

	tr.AddChild(root, x)

	y := tree.NewFile("y", tree.LeafStat{SizeLogical: 100, SizePhysical: 0})
	if _, first := reg.Claim(key, y); first {
		t.Fatal("expected second claim to fail")
	}

	y.SetFlag(tree.FlagHardlink)
	tr.AddChild(root, y)

	tr.MarkDone(root)

	snap := root.Snapshot()
	assert.Equal(t, uint64(100), snap.SizePhysical)
	assert.Equal(t, uint64(200), snap.SizeLogical)
	assert.True(t, y.Flags().Has(tree.FlagHardlink))
}

func TestRefreshAfterCompletionKeepsAncestorsCorrect(t *testing.T) {
	tr := tree.New()
	root := tree.NewDrive("/")
	tr.AddRoot(root)

	a := tree.NewDirectory("a")
	tr.AddChild(root, a)
	tr.AddChild(a, tree.NewFile("f1", tree.LeafStat{SizeLogical: 100, SizePhysical: 100}))
	tr.AddChild(a, tree.NewFile("f2", tree.LeafStat{SizeLogical: 50, SizePhysical: 50}))

	b := tree.NewDirectory("b")
	tr.AddChild(root, b)
	tr.AddChild(b, tree.NewFile("f3", tree.LeafStat{SizeLogical: 10, SizePhysical: 10}))

	tr.MarkDone(a)
	tr.MarkDone(b)
	tr.MarkDone(root)

	require.Equal(t, uint64(160), root.SizeLogical())

	fresh := tr.Refresh(a)
	assert.False(t, fresh.Done())
	assert.Equal(t, uint64(10), root.SizeLogical(), "root should reflect a's removal")

	tr.AddChild(fresh, tree.NewFile("f1", tree.LeafStat{SizeLogical: 100, SizePhysical: 100}))
	tr.AddChild(fresh, tree.NewFile("f4", tree.LeafStat{SizeLogical: 25, SizePhysical: 25}))
	tr.MarkDone(fresh)

	assert.Equal(t, uint64(135), root.SizeLogical())
	assert.Equal(t, uint64(10), b.SizeLogical(), "b must be untouched by a's refresh")
}

func TestSortIsIdempotentAndReversible(t *testing.T) {
	tr := tree.New()
	root := tree.NewDrive("/")
	tr.AddRoot(root)

	tr.AddChild(root, tree.NewFile("a", tree.LeafStat{SizeLogical: 30}))
	tr.AddChild(root, tree.NewFile("b", tree.LeafStat{SizeLogical: 10}))
	tr.AddChild(root, tree.NewFile("c", tree.LeafStat{SizeLogical: 20}))

	tree.Sort(root, tree.ColumnSizeLogical, tree.Ascending)
	names := func() []string {
		var out []string
		for _, c := range root.Children() {
			out = append(out, c.Name())
		}

		return out
	}

	first := names()
	assert.Equal(t, []string{"b", "c", "a"}, first)

	tree.Sort(root, tree.ColumnSizeLogical, tree.Ascending)
	assert.Equal(t, first, names(), "sort must be idempotent")

	tree.Sort(root, tree.ColumnSizeLogical, tree.Descending)
	assert.Equal(t, []string{"a", "c", "b"}, names(), "descending must be the exact reverse")
}

func TestSortDescendingReversesTiedKeysToo(t *testing.T) {
	tr := tree.New()
	root := tree.NewDrive("/")
	tr.AddRoot(root)

	tr.AddChild(root, tree.NewFile("a", tree.LeafStat{SizeLogical: 2}))
	tr.AddChild(root, tree.NewFile("b", tree.LeafStat{SizeLogical: 1}))
	tr.AddChild(root, tree.NewFile("c", tree.LeafStat{SizeLogical: 2}))

	names := func() []string {
		var out []string
		for _, c := range root.Children() {
			out = append(out, c.Name())
		}

		return out
	}

	tree.Sort(root, tree.ColumnSizeLogical, tree.Ascending)
	ascending := names()
	assert.Equal(t, []string{"b", "a", "c"}, ascending, "ties keep insertion order ascending")

	reversed := make([]string, len(ascending))
	for i, n := range ascending {
		reversed[len(ascending)-1-i] = n
	}

	tree.Sort(root, tree.ColumnSizeLogical, tree.Descending)
	assert.Equal(t, reversed, names(), "descending must be the exact reverse permutation, including tied keys")
}

func TestMarkDoneWithPartialOnCancel(t *testing.T) {
	tr := tree.New()
	root := tree.NewDrive("/")
	tr.AddRoot(root)

	a := tree.NewDirectory("a")
	tr.AddChild(root, a)

	tree.MarkDoneWithPartial(root)

	assert.True(t, root.Done())
	assert.True(t, a.Done())
}

func TestItemPath(t *testing.T) {
	tr := tree.New()
	root := tree.NewDrive("root")
	tr.AddRoot(root)

	a := tree.NewDirectory("a")
	tr.AddChild(root, a)

	f := tree.NewFile("f.txt", tree.LeafStat{SizeLogical: 1, LastChange: time.Now()})
	tr.AddChild(a, f)

	assert.Equal(t, "root/a/f.txt", f.Path("/"))
}
