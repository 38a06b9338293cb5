package treemap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdirstat/wdirstat/internal/extindex"
	"github.com/wdirstat/wdirstat/internal/tree"
	"github.com/wdirstat/wdirstat/internal/treemap"
)

func buildWideTree(t *testing.T, nFiles int) *tree.Item {
	t.Helper()

	tr := tree.New()
	root := tree.NewDrive("/")
	tr.AddRoot(root)

	for i := range nFiles {
		name := "f" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
		tr.AddChild(root, tree.NewFile(name, tree.LeafStat{SizeLogical: uint64(i%37 + 1), SizePhysical: uint64(i%37 + 1)}))
	}

	tr.MarkDone(root)

	return root
}

func TestLayoutAreaConservation(t *testing.T) {
	root := buildWideTree(t, 60)
	idx := extindex.New()

	bounds := treemap.Rect{X: 0, Y: 0, W: 800, H: 600}
	rects := treemap.Layout(root, bounds, treemap.SizeBasisLogical, idx)

	var leafArea int64

	for _, r := range rects {
		if r.Leaf {
			leafArea += int64(r.Bounds.W) * int64(r.Bounds.H)
		}
	}

	total := int64(bounds.W) * int64(bounds.H)
	diff := total - leafArea

	if diff < 0 {
		diff = -diff
	}

	assert.LessOrEqual(t, diff, int64(len(rects))*int64(bounds.H+bounds.W))
}

func TestLayoutAspectRatiosAreReasonable(t *testing.T) {
	root := buildWideTree(t, 60)
	idx := extindex.New()

	bounds := treemap.Rect{X: 0, Y: 0, W: 800, H: 600}
	rects := treemap.Layout(root, bounds, treemap.SizeBasisLogical, idx)

	var leaves, withinBound int

	for _, r := range rects {
		if !r.Leaf {
			continue
		}

		leaves++

		w, h := float64(r.Bounds.W), float64(r.Bounds.H)
		if w <= 0 || h <= 0 {
			continue
		}

		ratio := w / h
		if ratio < 1 {
			ratio = 1 / ratio
		}

		if ratio <= 5 {
			withinBound++
		}
	}

	require.Positive(t, leaves)
	assert.GreaterOrEqual(t, float64(withinBound)/float64(leaves), 0.95)
}

func TestHitTestFindsDeepestLeaf(t *testing.T) {
	root := buildWideTree(t, 10)
	idx := extindex.New()

	bounds := treemap.Rect{X: 0, Y: 0, W: 400, H: 300}
	rects := treemap.Layout(root, bounds, treemap.SizeBasisLogical, idx)

	item, ok := treemap.HitTest(rects, 1, 1)
	require.True(t, ok)
	assert.Equal(t, tree.KindFile, item.Kind())

	_, ok = treemap.HitTest(rects, bounds.W+10, bounds.H+10)
	assert.False(t, ok)
}

func TestLayoutSkipsZeroSizeChildren(t *testing.T) {
	tr := tree.New()
	root := tree.NewDrive("/")
	tr.AddRoot(root)
	tr.AddChild(root, tree.NewFile("real", tree.LeafStat{SizeLogical: 100, SizePhysical: 100}))
	tr.AddChild(root, tree.NewFile("empty", tree.LeafStat{SizeLogical: 0, SizePhysical: 0}))
	tr.MarkDone(root)

	idx := extindex.New()
	rects := treemap.Layout(root, treemap.Rect{W: 100, H: 100}, treemap.SizeBasisLogical, idx)

	for _, r := range rects {
		assert.NotEqual(t, "empty", r.Item.Name())
	}
}
