// Package treemap implements the squarified cushion-shaded treemap layout
// described in spec.md §4.6: subdividing a rectangle among an item tree's
// descendants so each leaf's area is proportional to its size, then
// shading each leaf with a nested-cushion lighting effect.
package treemap

import (
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/wdirstat/wdirstat/internal/extindex"
	"github.com/wdirstat/wdirstat/internal/tree"
)

// Rect is an integer-aligned screen rectangle.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) area() int64 { return int64(r.W) * int64(r.H) }

func (r Rect) longerAxisIsHorizontal() bool { return r.W >= r.H }

// SizeBasis selects which size field drives layout proportions.
type SizeBasis int

// Size bases.
const (
	SizeBasisPhysical SizeBasis = iota
	SizeBasisLogical
)

func sizeOf(it *tree.Item, basis SizeBasis) uint64 {
	snap := it.Snapshot()
	if basis == SizeBasisLogical {
		return snap.SizeLogical
	}

	return snap.SizePhysical
}

// LightDirection is the fixed unit vector used for cushion shading
// (spec.md §4.6 step 5).
var LightDirection = [3]float64{-0.6, -0.6, 0.529}

// cushionCoeffs are the accumulated parabolic-height-field coefficients
// for a node's cushion, inherited and scaled down into each child
// (WinDirStat's nested-cushion technique: each level's cushion rides on
// top of its parent's, scaled by height ridge factor).
type cushionCoeffs struct {
	a, b, c, d float64 // height(x,y) = a*x^2 + b*x + c*y^2 + d*y
}

const (
	ridgeHeight  = 0.90 // fraction of each level's own height contribution
	heightScale  = 0.40 // overall scale of the cushion bump relative to rect size
	ambientLight = 0.4
)

// Rectangle is one emitted leaf or interior rectangle, with its source
// item and (for leaves) a shaded base color ready to paint.
type Rectangle struct {
	Item   *tree.Item
	Bounds Rect
	Color  colorful.Color
	Leaf   bool
}

// Layout recursively squarifies root's subtree into bounds, returning one
// Rectangle per item with positive size (interior nodes included, so a
// caller can draw nested borders if desired).
func Layout(root *tree.Item, bounds Rect, basis SizeBasis, idx *extindex.Index) []Rectangle {
	var out []Rectangle

	idx.EnsureBuilt(root, basis == SizeBasisPhysical)
	layoutNode(root, root, bounds, basis, idx, cushionCoeffs{}, &out)

	return out
}

func layoutNode(root, item *tree.Item, bounds Rect, basis SizeBasis, idx *extindex.Index, parent cushionCoeffs, out *[]Rectangle) {
	if bounds.W <= 0 || bounds.H <= 0 {
		return
	}

	total := sizeOf(item, basis)
	if total == 0 {
		return
	}

	coeffs := bumpCushion(parent, bounds)

	children := item.Children()
	if len(children) == 0 {
		*out = append(*out, Rectangle{
			Item:   item,
			Bounds: bounds,
			Color:  shade(baseColor(root, item, idx, basis), coeffs, bounds),
			Leaf:   true,
		})

		return
	}

	*out = append(*out, Rectangle{Item: item, Bounds: bounds, Color: shade(baseColor(root, item, idx, basis), coeffs, bounds), Leaf: false})

	sized := make([]*tree.Item, 0, len(children))

	for _, c := range children {
		if sizeOf(c, basis) > 0 {
			sized = append(sized, c)
		}
	}

	sort.SliceStable(sized, func(i, j int) bool { return sizeOf(sized[i], basis) > sizeOf(sized[j], basis) })

	squarify(root, sized, bounds, basis, idx, coeffs, out)
}

// squarify implements the KDirStat-style squarified strip algorithm
// (spec.md §4.6 steps 1-4): repeatedly peel off the longest prefix of the
// remaining (size-descending) children whose individual rectangle aspect
// ratios are minimized, laid out as one strip along the rectangle's
// current longer axis, then recurse on the remainder.
func squarify(root *tree.Item, items []*tree.Item, bounds Rect, basis SizeBasis, idx *extindex.Index, coeffs cushionCoeffs, out *[]Rectangle) {
	remaining := items
	rect := bounds

	for len(remaining) > 0 {
		total := sumSizes(remaining, basis)
		if total == 0 || rect.area() <= 0 {
			return
		}

		horizontal := rect.longerAxisIsHorizontal()
		stripLength := stripExtent(rect, horizontal)

		prefixLen := bestPrefix(remaining, basis, float64(stripLength), total, rect)
		strip := remaining[:prefixLen]
		remaining = remaining[prefixLen:]

		stripTotal := sumSizes(strip, basis)
		stripArea := proportion(stripTotal, total, rect.area())
		stripThickness := 0
		if stripLength > 0 {
			stripThickness = int(stripArea / int64(stripLength))
		}

		layoutStrip(root, strip, basis, idx, coeffs, rect, horizontal, stripThickness, out)

		rect = shrink(rect, horizontal, stripThickness)
	}
}

func sumSizes(items []*tree.Item, basis SizeBasis) uint64 {
	var sum uint64
	for _, it := range items {
		sum += sizeOf(it, basis)
	}

	return sum
}

func stripExtent(rect Rect, horizontal bool) int {
	if horizontal {
		return rect.H
	}

	return rect.W
}

// bestPrefix chooses the largest leading run of items (already sorted
// descending by size) whose worst per-rectangle aspect ratio, laid out as
// a strip of the given length, does not exceed the worst ratio achievable
// by including one more item — the standard squarify heuristic.
func bestPrefix(items []*tree.Item, basis SizeBasis, stripLength float64, total uint64, rect Rect) int {
	if stripLength <= 0 || len(items) == 0 {
		return maxInt(1, len(items))
	}

	area := float64(rect.area())

	var sumSize float64

	bestRatio := math.Inf(1)
	bestLen := 1

	for i, it := range items {
		sumSize += float64(sizeOf(it, basis))

		stripArea := area * sumSize / float64(total)
		thickness := stripArea / stripLength

		ratio := worstAspectRatio(items[:i+1], basis, sumSize, thickness, stripLength)
		if ratio > bestRatio {
			break
		}

		bestRatio = ratio
		bestLen = i + 1
	}

	return bestLen
}

func worstAspectRatio(items []*tree.Item, basis SizeBasis, sumSize, thickness, stripLength float64) float64 {
	worst := 0.0

	for _, it := range items {
		share := float64(sizeOf(it, basis)) / sumSize
		length := stripLength * share
		ratio := aspectRatio(length, thickness)

		if ratio > worst {
			worst = ratio
		}
	}

	return worst
}

func aspectRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return math.Inf(1)
	}

	if a < b {
		return b / a
	}

	return a / b
}

func proportion(part, total uint64, area int64) int64 {
	if total == 0 {
		return 0
	}

	return int64(float64(area) * float64(part) / float64(total))
}

func layoutStrip(root *tree.Item, strip []*tree.Item, basis SizeBasis, idx *extindex.Index, coeffs cushionCoeffs, rect Rect, horizontal bool, thickness int, out *[]Rectangle) {
	stripTotal := sumSizes(strip, basis)
	if stripTotal == 0 {
		return
	}

	offset := 0

	for i, it := range strip {
		length := extentFor(it, basis, stripTotal, rect, horizontal)
		if i == len(strip)-1 {
			length = remainingExtent(rect, horizontal, offset)
		}

		childRect := placeInStrip(rect, horizontal, thickness, offset, length)
		offset += length

		layoutNode(root, it, childRect, basis, idx, coeffs, out)
	}
}

func extentFor(it *tree.Item, basis SizeBasis, stripTotal uint64, rect Rect, horizontal bool) int {
	full := stripExtent(rect, horizontal)
	share := float64(sizeOf(it, basis)) / float64(stripTotal)

	return int(float64(full) * share)
}

func remainingExtent(rect Rect, horizontal bool, used int) int {
	full := stripExtent(rect, horizontal)

	remaining := full - used
	if remaining < 0 {
		return 0
	}

	return remaining
}

func placeInStrip(rect Rect, horizontal bool, thickness, offset, length int) Rect {
	if horizontal {
		return Rect{X: rect.X, Y: rect.Y + offset, W: thickness, H: length}
	}

	return Rect{X: rect.X + offset, Y: rect.Y, W: length, H: thickness}
}

func shrink(rect Rect, horizontal bool, thickness int) Rect {
	if horizontal {
		return Rect{X: rect.X + thickness, Y: rect.Y, W: rect.W - thickness, H: rect.H}
	}

	return Rect{X: rect.X, Y: rect.Y + thickness, W: rect.W, H: rect.H - thickness}
}

func baseColor(root, item *tree.Item, idx *extindex.Index, basis SizeBasis) colorful.Color {
	snap := item.Snapshot()
	if snap.Kind != tree.KindFile {
		return colorful.Color{R: 0.55, G: 0.55, B: 0.6}
	}

	ext := extensionOf(snap.Name)

	rec, ok := idx.Lookup(root, basis == SizeBasisPhysical, ext)
	if !ok {
		return colorful.Color{R: 0.7, G: 0.7, B: 0.7}
	}

	return colorful.Color{
		R: float64(rec.Color.R) / 255,
		G: float64(rec.Color.G) / 255,
		B: float64(rec.Color.B) / 255,
	}
}

func extensionOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			if i == 0 {
				return ""
			}

			return name[i+1:]
		}
	}

	return ""
}

// bumpCushion scales the parent's accumulated cushion coefficients down
// into this rectangle and adds this level's own parabolic bump, giving
// the nested-cushion look as rectangles subdivide (spec.md §4.6 step 5).
func bumpCushion(parent cushionCoeffs, rect Rect) cushionCoeffs {
	w, h := float64(rect.W), float64(rect.H)
	if w <= 0 {
		w = 1
	}

	if h <= 0 {
		h = 1
	}

	scaled := cushionCoeffs{
		a: parent.a * ridgeHeight,
		b: parent.b * ridgeHeight,
		c: parent.c * ridgeHeight,
		d: parent.d * ridgeHeight,
	}

	ownHeight := heightScale

	return cushionCoeffs{
		a: scaled.a - 4*ownHeight/(w*w),
		b: scaled.b + 4*ownHeight/w,
		c: scaled.c - 4*ownHeight/(h*h),
		d: scaled.d + 4*ownHeight/h,
	}
}

// shade applies cushion lighting to baseColor at the rectangle's center,
// computing the surface normal from coeffs' parabolic height field and
// dotting it with the fixed light direction.
func shade(base colorful.Color, coeffs cushionCoeffs, rect Rect) colorful.Color {
	cx := float64(rect.X) + float64(rect.W)/2
	cy := float64(rect.Y) + float64(rect.H)/2

	nx := -(2*coeffs.a*cx + coeffs.b)
	ny := -(2*coeffs.c*cy + coeffs.d)
	nz := 1.0

	norm := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if norm == 0 {
		norm = 1
	}

	nx, ny, nz = nx/norm, ny/norm, nz/norm

	dot := nx*LightDirection[0] + ny*LightDirection[1] + nz*LightDirection[2]
	brightness := ambientLight + (1-ambientLight)*math.Max(dot, 0)

	return colorful.Color{
		R: clamp01(base.R * brightness),
		G: clamp01(base.G * brightness),
		B: clamp01(base.B * brightness),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}

// HitTest returns the item of the smallest leaf rectangle containing
// (x, y), or ok=false when no leaf rectangle covers the point. It scans
// every rectangle in rects, O(len(rects)); it does not descend the item
// tree.
func HitTest(rects []Rectangle, x, y int) (*tree.Item, bool) {
	var best *tree.Item

	var bestArea int64 = math.MaxInt64

	for _, r := range rects {
		if !r.Leaf || !contains(r.Bounds, x, y) {
			continue
		}

		area := r.Bounds.area()
		if area < bestArea {
			bestArea = area
			best = r.Item
		}
	}

	if best == nil {
		return nil, false
	}

	return best, true
}

func contains(r Rect, x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}
