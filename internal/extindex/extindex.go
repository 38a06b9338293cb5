// Package extindex maps file extension to an aggregate (files, bytes,
// color) record, rebuilt lazily from the item tree (spec.md §4.5).
package extindex

import (
	"image/color"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/wdirstat/wdirstat/internal/tree"
)

// Record is one extension's aggregate statistics.
type Record struct {
	Extension string
	Files     uint64
	Bytes     uint64
	Color     color.RGBA
}

// Index maps lowercased extension to Record, invalidated by any structural
// tree mutation and rebuilt lazily on the first query afterward.
type Index struct {
	mu      sync.RWMutex
	records map[string]Record
	sorted  []Record
	valid   bool
}

// New creates an empty, invalid index; the first call to EnsureBuilt (or
// Lookup/Sorted) triggers a rebuild.
func New() *Index {
	return &Index{records: make(map[string]Record)}
}

// Invalidate marks the index stale. Called after any structural mutation
// to the tree (new scan, refresh, CSV load).
func (idx *Index) Invalidate() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.valid = false
}

// Lookup returns the record for extension (already lowercased by the
// caller is not required — Lookup lowercases internally), rebuilding from
// root first if the index is stale.
func (idx *Index) Lookup(root *tree.Item, usePhysical bool, extension string) (Record, bool) {
	idx.EnsureBuilt(root, usePhysical)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rec, ok := idx.records[strings.ToLower(extension)]

	return rec, ok
}

// Sorted returns every extension's record, sorted by size descending,
// rebuilding from root first if the index is stale.
func (idx *Index) Sorted(root *tree.Item, usePhysical bool) []Record {
	idx.EnsureBuilt(root, usePhysical)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Record, len(idx.sorted))
	copy(out, idx.sorted)

	return out
}

// EnsureBuilt rebuilds the index from root if it is currently invalid.
// Safe to call redundantly; a valid index is a no-op.
func (idx *Index) EnsureBuilt(root *tree.Item, usePhysical bool) {
	idx.mu.RLock()
	valid := idx.valid
	idx.mu.RUnlock()

	if valid {
		return
	}

	idx.rebuild(root, usePhysical)
}

type accum struct {
	files uint64
	bytes uint64
}

func (idx *Index) rebuild(root *tree.Item, usePhysical bool) {
	totals := make(map[string]*accum)
	walk(root, usePhysical, totals)

	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if totals[keys[i]].bytes != totals[keys[j]].bytes {
			return totals[keys[i]].bytes > totals[keys[j]].bytes
		}

		return keys[i] < keys[j]
	})

	palette := generatePalette(len(keys))

	records := make(map[string]Record, len(keys))
	sorted := make([]Record, 0, len(keys))

	for i, k := range keys {
		rec := Record{
			Extension: k,
			Files:     totals[k].files,
			Bytes:     totals[k].bytes,
			Color:     palette[i],
		}
		records[k] = rec
		sorted = append(sorted, rec)
	}

	idx.mu.Lock()
	idx.records = records
	idx.sorted = sorted
	idx.valid = true
	idx.mu.Unlock()
}

func walk(item *tree.Item, usePhysical bool, totals map[string]*accum) {
	if item.Kind() == tree.KindFile {
		ext := strings.ToLower(filepath.Ext(item.Name()))
		ext = strings.TrimPrefix(ext, ".")

		size := item.SizeLogical()
		if usePhysical {
			size = item.SizePhysical()
		}

		a, ok := totals[ext]
		if !ok {
			a = &accum{}
			totals[ext] = a
		}

		a.files++
		a.bytes += size

		return
	}

	for _, c := range item.Children() {
		walk(c, usePhysical, totals)
	}
}

// targetBrightness is the (r+g+b) target on a [0,3] scale used to keep
// palette entries readably saturated without being neon, per spec.md
// §4.5 ("Palette target brightness ≈ 1.8").
const targetBrightness = 1.8

// generatePalette assigns n hues evenly spaced around the color wheel at a
// fixed saturation, cycling and darkening the value channel once the hue
// wheel has been used once already (spec.md §4.5: "cycling and darkening
// past the palette length").
func generatePalette(n int) []color.RGBA {
	const (
		paletteSize = 24
		saturation  = 0.65
	)

	out := make([]color.RGBA, n)

	for i := range n {
		cycle := i / paletteSize
		slot := i % paletteSize

		hue := float64(slot) * (360.0 / paletteSize)
		value := brightnessForCycle(cycle)

		c := colorful.Hsv(hue, saturation, value)
		r, g, b := c.RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}

	return out
}

// brightnessForCycle derives the HSV value channel for palette cycle n,
// darkening by a fixed step each additional time the 24-hue wheel has been
// exhausted, floored so colors never go fully black.
func brightnessForCycle(cycle int) float64 {
	const (
		base  = targetBrightness / 3 * 1.3 // empirical value->brightness scale for saturation 0.65
		step  = 0.12
		floor = 0.25
	)

	v := base - float64(cycle)*step
	if v < floor {
		v = floor
	}

	if v > 1 {
		v = 1
	}

	return v
}
