// Package wdirstat implements the thread-safe facade (spec.md §4.8): the
// one surface the out-of-scope shell (window chrome, menus, dialogs)
// consumes the engine through. It owns the item tree, the scan
// coordinator, the extension index and the treemap layout, and posts
// typed hints to a shell-provided trampoline instead of ever calling
// back into shell code directly.
package wdirstat

import (
	"io"
	"sync"

	"github.com/wdirstat/wdirstat/internal/csvfmt"
	"github.com/wdirstat/wdirstat/internal/extindex"
	"github.com/wdirstat/wdirstat/internal/scan"
	"github.com/wdirstat/wdirstat/internal/tree"
	"github.com/wdirstat/wdirstat/internal/treemap"
)

// HintKind identifies one of the five typed change notifications the
// facade posts to subscribers (spec.md §4.8).
type HintKind int

const (
	HintNewRoot HintKind = iota
	HintSelectionChanged
	HintZoomChanged
	HintListStyleChanged
	HintTreemapStyleChanged
)

// Hint is one change notification, carrying the affected item where one
// applies. Delivered on the shell thread via Trampoline, never from the
// worker goroutines that produced the underlying change.
type Hint struct {
	Kind     HintKind
	Item     *tree.Item
	Cancelled bool
}

// Trampoline is the shell-injected callback sink. Post must be safe to
// call from any goroutine; the shell is responsible for marshaling the
// hint onto its own single thread (spec.md §5: "Workers never call back
// into the shell directly; notifications are posted via the
// trampoline").
type Trampoline interface {
	Post(Hint)
}

// TrampolineFunc adapts a plain function to Trampoline.
type TrampolineFunc func(Hint)

func (f TrampolineFunc) Post(h Hint) { f(h) }

// Facade is the engine's single entry point. All methods are safe for
// concurrent use.
type Facade struct {
	mu sync.RWMutex

	tr    *tree.Tree
	co    *scan.Coordinator
	idx   *extindex.Index
	tramp Trampoline

	zoom      *tree.Item
	selection *tree.Item

	sizeBasis   treemap.SizeBasis
	sortColumn  tree.Column
	sortDirection tree.Direction

	lastLayout []treemap.Rectangle
	lastBounds treemap.Rect
}

// New creates a facade around a fresh, empty tree. trampoline may be nil,
// in which case hints are simply dropped (useful for headless callers
// such as the CLI's non-interactive commands).
func New(trampoline Trampoline) *Facade {
	tr := tree.New()

	return &Facade{
		tr:          tr,
		co:          scan.NewCoordinator(tr, scan.Logger{}),
		idx:         extindex.New(),
		tramp:       trampoline,
		sizeBasis:   treemap.SizeBasisPhysical,
		sortColumn:  tree.ColumnSizePhysical,
		sortDirection: tree.Descending,
	}
}

func (f *Facade) post(h Hint) {
	if f.tramp != nil {
		f.tramp.Post(h)
	}
}

// StartScan begins a new scan over roots, replacing whatever tree state
// existed before (spec.md §6: start_scan(roots, workers, options)).
// opts.UsePhysicalSizes sets the size basis used by the extension index
// and treemap until the next SetSizeBasis call.
func (f *Facade) StartScan(roots []string, workers int, opts scan.Options) error {
	opts.Workers = workers
	if opts.Workers <= 0 {
		opts.Workers = scan.DefaultOptions().Workers
	}

	f.mu.Lock()
	f.zoom = nil
	f.selection = nil

	if opts.UsePhysicalSizes {
		f.sizeBasis = treemap.SizeBasisPhysical
	} else {
		f.sizeBasis = treemap.SizeBasisLogical
	}

	f.idx.Invalidate()
	f.mu.Unlock()

	err := f.co.Start(roots, opts, func(cancelled bool) {
		f.mu.Lock()
		f.idx.Invalidate()
		f.mu.Unlock()

		f.post(Hint{Kind: HintNewRoot, Item: f.tr.Root(), Cancelled: cancelled})
	})
	if err != nil {
		return err
	}

	f.post(Hint{Kind: HintNewRoot, Item: f.tr.Root()})

	return nil
}

// Refresh re-scans the subtrees rooted at items in place: each one is
// unlinked and replaced with a fresh container that the coordinator
// enqueues a new scan task for, leaving the rest of the tree untouched
// (spec.md §4.3 refresh, §4.4 coordinator interplay, §8 scenario 5). A
// HintNewRoot fires once the refresh settles, since the extension index
// and any rendered views must be rebuilt against the replaced subtrees.
func (f *Facade) Refresh(items []*tree.Item) error {
	f.mu.Lock()
	f.idx.Invalidate()
	f.mu.Unlock()

	return f.co.Refresh(items, func(cancelled bool) {
		f.mu.Lock()
		f.idx.Invalidate()
		f.mu.Unlock()

		f.post(Hint{Kind: HintNewRoot, Item: f.tr.Root(), Cancelled: cancelled})
	})
}

// StopScan cancels the running scan, if any (spec.md §4.8 stop_scan).
func (f *Facade) StopScan() { f.co.Stop() }

// SuspendScan pauses all workers at their next suspension point (spec.md
// §5: before popping a new task, or after a directory's metadata read).
func (f *Facade) SuspendScan() { f.co.Suspend() }

// ResumeScan resumes a suspended scan.
func (f *Facade) ResumeScan() { f.co.Resume() }

// ScanState reports the coordinator's current lifecycle state.
func (f *Facade) ScanState() scan.State { return f.co.State() }

// Progress returns the same (position, range) pair the coordinator
// tracks for a running scan (spec.md §4.4).
func (f *Facade) Progress() (pos, rangeBytes uint64) { return f.co.Progress() }

// GetRoot returns the tree's root item (spec.md §4.8 get_root).
func (f *Facade) GetRoot() *tree.Item { return f.tr.Root() }

// GetZoom returns the currently zoomed-in item, or the tree root if no
// zoom has been set (spec.md §4.8 get_zoom).
func (f *Facade) GetZoom() *tree.Item {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.zoom == nil {
		return f.tr.Root()
	}

	return f.zoom
}

// SetZoom changes the zoomed-in item and posts ZoomChanged (spec.md
// §4.8 set_zoom).
func (f *Facade) SetZoom(item *tree.Item) {
	f.mu.Lock()
	f.zoom = item
	f.mu.Unlock()

	f.post(Hint{Kind: HintZoomChanged, Item: item})
}

// SetSelection changes the selected item and posts SelectionChanged.
// Selection is shell-driven UI state the engine only tracks and
// broadcasts; it never affects aggregation or layout.
func (f *Facade) SetSelection(item *tree.Item) {
	f.mu.Lock()
	f.selection = item
	f.mu.Unlock()

	f.post(Hint{Kind: HintSelectionChanged, Item: item})
}

// GetSelection returns the currently selected item, or nil if none.
func (f *Facade) GetSelection() *tree.Item {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.selection
}

// GetExtensionData returns the per-extension statistics, lazily
// rebuilding the index against the current zoom (or root) if it was
// invalidated since the last call (spec.md §4.8 get_extension_data,
// §4.5 "single-writer rebuild, then immutable until invalidated").
func (f *Facade) GetExtensionData() []extindex.Record {
	root := f.GetZoom()
	usePhysical := f.sizeBasisIsPhysical()

	return f.idx.Sorted(root, usePhysical)
}

func (f *Facade) sizeBasisIsPhysical() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.sizeBasis == treemap.SizeBasisPhysical
}

// SetSizeBasis switches the sizing basis used by the extension index and
// treemap (logical vs. physical) and posts TreemapStyleChanged, since it
// is exactly the kind of rendering-preference change that hint exists
// for (spec.md §4.8).
func (f *Facade) SetSizeBasis(basis treemap.SizeBasis) {
	f.mu.Lock()
	f.sizeBasis = basis
	f.idx.Invalidate()
	f.mu.Unlock()

	f.post(Hint{Kind: HintTreemapStyleChanged})
}

// SetSortOrder changes the column/direction used by list views and posts
// ListStyleChanged. It does not itself reorder the live tree; callers
// that want a persisted order should call Sort.
func (f *Facade) SetSortOrder(column tree.Column, direction tree.Direction) {
	f.mu.Lock()
	f.sortColumn = column
	f.sortDirection = direction
	f.mu.Unlock()

	f.post(Hint{Kind: HintListStyleChanged})
}

// Sort reorders the zoomed item's subtree in place by the facade's
// current sort order.
func (f *Facade) Sort() {
	f.mu.RLock()
	column, direction := f.sortColumn, f.sortDirection
	f.mu.RUnlock()

	tree.Sort(f.GetZoom(), column, direction)
}

// RenderTreemap lays out the zoomed item's subtree into bounds and
// caches the result for HitTestTreemap (spec.md §4.8 render_treemap).
func (f *Facade) RenderTreemap(bounds treemap.Rect) []treemap.Rectangle {
	root := f.GetZoom()
	basis := f.currentBasis()

	rects := treemap.Layout(root, bounds, basis, f.idx)

	f.mu.Lock()
	f.lastLayout = rects
	f.lastBounds = bounds
	f.mu.Unlock()

	return rects
}

func (f *Facade) currentBasis() treemap.SizeBasis {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.sizeBasis
}

// HitTestTreemap resolves a pixel coordinate against the most recently
// rendered treemap layout (spec.md §4.8 hit_test_treemap). Returns
// ok=false if nothing has been rendered yet or the point misses.
func (f *Facade) HitTestTreemap(x, y int) (*tree.Item, bool) {
	f.mu.RLock()
	rects := f.lastLayout
	f.mu.RUnlock()

	if rects == nil {
		return nil, false
	}

	return treemap.HitTest(rects, x, y)
}

// LoadCSV replaces the facade's tree with one decoded from r (spec.md
// §4.7/§6 persisted state) and posts NewRoot. On a FormatError the
// facade's existing tree is left untouched.
func (f *Facade) LoadCSV(r io.Reader) error {
	tr, err := csvfmt.Decode(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.tr = tr
	f.co = scan.NewCoordinator(tr, scan.Logger{})
	f.idx.Invalidate()
	f.zoom = nil
	f.selection = nil
	f.mu.Unlock()

	f.post(Hint{Kind: HintNewRoot, Item: tr.Root()})

	return nil
}

// SaveCSV encodes the current tree to w (spec.md §4.7 writer).
func (f *Facade) SaveCSV(w io.Writer, opts csvfmt.Options) error {
	return csvfmt.Encode(w, f.tr.Root(), opts)
}

// Hardlinks exposes the tree's hardlink registry, used by shells that
// want to report duplicate groups directly (spec.md §3 DuplicateGroup).
func (f *Facade) Hardlinks() *tree.HardlinkRegistry { return f.tr.Hardlinks() }

// BuildDuplicateGroups groups files under the zoomed item by content
// hash (spec.md §3 DuplicateGroup, supplemented feature).
func (f *Facade) BuildDuplicateGroups(pathOf func(*tree.Item) string, workers int) ([]tree.DuplicateGroup, error) {
	return tree.BuildDuplicateGroups(f.GetZoom(), pathOf, workers)
}
