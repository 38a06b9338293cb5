package tree

import (
	"sync"
	"time"
)

// Tree owns a forest of root items (one per scanned volume/path) under a
// single synthetic MyComputer root, and the process-wide hardlink
// registry shared across them.
type Tree struct {
	mu   sync.RWMutex
	root *Item

	hardlinks *HardlinkRegistry
}

// New creates an empty tree rooted at a MyComputer pseudo-item.
func New() *Tree {
	root := NewItem(KindMyComputer, "")
	root.flags |= FlagRoot

	return &Tree{root: root, hardlinks: NewHardlinkRegistry()}
}

// Root returns the tree's top-level MyComputer item.
func (t *Tree) Root() *Item {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.root
}

// Hardlinks returns the tree's hardlink registry.
func (t *Tree) Hardlinks() *HardlinkRegistry {
	return t.hardlinks
}

// NewScan clears the hardlink registry, per the Open Question resolution
// in spec.md §9: registry lifetime does not span scans.
func (t *Tree) NewScan() {
	t.hardlinks.Clear()
}

// AddRoot attaches a fresh root item (Drive, Directory, Unknown, or
// FreeSpace kind) directly under the tree's MyComputer item, marking it
// FlagRoot is NOT set here — only the tree's own MyComputer item is the
// true root; scan roots are ordinary children of it, matching the
// original's "drive/unknown/freespace attach to root" CSV convention.
func (t *Tree) AddRoot(item *Item) {
	t.AddChild(t.root, item)
}

// AddChild attaches child to parent and adds the child's aggregates (plus
// one folder when the child is a Directory, Drive, or Unknown item) to
// every ancestor up to the tree root. Propagation does not stop at an
// ancestor whose done flag is already set; see propagate for why.
func (t *Tree) AddChild(parent, child *Item) {
	parent.mu.Lock()
	child.mu.Lock()
	child.parent = parent
	parent.children = append(parent.children, child)

	delta := aggregateDelta{
		sizeLogical:  int64(child.sizeLogical),
		sizePhysical: int64(child.sizePhysical),
		filesCount:   int64(child.filesCount),
		foldersCount: int64(child.foldersCount),
		lastChange:   child.lastChange,
	}

	if child.kind == KindDirectory || child.kind == KindDrive || child.kind == KindUnknown {
		delta.foldersCount++
	}

	child.mu.Unlock()
	parent.mu.Unlock()

	t.propagate(parent, delta)
}

// aggregateDelta is the amount by which an ancestor's aggregates must
// change in response to a child mutation.
type aggregateDelta struct {
	sizeLogical  int64
	sizePhysical int64
	filesCount   int64
	foldersCount int64
	lastChange   time.Time
}

// propagate walks from node up to the true tree root, applying delta to
// each node's aggregates. Each node is locked individually and released
// before moving to its parent, so no lock is ever held across more than
// one node (spec.md §4.3, §5).
//
// spec.md §4.3 describes add_child as stopping early at a node whose done
// flag is already set, deferring the rest to that node's own completion
// pass. During an ordinary in-progress scan that is a pure optimization:
// an ancestor can only be done once every descendant below it (including
// the one being updated) is already done, so the early-stop path is never
// actually taken on a live scan branch. It DOES matter for Refresh
// (spec.md §8 scenario 5): refreshing a subtree reopens it for scanning
// while its ancestors, including the tree root, remain done and will never
// run another completion pass. Stopping early there would leave the root
// permanently stale. We therefore always propagate to the true root;
// this satisfies the invariant either way and is the only choice under
// which Refresh keeps ancestor aggregates correct.
func (t *Tree) propagate(node *Item, delta aggregateDelta) {
	for cur := node; cur != nil; {
		cur.mu.Lock()

		cur.sizeLogical = addInt64(cur.sizeLogical, delta.sizeLogical)
		cur.sizePhysical = addInt64(cur.sizePhysical, delta.sizePhysical)
		cur.filesCount = addInt64(cur.filesCount, delta.filesCount)
		cur.foldersCount = addInt64(cur.foldersCount, delta.foldersCount)

		if delta.lastChange.After(cur.lastChange) {
			cur.lastChange = delta.lastChange
		}

		parent := cur.parent
		cur.mu.Unlock()

		cur = parent
	}
}

func addInt64(base uint64, delta int64) uint64 {
	if delta >= 0 {
		return base + uint64(delta)
	}

	d := uint64(-delta)
	if d > base {
		return 0
	}

	return base - d
}

// MarkDone sets item's done flag, re-aggregates once more as a consistency
// check, and decrements the parent's pending-children counter — bubbling
// the parent to done too if it was the last outstanding child (spec.md
// §4.2 step 5, §4.3).
func (t *Tree) MarkDone(item *Item) {
	item.mu.Lock()

	var sum aggregateDelta

	var maxChange time.Time

	for _, c := range item.children {
		c.mu.RLock()
		sum.sizeLogical += int64(c.sizeLogical)
		sum.sizePhysical += int64(c.sizePhysical)
		sum.filesCount += int64(c.filesCount)
		sum.foldersCount += int64(c.foldersCount)

		if c.kind == KindDirectory || c.kind == KindDrive || c.kind == KindUnknown {
			sum.foldersCount++
		}

		if c.lastChange.After(maxChange) {
			maxChange = c.lastChange
		}

		c.mu.RUnlock()
	}

	if len(item.children) > 0 {
		item.sizeLogical = uint64(sum.sizeLogical) //nolint:gosec // derived from unsigned sources
		item.sizePhysical = uint64(sum.sizePhysical)
		item.filesCount = uint64(sum.filesCount)
		item.foldersCount = uint64(sum.foldersCount)

		if maxChange.After(item.lastChange) {
			item.lastChange = maxChange
		}
	}

	item.done = true
	parent := item.parent
	item.mu.Unlock()

	if parent == nil {
		return
	}

	remaining := parent.decrementPending()
	if remaining == 0 {
		t.MarkDone(parent)
	}
}

// decrementPending decrements the node's outstanding-subtask counter and
// returns the new value.
func (it *Item) decrementPending() int64 {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.pending--

	return it.pending
}

// SetPending sets the number of outstanding directory tasks under item. If
// n is zero, the caller is responsible for calling Tree.MarkDone directly
// (a directory with no subdirectories completes immediately).
func (it *Item) SetPending(n int64) {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.pending = n
}

// RemoveSubtree detaches item from its parent and subtracts its aggregates
// from every ancestor. The subtree is then eligible for garbage
// collection.
func (t *Tree) RemoveSubtree(item *Item) {
	parent := item.Parent()
	if parent == nil {
		return
	}

	snap := item.Snapshot()

	parent.mu.Lock()

	for i, c := range parent.children {
		if c == item {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)

			break
		}
	}

	parent.mu.Unlock()

	item.mu.Lock()
	item.parent = nil
	item.mu.Unlock()

	delta := aggregateDelta{
		sizeLogical:  -int64(snap.SizeLogical),
		sizePhysical: -int64(snap.SizePhysical),
		filesCount:   -int64(snap.FilesCount),
		foldersCount: -int64(snap.FoldersCount),
	}
	t.propagate(parent, delta)
}

// Refresh unlinks item's current subtree, subtracting its aggregates from
// ancestors, and replaces it in-place with a fresh, empty, not-done
// container of the same kind and name attached to the same parent — ready
// for the coordinator to enqueue a new scan task against. The returned
// item is the replacement; the caller is responsible for enqueueing it.
func (t *Tree) Refresh(item *Item) *Item {
	parent := item.Parent()
	if parent == nil {
		// Refreshing a root: reset in place instead of reparenting.
		item.mu.Lock()
		item.children = nil
		item.sizeLogical, item.sizePhysical = 0, 0
		item.filesCount, item.foldersCount = 0, 0
		item.done = false
		item.mu.Unlock()

		return item
	}

	snap := item.Snapshot()
	fresh := NewItem(snap.Kind, snap.Name)
	fresh.flags = snap.Flags

	parent.mu.Lock()

	for i, c := range parent.children {
		if c == item {
			parent.children[i] = fresh
			fresh.parent = parent

			break
		}
	}

	parent.mu.Unlock()

	item.mu.Lock()
	item.parent = nil
	item.mu.Unlock()

	delta := aggregateDelta{
		sizeLogical:  -int64(snap.SizeLogical),
		sizePhysical: -int64(snap.SizePhysical),
		filesCount:   -int64(snap.FilesCount),
		foldersCount: -int64(snap.FoldersCount),
	}
	t.propagate(parent, delta)

	return fresh
}

// MarkDoneWithPartial walks the subtree rooted at item and marks each
// not-done node done, without re-aggregating from children (their
// aggregates already reflect whatever was observed before cancellation).
// It does not descend below a node that was already done, so not-done
// nodes beneath a done node are left as they are.
// Used by the coordinator's Stop path (spec.md §4.4, §7).
func MarkDoneWithPartial(item *Item) {
	item.mu.Lock()
	alreadyDone := item.done
	item.done = true
	children := append([]*Item(nil), item.children...)
	item.mu.Unlock()

	if alreadyDone {
		return
	}

	for _, c := range children {
		MarkDoneWithPartial(c)
	}
}
