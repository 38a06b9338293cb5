// Package tree implements the aggregated directory item tree: the
// hierarchical model with upward propagation of size/count/time
// statistics, logical vs. physical sizes, hardlink accounting, duplicate
// grouping, and partial-refresh semantics described in spec.md §3–4.3.
package tree

import (
	"sync"
	"time"
)

// Kind classifies what an Item represents.
type Kind uint8

// Item kinds, mirroring spec.md §3.
const (
	KindMyComputer Kind = iota
	KindDrive
	KindDirectory
	KindFile
	KindFreeSpace
	KindUnknown
	KindReparse
)

// Flag is a bitmask of per-item flags.
type Flag uint8

// Item flags, mirroring spec.md §3.
const (
	FlagRoot Flag = 1 << iota
	FlagHardlink
	FlagProtected
	// FlagError marks an item whose metadata could not be fully read
	// (access denied, sharing violation, etc.) — see spec.md §7.
	FlagError
)

// Has reports whether f includes all bits of other.
func (f Flag) Has(other Flag) bool { return f&other == other }

// Item is a node in the aggregated directory tree.
//
// Every mutation of a node's children, or of its own aggregate fields,
// must happen under mu. Aggregate propagation up the spine acquires
// ancestor locks one at a time, root-ward, releasing each before moving
// to the next — no lock is ever held while the enumerator is scanning a
// directory (spec.md §4.3, §5).
type Item struct {
	mu sync.RWMutex

	kind  Kind
	flags Flag
	name  string

	sizeLogical  uint64
	sizePhysical uint64
	filesCount   uint64
	foldersCount uint64
	lastChange   time.Time
	attributes   uint32
	owner        string

	children []*Item
	parent   *Item // weak reference; parent owns children, never the reverse

	done    bool
	pending int64 // outstanding directory tasks under this node
}

// NewItem constructs a detached item. Attach it with Tree.AddChild (or, for
// a root, Tree.AddRoot) to make it reachable.
func NewItem(kind Kind, name string) *Item {
	return &Item{kind: kind, name: name}
}

// Kind returns the item's kind.
func (it *Item) Kind() Kind {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.kind
}

// Name returns the item's leaf name.
func (it *Item) Name() string {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.name
}

// Flags returns the item's flag bitmask.
func (it *Item) Flags() Flag {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.flags
}

// SetFlag ORs f into the item's flags.
func (it *Item) SetFlag(f Flag) {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.flags |= f
}

// IsRoot reports whether the item has no parent, i.e. FlagRoot is set.
func (it *Item) IsRoot() bool {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.flags.Has(FlagRoot)
}

// Parent returns the weak back-reference to the item's parent, or nil for
// a root.
func (it *Item) Parent() *Item {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.parent
}

// Path reconstructs the full path by walking to the root, joining names
// with sep.
func (it *Item) Path(sep string) string {
	var parts []string

	for cur := it; cur != nil; cur = cur.Parent() {
		name := cur.Name()
		if name != "" {
			parts = append(parts, name)
		}
	}

	if len(parts) == 0 {
		return sep
	}

	out := parts[len(parts)-1]
	for i := len(parts) - 2; i >= 0; i-- {
		if out == sep || out == "" {
			out += parts[i]
		} else {
			out += sep + parts[i]
		}
	}

	return out
}

// Snapshot is a consistent, point-in-time copy of an item's aggregate
// fields, taken under the node's lock (spec.md §5: "readers take a
// lightweight snapshot under the node's lock").
type Snapshot struct {
	Kind         Kind
	Flags        Flag
	Name         string
	SizeLogical  uint64
	SizePhysical uint64
	FilesCount   uint64
	FoldersCount uint64
	LastChange   time.Time
	Attributes   uint32
	Owner        string
	Done         bool
	NumChildren  int
}

// Snapshot takes a consistent snapshot of the item's current state.
func (it *Item) Snapshot() Snapshot {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return Snapshot{
		Kind:         it.kind,
		Flags:        it.flags,
		Name:         it.name,
		SizeLogical:  it.sizeLogical,
		SizePhysical: it.sizePhysical,
		FilesCount:   it.filesCount,
		FoldersCount: it.foldersCount,
		LastChange:   it.lastChange,
		Attributes:   it.attributes,
		Owner:        it.owner,
		Done:         it.done,
		NumChildren:  len(it.children),
	}
}

// Children returns a shallow copy of the current child slice, safe to
// range over without holding any lock.
func (it *Item) Children() []*Item {
	it.mu.RLock()
	defer it.mu.RUnlock()

	out := make([]*Item, len(it.children))
	copy(out, it.children)

	return out
}

// Done reports whether the subtree rooted at it is fully scanned.
func (it *Item) Done() bool {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.done
}

// SetOwner records an on-demand-resolved owner string.
func (it *Item) SetOwner(owner string) {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.owner = owner
}

// Owner returns the previously resolved owner, if any.
func (it *Item) Owner() string {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.owner
}

// leafStat holds the fields a leaf (file) sets on itself; interior items
// derive these by aggregation instead.
type leafStat struct {
	SizeLogical  uint64
	SizePhysical uint64
	Attributes   uint32
	LastChange   time.Time
}

// setLeafStat is used by the enumerator and CSV loader to populate a
// freshly created leaf before it is attached to the tree.
func (it *Item) setLeafStat(s leafStat) {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.sizeLogical = s.SizeLogical
	it.sizePhysical = s.SizePhysical
	it.attributes = s.Attributes
	it.lastChange = s.LastChange

	if it.kind == KindFile {
		it.filesCount = 1
	}
}
