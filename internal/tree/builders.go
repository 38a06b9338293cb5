package tree

import "time"

// LeafStat is the metadata the enumerator or CSV loader supplies when
// constructing a leaf (file, reparse point, or unreadable entry) item.
type LeafStat struct {
	SizeLogical  uint64
	SizePhysical uint64
	Attributes   uint32
	LastChange   time.Time
}

// NewFile constructs a file leaf with the given stat, ready to attach with
// Tree.AddChild. filesCount is implicitly 1 for any KindFile item.
func NewFile(name string, stat LeafStat) *Item {
	it := NewItem(KindFile, name)
	it.setLeafStat(leafStat(stat))
	it.done = true

	return it
}

// NewReparse constructs a leaf Reparse item: a symlink/junction/mount
// point that is not being followed (spec.md §4.2).
func NewReparse(name string, stat LeafStat) *Item {
	it := NewItem(KindReparse, name)
	it.setLeafStat(leafStat(stat))
	it.done = true

	return it
}

// NewDirectory constructs an interior directory item with no stats of its
// own yet; its aggregates are populated entirely by descendant
// propagation.
func NewDirectory(name string) *Item {
	return NewItem(KindDirectory, name)
}

// NewDrive constructs a root-level drive/volume pseudo-item.
func NewDrive(name string) *Item {
	return NewItem(KindDrive, name)
}

// NewFreeSpace constructs the synthetic free-space leaf for a volume.
func NewFreeSpace(sizePhysical uint64) *Item {
	it := NewItem(KindFreeSpace, "<Free Space>")
	it.sizeLogical = sizePhysical
	it.sizePhysical = sizePhysical
	it.done = true

	return it
}

// NewUnknown constructs the synthetic "unknown/inaccessible" leaf for a
// volume, covering bytes the scan could not attribute to any file.
func NewUnknown(sizePhysical uint64) *Item {
	it := NewItem(KindUnknown, "<Unknown>")
	it.sizeLogical = sizePhysical
	it.sizePhysical = sizePhysical
	it.done = true

	return it
}

// SizeLogical returns the item's current logical size.
func (it *Item) SizeLogical() uint64 {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.sizeLogical
}

// SizePhysical returns the item's current physical (on-disk) size.
func (it *Item) SizePhysical() uint64 {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.sizePhysical
}

// FilesCount returns the item's current aggregate file count.
func (it *Item) FilesCount() uint64 {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.filesCount
}

// FoldersCount returns the item's current aggregate folder count.
func (it *Item) FoldersCount() uint64 {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.foldersCount
}

// LastChange returns the item's most recent observed modification time.
func (it *Item) LastChange() time.Time {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.lastChange
}

// Attributes returns the item's OS attribute bitmask.
func (it *Item) Attributes() uint32 {
	it.mu.RLock()
	defer it.mu.RUnlock()

	return it.attributes
}

// SetAttributesAndTime sets attributes and last-change directly, used by
// the CSV loader for the interior items (directories, drives, the root)
// it reconstructs from a saved row rather than a live stat; loaded leaves
// get theirs through LeafStat instead.
func (it *Item) SetAttributesAndTime(attrs uint32, lastChange time.Time) {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.attributes = attrs
	it.lastChange = lastChange
}

// SetCounts overrides files/folders counts directly — used by the CSV
// loader to copy the root row's stored counts onto the tree root; every
// other loaded item's counts are derived by AddChild propagation.
func (it *Item) SetCounts(files, folders uint64) {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.filesCount = files
	it.foldersCount = folders
}

// SetSizes overrides logical/physical sizes directly — used by the CSV
// loader.
func (it *Item) SetSizes(logical, physical uint64) {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.sizeLogical = logical
	it.sizePhysical = physical
}
