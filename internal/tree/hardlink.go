package tree

import "sync"

// HardlinkKey identifies a file by (volume, file id), the pair the spec
// uses to deduplicate hardlinked files toward physical size.
type HardlinkKey struct {
	Volume uint64
	FileID uint64
}

// HardlinkRegistry is the process-wide mapping from (volume, file-id) to
// the first-seen item for that identity. Guarded by its own lock,
// independent of any Item's lock (spec.md §4.3).
type HardlinkRegistry struct {
	mu   sync.Mutex
	seen map[HardlinkKey]*Item
}

// NewHardlinkRegistry creates an empty registry.
func NewHardlinkRegistry() *HardlinkRegistry {
	return &HardlinkRegistry{seen: make(map[HardlinkKey]*Item)}
}

// Claim registers key as belonging to item if no prior item has claimed
// it, returning (nil, true) for the first observer. If another item
// already claimed key, Claim returns (that item, false) and the caller
// must flag its own item FlagHardlink and skip physical-size accounting
// (spec.md §3, §4.2).
func (r *HardlinkRegistry) Claim(key HardlinkKey, item *Item) (first *Item, claimed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.seen[key]; ok {
		return existing, false
	}

	r.seen[key] = item

	return nil, true
}

// Clear empties the registry. Called at the start of every new scan
// (spec.md §9, Open Question resolved: lifetime does not span scans).
func (r *HardlinkRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen = make(map[HardlinkKey]*Item)
}

// Len reports the number of distinct hardlink identities currently
// registered, for diagnostics and tests.
func (r *HardlinkRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.seen)
}

// VisitedDirs tracks (volume, file-id) identities of directories already
// entered during a scan, at directory granularity, to reject re-entry when
// reparse-point following is enabled (spec.md §4.2 edge cases).
type VisitedDirs struct {
	mu      sync.Mutex
	visited map[HardlinkKey]struct{}
}

// NewVisitedDirs creates an empty set.
func NewVisitedDirs() *VisitedDirs {
	return &VisitedDirs{visited: make(map[HardlinkKey]struct{})}
}

// Enter records key as visited, returning false if it was already present
// (i.e. the caller would be re-entering a directory via a symlink cycle).
func (v *VisitedDirs) Enter(key HardlinkKey) (first bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.visited[key]; ok {
		return false
	}

	v.visited[key] = struct{}{}

	return true
}
