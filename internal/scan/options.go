package scan

// Options configures a scan's traversal semantics (spec.md §6:
// "ScanOptions recognized").
type Options struct {
	// FollowMountPoints allows recursing across filesystem/volume
	// boundaries encountered mid-tree.
	FollowMountPoints bool
	// FollowJunctions is carried in Options but not read by the
	// enumerator: it has no effect on traversal. Symlinked directories are
	// governed by FollowSymlinks and mount points by FollowMountPoints.
	FollowJunctions bool
	// FollowSymlinks allows recursing into symlinked directories.
	FollowSymlinks bool
	// UsePhysicalSizes selects size_physical as the default sizing basis
	// for views that need one (extension index, treemap). Defaults true.
	UsePhysicalSizes bool
	// CollectOwner is not read by the scan, which does not look up file
	// owners; the CLI uses it only to add the OWNER column when saving
	// CSV, holding whatever owner string each item already has. Defaults
	// false (spec.md §6).
	CollectOwner bool
	// Workers is the number of worker goroutines per volume queue.
	Workers int
}

// DefaultOptions returns the spec-mandated defaults (spec.md §6).
func DefaultOptions() Options {
	return Options{
		FollowMountPoints: false,
		FollowJunctions:   false,
		FollowSymlinks:    false,
		UsePhysicalSizes:  true,
		CollectOwner:      false,
		Workers:           4,
	}
}
