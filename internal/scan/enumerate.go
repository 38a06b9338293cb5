package scan

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charlievieth/fastwalk"

	"github.com/wdirstat/wdirstat/internal/tree"
)

// Task pairs a directory item awaiting enumeration with its filesystem
// path (the tree only stores leaf names; the coordinator tracks full
// paths alongside items) and the device id of that directory itself,
// which its subdirectories are compared against for mount-point boundary
// detection.
type Task struct {
	Item   *tree.Item
	Path   string
	Dev    uint64
	HasDev bool
}

// enumerateResult is what EnumerateDirectory produces for one directory.
type enumerateResult struct {
	Children []*tree.Item
	Subdirs  []Task
}

// EnumerateDirectory lists one directory's entries, classifies each, and
// returns the items to attach as children plus follow-up tasks for any
// subdirectories found (spec.md §4.2).
//
// It uses fastwalk.Walk scoped to exactly one level: the walk callback
// returns fs.SkipDir for every entry that is itself a directory other
// than dirTask.Path, which prevents fastwalk from recursing further while
// still getting its fast concurrent per-entry Lstat within this one
// directory — the teacher's only use of fastwalk, narrowed from a whole-
// tree walk to a single directory because recursion here is now owned by
// the scan coordinator's queue (C1/C4), not by fastwalk itself.
func EnumerateDirectory(
	dirTask Task,
	opts Options,
	reg *tree.HardlinkRegistry,
	visited *tree.VisitedDirs,
	log Logger,
) (enumerateResult, error) {
	var result enumerateResult

	parentDev, hasParentDev := dirTask.Dev, dirTask.HasDev

	conf := &fastwalk.Config{Follow: false}

	walkErr := fastwalk.Walk(conf, dirTask.Path, func(path string, d fs.DirEntry, err error) error {
		if path == dirTask.Path {
			return nil // the root of this single-level walk; not a child
		}

		name := filepath.Base(path)

		if err != nil {
			log.Printf("[debug]: error accessing %s: %v\n", path, err)
			result.Children = append(result.Children, errorLeaf(name))

			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			child, subTask := classifyDirectory(path, name, opts, visited, parentDev, hasParentDev, log)
			if child != nil {
				result.Children = append(result.Children, child)
			}

			if subTask != nil {
				result.Subdirs = append(result.Subdirs, *subTask)
			}

			return fs.SkipDir
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			log.Printf("[debug]: stat error on %s: %v\n", path, infoErr)
			result.Children = append(result.Children, errorLeaf(name))

			return nil
		}

		if info.Mode()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			result.Children = append(result.Children, tree.NewReparse(name, leafStatOf(info)))

			return nil
		}

		result.Children = append(result.Children, classifyFile(name, info, reg))

		return nil
	})

	return result, walkErr
}

func errorLeaf(name string) *tree.Item {
	leaf := tree.NewFile(name, tree.LeafStat{})
	leaf.SetFlag(tree.FlagError)

	return leaf
}

func leafStatOf(info fs.FileInfo) tree.LeafStat {
	return tree.LeafStat{
		SizeLogical: uint64(max64(info.Size(), 0)), //nolint:gosec // Size is non-negative
		Attributes:  attributesOf(info),
		LastChange:  info.ModTime(),
	}
}

func classifyFile(name string, info fs.FileInfo, reg *tree.HardlinkRegistry) *tree.Item {
	stat := leafStatOf(info)

	key, hasKey := hardlinkIdentity(info)
	if !hasKey {
		stat.SizePhysical = physicalSize(info)

		return tree.NewFile(name, stat)
	}

	leaf := tree.NewFile(name, stat)

	if _, first := reg.Claim(key, leaf); first {
		leaf.SetSizes(leaf.SizeLogical(), physicalSize(info))
	} else {
		leaf.SetFlag(tree.FlagHardlink)
	}

	return leaf
}

func classifyDirectory(
	path, name string,
	opts Options,
	visited *tree.VisitedDirs,
	parentDev uint64,
	hasParentDev bool,
	log Logger,
) (child *tree.Item, subTask *Task) {
	info, statErr := os.Lstat(path)
	if statErr != nil {
		log.Printf("[debug]: stat error on directory %s: %v\n", path, statErr)

		leaf := tree.NewDirectory(name)
		leaf.SetFlag(tree.FlagError)

		return leaf, nil
	}

	isSymlink := info.Mode()&fs.ModeSymlink != 0

	if isSymlink && !opts.FollowSymlinks {
		return tree.NewReparse(name, leafStatOf(info)), nil
	}

	// Resolve through the symlink (or take the directory's own stat) to
	// check the mount-point boundary and cycle-detection identity.
	resolved, resolveErr := os.Stat(path)
	if resolveErr != nil {
		log.Printf("[debug]: resolve error on directory %s: %v\n", path, resolveErr)

		leaf := tree.NewDirectory(name)
		leaf.SetFlag(tree.FlagError)

		return leaf, nil
	}

	if dev, ok := deviceOf(resolved); ok && hasParentDev && dev != parentDev && !opts.FollowMountPoints {
		return tree.NewReparse(name, leafStatOf(resolved)), nil
	}

	if isSymlink || !hasParentDev {
		if key, ok := directoryIdentity(resolved); ok {
			if !visited.Enter(key) {
				return tree.NewReparse(name, leafStatOf(resolved)), nil
			}
		}
	}

	dir := tree.NewDirectory(name)
	dev, hasDev := deviceOf(resolved)

	return dir, &Task{Item: dir, Path: path, Dev: dev, HasDev: hasDev}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}
