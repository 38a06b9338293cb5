package scan

import (
	"io/fs"
	"syscall"

	"github.com/wdirstat/wdirstat/internal/tree"
)

// physicalSize returns the on-disk allocation size for info, using the OS-
// reported block count when available, falling back to the logical size
// rounded up to a 512-byte boundary (spec.md §4.2: "physical size uses the
// OS-reported compressed/allocated size when available, else the
// 512-byte-rounded logical size").
func physicalSize(info fs.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Blocks) * 512 //nolint:gosec // Blocks is non-negative in practice
	}

	size := info.Size()

	return uint64((size + 511) / 512 * 512) //nolint:gosec // size is non-negative
}

// hardlinkIdentity extracts (volume, file-id) from info, returning ok=false
// when the platform's Sys() doesn't expose a POSIX stat_t (e.g. a
// synthetic fs.FileInfo) or the file has only one link (not shared with
// any other directory entry).
func hardlinkIdentity(info fs.FileInfo) (key tree.HardlinkKey, ok bool) {
	stat, isStat := info.Sys().(*syscall.Stat_t)
	if !isStat {
		return tree.HardlinkKey{}, false
	}

	if stat.Nlink <= 1 {
		return tree.HardlinkKey{}, false
	}

	return tree.HardlinkKey{
		Volume: uint64(stat.Dev), //nolint:gosec // Dev is non-negative in practice
		FileID: stat.Ino,
	}, true
}

// directoryIdentity extracts (volume, file-id) for cycle detection when
// following reparse points, regardless of link count.
func directoryIdentity(info fs.FileInfo) (key tree.HardlinkKey, ok bool) {
	stat, isStat := info.Sys().(*syscall.Stat_t)
	if !isStat {
		return tree.HardlinkKey{}, false
	}

	return tree.HardlinkKey{
		Volume: uint64(stat.Dev), //nolint:gosec // Dev is non-negative in practice
		FileID: stat.Ino,
	}, true
}

// deviceOf returns the device id for info, used to detect a mount-point
// boundary crossing (a subdirectory whose device differs from its
// parent's).
func deviceOf(info fs.FileInfo) (dev uint64, ok bool) {
	stat, isStat := info.Sys().(*syscall.Stat_t)
	if !isStat {
		return 0, false
	}

	return uint64(stat.Dev), true //nolint:gosec // Dev is non-negative in practice
}

// attributesOf packs the POSIX permission bits and a small set of WinDirStat-
// style flags (hidden, symlink) into the attributes field carried by Item,
// since this engine runs on POSIX filesystems rather than Windows' own
// attribute bitmask.
func attributesOf(info fs.FileInfo) uint32 {
	attrs := uint32(info.Mode().Perm())

	if info.Mode()&fs.ModeSymlink != 0 {
		attrs |= attrSymlink
	}

	if len(info.Name()) > 0 && info.Name()[0] == '.' {
		attrs |= attrHidden
	}

	return attrs
}

const (
	attrHidden  uint32 = 1 << 16
	attrSymlink uint32 = 1 << 17
)
