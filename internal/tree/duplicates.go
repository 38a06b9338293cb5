package tree

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zeebo/blake3"
)

// DuplicateKey identifies a duplicate-file group by logical size plus
// content hash, per spec.md §3 ("Duplicate group — a side structure keyed
// by (size_logical, content-hash)").
type DuplicateKey struct {
	SizeLogical uint64
	Hash        string
}

// DuplicateGroup collects every item sharing one DuplicateKey.
type DuplicateGroup struct {
	Key   DuplicateKey
	Items []*Item
}

// BuildDuplicateGroups walks the subtree rooted at item, hashing every
// leaf file's content with BLAKE3 and grouping items that share both
// logical size and hash. Populated lazily on request only — never
// maintained incrementally during a scan (spec.md §3).
//
// pathOf must return the absolute filesystem path for a leaf item (the
// tree itself only stores leaf names; the caller supplies path
// reconstruction, typically Item.Path joined with a root mount point).
// Only groups with two or more members are returned.
func BuildDuplicateGroups(item *Item, pathOf func(*Item) string, workers int) ([]DuplicateGroup, error) {
	if workers < 1 {
		workers = 1
	}

	bySize := make(map[uint64][]*Item)
	collectLeavesBySize(item, bySize)

	type job struct {
		it   *Item
		size uint64
	}

	var jobs []job

	for size, items := range bySize {
		if len(items) < 2 {
			continue // a unique size can never collide with anything
		}

		for _, it := range items {
			jobs = append(jobs, job{it: it, size: size})
		}
	}

	type result struct {
		key DuplicateKey
		it  *Item
		err error
	}

	results := make(chan result, len(jobs))

	jobCh := make(chan job)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := range jobCh {
				hash, err := hashFile(pathOf(j.it))
				if err != nil {
					results <- result{err: fmt.Errorf("hashing %s: %w", pathOf(j.it), err)}

					continue
				}

				results <- result{key: DuplicateKey{SizeLogical: j.size, Hash: hash}, it: j.it}
			}
		}()
	}

	go func() {
		for _, j := range jobs {
			jobCh <- j
		}

		close(jobCh)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	groups := make(map[DuplicateKey][]*Item)

	var firstErr error

	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}

			continue
		}

		groups[r.key] = append(groups[r.key], r.it)
	}

	if firstErr != nil {
		return nil, firstErr
	}

	out := make([]DuplicateGroup, 0, len(groups))

	for key, items := range groups {
		if len(items) < 2 {
			continue
		}

		out = append(out, DuplicateGroup{Key: key, Items: items})
	}

	return out, nil
}

func collectLeavesBySize(item *Item, bySize map[uint64][]*Item) {
	item.mu.RLock()
	kind := item.kind
	size := item.sizeLogical
	children := append([]*Item(nil), item.children...)
	item.mu.RUnlock()

	if kind == KindFile {
		bySize[size] = append(bySize[size], item)

		return
	}

	for _, c := range children {
		collectLeavesBySize(c, bySize)
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()

	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
