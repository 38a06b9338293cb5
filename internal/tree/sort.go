package tree

import (
	"sort"
	"sync"
)

// Column identifies a sortable attribute of an item.
type Column uint8

// Sort columns (spec.md §3: "a single global sort spec (column,
// direction)").
const (
	ColumnName Column = iota
	ColumnSizePhysical
	ColumnSizeLogical
	ColumnFiles
	ColumnFolders
	ColumnLastChange
)

// Direction is ascending or descending.
type Direction bool

// Sort directions.
const (
	Ascending  Direction = false
	Descending Direction = true
)

// Sort reorders every parent's children throughout the subtree rooted at
// item according to (column, direction), recursively. Children order
// under any parent derives from this single global spec; no two
// concurrent orderings coexist (spec.md §3).
//
// Each node's children slice is sorted in-place under that node's own
// lock; the recursive descent does not hold a parent's lock while sorting
// a child's children, so concurrent readers of unrelated subtrees are
// never blocked by a large sort.
func Sort(item *Item, column Column, direction Direction) {
	item.mu.Lock()
	children := append([]*Item(nil), item.children...)
	sortSlice(children, column, direction)
	item.children = children
	item.mu.Unlock()

	var wg sync.WaitGroup

	for _, c := range children {
		wg.Add(1)

		go func(c *Item) {
			defer wg.Done()
			Sort(c, column, direction)
		}(c)
	}

	wg.Wait()
}

// sortSlice always sorts ascending first, then reverses the whole slice for
// Descending. Reversing rather than inverting the comparator guarantees
// sort(t, k, reverse) is the exact reverse permutation of sort(t, k),
// including the relative order of tied elements (spec.md §8: "sort(t, k)
// then sort(t, k, reverse) yields the reverse permutation"). Inverting the
// comparator instead would leave ties in whatever order they arrived in,
// which is not necessarily the reverse of the ascending tie order.
func sortSlice(items []*Item, column Column, direction Direction) {
	less := func(i, j int) bool {
		a, b := items[i], items[j]

		switch column {
		case ColumnName:
			return a.name < b.name
		case ColumnSizePhysical:
			return a.sizePhysical < b.sizePhysical
		case ColumnSizeLogical:
			return a.sizeLogical < b.sizeLogical
		case ColumnFiles:
			return a.filesCount < b.filesCount
		case ColumnFolders:
			return a.foldersCount < b.foldersCount
		case ColumnLastChange:
			return a.lastChange.Before(b.lastChange)
		default:
			return false
		}
	}

	sort.SliceStable(items, less)

	if direction == Descending {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
}
