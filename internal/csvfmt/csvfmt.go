// Package csvfmt implements the engine's persisted CSV format (spec.md
// §4.7): a line-oriented, CRLF-terminated, header-driven encoding of an
// item tree, ported from WinDirStat's CsvLoader.cpp rather than
// encoding/csv, since the source's quoting rule ("a leading quote starts
// a field that ends at the next quote, no escaped quotes are ever
// produced") does not match RFC 4180.
package csvfmt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wdirstat/wdirstat/internal/tree"
)

// ErrFormat is returned (wrapped with detail) for any malformed header or
// row: a missing required column, an unparsable field, or a row whose
// parent cannot be resolved. The load aborts and the tree is left
// unchanged (spec.md §7: "FormatError... abort the load, return none,
// tree unchanged").
var ErrFormat = errors.New("csvfmt: malformed csv")

// Options controls which optional columns are written.
type Options struct {
	// WriteOwner includes the OWNER column when true.
	WriteOwner bool
}

// column identifies one of the fixed field roles a header label maps to.
type column int

const (
	colName column = iota
	colFiles
	colFolders
	colSizeLogical
	colSizePhysical
	colAttributes
	colLastChange
	colAttributesWDS
	colOwner
	columnCount
)

var columnLabels = map[column]string{
	colName:          "NAME",
	colFiles:         "FILES",
	colFolders:       "FOLDERS",
	colSizeLogical:   "SIZE_LOGICAL",
	colSizePhysical:  "SIZE_PHYSICAL",
	colAttributes:    "ATTRIBUTES",
	colLastChange:    "LASTCHANGE",
	colAttributesWDS: "ATTRIBUTES_WDS",
	colOwner:         "OWNER",
}

// wire bit layout for ATTRIBUTES_WDS: low byte selects Kind (one-hot),
// high byte carries Flag bits, mirroring the source's ITEMTYPE/ITF_ROOTITEM
// split into a single hex field.
const (
	wireMyComputer uint16 = 1 << 0
	wireDrive      uint16 = 1 << 1
	wireDirectory  uint16 = 1 << 2
	wireFile       uint16 = 1 << 3
	wireFreeSpace  uint16 = 1 << 4
	wireUnknown    uint16 = 1 << 5
	wireReparse    uint16 = 1 << 6

	wireFlagRoot      uint16 = 1 << 8
	wireFlagHardlink  uint16 = 1 << 9
	wireFlagProtected uint16 = 1 << 10
	wireFlagError     uint16 = 1 << 11
)

func encodeWire(kind tree.Kind, flags tree.Flag) uint16 {
	var w uint16

	switch kind {
	case tree.KindMyComputer:
		w = wireMyComputer
	case tree.KindDrive:
		w = wireDrive
	case tree.KindDirectory:
		w = wireDirectory
	case tree.KindFile:
		w = wireFile
	case tree.KindFreeSpace:
		w = wireFreeSpace
	case tree.KindUnknown:
		w = wireUnknown
	case tree.KindReparse:
		w = wireReparse
	}

	if flags.Has(tree.FlagRoot) {
		w |= wireFlagRoot
	}

	if flags.Has(tree.FlagHardlink) {
		w |= wireFlagHardlink
	}

	if flags.Has(tree.FlagProtected) {
		w |= wireFlagProtected
	}

	if flags.Has(tree.FlagError) {
		w |= wireFlagError
	}

	return w
}

func decodeWire(w uint16) (kind tree.Kind, flags tree.Flag) {
	switch {
	case w&wireMyComputer != 0:
		kind = tree.KindMyComputer
	case w&wireDrive != 0:
		kind = tree.KindDrive
	case w&wireDirectory != 0:
		kind = tree.KindDirectory
	case w&wireFile != 0:
		kind = tree.KindFile
	case w&wireFreeSpace != 0:
		kind = tree.KindFreeSpace
	case w&wireUnknown != 0:
		kind = tree.KindUnknown
	case w&wireReparse != 0:
		kind = tree.KindReparse
	}

	if w&wireFlagRoot != 0 {
		flags |= tree.FlagRoot
	}

	if w&wireFlagHardlink != 0 {
		flags |= tree.FlagHardlink
	}

	if w&wireFlagProtected != 0 {
		flags |= tree.FlagProtected
	}

	if w&wireFlagError != 0 {
		flags |= tree.FlagError
	}

	return kind, flags
}

// isInRoot reports whether kind's row attaches directly to the tree root
// on load, and is written using its bare name rather than a full path
// (Drive, FreeSpace, and Unknown pseudo-items).
func isInRoot(kind tree.Kind) bool {
	return kind == tree.KindDrive || kind == tree.KindFreeSpace || kind == tree.KindUnknown
}

// canHaveChildren reports whether kind is eligible to be registered as a
// parent for path-prefix lookup while loading.
func canHaveChildren(kind tree.Kind) bool {
	return kind == tree.KindDirectory || kind == tree.KindDrive || kind == tree.KindMyComputer
}

// Encode writes root's subtree in depth-first pre-order, CRLF-terminated,
// starting with a header row (spec.md §4.7 writer). Leaf items are not
// descended into.
func Encode(w io.Writer, root *tree.Item, opts Options) error {
	bw := bufio.NewWriter(w)

	if err := writeHeader(bw, opts); err != nil {
		return err
	}

	if err := writeItem(bw, root, opts); err != nil {
		return err
	}

	return bw.Flush()
}

func writeHeader(w *bufio.Writer, opts Options) error {
	cols := []column{colName, colFiles, colFolders, colSizeLogical, colSizePhysical, colAttributes, colLastChange, colAttributesWDS}
	if opts.WriteOwner {
		cols = append(cols, colOwner)
	}

	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = quote(columnLabels[c])
	}

	_, err := fmt.Fprint(w, strings.Join(parts, ",")+"\r\n")

	return err
}

func writeItem(w *bufio.Writer, item *tree.Item, opts Options) error {
	snap := item.Snapshot()

	name := snap.Name

	switch {
	case snap.Kind == tree.KindMyComputer:
		name = "My Computer"
	case !isInRoot(snap.Kind):
		name = item.Path("/")
	}

	line := fmt.Sprintf("%s,%d,%d,%d,%d,0x%08X,%s,0x%04X",
		quote(name),
		snap.FilesCount,
		snap.FoldersCount,
		snap.SizeLogical,
		snap.SizePhysical,
		snap.Attributes,
		formatTime(snap.LastChange),
		encodeWire(snap.Kind, snap.Flags),
	)

	if opts.WriteOwner {
		line += "," + quote(snap.Owner)
	}

	if _, err := fmt.Fprint(w, line+"\r\n"); err != nil {
		return err
	}

	if snap.Kind == tree.KindFile {
		return nil
	}

	for _, child := range item.Children() {
		if err := writeItem(w, child, opts); err != nil {
			return err
		}
	}

	return nil
}

func quote(s string) string { return `"` + s + `"` }

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Decode parses a CSV stream into a fresh tree.Tree, reconstructing
// parent-child relationships from the NAME column's path prefixes (spec.md
// §4.7 loader). The first data row becomes the tree's root; returns
// ErrFormat (wrapped with detail) on any malformed header or row, leaving
// no partial state behind.
func Decode(r io.Reader) (*tree.Tree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		colIndex  [columnCount]int
		gotHeader bool
		tr        *tree.Tree
		rootSeen  bool
	)

	for i := range colIndex {
		colIndex[i] = -1
	}

	parents := make(map[string]*tree.Item)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		fields := splitLine(line)

		if !gotHeader {
			if err := parseHeader(fields, &colIndex); err != nil {
				return nil, err
			}

			gotHeader = true

			continue
		}

		item, isRoot, err := parseRow(fields, colIndex, parents)
		if err != nil {
			return nil, err
		}

		if isRoot {
			if rootSeen {
				return nil, fmt.Errorf("%w: more than one row flagged root", ErrFormat)
			}

			rootSeen = true
			tr = tree.New()
			applyRootSnapshot(tr.Root(), item)
			registerParent(parents, item.ownPath, tr.Root())

			continue
		}

		if tr == nil {
			return nil, fmt.Errorf("%w: data row before root row", ErrFormat)
		}

		parent, err := resolveParent(item, tr, parents)
		if err != nil {
			return nil, err
		}

		tr.AddChild(parent, item.built)

		if canHaveChildren(item.kind) {
			registerParent(parents, item.ownPath, item.built)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	if !gotHeader || tr == nil {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}

	// Every interior node's aggregates were already derived by AddChild's
	// propagation as each row attached (buildItem applies stored stats to
	// leaves only), so a loaded tree is complete by construction: mark it
	// done without re-aggregating.
	tree.MarkDoneWithPartial(tr.Root())
	tree.Sort(tr.Root(), tree.ColumnSizePhysical, tree.Descending)

	return tr, nil
}

func parseHeader(fields []string, colIndex *[columnCount]int) error {
	labelToColumn := make(map[string]column, len(columnLabels))
	for c, label := range columnLabels {
		labelToColumn[label] = c
	}

	for i, f := range fields {
		if c, ok := labelToColumn[f]; ok {
			colIndex[c] = i
		}
	}

	for c := column(0); c < columnCount; c++ {
		if c == colOwner {
			continue
		}

		if colIndex[c] == -1 {
			return fmt.Errorf("%w: missing required column %s", ErrFormat, columnLabels[c])
		}
	}

	return nil
}

// parsedRow is the intermediate result of parsing one data line, before
// the caller decides whether it is the root row or attaches it to a
// parent.
type parsedRow struct {
	kind  tree.Kind
	flags tree.Flag
	// ownPath is this row's own full path, exactly as written to the NAME
	// column (item.Path("/") for path-bearing kinds, the bare name for
	// isInRoot kinds) — the key this item registers itself under for its
	// own children to resolve later.
	ownPath string
	// parentPath is the path used to look up this row's parent via
	// resolveParent; for non-isInRoot kinds it is ownPath with the last
	// path component stripped, distinct from ownPath so a row never
	// registers itself under its parent's key.
	parentPath string
	built      *tree.Item
}

func parseRow(fields []string, colIndex [columnCount]int, parents map[string]*tree.Item) (parsedRow, bool, error) {
	get := func(c column) (string, error) {
		idx := colIndex[c]
		if idx < 0 || idx >= len(fields) {
			return "", fmt.Errorf("%w: row has too few fields for column %s", ErrFormat, columnLabels[c])
		}

		return fields[idx], nil
	}

	wdsField, err := get(colAttributesWDS)
	if err != nil {
		return parsedRow{}, false, err
	}

	wds, err := strconv.ParseUint(strings.TrimPrefix(wdsField, "0x"), 16, 16)
	if err != nil {
		return parsedRow{}, false, fmt.Errorf("%w: bad ATTRIBUTES_WDS %q: %w", ErrFormat, wdsField, err)
	}

	kind, flags := decodeWire(uint16(wds))

	nameField, err := get(colName)
	if err != nil {
		return parsedRow{}, false, err
	}

	ownPath := unquote(nameField)

	var name, parentPath string

	switch {
	case flags.Has(tree.FlagRoot), isInRoot(kind):
		name = ownPath
		parentPath = ownPath
	default:
		idx := strings.LastIndexByte(ownPath, '/')
		if idx < 0 {
			name = ownPath
			parentPath = ownPath
		} else {
			name = ownPath[idx+1:]
			parentPath = ownPath[:idx]
		}
	}

	files, err := parseUint(get, colFiles)
	if err != nil {
		return parsedRow{}, false, err
	}

	folders, err := parseUint(get, colFolders)
	if err != nil {
		return parsedRow{}, false, err
	}

	sizeLogical, err := parseUint(get, colSizeLogical)
	if err != nil {
		return parsedRow{}, false, err
	}

	sizePhysical, err := parseUint(get, colSizePhysical)
	if err != nil {
		return parsedRow{}, false, err
	}

	attrField, err := get(colAttributes)
	if err != nil {
		return parsedRow{}, false, err
	}

	attrs, err := strconv.ParseUint(strings.TrimPrefix(attrField, "0x"), 16, 32)
	if err != nil {
		return parsedRow{}, false, fmt.Errorf("%w: bad ATTRIBUTES %q: %w", ErrFormat, attrField, err)
	}

	lastChangeField, err := get(colLastChange)
	if err != nil {
		return parsedRow{}, false, err
	}

	lastChange, err := time.Parse("2006-01-02T15:04:05Z", lastChangeField)
	if err != nil {
		return parsedRow{}, false, fmt.Errorf("%w: bad LASTCHANGE %q: %w", ErrFormat, lastChangeField, err)
	}

	item := buildItem(kind, flags, name, files, folders, sizeLogical, sizePhysical, uint32(attrs), lastChange)

	if colIndex[colOwner] >= 0 && colIndex[colOwner] < len(fields) {
		item.SetOwner(unquote(fields[colIndex[colOwner]]))
	}

	return parsedRow{kind: kind, flags: flags, ownPath: ownPath, parentPath: parentPath, built: item}, flags.Has(tree.FlagRoot), nil
}

func parseUint(get func(column) (string, error), c column) (uint64, error) {
	s, err := get(c)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q: %w", ErrFormat, columnLabels[c], s, err)
	}

	return v, nil
}

// buildItem reconstructs an item from one CSV row. Interior kinds
// (Directory, Drive, MyComputer) deliberately do NOT get the row's own
// SIZE_LOGICAL/SIZE_PHYSICAL/FILES/FOLDERS columns applied: those values
// are redundant with what tr.AddChild's incremental propagation already
// derives from the children as they attach, and applying both would
// double-count every ancestor's aggregate. Only leaves carry their own
// stats directly, exactly mirroring how a live scan populates them.
func buildItem(kind tree.Kind, flags tree.Flag, name string, files, folders, sizeLogical, sizePhysical uint64, attrs uint32, lastChange time.Time) *tree.Item {
	var it *tree.Item

	switch kind {
	case tree.KindFile:
		it = tree.NewFile(name, tree.LeafStat{SizeLogical: sizeLogical, SizePhysical: sizePhysical, Attributes: attrs, LastChange: lastChange})
	case tree.KindReparse:
		it = tree.NewReparse(name, tree.LeafStat{SizeLogical: sizeLogical, SizePhysical: sizePhysical, Attributes: attrs, LastChange: lastChange})
	case tree.KindFreeSpace:
		it = tree.NewFreeSpace(sizePhysical)
	case tree.KindUnknown:
		it = tree.NewUnknown(sizePhysical)
	case tree.KindDirectory:
		it = tree.NewDirectory(name)
		it.SetAttributesAndTime(attrs, lastChange)
	case tree.KindDrive:
		it = tree.NewDrive(name)
		it.SetAttributesAndTime(attrs, lastChange)
	case tree.KindMyComputer:
		it = tree.NewDirectory(name)
		it.SetAttributesAndTime(attrs, lastChange)
	}

	_ = files
	_ = folders

	for f := tree.FlagHardlink; f <= tree.FlagError; f <<= 1 {
		if flags.Has(f) {
			it.SetFlag(f)
		}
	}

	return it
}

func applyRootSnapshot(root *tree.Item, row parsedRow) {
	snap := row.built.Snapshot()
	root.SetSizes(snap.SizeLogical, snap.SizePhysical)
	root.SetCounts(snap.FilesCount, snap.FoldersCount)
	root.SetAttributesAndTime(snap.Attributes, snap.LastChange)
	root.SetOwner(snap.Owner)
}

func registerParent(parents map[string]*tree.Item, path string, item *tree.Item) {
	parents[path] = item

	if item.Kind() == tree.KindDrive {
		parents[strings.TrimSuffix(path, "/")] = item
		parents[path+"/"] = item
	}
}

func resolveParent(row parsedRow, tr *tree.Tree, parents map[string]*tree.Item) (*tree.Item, error) {
	if isInRoot(row.kind) {
		return tr.Root(), nil
	}

	parent, ok := parents[row.parentPath]
	if !ok {
		return nil, fmt.Errorf("%w: no parent found for path %q", ErrFormat, row.parentPath)
	}

	return parent, nil
}

func splitLine(line string) []string {
	var fields []string

	for pos := 0; pos <= len(line); {
		if pos == len(line) {
			fields = append(fields, "")

			break
		}

		if line[pos] == '"' {
			end := strings.IndexByte(line[pos+1:], '"')
			if end < 0 {
				fields = append(fields, line[pos+1:])

				break
			}

			end += pos + 1
			fields = append(fields, line[pos+1:end])
			pos = end + 1

			if pos < len(line) && line[pos] == ',' {
				pos++
			} else {
				break
			}

			continue
		}

		comma := strings.IndexByte(line[pos:], ',')
		if comma < 0 {
			fields = append(fields, line[pos:])

			break
		}

		fields = append(fields, line[pos:pos+comma])
		pos += comma + 1
	}

	return fields
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	return s
}
