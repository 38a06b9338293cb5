package csvfmt_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdirstat/wdirstat/internal/csvfmt"
	"github.com/wdirstat/wdirstat/internal/tree"
)

func buildFixtureTree(t *testing.T) *tree.Tree {
	t.Helper()

	tr := tree.New()

	drive := tree.NewDrive("/data")
	tr.AddRoot(drive)

	a := tree.NewDirectory("a")
	tr.AddChild(drive, a)
	tr.AddChild(a, tree.NewFile("f1", tree.LeafStat{SizeLogical: 100, SizePhysical: 100, LastChange: time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)}))
	tr.AddChild(a, tree.NewFile("f2", tree.LeafStat{SizeLogical: 50, SizePhysical: 50}))

	b := tree.NewDirectory("b")
	tr.AddChild(drive, b)
	tr.AddChild(b, tree.NewFile("f3", tree.LeafStat{SizeLogical: 10, SizePhysical: 10}))

	tr.MarkDone(a)
	tr.MarkDone(b)
	tr.MarkDone(drive)

	return tr
}

func TestEncodeProducesExpectedHeaderAndExampleRow(t *testing.T) {
	tr := buildFixtureTree(t)

	var buf bytes.Buffer
	require.NoError(t, csvfmt.Encode(&buf, tr.Root(), csvfmt.Options{}))

	lines := strings.Split(buf.String(), "\r\n")
	require.NotEmpty(t, lines)

	header := lines[0]
	assert.Contains(t, header, `"NAME"`)
	assert.Contains(t, header, `"ATTRIBUTES_WDS"`)

	var f1Line string

	for _, l := range lines {
		if strings.Contains(l, "/data/a/f1") {
			f1Line = l
		}
	}

	require.NotEmpty(t, f1Line)
	assert.Contains(t, f1Line, `"/data/a/f1"`)
	assert.Contains(t, f1Line, "2024-03-01T10:15:30Z")
	assert.Contains(t, f1Line, "0x00000000")
}

func TestRoundTripPreservesAggregates(t *testing.T) {
	tr := buildFixtureTree(t)

	var buf bytes.Buffer
	require.NoError(t, csvfmt.Encode(&buf, tr.Root(), csvfmt.Options{}))

	loaded, err := csvfmt.Decode(&buf)
	require.NoError(t, err)

	drive := loaded.Root().Children()[0]
	snap := drive.Snapshot()

	assert.True(t, snap.Done)
	assert.Equal(t, uint64(160), snap.SizeLogical)
	assert.Equal(t, uint64(160), snap.SizePhysical)
	assert.Equal(t, uint64(3), snap.FilesCount)
	assert.Equal(t, uint64(2), snap.FoldersCount)
}

func TestRoundTripPreservesDirectoryStructure(t *testing.T) {
	tr := buildFixtureTree(t)

	var buf bytes.Buffer
	require.NoError(t, csvfmt.Encode(&buf, tr.Root(), csvfmt.Options{}))

	loaded, err := csvfmt.Decode(&buf)
	require.NoError(t, err)

	drive := loaded.Root().Children()[0]

	var names []string

	for _, c := range drive.Children() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestDecodeRejectsMissingRequiredColumn(t *testing.T) {
	data := "\"NAME\",\"FILES\"\r\n\"x\",0\r\n"

	_, err := csvfmt.Decode(strings.NewReader(data))
	require.Error(t, err)
	assert.ErrorIs(t, err, csvfmt.ErrFormat)
}

func TestDecodeRejectsUnresolvableParent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, csvfmt.Encode(&buf, buildFixtureTree(t).Root(), csvfmt.Options{}))

	lines := strings.Split(buf.String(), "\r\n")
	require.Greater(t, len(lines), 2)

	// Drop the "a" directory row so f1/f2's parent cannot be resolved.
	var out []string

	for _, l := range lines {
		if strings.Contains(l, `"/data/a",`) {
			continue
		}

		out = append(out, l)
	}

	_, err := csvfmt.Decode(strings.NewReader(strings.Join(out, "\r\n")))
	require.Error(t, err)
	assert.ErrorIs(t, err, csvfmt.ErrFormat)
}
