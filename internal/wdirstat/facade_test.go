package wdirstat_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdirstat/wdirstat/internal/csvfmt"
	"github.com/wdirstat/wdirstat/internal/scan"
	"github.com/wdirstat/wdirstat/internal/tree"
	"github.com/wdirstat/wdirstat/internal/treemap"
	"github.com/wdirstat/wdirstat/internal/wdirstat"
)

type recordingTrampoline struct {
	mu    sync.Mutex
	hints []wdirstat.Hint
}

func (r *recordingTrampoline) Post(h wdirstat.Hint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hints = append(r.hints, h)
}

func (r *recordingTrampoline) count(kind wdirstat.HintKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, h := range r.hints {
		if h.Kind == kind {
			n++
		}
	}

	return n
}

func waitScanDone(t *testing.T, f *wdirstat.Facade) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		switch f.ScanState() {
		case scan.StateDone, scan.StateCancelled:
			return
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatal("scan did not finish in time")
}

func TestFacadeStartScanPostsNewRootAndAggregates(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f1"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "f2"), make([]byte, 50), 0o644))

	tramp := &recordingTrampoline{}
	f := wdirstat.New(tramp)

	opts := scan.DefaultOptions()
	require.NoError(t, f.StartScan([]string{root}, 2, opts))

	waitScanDone(t, f)

	snap := f.GetRoot().Snapshot()
	assert.True(t, snap.Done)
	assert.Equal(t, uint64(150), snap.SizeLogical)

	assert.GreaterOrEqual(t, tramp.count(wdirstat.HintNewRoot), 1)
}

func TestFacadeZoomAndSelectionPostHints(t *testing.T) {
	tramp := &recordingTrampoline{}
	f := wdirstat.New(tramp)

	root := f.GetRoot()
	f.SetZoom(root)
	f.SetSelection(root)

	assert.Equal(t, root, f.GetZoom())
	assert.Equal(t, root, f.GetSelection())
	assert.Equal(t, 1, tramp.count(wdirstat.HintZoomChanged))
	assert.Equal(t, 1, tramp.count(wdirstat.HintSelectionChanged))
}

func TestFacadeRenderAndHitTestTreemap(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f1"), make([]byte, 1000), 0o644))

	f := wdirstat.New(nil)
	require.NoError(t, f.StartScan([]string{root}, 2, scan.DefaultOptions()))
	waitScanDone(t, f)

	rects := f.RenderTreemap(treemap.Rect{W: 200, H: 100})
	require.NotEmpty(t, rects)

	item, ok := f.HitTestTreemap(1, 1)
	require.True(t, ok)
	assert.NotNil(t, item)
}

func TestFacadeSaveAndLoadCSVRoundTrips(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "f1"), make([]byte, 10), 0o644))

	f := wdirstat.New(nil)
	require.NoError(t, f.StartScan([]string{root}, 2, scan.DefaultOptions()))
	waitScanDone(t, f)

	var buf bytes.Buffer
	require.NoError(t, f.SaveCSV(&buf, csvfmt.Options{}))

	f2 := wdirstat.New(nil)
	require.NoError(t, f2.LoadCSV(&buf))

	assert.Equal(t, f.GetRoot().Snapshot().SizeLogical, f2.GetRoot().Snapshot().SizeLogical)
}

func TestFacadeRefreshRescansAndPostsNewRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "f1"), make([]byte, 10), 0o644))

	tramp := &recordingTrampoline{}
	f := wdirstat.New(tramp)
	require.NoError(t, f.StartScan([]string{root}, 2, scan.DefaultOptions()))
	waitScanDone(t, f)

	before := tramp.count(wdirstat.HintNewRoot)

	rootItem := f.GetRoot().Children()[0]
	a := rootItem.Children()[0]
	require.Equal(t, "a", a.Name())
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "f2"), make([]byte, 20), 0o644))

	require.NoError(t, f.Refresh([]*tree.Item{a}))
	waitScanDone(t, f)

	assert.Equal(t, uint64(30), f.GetRoot().Snapshot().SizeLogical)
	assert.Greater(t, tramp.count(wdirstat.HintNewRoot), before)
}
