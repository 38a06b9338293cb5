package scan_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdirstat/wdirstat/internal/scan"
	"github.com/wdirstat/wdirstat/internal/tree"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func waitDone(t *testing.T, co *scan.Coordinator) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		switch co.State() {
		case scan.StateDone, scan.StateCancelled:
			return
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatal("scan did not finish in time")
}

func TestScanAggregatesFixtureTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "b"), 0o755))
	writeFile(t, filepath.Join(root, "a", "f1"), 100)
	writeFile(t, filepath.Join(root, "a", "f2"), 50)
	writeFile(t, filepath.Join(root, "b", "f3"), 10)

	tr := tree.New()
	co := scan.NewCoordinator(tr, scan.Logger{})

	opts := scan.DefaultOptions()
	opts.UsePhysicalSizes = false

	done := make(chan bool, 1)
	require.NoError(t, co.Start([]string{root}, opts, func(cancelled bool) { done <- cancelled }))

	select {
	case cancelled := <-done:
		assert.False(t, cancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not complete")
	}

	rootItem := tr.Root().Children()[0]
	snap := rootItem.Snapshot()

	assert.True(t, snap.Done)
	assert.Equal(t, uint64(160), snap.SizeLogical)
	assert.Equal(t, uint64(2), snap.FoldersCount)
	assert.Equal(t, uint64(3), snap.FilesCount)
}

func TestScanHardlinkCountsPhysicalOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x"), 100)
	require.NoError(t, os.Link(filepath.Join(root, "x"), filepath.Join(root, "y")))

	tr := tree.New()
	co := scan.NewCoordinator(tr, scan.Logger{})

	opts := scan.DefaultOptions()
	opts.UsePhysicalSizes = true

	done := make(chan bool, 1)
	require.NoError(t, co.Start([]string{root}, opts, func(cancelled bool) { done <- cancelled }))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not complete")
	}

	rootItem := tr.Root().Children()[0]
	snap := rootItem.Snapshot()

	assert.Equal(t, uint64(200), snap.SizeLogical)

	var hardlinked int

	for _, c := range rootItem.Children() {
		if c.Flags().Has(tree.FlagHardlink) {
			hardlinked++
		}
	}

	assert.Equal(t, 1, hardlinked)
}

func TestCancelImmediatelyAfterStart(t *testing.T) {
	root := t.TempDir()
	for i := range 50 {
		require.NoError(t, os.Mkdir(filepath.Join(root, "d"+string(rune('a'+i))), 0o755))
	}

	tr := tree.New()
	co := scan.NewCoordinator(tr, scan.Logger{})

	done := make(chan bool, 1)
	require.NoError(t, co.Start([]string{root}, scan.DefaultOptions(), func(cancelled bool) { done <- cancelled }))

	co.Stop()

	select {
	case cancelled := <-done:
		assert.True(t, cancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not reach cancelled state")
	}

	assert.Equal(t, scan.StateCancelled, co.State())
}

func TestSuspendStopsProgressThenResumeCompletes(t *testing.T) {
	root := t.TempDir()

	for i := range 30 {
		dir := filepath.Join(root, "d"+string(rune('a'+i)))
		require.NoError(t, os.Mkdir(dir, 0o755))

		for j := range 5 {
			writeFile(t, filepath.Join(dir, "f"+string(rune('0'+j))), 1)
		}
	}

	tr := tree.New()
	co := scan.NewCoordinator(tr, scan.Logger{})

	opts := scan.DefaultOptions()
	opts.Workers = 1

	done := make(chan bool, 1)
	require.NoError(t, co.Start([]string{root}, opts, func(cancelled bool) { done <- cancelled }))

	co.Suspend()

	rootItem := tr.Root().Children()[0]
	before := rootItem.Snapshot().FilesCount

	time.Sleep(50 * time.Millisecond)

	after := rootItem.Snapshot().FilesCount
	assert.Equal(t, before, after)

	co.Resume()
	waitDone(t, co)

	snap := rootItem.Snapshot()
	assert.Equal(t, uint64(150), snap.FilesCount)
	assert.Equal(t, uint64(30), snap.FoldersCount)
}

func TestRefreshRescansSubtreeInPlace(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	writeFile(t, filepath.Join(root, "a", "f1"), 100)

	tr := tree.New()
	co := scan.NewCoordinator(tr, scan.Logger{})

	done := make(chan bool, 1)
	require.NoError(t, co.Start([]string{root}, scan.DefaultOptions(), func(cancelled bool) { done <- cancelled }))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not complete")
	}

	rootItem := tr.Root().Children()[0]
	a := rootItem.Children()[0]
	require.Equal(t, "a", a.Name())
	require.Equal(t, uint64(100), a.Snapshot().SizeLogical)

	writeFile(t, filepath.Join(root, "a", "f2"), 25)

	refreshed := make(chan bool, 1)
	require.NoError(t, co.Refresh([]*tree.Item{a}, func(cancelled bool) { refreshed <- cancelled }))

	select {
	case cancelled := <-refreshed:
		assert.False(t, cancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not complete")
	}

	waitDone(t, co)

	a2 := rootItem.Children()[0]
	assert.Equal(t, "a", a2.Name())
	assert.Equal(t, uint64(125), a2.Snapshot().SizeLogical)
	assert.Equal(t, uint64(125), rootItem.Snapshot().SizeLogical, "root aggregate must reflect the refreshed subtree")
}
