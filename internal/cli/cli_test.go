package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdirstat/wdirstat/internal/cli"
)

func TestScanCommandPrintsJSONReport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f1.txt"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f2.txt"), make([]byte, 50), 0o644))

	root := cli.New("test")

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"scan", dir, "--output=json", "--workers=2"})

	require.NoError(t, root.Execute())

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &parsed))
	assert.InDelta(t, 150, parsed["size_logical"].(float64), 0.001)
}

func TestScanCommandRejectsUnknownOutputFormat(t *testing.T) {
	dir := t.TempDir()

	root := cli.New("test")
	root.SetArgs([]string{"scan", dir, "--output=yaml"})

	err := root.Execute()
	require.Error(t, err)
}

func TestLoadCommandRoundTripsSavedCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f1.txt"), make([]byte, 10), 0o644))

	csvPath := filepath.Join(t.TempDir(), "out.csv")

	root := cli.New("test")
	root.SetArgs([]string{"scan", dir, "--output=json", "--save", csvPath})
	require.NoError(t, root.Execute())

	root2 := cli.New("test")

	var out bytes.Buffer
	root2.SetOut(&out)
	root2.SetArgs([]string{"load", csvPath, "--output=json"})
	require.NoError(t, root2.Execute())

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &parsed))
	assert.InDelta(t, 10, parsed["size_logical"].(float64), 0.001)
}
