package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("Name\n"), 0o644))
}

func TestDiscoverInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.CSV.GZ", "c.csv.zst", "d.xlsx", "notes.txt", "e.json"} {
		touch(t, filepath.Join(dir, name))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.csv"), 0o755))

	fm := NewFileManager(dir, "", "")
	files, err := fm.DiscoverInputs()
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f.Path))
		assert.False(t, f.ModTime.IsZero())
	}
	assert.Equal(t, []string{"a.CSV.GZ", "b.csv", "c.csv.zst", "d.xlsx"}, names)
}

func TestDiscoverInputs_MissingDir(t *testing.T) {
	_, err := NewFileManager(filepath.Join(t.TempDir(), "nope"), "", "").DiscoverInputs()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "in"), filepath.Join(root, "out"), filepath.Join(root, "archive"))
	require.NoError(t, fm.EnsureDirectories())

	assert.DirExists(t, fm.OutputDir)
	assert.DirExists(t, fm.InputArchiveDir)
	assert.NoDirExists(t, fm.InputDir)
}

func TestArchiveInputFile(t *testing.T) {
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "in"), "", filepath.Join(root, "archive"))

	first := filepath.Join(fm.InputDir, "orders.csv")
	touch(t, first)
	archived, err := fm.ArchiveInputFile(first)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "orders.csv"), archived)
	assert.NoFileExists(t, first)
	assert.FileExists(t, archived)

	// A second export with the same name does not overwrite the first.
	touch(t, first)
	again, err := fm.ArchiveInputFile(first)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "1_orders.csv"), again)
}

func TestArchiveInputFile_TimestampSubdirs(t *testing.T) {
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "in"), "", filepath.Join(root, "archive"))
	fm.UseTimestampSubdirs = true
	fm.now = func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) }

	src := filepath.Join(fm.InputDir, "orders.csv")
	touch(t, src)
	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "2024", "01", "15", "orders.csv"), archived)
}

func TestOutputBaseName(t *testing.T) {
	started := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

	cases := map[string]string{
		"{run}_{timestamp}": "flow_20240115_143022",
		"audit-{date}":      "audit-20240115",
		"{uuid}":            "run-1",
		"nested/{run}":      "nested_flow",
		"plain":             "plain",
	}
	for format, want := range cases {
		t.Run(format, func(t *testing.T) {
			assert.Equal(t, want, OutputBaseName(format, "run-1", started))
		})
	}

	fm := NewFileManager("", "out", "")
	assert.Equal(t, filepath.Join("out", "flow.json"), fm.OutputPath("flow", ".json"))
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewRunID())
}
