package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, map[string]string{"todo": "#FF8800", "done": "#00ff00"})

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"todo": "#ff8800", "done": "#00ff00"}, got)

	require.NoError(t, s.Save(map[string]string{"#done": "#0000ff", "project": "#123456"}))

	got, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"done":    "#0000ff",
		"project": "#123456",
	}, got, "defaults left out of a save are removed")

	_, err = os.Stat(filepath.Join(dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveDropsInvalidEntries(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "nested"), nil)
	require.NoError(t, s.Save(map[string]string{"ok": "abcdef", "bad": "red", " ": "#000000"}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ok": "#abcdef"}, got)
}

func TestLoadReportsCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o644))

	_, err := s.Load()
	require.Error(t, err)
}

func TestNormalizeTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a/b", NormalizeTag("  #a/b "))
	assert.Equal(t, "", NormalizeTag("#"))
}

func TestSaveKeepsOnlyDifferencesFromDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, map[string]string{"todo": "#ff8800", "done": "#00ff00"})
	require.NoError(t, s.Save(map[string]string{"todo": "#ff8800", "project": "#123456"}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, map[string]string{"project": "#123456"}, doc.TagColors)
	assert.Equal(t, []string{"done"}, doc.RemovedDefaults)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"todo": "#ff8800", "project": "#123456"}, got)

	// A changed default reaches tags that were saved with the old default.
	changed := New(dir, map[string]string{"todo": "#aa0000", "done": "#00ff00"})
	got, err = changed.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"todo": "#aa0000", "project": "#123456"}, got)
}
