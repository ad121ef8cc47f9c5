package tool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "tool_metadata.json"))

	tools, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool_metadata.json")
	store := NewStore(path)

	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	in := []Descriptor{
		{
			Name:        "teleport_iron_ore",
			Type:        "script",
			Source:      `/c game.get_player(1).teleport({x = {x}, y = {y}})`,
			Status:      StatusValid,
			CreatedAt:   created,
			Requirement: "teleport the player to the nearest iron ore patch",
		},
		{
			Name:      "broken_scanner",
			Type:      "script",
			Source:    "/c if true then",
			Status:    StatusInvalid,
			CreatedAt: created.Add(time.Minute),
			Diagnostics: []string{
				"unbalanced blocks: 1 opened, 0 closed with end",
			},
		},
	}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStoreSaveWritesDocumentEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool_metadata.json")
	store := NewStore(path)
	require.NoError(t, store.Save([]Descriptor{{Name: "scan_area", Type: BuiltinType, Status: StatusValid}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "tools")
	assert.Contains(t, doc, "last_updated")
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewStore(path).Load()
	var corrupt *CorruptStoreError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Path)
}

func TestStoreSaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "tool_metadata.json")
	store := NewStore(path)

	require.NoError(t, store.Save(nil))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "tool_metadata.json"))
	require.NoError(t, store.Save([]Descriptor{{Name: "move_player"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tool_metadata.json", entries[0].Name())
}
