package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostDirectory(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	require.NoError(t, err)

	dir, err := m.PostDirectory(`Artist: "Best"?`, 123)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Artist   Best", "123"), dir)
	assert.DirExists(t, dir)

	gallery, err := m.GalleryDirectory(dir, "Set 1/2...")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Set 1 2"), gallery)
	assert.DirExists(t, gallery)
}

func TestSaveMetadata(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	raw := []byte(`{"title":"夏<休み>","id":12345678901234,"b":{"z":1,"a":[true,null]}}`)
	require.NoError(t, m.SaveMetadata(dir, raw))

	data, err := os.ReadFile(filepath.Join(dir, MetadataFilename))
	require.NoError(t, err)

	expected := `{
    "b": {
        "a": [
            true,
            null
        ],
        "z": 1
    },
    "id": 12345678901234,
    "title": "夏<休み>"
}`
	assert.Equal(t, expected, string(data))
	assert.NoFileExists(t, filepath.Join(dir, MetadataFilename+".tmp"))
}

func TestSaveMetadataInvalid(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	assert.Error(t, m.SaveMetadata(dir, []byte("{")))
}

func TestMarkIncomplete(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	marker := filepath.Join(dir, IncompleteFilename)

	require.NoError(t, m.MarkIncomplete(dir, true))
	assert.FileExists(t, marker)
	require.NoError(t, m.MarkIncomplete(dir, true))

	require.NoError(t, m.MarkIncomplete(dir, false))
	assert.NoFileExists(t, marker)
	require.NoError(t, m.MarkIncomplete(dir, false))
}

func TestAppendCrawljob(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	require.NoError(t, err)
	postDir := filepath.Join(root, "Artist", "1")

	require.NoError(t, m.AppendCrawljob([]string{"https://mega.nz/a"}, postDir))
	require.NoError(t, m.AppendCrawljob([]string{"https://mega.nz/b"}, postDir))
	require.NoError(t, m.AppendCrawljob(nil, postDir))

	data, err := os.ReadFile(filepath.Join(root, CrawljobFilename))
	require.NoError(t, err)

	records := strings.Split(strings.TrimSuffix(string(data), "\n\n"), "\n\n")
	require.Len(t, records, 2)
	assert.Equal(t, strings.Join([]string{
		"packageName=Fantia",
		"text=https://mega.nz/a",
		"downloadFolder=" + postDir,
		"enabled=true",
		"autoStart=true",
		"forcedStart=true",
		"autoConfirm=true",
		"addOfflineLink=true",
		"extractAfterDownload=false",
	}, "\n"), records[0])
	assert.Contains(t, records[1], "text=https://mega.nz/b")
}

func TestRemoveIfEmpty(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	require.NoError(t, err)

	empty := filepath.Join(root, "empty")
	require.NoError(t, os.Mkdir(empty, 0755))
	removed, err := m.RemoveIfEmpty(empty)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoDirExists(t, empty)

	full := filepath.Join(root, "full")
	require.NoError(t, os.Mkdir(full, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(full, "0.jpg"), []byte("x"), 0644))
	removed, err = m.RemoveIfEmpty(full)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = m.RemoveIfEmpty(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestLoadExclusions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.txt")
	require.NoError(t, os.WriteFile(path, []byte("a.jpg\r\nb c.png\n\n"), 0644))

	ex, err := LoadExclusions(path)
	require.NoError(t, err)
	assert.Equal(t, 2, ex.Len())
	assert.True(t, ex.Contains("a.jpg"))
	assert.True(t, ex.Contains("b c.png"))
	assert.False(t, ex.Contains(""))

	empty, err := LoadExclusions("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	_, err = LoadExclusions(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
