package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"fantiadl/pkg/pathutil"
)

const (
	MetadataFilename   = "metadata.json"
	IncompleteFilename = ".incomplete"
	CrawljobFilename   = "external_links.crawljob"
)

// Manager owns the on-disk layout below the output directory:
// <output>/<creator>/<post id>/...
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// CreatorDirectory creates and returns the directory of one creator
func (m *Manager) CreatorDirectory(creator string) (string, error) {
	dir := filepath.Join(m.outputDir, pathutil.SanitizeForPath(creator))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create creator directory: %w", err)
	}
	return dir, nil
}

// PostDirectory creates and returns the directory of one post
func (m *Manager) PostDirectory(creator string, postID int64) (string, error) {
	dir := filepath.Join(m.outputDir,
		pathutil.SanitizeForPath(creator),
		pathutil.SanitizeForPath(strconv.FormatInt(postID, 10)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create post directory: %w", err)
	}
	return dir, nil
}

// GalleryDirectory creates and returns a named subdirectory of a post
func (m *Manager) GalleryDirectory(postDir, title string) (string, error) {
	dir := filepath.Join(postDir, pathutil.SanitizeForPath(title))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create gallery directory: %w", err)
	}
	return dir, nil
}

// SaveMetadata writes raw JSON to <dir>/metadata.json with sorted keys,
// four space indentation and unescaped non-ASCII text.
func (m *Manager) SaveMetadata(dir string, raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	return writeFileAtomic(filepath.Join(dir, MetadataFilename), bytes.TrimRight(buf.Bytes(), "\n"))
}

// MarkIncomplete creates or removes the .incomplete marker of a post directory
func (m *Manager) MarkIncomplete(dir string, incomplete bool) error {
	marker := filepath.Join(dir, IncompleteFilename)
	if incomplete {
		if _, err := os.Stat(marker); err == nil {
			return nil
		}
		f, err := os.OpenFile(marker, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to create incomplete marker: %w", err)
		}
		return f.Close()
	}

	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove incomplete marker: %w", err)
	}
	return nil
}

// AppendCrawljob appends one download job per link to the batch file in the
// output directory. Each job points at the absolute post directory.
func (m *Manager) AppendCrawljob(links []string, postDir string) error {
	if len(links) == 0 {
		return nil
	}
	folder, err := filepath.Abs(postDir)
	if err != nil {
		return fmt.Errorf("failed to resolve post directory: %w", err)
	}

	var buf bytes.Buffer
	for _, link := range links {
		fields := [][2]string{
			{"packageName", "Fantia"},
			{"text", link},
			{"downloadFolder", folder},
			{"enabled", "true"},
			{"autoStart", "true"},
			{"forcedStart", "true"},
			{"autoConfirm", "true"},
			{"addOfflineLink", "true"},
			{"extractAfterDownload", "false"},
		}
		for _, kv := range fields {
			fmt.Fprintf(&buf, "%s=%s\n", kv[0], kv[1])
		}
		buf.WriteString("\n")
	}

	f, err := os.OpenFile(filepath.Join(m.outputDir, CrawljobFilename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open crawljob file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write crawljob file: %w", err)
	}
	return f.Close()
}

// RemoveIfEmpty deletes dir when it has no entries and reports whether it did
func (m *Manager) RemoveIfEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read directory: %w", err)
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(dir); err != nil {
		return false, fmt.Errorf("failed to remove empty directory: %w", err)
	}
	return true, nil
}

// writeFileAtomic writes through a temporary file and renames it into place
func writeFileAtomic(filename string, data []byte) error {
	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
