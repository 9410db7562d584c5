package storage

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Exclusions is a read-only set of filenames that must never be downloaded
type Exclusions struct {
	names map[string]struct{}
}

// NewExclusions builds a set from names
func NewExclusions(names ...string) Exclusions {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return Exclusions{names: set}
}

// LoadExclusions reads one filename per line. An empty path yields an empty set.
func LoadExclusions(path string) (Exclusions, error) {
	if path == "" {
		return NewExclusions(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Exclusions{}, fmt.Errorf("failed to open exclusion file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		names = append(names, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return Exclusions{}, fmt.Errorf("failed to read exclusion file: %w", err)
	}
	return NewExclusions(names...), nil
}

// Contains reports whether name is excluded
func (e Exclusions) Contains(name string) bool {
	_, ok := e.names[name]
	return ok
}

// Len returns the number of excluded names
func (e Exclusions) Len() int {
	return len(e.names)
}
