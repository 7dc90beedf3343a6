// Package browse provides the read-only directory listing behind the
// terminal UI's file picker.
package browse

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperr "termdeck/internal/errors"
)

// Item is one entry in a directory listing.
type Item struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" | "directory"
	Size int64  `json:"size,omitempty"`
}

// Listing is the result of browsing one directory.
type Listing struct {
	Path  string `json:"path"`
	Items []Item `json:"items"`
}

// List returns the entries of a single directory, directories first, both
// groups sorted case-insensitively. Hidden entries are skipped.
func List(path string) (*Listing, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperr.NotFound("directory", path)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, apperr.NotFound("directory", abs)
	}

	var dirs, files []Item
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if entry.IsDir() {
			dirs = append(dirs, Item{Name: name, Type: "directory"})
			continue
		}

		item := Item{Name: name, Type: "file"}
		if info, err := entry.Info(); err == nil {
			item.Size = info.Size()
		}
		files = append(files, item)
	}

	byName := func(items []Item) func(i, j int) bool {
		return func(i, j int) bool {
			return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
		}
	}
	sort.Slice(dirs, byName(dirs))
	sort.Slice(files, byName(files))

	return &Listing{
		Path:  abs,
		Items: append(dirs, files...),
	}, nil
}
