package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover lists the regular files directly inside dir whose extension
// matches ext, case-insensitively. Subdirectories are not entered. Paths are
// returned joined with dir and sorted lexicographically so runs process files
// in a stable order.
func Discover(dir, ext string) ([]string, error) {
	ext = normalizeExtension(ext)
	if ext == "" {
		return nil, fmt.Errorf("discover: extension required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		if !entry.Type().IsRegular() {
			// Follow symlinks but ignore sockets, pipes and links to directories.
			info, err := os.Stat(filepath.Join(dir, name))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ToLower(ext)
}
