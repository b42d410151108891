package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteInput creates a placeholder audiobook named name inside dir and
// returns its path. The fake tools never read the content.
func WriteInput(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("ftypM4B "), 0o644); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	return path
}

// ChaptersJSON renders an ffprobe -show_chapters payload. Each chapter is
// {start, end, title}; an empty title omits the tags object.
func ChaptersJSON(chapters ...[3]string) string {
	out := `{"chapters":[`
	for i, ch := range chapters {
		if i > 0 {
			out += ","
		}
		out += `{"id":` + strconv.Itoa(i) + `,"time_base":"1/1000","start_time":"` + ch[0] + `","end_time":"` + ch[1] + `"`
		if ch[2] != "" {
			out += `,"tags":{"title":"` + ch[2] + `"}`
		}
		out += "}"
	}
	return out + "]}"
}

// ListDir returns the sorted entry names of dir.
func ListDir(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
