package archive

import (
	"sort"
	"strings"
)

// Entry is one immediate child of a directory, returned by List (C9).
type Entry struct {
	Name  string
	IsDir bool
	ID    uint32 // meaningful only when !IsDir
}

// List enumerates the immediate children of dir. The archive format has no
// directory entries of its own (§4.9): directories are synthesized here from
// the common slash-separated prefixes of the full file paths stored in the
// trie.
func (a *Archive) List(dir string) ([]Entry, error) {
	prefix := normalizeDir(dir)
	seen := make(map[string]Entry)
	err := a.trie.Walk(a.str, func(path string, id uint32) bool {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" {
			return true
		}
		if idx := strings.IndexByte(rest, '/'); idx != -1 {
			name := rest[:idx]
			if e, exists := seen[name]; !exists || !e.IsDir {
				seen[name] = Entry{Name: name, IsDir: true}
			}
			return true
		}
		seen[rest] = Entry{Name: rest, ID: id}
		return true
	})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func normalizeDir(dir string) string {
	if dir == "" || dir == "/" {
		return "/"
	}
	if !strings.HasSuffix(dir, "/") {
		return dir + "/"
	}
	return dir
}
