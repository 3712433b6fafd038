package arh

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tesshu/arhfs/internal/arherr"
)

func TestTrieInsertLookup(t *testing.T) {
	paths := []string{
		"/bin/ls",
		"/bin/cat",
		"/bin/cp",
		"/etc/passwd",
		"/etc/group",
		"/usr/share/doc/README",
		"/usr/share/doc/LICENSE",
		"/a",
		"/ab",
		"/abc",
	}

	str := NewStringTable(nil)
	trie := NewTrie()
	for i, p := range paths {
		if err := trie.Insert(p, uint32(i), str); err != nil {
			t.Fatalf("Insert(%q): %v", p, err)
		}
	}

	for i, p := range paths {
		id, err := trie.Lookup(p, str)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", p, err)
		}
		if id != uint32(i) {
			t.Errorf("Lookup(%q) = %d, want %d", p, id, i)
		}
	}

	for _, missing := range []string{"/bin", "/bin/l", "/bin/lss", "/nope", "/ab/c"} {
		if _, err := trie.Lookup(missing, str); err == nil {
			t.Errorf("Lookup(%q) succeeded, want NotFound", missing)
		}
	}
}

// TestTrieFirstInsertOffsetZero covers the first file inserted into an
// empty archive, whose string-table fragment lands at offset 0 (the one
// offset a naive "Next = -offset" terminal encoding cannot represent). A
// second insert must not see the first terminal as an unused slot.
func TestTrieFirstInsertOffsetZero(t *testing.T) {
	str := NewStringTable(nil)
	trie := NewTrie()
	if err := trie.Insert("/a/b.txt", 1, str); err != nil {
		t.Fatal(err)
	}
	if err := trie.Insert("/a/c.txt", 2, str); err != nil {
		t.Fatal(err)
	}

	id, err := trie.Lookup("/a/b.txt", str)
	if err != nil || id != 1 {
		t.Errorf("Lookup(/a/b.txt) = %d, %v, want 1, nil", id, err)
	}
	id, err = trie.Lookup("/a/c.txt", str)
	if err != nil || id != 2 {
		t.Errorf("Lookup(/a/c.txt) = %d, %v, want 2, nil", id, err)
	}
}

// TestTrieSplitMaterializesSharedPrefixChain covers inserting a second file
// whose path shares a multi-byte prefix with an already-inserted terminal's
// remaining fragment. Every trie step must still consume exactly one path
// byte, so the shared prefix has to be materialized as a chain of internal
// nodes rather than left compressed in the terminal's string-table entry.
func TestTrieSplitMaterializesSharedPrefixChain(t *testing.T) {
	str := NewStringTable(nil)
	trie := NewTrie()
	if err := trie.Insert("/a/b.txt", 1, str); err != nil {
		t.Fatal(err)
	}
	if err := trie.Insert("/a/c.txt", 2, str); err != nil {
		t.Fatal(err)
	}
	// A third file shares only the leading "/a/" with the first two; it
	// must correctly walk the now-materialized chain and graft onto the
	// branch node rather than disturb the existing two terminals.
	if err := trie.Insert("/a/dir/e.txt", 3, str); err != nil {
		t.Fatal(err)
	}

	for path, want := range map[string]uint32{
		"/a/b.txt":     1,
		"/a/c.txt":     2,
		"/a/dir/e.txt": 3,
	} {
		id, err := trie.Lookup(path, str)
		if err != nil || id != want {
			t.Errorf("Lookup(%q) = %d, %v, want %d, nil", path, id, err, want)
		}
	}
	for _, missing := range []string{"/a/b", "/a/", "/a/di", "/a/dir"} {
		if _, err := trie.Lookup(missing, str); !arherr.Is(err, arherr.NotFound) {
			t.Errorf("Lookup(%q) = %v, want NotFound", missing, err)
		}
	}
	if err := trie.CheckBackLinks(); err != nil {
		t.Errorf("CheckBackLinks after shared-prefix splits: %v", err)
	}
}

func TestTrieInsertDuplicate(t *testing.T) {
	str := NewStringTable(nil)
	trie := NewTrie()
	if err := trie.Insert("/x", 1, str); err != nil {
		t.Fatal(err)
	}
	if err := trie.Insert("/x", 2, str); !arherr.Is(err, arherr.AlreadyExists) {
		t.Errorf("second Insert(/x) = %v, want AlreadyExists", err)
	}
}

func TestTrieRemove(t *testing.T) {
	paths := []string{"/a/b/c", "/a/b/d", "/a/e"}
	str := NewStringTable(nil)
	trie := NewTrie()
	for i, p := range paths {
		if err := trie.Insert(p, uint32(i), str); err != nil {
			t.Fatal(err)
		}
	}
	if err := trie.Remove("/a/b/c", str); err != nil {
		t.Fatal(err)
	}
	if _, err := trie.Lookup("/a/b/c", str); err == nil {
		t.Fatal("lookup succeeded after remove")
	}
	if id, err := trie.Lookup("/a/b/d", str); err != nil || id != 1 {
		t.Fatalf("Lookup(/a/b/d) = %d, %v, want 1, nil", id, err)
	}
	if id, err := trie.Lookup("/a/e", str); err != nil || id != 2 {
		t.Fatalf("Lookup(/a/e) = %d, %v, want 2, nil", id, err)
	}
	if err := trie.Remove("/a/b/c", str); err == nil {
		t.Fatal("second Remove(/a/b/c) succeeded, want NotFound")
	}
}

func TestTrieWalk(t *testing.T) {
	paths := []string{"/a", "/b/c", "/b/d"}
	str := NewStringTable(nil)
	trie := NewTrie()
	for i, p := range paths {
		if err := trie.Insert(p, uint32(i), str); err != nil {
			t.Fatal(err)
		}
	}
	var got []string
	if err := trie.Walk(str, func(path string, id uint32) bool {
		got = append(got, path)
		return true
	}); err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	want := append([]string(nil), paths...)
	sort.Strings(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk paths mismatch (-want +got):\n%s", diff)
	}
}

func TestTrieCheckBackLinks(t *testing.T) {
	str := NewStringTable(nil)
	trie := NewTrie()
	for i, p := range []string{"/x", "/y/z", "/y/w", "/q/r/s"} {
		if err := trie.Insert(p, uint32(i), str); err != nil {
			t.Fatal(err)
		}
	}
	if err := trie.CheckBackLinks(); err != nil {
		t.Errorf("CheckBackLinks on a freshly built trie: %v", err)
	}

	// Corrupt a back-link and confirm CheckBackLinks catches it.
	trie.nodes[1].Prev = 99
	if err := trie.CheckBackLinks(); err == nil {
		t.Error("CheckBackLinks did not catch a corrupted Prev")
	}
}

func TestTrieEncodeDecodeRoundTrip(t *testing.T) {
	str := NewStringTable(nil)
	trie := NewTrie()
	for i, p := range []string{"/a/b", "/a/c", "/d"} {
		if err := trie.Insert(p, uint32(i), str); err != nil {
			t.Fatal(err)
		}
	}
	encoded := trie.Encode()
	decoded, err := DecodeTrie(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(trie.nodes, decoded.nodes); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTrieManyInsertsForceRelocation(t *testing.T) {
	// Enough shared-prefix paths that ensureChild is forced to relocate
	// existing children at least once, exercising the collision path.
	str := NewStringTable(nil)
	trie := NewTrie()
	var paths []string
	for c := byte('a'); c <= 'z'; c++ {
		paths = append(paths, "/"+string(c))
		paths = append(paths, "/"+string(c)+string(c))
	}
	for i, p := range paths {
		if err := trie.Insert(p, uint32(i), str); err != nil {
			t.Fatalf("Insert(%q): %v", p, err)
		}
	}
	for i, p := range paths {
		id, err := trie.Lookup(p, str)
		if err != nil || id != uint32(i) {
			t.Errorf("Lookup(%q) = %d, %v, want %d, nil", p, id, err, i)
		}
	}
	if err := trie.CheckBackLinks(); err != nil {
		t.Errorf("CheckBackLinks after many inserts: %v", err)
	}
}
