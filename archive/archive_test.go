package archive

import (
	"path/filepath"
	"testing"

	"github.com/tesshu/arhfs/internal/arherr"
)

// newTestArchive returns a freshly Created archive with a writable ARD
// attached under a temp directory, ready for Write/Unlink/Rename/Commit.
func newTestArchive(t *testing.T) (*Archive, string) {
	t.Helper()
	dir := t.TempDir()
	a := Create(CreateOptions{Key: 0xabcd1234, BlockSizeLog2: 9})
	if err := a.AttachARD(filepath.Join(dir, "test.ard")); err != nil {
		t.Fatal(err)
	}
	return a, dir
}

func TestWriteReadStatRoundTrip(t *testing.T) {
	a, _ := newTestArchive(t)

	id, err := a.Write("/bin/ls", []byte("hello world"), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}

	info, err := a.Stat("/bin/ls")
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != id || info.Compressed {
		t.Errorf("Stat = %+v, want ID=%d, Compressed=false", info, id)
	}

	got, err := a.Read(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Errorf("Read = %q, want %q", got, "hello world")
	}

	gotID, err := a.Lookup("/bin/ls")
	if err != nil || gotID != id {
		t.Errorf("Lookup = %d, %v, want %d, nil", gotID, err, id)
	}
}

func TestWriteCompressed(t *testing.T) {
	a, _ := newTestArchive(t)

	payload := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	id, err := a.Write("/data/blob", payload, WriteOptions{Compress: true})
	if err != nil {
		t.Fatal(err)
	}

	info, err := a.Stat("/data/blob")
	if err != nil {
		t.Fatal(err)
	}
	if !info.Compressed {
		t.Error("Stat.Compressed = false, want true for a repetitive payload")
	}

	got, err := a.Read(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("Read after compressed write = %q, want %q", got, payload)
	}
}

func TestWriteExistingPathOverwrites(t *testing.T) {
	a, _ := newTestArchive(t)

	id1, err := a.Write("/f", []byte("first"), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := a.Write("/f", []byte("second value"), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("overwrite minted a new id %d, want reuse of %d", id2, id1)
	}
	got, err := a.Read(id2)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second value" {
		t.Errorf("Read after overwrite = %q, want %q", got, "second value")
	}
}

func TestWriteWithoutARDIsUnsupported(t *testing.T) {
	a := Create(CreateOptions{Key: 1, BlockSizeLog2: 9})
	_, err := a.Write("/f", []byte("x"), WriteOptions{})
	if !arherr.Is(err, arherr.Unsupported) {
		t.Errorf("Write without an attached ARD = %v, want Unsupported", err)
	}
}

func TestUnlinkRecyclesID(t *testing.T) {
	a, _ := newTestArchive(t)

	id, err := a.Write("/f", []byte("x"), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Unlink("/f"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Lookup("/f"); !arherr.Is(err, arherr.NotFound) {
		t.Errorf("Lookup after Unlink = %v, want NotFound", err)
	}

	newID, err := a.Write("/g", []byte("y"), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if newID != id {
		t.Errorf("new Write minted id %d, want reuse of recycled id %d", newID, id)
	}
}

func TestUnlinkMissingPath(t *testing.T) {
	a, _ := newTestArchive(t)
	if err := a.Unlink("/nope"); !arherr.Is(err, arherr.NotFound) {
		t.Errorf("Unlink on missing path = %v, want NotFound", err)
	}
}

func TestRenameMovesWithoutCopyingData(t *testing.T) {
	a, _ := newTestArchive(t)
	id, err := a.Write("/old", []byte("payload"), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Rename("/old", "/new", RenameOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Lookup("/old"); !arherr.Is(err, arherr.NotFound) {
		t.Error("old path still resolves after Rename")
	}
	gotID, err := a.Lookup("/new")
	if err != nil || gotID != id {
		t.Fatalf("Lookup(/new) = %d, %v, want %d, nil", gotID, err, id)
	}
	got, err := a.Read(gotID)
	if err != nil || string(got) != "payload" {
		t.Errorf("Read(/new) = %q, %v, want %q, nil", got, err, "payload")
	}
}

func TestRenameOntoExistingWithoutReplaceFails(t *testing.T) {
	a, _ := newTestArchive(t)
	if _, err := a.Write("/a", []byte("1"), WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Write("/b", []byte("2"), WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := a.Rename("/a", "/b", RenameOptions{}); !arherr.Is(err, arherr.AlreadyExists) {
		t.Errorf("Rename onto existing path without Replace = %v, want AlreadyExists", err)
	}
}

func TestRenameOntoExistingWithReplace(t *testing.T) {
	a, _ := newTestArchive(t)
	idA, err := a.Write("/a", []byte("1"), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Write("/b", []byte("2"), WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := a.Rename("/a", "/b", RenameOptions{Replace: true}); err != nil {
		t.Fatal(err)
	}
	gotID, err := a.Lookup("/b")
	if err != nil || gotID != idA {
		t.Fatalf("Lookup(/b) after replace = %d, %v, want %d, nil", gotID, err, idA)
	}
}

func TestListSynthesizesDirectories(t *testing.T) {
	a, _ := newTestArchive(t)
	for _, p := range []string{"/bin/ls", "/bin/cat", "/etc/passwd", "/top"} {
		if _, err := a.Write(p, []byte("x"), WriteOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	root, err := a.List("/")
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, e := range root {
		names[e.Name] = e.IsDir
	}
	if !names["bin"] || !names["etc"] {
		t.Errorf("List(/) = %+v, want dir entries bin and etc", root)
	}
	if isDir, ok := names["top"]; !ok || isDir {
		t.Errorf("List(/) entry for top = dir %v, ok %v, want file entry", isDir, ok)
	}

	bin, err := a.List("/bin")
	if err != nil {
		t.Fatal(err)
	}
	binNames := map[string]bool{}
	for _, e := range bin {
		binNames[e.Name] = true
	}
	if !binNames["ls"] || !binNames["cat"] {
		t.Errorf("List(/bin) = %+v, want ls and cat", bin)
	}
}

func TestFsckCleanArchiveHasNoFindings(t *testing.T) {
	a, _ := newTestArchive(t)
	for _, p := range []string{"/a", "/b/c"} {
		if _, err := a.Write(p, []byte("x"), WriteOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	findings, err := a.Fsck()
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("Fsck on a clean archive reported %+v, want none", findings)
	}
}

func TestFsckDetectsLiveIDInRecycleBin(t *testing.T) {
	a, _ := newTestArchive(t)
	id, err := a.Write("/a", []byte("x"), WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	// Simulate corruption: the id is both live (still in the trie/meta) and
	// already marked recycled, which Fsck should flag.
	a.recycle.Add(id)

	findings, err := a.Fsck()
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) == 0 {
		t.Error("Fsck did not detect a live id that is also in the recycle bin")
	}
}

func TestCommitAndReopenRoundTrip(t *testing.T) {
	a, dir := newTestArchive(t)
	if _, err := a.Write("/bin/ls", []byte("hi"), WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Write("/etc/passwd", []byte("root:x:0:0"), WriteOptions{Compress: true}); err != nil {
		t.Fatal(err)
	}

	arhPath := filepath.Join(dir, "test.arh")
	if err := a.Commit(arhPath); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(arhPath, filepath.Join(dir, "test.ard"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	id, err := reopened.Lookup("/bin/ls")
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Read(id)
	if err != nil || string(got) != "hi" {
		t.Errorf("Read(/bin/ls) after reopen = %q, %v, want %q, nil", got, err, "hi")
	}

	id2, err := reopened.Lookup("/etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	got2, err := reopened.Read(id2)
	if err != nil || string(got2) != "root:x:0:0" {
		t.Errorf("Read(/etc/passwd) after reopen = %q, %v, want %q, nil", got2, err, "root:x:0:0")
	}

	findings, err := reopened.Fsck()
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("Fsck after reopen reported %+v, want none", findings)
	}
}

func TestFlushWithNoSourcePathIsUnsupported(t *testing.T) {
	a := Create(CreateOptions{Key: 1, BlockSizeLog2: 9})
	if err := a.Flush(); !arherr.Is(err, arherr.Unsupported) {
		t.Errorf("Flush on an archive with no source path = %v, want Unsupported", err)
	}
}

func TestOpenWithoutARDMakesWriteUnsupported(t *testing.T) {
	a, dir := newTestArchive(t)
	if _, err := a.Write("/f", []byte("x"), WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	arhPath := filepath.Join(dir, "test.arh")
	if err := a.Commit(arhPath); err != nil {
		t.Fatal(err)
	}
	a.Close()

	reopened, err := Open(arhPath, "", Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if _, err := reopened.Read(0); !arherr.Is(err, arherr.IO) {
		t.Errorf("Read on an archive with no ARD attached = %v, want IO", err)
	}
	if _, err := reopened.Write("/g", []byte("y"), WriteOptions{}); !arherr.Is(err, arherr.Unsupported) {
		t.Errorf("Write on an archive with no ARD attached = %v, want Unsupported", err)
	}
}

func TestPoisonedArchiveRejectsFurtherMutations(t *testing.T) {
	a, _ := newTestArchive(t)
	if _, err := a.Write("/f", []byte("x"), WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	a.poison("archive.test", nil)

	if err := a.Unlink("/f"); !arherr.Is(err, arherr.Invariant) {
		t.Errorf("Unlink on a poisoned archive = %v, want Invariant", err)
	}
	if _, err := a.Write("/g", []byte("y"), WriteOptions{}); !arherr.Is(err, arherr.Invariant) {
		t.Errorf("Write on a poisoned archive = %v, want Invariant", err)
	}
	if err := a.Rename("/f", "/h", RenameOptions{}); !arherr.Is(err, arherr.Invariant) {
		t.Errorf("Rename on a poisoned archive = %v, want Invariant", err)
	}
	if err := a.Commit("/dev/null/impossible"); !arherr.Is(err, arherr.Invariant) {
		t.Errorf("Commit on a poisoned archive = %v, want Invariant", err)
	}
}
