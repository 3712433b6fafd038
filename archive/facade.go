// Package archive implements the archive facade (C7) and directory
// enumeration (C9): the object model and operation sequence that keeps the
// path trie, string table, metadata table, allocator, and recycle bin
// mutually consistent as files are added, read, removed, and moved.
package archive

import (
	"io"
	"os"

	"github.com/tesshu/arhfs/internal/ard"
	"github.com/tesshu/arhfs/internal/arh"
	"github.com/tesshu/arhfs/internal/arherr"
	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// dataHandle is what Write/Unlink need from the ARD file beyond plain
// reads: the ability to place bytes at an offset and to know the archive
// was opened with a mutable backing store at all. A read-only *mmap.ReaderAt
// satisfies io.ReaderAt but not this interface, which is how Write reports
// Unsupported for archives opened without a writable ARD.
type dataHandle interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
}

// Options configures Open.
type Options struct {
	// MMap memory-maps the ARH and ARD files read-only instead of using
	// buffered os.File I/O. Write on an archive opened this way fails with
	// Unsupported, matching an archive opened without an ARD at all.
	MMap bool
	// Codec overrides the default zlib-family codec used to decompress
	// file bodies whose CompressedSize differs from UncompressedSize.
	Codec Codec
}

// Archive is the in-memory state of an opened ARH, optionally attached to
// an ARD handle for file data access (§3 "Archive state").
type Archive struct {
	header  *arh.Header
	str     *arh.StringTable
	trie    *arh.Trie
	meta    *arh.MetaTable
	alloc   *ard.Allocator
	recycle *ard.Recycle
	hasExt  bool

	ardAt     io.ReaderAt
	ardRW     dataHandle
	ardCloser io.Closer

	arhCloser io.Closer

	codec Codec

	dirty     bool
	poisoned  bool
	poisonErr error

	sourcePath string
}

// CreateOptions configures Create.
type CreateOptions struct {
	// Key is the header's 32-bit encryption key, used to derive the XOR
	// mask for the string table and path dictionary regions.
	Key uint32
	// BlockSizeLog2 is log2 of the ARD allocator's block size in bytes
	// (e.g. 9 for 512-byte blocks).
	BlockSizeLog2 uint16
}

// Create returns a brand-new, empty, in-memory archive. Call AttachARD to
// give it a writable data file before calling Write.
func Create(opts CreateOptions) *Archive {
	return &Archive{
		header:  &arh.Header{Key: opts.Key},
		str:     arh.NewStringTable(nil),
		trie:    arh.NewTrie(),
		meta:    arh.NewMetaTable(),
		alloc:   ard.NewAllocator(opts.BlockSizeLog2),
		recycle: ard.NewRecycle(),
		hasExt:  true,
		codec:   DefaultCodec(),
		dirty:   true,
	}
}

// Open parses arhPath and, if ardPath is non-empty, attaches it as the data
// file. The entire ARH is read into memory per the format's resource model
// (§5): there is no paging of the trie or string table.
func Open(arhPath, ardPath string, opts Options) (*Archive, error) {
	var raw []byte
	var arhCloser io.Closer
	if opts.MMap {
		r, err := mmap.Open(arhPath)
		if err != nil {
			return nil, arherr.Wrap(arherr.IO, "archive.Open", err)
		}
		raw = make([]byte, r.Len())
		if _, err := r.ReadAt(raw, 0); err != nil {
			r.Close()
			return nil, arherr.Wrap(arherr.IO, "archive.Open", err)
		}
		arhCloser = r
	} else {
		f, err := os.Open(arhPath)
		if err != nil {
			return nil, arherr.Wrap(arherr.IO, "archive.Open", err)
		}
		b, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, arherr.Wrap(arherr.IO, "archive.Open", err)
		}
		raw = b
	}

	header, err := arh.ReadHeader(bytesReader(raw))
	if err != nil {
		if arhCloser != nil {
			arhCloser.Close()
		}
		return nil, err
	}

	strRegion, err := slice(raw, header.StringTableOffset, header.StringTableSize)
	if err != nil {
		return nil, err
	}
	dictRegion, err := slice(raw, header.DictOffset, header.DictSize)
	if err != nil {
		return nil, err
	}
	metaRegion, err := slice(raw, header.MetaTableOffset, header.FileCount*arh.MetaRecordSize)
	if err != nil {
		return nil, err
	}

	str := arh.NewStringTable(arh.XOR(strRegion, header.Key))
	trie, err := arh.DecodeTrie(arh.XOR(dictRegion, header.Key))
	if err != nil {
		return nil, err
	}
	meta, err := arh.DecodeMetaTable(metaRegion, header.FileCount)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		header:     header,
		str:        str,
		trie:       trie,
		meta:       meta,
		codec:      opts.Codec,
		sourcePath: arhPath,
		arhCloser:  arhCloser,
	}
	if a.codec == nil {
		a.codec = DefaultCodec()
	}

	if header.HasExtended() {
		ext, err := decodeExtended(raw, header.ExtOffset)
		if err != nil {
			return nil, err
		}
		if ext != nil {
			a.alloc = ext.Allocator
			a.recycle = ext.Recycle
			a.hasExt = true
		}
	}
	if a.alloc == nil {
		a.alloc = rebuildAllocator(meta)
		a.recycle = ard.NewRecycle()
		a.hasExt = false
	}

	if ardPath != "" {
		if err := a.attachARD(ardPath, opts.MMap); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func bytesReader(b []byte) io.Reader { return &sliceReader{b: b} }

type sliceReader struct {
	b   []byte
	off int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.off >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.off:])
	s.off += n
	return n, nil
}

func slice(raw []byte, off, size uint32) ([]byte, error) {
	end := uint64(off) + uint64(size)
	if end > uint64(len(raw)) {
		return nil, arherr.New(arherr.InvalidFormat, "archive.Open",
			xerrors.Errorf("region [%d,%d) out of bounds (file is %d bytes)", off, end, len(raw)))
	}
	return raw[off:end], nil
}

func rebuildAllocator(meta *arh.MetaTable) *ard.Allocator {
	// No extended section: default to 512-byte blocks and reconstruct
	// occupancy by walking every live file's byte range (§4.5
	// "Initialization... rebuild it by walking C4").
	const defaultBlockSizeLog2 = 9
	alloc := ard.NewAllocator(defaultBlockSizeLog2)
	bs := uint64(alloc.BlockSize())
	for i := 0; i < meta.Len(); i++ {
		rec, _ := meta.Get(uint32(i))
		if rec.CompressedSize == 0 && rec.UncompressedSize == 0 && rec.DataOffset == 0 {
			continue // never-written slot
		}
		block := rec.DataOffset / bs
		n := (uint64(rec.CompressedSize) + bs - 1) / bs
		if n == 0 {
			n = 1
		}
		alloc.MarkOccupied(block, n)
	}
	return alloc
}

func decodeExtended(raw []byte, off uint32) (*extSection, error) {
	if uint64(off) >= uint64(len(raw)) {
		return nil, arherr.New(arherr.InvalidFormat, "archive.Open", nil)
	}
	return decodeExtendedFrom(raw[off:])
}

func (a *Archive) attachARD(path string, useMMap bool) error {
	if useMMap {
		r, err := mmap.Open(path)
		if err != nil {
			return arherr.Wrap(arherr.IO, "archive.Open", err)
		}
		a.ardAt = r
		a.ardCloser = r
		return nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return arherr.Wrap(arherr.IO, "archive.Open", err)
	}
	a.ardAt = f
	a.ardRW = f
	a.ardCloser = f
	return nil
}

// AttachARD attaches (creating if necessary) a writable ARD file to an
// archive that was opened or created without one.
func (a *Archive) AttachARD(path string) error {
	return a.attachARD(path, false)
}

func (a *Archive) checkPoisoned(op string) error {
	if a.poisoned {
		return arherr.New(arherr.Invariant, op, a.poisonErr)
	}
	return nil
}

func (a *Archive) poison(op string, err error) error {
	a.poisoned = true
	a.poisonErr = err
	return arherr.New(arherr.Invariant, op, err)
}

// Close releases the ARD and (if memory-mapped) ARH handles. Uncommitted
// changes are discarded, per §3's lifecycle note.
func (a *Archive) Close() error {
	var err error
	if a.ardCloser != nil {
		err = a.ardCloser.Close()
	}
	if a.arhCloser != nil {
		if e := a.arhCloser.Close(); err == nil {
			err = e
		}
	}
	return err
}

// flockARH takes an advisory exclusive, non-blocking lock on path for the
// duration of fn, matching §5's guidance that writers should be serialized
// at a single lock.
func flockARH(path string, fn func() error) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return arherr.Wrap(arherr.IO, "archive.Commit", err)
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return arherr.New(arherr.IO, "archive.Commit", xerrors.Errorf("archive locked by another writer: %w", err))
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return fn()
}
