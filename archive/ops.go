package archive

import (
	"github.com/tesshu/arhfs/internal/arh"
	"github.com/tesshu/arhfs/internal/arherr"
)

// Lookup resolves path to its file id (C3).
func (a *Archive) Lookup(path string) (uint32, error) {
	return a.trie.Lookup(path, a.str)
}

// Stat returns a read-only view of path's metadata record.
func (a *Archive) Stat(path string) (FileInfo, error) {
	id, err := a.trie.Lookup(path, a.str)
	if err != nil {
		return FileInfo{}, err
	}
	rec, ok := a.meta.Get(id)
	if !ok {
		return FileInfo{}, arherr.New(arherr.NotFound, "archive.Stat", nil)
	}
	return FileInfo{
		Path:             path,
		ID:               rec.ID,
		DataOffset:       rec.DataOffset,
		CompressedSize:   rec.CompressedSize,
		UncompressedSize: rec.UncompressedSize,
		Compressed:       rec.Compressed(),
	}, nil
}

// Read returns the decompressed bytes of file id, per §4.7.
func (a *Archive) Read(id uint32) ([]byte, error) {
	if err := a.checkPoisoned("archive.Read"); err != nil {
		return nil, err
	}
	rec, ok := a.meta.Get(id)
	if !ok {
		return nil, arherr.New(arherr.NotFound, "archive.Read", nil)
	}
	if a.ardAt == nil {
		return nil, arherr.New(arherr.IO, "archive.Read", nil)
	}
	raw := make([]byte, rec.CompressedSize)
	if len(raw) > 0 {
		n, err := a.ardAt.ReadAt(raw, int64(rec.DataOffset))
		if err != nil || n != len(raw) {
			return nil, arherr.New(arherr.IO, "archive.Read", err)
		}
	}
	if !rec.Compressed() {
		return raw, nil
	}
	out := make([]byte, rec.UncompressedSize)
	if err := a.codec.Decompress(out, raw); err != nil {
		return nil, arherr.New(arherr.Unsupported, "archive.Read", err)
	}
	return out, nil
}

// WriteOptions configures Write.
type WriteOptions struct {
	// Compress asks Write to compress data with the archive's codec before
	// storing it. If false, data is stored verbatim and CompressedSize
	// equals UncompressedSize.
	Compress bool
}

// Write stores data at path, returning its file id. If path already exists
// this is an in-place update: the old block range is freed and a fresh one
// allocated, per §4.7.
func (a *Archive) Write(path string, data []byte, opts WriteOptions) (uint32, error) {
	if err := a.checkPoisoned("archive.Write"); err != nil {
		return 0, err
	}
	if a.ardRW == nil {
		return 0, arherr.New(arherr.Unsupported, "archive.Write", nil)
	}

	body := data
	compressedSize := uint32(len(data))
	if opts.Compress {
		comp, err := a.codec.Compress(data)
		if err != nil {
			return 0, arherr.New(arherr.Unsupported, "archive.Write", err)
		}
		body = comp
		compressedSize = uint32(len(comp))
	}
	uncompressedSize := uint32(len(data))

	existingID, lookupErr := a.trie.Lookup(path, a.str)
	if lookupErr == nil {
		return a.writeExisting(existingID, body, compressedSize, uncompressedSize)
	}
	if !arherr.Is(lookupErr, arherr.NotFound) {
		return 0, lookupErr
	}
	return a.writeNew(path, body, compressedSize, uncompressedSize)
}

func (a *Archive) writeExisting(id uint32, body []byte, compressedSize, uncompressedSize uint32) (uint32, error) {
	rec, ok := a.meta.Get(id)
	if !ok {
		return 0, a.poison("archive.Write", nil)
	}
	oldBlocks := a.alloc.BlocksForBytes(uint64(rec.CompressedSize))
	if oldBlocks == 0 {
		oldBlocks = 1
	}
	if err := a.alloc.Free(a.alloc.BlockIndex(rec.DataOffset), oldBlocks); err != nil {
		return 0, a.poison("archive.Write", err)
	}
	block, _, err := a.alloc.Allocate(uint64(len(body)))
	if err != nil {
		return 0, err
	}
	off := block * uint64(a.alloc.BlockSize())
	if err := a.writeData(off, body); err != nil {
		return 0, err
	}
	rec.DataOffset = off
	rec.CompressedSize = compressedSize
	rec.UncompressedSize = uncompressedSize
	a.meta.Set(rec)
	a.dirty = true
	return id, nil
}

func (a *Archive) writeNew(path string, body []byte, compressedSize, uncompressedSize uint32) (uint32, error) {
	var id uint32
	if a.recycle.Len() > 0 {
		id = a.recycle.Take()
	} else {
		id = uint32(a.meta.Len())
	}

	block, _, err := a.alloc.Allocate(uint64(len(body)))
	if err != nil {
		a.recycle.Add(id) // undo the id reservation; no trie/meta state touched yet
		return 0, err
	}
	off := block * uint64(a.alloc.BlockSize())
	if err := a.writeData(off, body); err != nil {
		a.recycle.Add(id)
		return 0, err
	}

	if err := a.trie.Insert(path, id, a.str); err != nil {
		a.recycle.Add(id)
		return 0, err
	}

	a.meta.Set(arh.MetaRecord{
		DataOffset:       off,
		CompressedSize:   compressedSize,
		UncompressedSize: uncompressedSize,
		ID:               id,
	})
	a.dirty = true
	return id, nil
}

func (a *Archive) writeData(off uint64, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	n, err := a.ardRW.WriteAt(body, int64(off))
	if err != nil || n != len(body) {
		return arherr.New(arherr.IO, "archive.Write", err)
	}
	return nil
}

// Unlink removes path, freeing its data blocks and returning its id to the
// recycle bin (§4.7).
func (a *Archive) Unlink(path string) error {
	if err := a.checkPoisoned("archive.Unlink"); err != nil {
		return err
	}
	id, err := a.trie.Lookup(path, a.str)
	if err != nil {
		return err
	}
	rec, ok := a.meta.Get(id)
	if !ok {
		return a.poison("archive.Unlink", nil)
	}
	n := a.alloc.BlocksForBytes(uint64(rec.CompressedSize))
	if n == 0 {
		n = 1
	}
	if err := a.alloc.Free(a.alloc.BlockIndex(rec.DataOffset), n); err != nil {
		return a.poison("archive.Unlink", err)
	}
	if err := a.trie.Remove(path, a.str); err != nil {
		return a.poison("archive.Unlink", err)
	}
	a.meta.Clear(id)
	a.recycle.Add(id)
	a.dirty = true
	return nil
}

// RenameOptions configures Rename.
type RenameOptions struct {
	// Replace allows Rename to overwrite an existing newPath instead of
	// failing with AlreadyExists (§4.7: "implementation choice").
	Replace bool
}

// Rename moves oldPath to newPath, reusing the same file id: no data is
// copied (§4.7).
func (a *Archive) Rename(oldPath, newPath string, opts RenameOptions) error {
	if err := a.checkPoisoned("archive.Rename"); err != nil {
		return err
	}
	id, err := a.trie.Lookup(oldPath, a.str)
	if err != nil {
		return err
	}
	if _, err := a.trie.Lookup(newPath, a.str); err == nil {
		if !opts.Replace {
			return arherr.New(arherr.AlreadyExists, "archive.Rename", nil)
		}
		if err := a.Unlink(newPath); err != nil {
			return err
		}
	} else if !arherr.Is(err, arherr.NotFound) {
		return err
	}
	if err := a.trie.Insert(newPath, id, a.str); err != nil {
		return a.poison("archive.Rename", err)
	}
	if err := a.trie.Remove(oldPath, a.str); err != nil {
		return a.poison("archive.Rename", err)
	}
	a.dirty = true
	return nil
}
