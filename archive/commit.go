package archive

import (
	"io"

	"github.com/google/renameio"
	"github.com/orcaman/writerseeker"
	"github.com/tesshu/arhfs/internal/arh"
	"github.com/tesshu/arhfs/internal/arherr"
	"github.com/tesshu/arhfs/internal/arhx"
)

// Flush commits the archive back to the path it was opened from. An archive
// made by Create has no such path, and Flush returns Unsupported for it.
func (a *Archive) Flush() error {
	if a.sourcePath == "" {
		return arherr.New(arherr.Unsupported, "archive.Flush", nil)
	}
	return a.Commit(a.sourcePath)
}

// Commit re-encodes the header, string table, path trie, metadata table,
// and extended section, then atomically replaces outPath with a temp file
// (renameio) so a crash mid-write never leaves a torn ARH on disk. Writers
// are serialized with an advisory flock on outPath for the duration of the
// encode-and-rename.
func (a *Archive) Commit(outPath string) error {
	if err := a.checkPoisoned("archive.Commit"); err != nil {
		return err
	}
	return flockARH(outPath, func() error {
		buf, err := a.encode()
		if err != nil {
			return a.poison("archive.Commit", err)
		}
		t, err := renameio.TempFile("", outPath)
		if err != nil {
			return arherr.Wrap(arherr.IO, "archive.Commit", err)
		}
		defer t.Cleanup()
		if _, err := t.Write(buf); err != nil {
			return arherr.Wrap(arherr.IO, "archive.Commit", err)
		}
		if err := t.CloseAtomicallyReplace(); err != nil {
			return arherr.Wrap(arherr.IO, "archive.Commit", err)
		}
		a.dirty = false
		return nil
	})
}

// encode builds the full on-disk ARH image: header placeholder, the two
// XOR-obfuscated regions (string table and path dictionary), the clear-text metadata table, then the extended
// section, followed by seeking back to overwrite the header with the
// offsets and sizes that were only known once every region was laid out.
func (a *Archive) encode() ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}

	var zero [48]byte
	if _, err := ws.Write(zero[:]); err != nil {
		return nil, err
	}

	key := a.header.Key
	strBytes := arh.XOR(a.str.Bytes(), key)
	strOff := uint32(48)
	if _, err := ws.Write(strBytes); err != nil {
		return nil, err
	}

	dictBytes := arh.XOR(a.trie.Encode(), key)
	dictOff := strOff + uint32(len(strBytes))
	if _, err := ws.Write(dictBytes); err != nil {
		return nil, err
	}

	metaBytes := a.meta.Encode()
	metaOff := dictOff + uint32(len(dictBytes))
	if _, err := ws.Write(metaBytes); err != nil {
		return nil, err
	}

	extOff := metaOff + uint32(len(metaBytes))
	extBytes, err := encodeExtended(&arhx.Section{Allocator: a.alloc, Recycle: a.recycle})
	if err != nil {
		return nil, err
	}
	if _, err := ws.Write(extBytes); err != nil {
		return nil, err
	}

	h := *a.header
	h.StringTableOffset = strOff
	h.StringTableSize = uint32(len(strBytes))
	h.DictOffset = dictOff
	h.DictSize = uint32(len(dictBytes))
	h.DictEntryCount = a.trie.EntryCount()
	h.MetaTableOffset = metaOff
	h.FileCount = uint32(a.meta.Len())
	h.SetExtended(extOff)

	if _, err := ws.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := ws.Write(h.Marshal()); err != nil {
		return nil, err
	}

	b, err := io.ReadAll(ws.BytesReader())
	if err != nil {
		return nil, err
	}
	return b, nil
}
