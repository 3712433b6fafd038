// Package arh implements the ARH metadata-file codec: the XOR-obfuscated
// word I/O (C1), the string table (C2), the path trie (C3), and the file
// metadata table (C4) described by the archive format's header layout.
package arh

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/tesshu/arhfs/internal/arherr"
	"golang.org/x/xerrors"
)

// magic is the ARH header's identifying 4 bytes, "arh1".
const magic = 0x31687261 // "arh1" little-endian

// extMagic is the trailing extended-section magic, "arhx", stored verbatim
// (uninterpreted as a number) in the header's ext-magic word when present.
const extMagic = 0x78687261 // "arhx" little-endian

// headerSize is the fixed, little-endian on-disk header size in bytes.
const headerSize = 48

// Header mirrors the 48-byte ARH header verbatim. Field names follow the
// layout table; StringTableSizeMirror is the second header word whose
// semantic purpose is unknown upstream — we only promise to keep it equal
// to StringTableSize.
type Header struct {
	Magic                 uint32
	StringTableSizeMirror uint32
	DictEntryCount        uint32
	StringTableOffset     uint32
	StringTableSize       uint32
	DictOffset            uint32
	DictSize              uint32
	MetaTableOffset       uint32
	FileCount             uint32
	Key                   uint32
	ExtMagic              uint32
	ExtOffset             uint32
}

// HasExtended reports whether the header advertises an "arhx" extended
// section.
func (h *Header) HasExtended() bool { return h.ExtMagic == extMagic }

// ReadHeader parses the fixed 48-byte header from the start of r.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, arherr.Wrap(arherr.IO, "arh.ReadHeader", err)
	}
	le := binary.LittleEndian
	h := &Header{
		Magic:                 le.Uint32(buf[0:]),
		StringTableSizeMirror: le.Uint32(buf[4:]),
		DictEntryCount:        le.Uint32(buf[8:]),
		StringTableOffset:     le.Uint32(buf[12:]),
		StringTableSize:       le.Uint32(buf[16:]),
		DictOffset:            le.Uint32(buf[20:]),
		DictSize:              le.Uint32(buf[24:]),
		MetaTableOffset:       le.Uint32(buf[28:]),
		FileCount:             le.Uint32(buf[32:]),
		Key:                   le.Uint32(buf[36:]),
		ExtMagic:              le.Uint32(buf[40:]),
		ExtOffset:             le.Uint32(buf[44:]),
	}
	if h.Magic != magic {
		return nil, arherr.New(arherr.InvalidFormat, "arh.ReadHeader",
			xerrors.Errorf("bad magic: got %#x, want %#x", h.Magic, magic))
	}
	return h, nil
}

// Marshal encodes the header to its 48-byte on-disk form.
func (h *Header) Marshal() []byte {
	buf := make([]byte, headerSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], magic)
	le.PutUint32(buf[4:], h.StringTableSize) // mirror field, see Header doc comment
	le.PutUint32(buf[8:], h.DictEntryCount)
	le.PutUint32(buf[12:], h.StringTableOffset)
	le.PutUint32(buf[16:], h.StringTableSize)
	le.PutUint32(buf[20:], h.DictOffset)
	le.PutUint32(buf[24:], h.DictSize)
	le.PutUint32(buf[28:], h.MetaTableOffset)
	le.PutUint32(buf[32:], h.FileCount)
	le.PutUint32(buf[36:], h.Key)
	if h.ExtMagic != 0 {
		le.PutUint32(buf[40:], extMagic)
		le.PutUint32(buf[44:], h.ExtOffset)
	}
	return buf
}

// ExtMagicValue exports the header's extended-section magic. internal/arhx
// does not import it; it declares the same value as its own Magic constant.
const ExtMagicValue = extMagic

// SetExtended marks a header as carrying an extended section at off.
func (h *Header) SetExtended(off uint32) {
	h.ExtMagic = extMagic
	h.ExtOffset = off
}

// bytesEqual is a tiny helper kept local to avoid pulling in go-cmp for a
// one-line comparison used by the round-trip tests.
func bytesEqual(a, b []byte) bool { return bytes.Equal(a, b) }
