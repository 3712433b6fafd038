package arh

import (
	"bytes"
	"encoding/binary"

	"github.com/tesshu/arhfs/internal/arherr"
)

// StringTable is the append-only byte region holding NUL-terminated path
// fragments, each immediately followed by a little-endian 32-bit file id
// (§4.2). It never deletes or compacts entries; orphaned bytes from removed
// files stay in the table.
type StringTable struct {
	buf []byte
}

// NewStringTable wraps an existing (already de-obfuscated) byte region.
func NewStringTable(b []byte) *StringTable {
	return &StringTable{buf: append([]byte(nil), b...)}
}

// Bytes returns the table's raw contents, suitable for XOR-encoding and
// writing back to an ARH file.
func (s *StringTable) Bytes() []byte { return s.buf }

// Size returns the current size of the table in bytes.
func (s *StringTable) Size() uint32 { return uint32(len(s.buf)) }

// ReadFragment scans from offset to the next NUL, then reads the 4-byte
// little-endian file id immediately following it. offset need not align to
// the start of an entry.
func (s *StringTable) ReadFragment(offset uint32) (fragment []byte, fileID uint32, err error) {
	if int(offset) > len(s.buf) {
		return nil, 0, arherr.New(arherr.InvalidFormat, "arh.StringTable.ReadFragment", nil)
	}
	nul := bytes.IndexByte(s.buf[offset:], 0)
	if nul < 0 {
		return nil, 0, arherr.New(arherr.InvalidFormat, "arh.StringTable.ReadFragment", nil)
	}
	fragment = s.buf[offset : int(offset)+nul]
	idOff := int(offset) + nul + 1
	if idOff+4 > len(s.buf) {
		return nil, 0, arherr.New(arherr.InvalidFormat, "arh.StringTable.ReadFragment", nil)
	}
	fileID = binary.LittleEndian.Uint32(s.buf[idOff:])
	return fragment, fileID, nil
}

// Append appends fragment, a NUL terminator, and the little-endian file id,
// returning the offset of fragment's first byte. fragment may be empty (the
// NUL then appears immediately at the returned offset).
func (s *StringTable) Append(fragment []byte, fileID uint32) uint32 {
	off := uint32(len(s.buf))
	s.buf = append(s.buf, fragment...)
	s.buf = append(s.buf, 0)
	var idb [4]byte
	binary.LittleEndian.PutUint32(idb[:], fileID)
	s.buf = append(s.buf, idb[:]...)
	return off
}
