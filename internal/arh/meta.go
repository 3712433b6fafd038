package arh

import (
	"encoding/binary"

	"github.com/tesshu/arhfs/internal/arherr"
)

// MetaRecordSize is the fixed 24-byte stride of a file metadata record.
const MetaRecordSize = 24

// MetaRecord is one file's metadata: its ARD data location plus the sizes
// needed to read and, if the sizes differ, decompress it.
type MetaRecord struct {
	DataOffset       uint64
	CompressedSize   uint32
	UncompressedSize uint32
	Reserved         uint32 // preserved verbatim; not interpreted (§3)
	ID               uint32
}

// Compressed reports whether the record's stored bytes need decompression.
func (r MetaRecord) Compressed() bool { return r.CompressedSize != r.UncompressedSize }

// MetaTable is the random-access array of file metadata records, indexed by
// file id (§4.4). A record's ID always equals its index in the table;
// skipped ids (when a record is Set at an id higher than the current
// length) are zero-filled. The table does not register them with any
// recycle bin (see Set).
type MetaTable struct {
	recs []MetaRecord
}

// NewMetaTable returns an empty table.
func NewMetaTable() *MetaTable { return &MetaTable{} }

// DecodeMetaTable parses a metadata table from its on-disk clear-text form.
func DecodeMetaTable(b []byte, count uint32) (*MetaTable, error) {
	want := int(count) * MetaRecordSize
	if len(b) < want {
		return nil, arherr.New(arherr.InvalidFormat, "arh.DecodeMetaTable", nil)
	}
	recs := make([]MetaRecord, count)
	le := binary.LittleEndian
	for i := uint32(0); i < count; i++ {
		off := int(i) * MetaRecordSize
		recs[i] = MetaRecord{
			DataOffset:       le.Uint64(b[off:]),
			CompressedSize:   le.Uint32(b[off+8:]),
			UncompressedSize: le.Uint32(b[off+12:]),
			Reserved:         le.Uint32(b[off+16:]),
			ID:               le.Uint32(b[off+20:]),
		}
	}
	return &MetaTable{recs: recs}, nil
}

// Encode serializes the table to its on-disk clear-text form.
func (m *MetaTable) Encode() []byte {
	b := make([]byte, len(m.recs)*MetaRecordSize)
	le := binary.LittleEndian
	for i, r := range m.recs {
		off := i * MetaRecordSize
		le.PutUint64(b[off:], r.DataOffset)
		le.PutUint32(b[off+8:], r.CompressedSize)
		le.PutUint32(b[off+12:], r.UncompressedSize)
		le.PutUint32(b[off+16:], r.Reserved)
		le.PutUint32(b[off+20:], r.ID)
	}
	return b
}

// Len returns the number of records (one greater than the highest id ever
// minted).
func (m *MetaTable) Len() int { return len(m.recs) }

// Get returns the record for id, or false if id is out of range.
func (m *MetaTable) Get(id uint32) (MetaRecord, bool) {
	if int(id) >= len(m.recs) {
		return MetaRecord{}, false
	}
	return m.recs[id], true
}

// Set stores rec at its own ID, extending the table with zero-filled
// records for any skipped ids (§4.4). Skipped ids are the caller's
// responsibility to register with the recycle bin.
func (m *MetaTable) Set(rec MetaRecord) {
	for uint32(len(m.recs)) <= rec.ID {
		m.recs = append(m.recs, MetaRecord{ID: uint32(len(m.recs))})
	}
	m.recs[rec.ID] = rec
}

// Clear zeroes the record at id (used on unlink), preserving its ID field
// so the table's indexing invariant (id == index) keeps holding.
func (m *MetaTable) Clear(id uint32) {
	if int(id) < len(m.recs) {
		m.recs[id] = MetaRecord{ID: id}
	}
}
