// Package arhx implements the extended "arhx" trailing section (C8) that
// persists the block allocator and recycle bin across commits. The section
// is a non-standard addition: the original format's own consumer ignores
// it, and a magic mismatch on load is a soft failure, never fatal.
package arhx

import (
	"encoding/binary"
	"io"

	"github.com/tesshu/arhfs/internal/ard"
	"github.com/tesshu/arhfs/internal/arherr"
)

// Magic is the extended section's identifying 4 bytes, "arhx", repeated at
// the start of the section itself (in addition to the header's ext-magic
// word) per §4.8's "Order: magic, then block allocator... then recycle bin."
const Magic = 0x78687261 // "arhx" little-endian

// Section is the decoded extended-section payload.
type Section struct {
	Allocator *ard.Allocator
	Recycle   *ard.Recycle
}

// Decode parses a Section from r. A magic mismatch returns a nil Section
// and a nil error: per §4.8, this is a soft failure and callers should
// proceed without C5/C6 loaded (rebuilding the allocator from the metadata
// table instead).
func Decode(r io.Reader) (*Section, error) {
	var magicBuf [4]byte
	if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
		return nil, nil //nolint:nilerr // soft failure, see doc comment
	}
	if binary.LittleEndian.Uint32(magicBuf[:]) != Magic {
		return nil, nil
	}

	var blockSizeLog2 uint16
	if err := binary.Read(r, binary.LittleEndian, &blockSizeLog2); err != nil {
		return nil, arherr.Wrap(arherr.InvalidFormat, "arhx.Decode", err)
	}
	var wordCount uint64
	if err := binary.Read(r, binary.LittleEndian, &wordCount); err != nil {
		return nil, arherr.Wrap(arherr.InvalidFormat, "arhx.Decode", err)
	}
	wordBytes := make([]byte, wordCount*8)
	if _, err := io.ReadFull(r, wordBytes); err != nil {
		return nil, arherr.Wrap(arherr.InvalidFormat, "arhx.Decode", err)
	}
	alloc := ard.DecodeWords(blockSizeLog2, ard.DecodeWordBytes(wordBytes))

	var idCount uint32
	if err := binary.Read(r, binary.LittleEndian, &idCount); err != nil {
		return nil, arherr.Wrap(arherr.InvalidFormat, "arhx.Decode", err)
	}
	ids := make([]uint32, idCount)
	for i := range ids {
		if err := binary.Read(r, binary.LittleEndian, &ids[i]); err != nil {
			return nil, arherr.Wrap(arherr.InvalidFormat, "arhx.Decode", err)
		}
	}
	recycle := ard.DecodeRecycle(ids)

	return &Section{Allocator: alloc, Recycle: recycle}, nil
}

// Encode serializes a Section to w in the order fixed by §4.8: magic, block
// allocator (block-size exponent, word count, words), recycle bin (count,
// sorted ids).
func Encode(w io.Writer, s *Section) error {
	var magicBuf [4]byte
	binary.LittleEndian.PutUint32(magicBuf[:], Magic)
	if _, err := w.Write(magicBuf[:]); err != nil {
		return arherr.Wrap(arherr.IO, "arhx.Encode", err)
	}
	if err := binary.Write(w, binary.LittleEndian, s.Allocator.BlockSizeLog2()); err != nil {
		return arherr.Wrap(arherr.IO, "arhx.Encode", err)
	}
	words := s.Allocator.Words()
	if err := binary.Write(w, binary.LittleEndian, uint64(len(words))); err != nil {
		return arherr.Wrap(arherr.IO, "arhx.Encode", err)
	}
	if _, err := w.Write(ard.EncodeWords(words)); err != nil {
		return arherr.Wrap(arherr.IO, "arhx.Encode", err)
	}
	ids := s.Recycle.IDs()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
		return arherr.Wrap(arherr.IO, "arhx.Encode", err)
	}
	for _, id := range ids {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return arherr.Wrap(arherr.IO, "arhx.Encode", err)
		}
	}
	return nil
}
