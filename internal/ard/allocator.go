// Package ard implements the ARD data-region free-space management: the
// bitmap block allocator (C5) and the file-id recycle bin (C6).
package ard

import (
	"encoding/binary"

	"github.com/tesshu/arhfs/internal/arherr"
)

// bitsPerWord is the width of one bitmap word (§4.5: "bits are packed into
// 64-bit little-endian words").
const bitsPerWord = 64

// maxWords bounds how far Allocate will grow the bitmap before giving up
// with NoSpace. At the default 512-byte block size this caps an archive's
// data region at 64 * maxWords * 512 bytes; raise it if a deployment needs
// larger archives.
const maxWords = 1 << 20 // 64 Mi blocks

// Allocator is the bitmap-based block allocator over the ARD data region
// (C5). Bit b is 1 iff block b is occupied by some live file.
type Allocator struct {
	blockSizeLog2 uint16
	words         []uint64
}

// NewAllocator returns an empty allocator for the given block size
// (1 << blockSizeLog2 bytes per block).
func NewAllocator(blockSizeLog2 uint16) *Allocator {
	return &Allocator{blockSizeLog2: blockSizeLog2}
}

// BlockSizeLog2 returns the allocator's block size exponent.
func (a *Allocator) BlockSizeLog2() uint16 { return a.blockSizeLog2 }

// BlockSize returns the allocator's block size in bytes.
func (a *Allocator) BlockSize() uint32 { return 1 << a.blockSizeLog2 }

// DecodeWords loads the bitmap directly from the extended section (§4.8).
func DecodeWords(blockSizeLog2 uint16, words []uint64) *Allocator {
	a := NewAllocator(blockSizeLog2)
	a.words = append([]uint64(nil), words...)
	return a
}

// Words returns the bitmap words for serialization into the extended
// section.
func (a *Allocator) Words() []uint64 { return a.words }

func (a *Allocator) bit(b uint64) bool {
	w := b / bitsPerWord
	if int(w) >= len(a.words) {
		return false
	}
	return a.words[w]&(1<<(b%bitsPerWord)) != 0
}

func (a *Allocator) setBit(b uint64, v bool) {
	w := b / bitsPerWord
	for uint64(len(a.words)) <= w {
		a.words = append(a.words, 0)
	}
	if v {
		a.words[w] |= 1 << (b % bitsPerWord)
	} else {
		a.words[w] &^= 1 << (b % bitsPerWord)
	}
}

// blocksFor returns ceil(bytes / block size).
func (a *Allocator) blocksFor(bytes uint64) uint64 {
	bs := uint64(a.BlockSize())
	return (bytes + bs - 1) / bs
}

// BlocksForBytes exposes blocksFor for callers (the archive facade) that
// need to recompute a previously-allocated run's block count from a stored
// byte size, e.g. to free it.
func (a *Allocator) BlocksForBytes(n uint64) uint64 { return a.blocksFor(n) }

// BlockIndex returns the block number containing byte offset off. off must
// be block-aligned (true of every offset this allocator itself produced).
func (a *Allocator) BlockIndex(off uint64) uint64 { return off / uint64(a.BlockSize()) }

// Allocate finds the first run of n consecutive free blocks large enough to
// hold bytes, marks them occupied, and returns the starting block. The
// bitmap grows (in 64-block word increments) if no existing run fits, up to
// maxWords words; beyond that it fails with NoSpace.
func (a *Allocator) Allocate(bytes uint64) (block uint64, n uint64, err error) {
	n = a.blocksFor(bytes)
	if n == 0 {
		n = 1 // zero-length files still occupy one block in this model
	}
	run := uint64(0)
	runStart := uint64(0)
	total := uint64(len(a.words)) * bitsPerWord
	for b := uint64(0); b < total; b++ {
		if a.bit(b) {
			run = 0
			continue
		}
		if run == 0 {
			runStart = b
		}
		run++
		if run == n {
			a.markRange(runStart, n, true)
			return runStart, n, nil
		}
	}
	// No run fits in the existing bitmap; grow it. A free run that reaches
	// the end of the current bitmap is extended into the new words.
	if run == 0 {
		runStart = total
	}
	if (runStart+n+bitsPerWord-1)/bitsPerWord > maxWords {
		return 0, 0, arherr.New(arherr.NoSpace, "ard.Allocator.Allocate", nil)
	}
	a.markRange(runStart, n, true)
	return runStart, n, nil
}

// Free clears bits [block, block+n). Clearing an already-free bit is a
// logic error (double free) and fails with Invariant.
func (a *Allocator) Free(block, n uint64) error {
	for b := block; b < block+n; b++ {
		if !a.bit(b) {
			return arherr.New(arherr.Invariant, "ard.Allocator.Free", nil)
		}
	}
	a.markRange(block, n, false)
	return nil
}

// MarkOccupied reserves blocks [block, block+n) unconditionally, used
// during initialization to mark blocks inhabited by already-existing files
// (§4.5).
func (a *Allocator) MarkOccupied(block, n uint64) {
	a.markRange(block, n, true)
}

func (a *Allocator) markRange(block, n uint64, v bool) {
	for b := block; b < block+n; b++ {
		a.setBit(b, v)
	}
}

// Occupied reports whether block b is currently marked occupied.
func (a *Allocator) Occupied(b uint64) bool { return a.bit(b) }

// TotalBlocks returns the number of blocks currently tracked by the bitmap
// (i.e. words * 64, not the high-water mark of allocated blocks).
func (a *Allocator) TotalBlocks() uint64 { return uint64(len(a.words)) * bitsPerWord }

// EncodeWords serializes the bitmap words to little-endian bytes for the
// extended section.
func EncodeWords(words []uint64) []byte {
	b := make([]byte, len(words)*8)
	for i, w := range words {
		binary.LittleEndian.PutUint64(b[i*8:], w)
	}
	return b
}

// DecodeWordBytes parses little-endian bitmap words from raw bytes.
func DecodeWordBytes(b []byte) []uint64 {
	words := make([]uint64, len(b)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return words
}
