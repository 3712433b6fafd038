package ard

import (
	"testing"

	"github.com/tesshu/arhfs/internal/arherr"
)

func TestAllocatorAllocateFreeReuse(t *testing.T) {
	a := NewAllocator(9) // 512-byte blocks

	block1, n1, err := a.Allocate(1000) // 2 blocks
	if err != nil {
		t.Fatal(err)
	}
	if block1 != 0 || n1 != 2 {
		t.Fatalf("first Allocate = %d, %d, want 0, 2", block1, n1)
	}

	block2, n2, err := a.Allocate(512) // 1 block
	if err != nil {
		t.Fatal(err)
	}
	if block2 != 2 || n2 != 1 {
		t.Fatalf("second Allocate = %d, %d, want 2, 1", block2, n2)
	}

	if err := a.Free(block1, n1); err != nil {
		t.Fatal(err)
	}
	block3, n3, err := a.Allocate(1024) // 2 blocks, should reuse freed range
	if err != nil {
		t.Fatal(err)
	}
	if block3 != 0 || n3 != 2 {
		t.Errorf("Allocate after Free = %d, %d, want reuse at 0, 2", block3, n3)
	}
}

func TestAllocatorZeroLengthStillOccupiesOneBlock(t *testing.T) {
	a := NewAllocator(9)
	block, n, err := a.Allocate(0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Allocate(0) reserved %d blocks, want 1", n)
	}
	if !a.Occupied(block) {
		t.Error("block returned by Allocate(0) is not marked occupied")
	}
}

func TestAllocatorDoubleFreeIsInvariantViolation(t *testing.T) {
	a := NewAllocator(9)
	block, n, err := a.Allocate(512)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Free(block, n); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(block, n); !arherr.Is(err, arherr.Invariant) {
		t.Errorf("double Free = %v, want Invariant", err)
	}
}

func TestAllocatorGrowsBitmapBeyondInitialWords(t *testing.T) {
	a := NewAllocator(9)
	// Allocate enough blocks to force the bitmap past its first word.
	var last uint64
	for i := 0; i < 200; i++ {
		block, n, err := a.Allocate(512)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		last = block + n
	}
	if a.TotalBlocks() < last {
		t.Errorf("TotalBlocks() = %d, want at least %d", a.TotalBlocks(), last)
	}
}

func TestAllocatorBlocksForBytesAndBlockIndex(t *testing.T) {
	a := NewAllocator(9) // 512-byte blocks
	if got := a.BlocksForBytes(512); got != 1 {
		t.Errorf("BlocksForBytes(512) = %d, want 1", got)
	}
	if got := a.BlocksForBytes(513); got != 2 {
		t.Errorf("BlocksForBytes(513) = %d, want 2", got)
	}
	if got := a.BlocksForBytes(0); got != 0 {
		t.Errorf("BlocksForBytes(0) = %d, want 0", got)
	}
	if got := a.BlockIndex(1536); got != 3 {
		t.Errorf("BlockIndex(1536) = %d, want 3", got)
	}
}

func TestAllocatorEncodeDecodeWordsRoundTrip(t *testing.T) {
	a := NewAllocator(9)
	for i := 0; i < 10; i++ {
		if _, _, err := a.Allocate(512); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Free(3, 1); err != nil {
		t.Fatal(err)
	}

	encoded := EncodeWords(a.Words())
	decodedWords := DecodeWordBytes(encoded)
	decoded := DecodeWords(a.BlockSizeLog2(), decodedWords)

	for b := uint64(0); b < a.TotalBlocks(); b++ {
		if a.Occupied(b) != decoded.Occupied(b) {
			t.Errorf("block %d: occupied=%v after round trip, want %v", b, decoded.Occupied(b), a.Occupied(b))
		}
	}
}

func TestAllocatorMarkOccupied(t *testing.T) {
	a := NewAllocator(9)
	a.MarkOccupied(5, 3)
	for b := uint64(5); b < 8; b++ {
		if !a.Occupied(b) {
			t.Errorf("block %d not occupied after MarkOccupied", b)
		}
	}
	if a.Occupied(8) {
		t.Error("block 8 occupied, want free (outside MarkOccupied range)")
	}
}
