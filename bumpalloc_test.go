package main

import "testing"

func TestBumpAllocatorFirstFitAndSplit(t *testing.T) {
	a := NewBumpAllocator()

	b1 := a.Alloc(100)
	if b1 == nil || len(b1) != 100 {
		t.Fatalf("expected 100-byte allocation, got %v", b1)
	}
	b2 := a.Alloc(200)
	if b2 == nil || len(b2) != 200 {
		t.Fatalf("expected 200-byte allocation, got %v", b2)
	}

	free, size := a.blockAt(0)
	if free || size != 100 {
		t.Fatalf("first block should be in-use size 100, got free=%v size=%d", free, size)
	}
	secondOff := descSize + 100
	free, size = a.blockAt(secondOff)
	if free || size != 200 {
		t.Fatalf("second block should be in-use size 200, got free=%v size=%d", free, size)
	}
}

func TestBumpAllocatorFreeReusesBlock(t *testing.T) {
	a := NewBumpAllocator()

	b1 := a.Alloc(64)
	a.Free(b1)

	free, size := a.blockAt(0)
	if !free || size != 64 {
		t.Fatalf("expected freed block at offset 0 size 64, got free=%v size=%d", free, size)
	}

	b2 := a.Alloc(64)
	if len(b2) != 64 {
		t.Fatalf("expected first-fit to reuse the freed block, got len %d", len(b2))
	}
}

func TestBumpAllocatorExhaustionReturnsNil(t *testing.T) {
	a := NewBumpAllocator()
	if got := a.Alloc(arenaSize); got != nil {
		t.Fatalf("expected nil for an allocation that can't fit a header, got %v", got)
	}
	if got := a.Alloc(arenaSize - descSize + 1); got != nil {
		t.Fatalf("expected nil for an oversized allocation, got %v", got)
	}
}
