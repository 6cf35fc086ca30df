// Completion: 100% - Scratch bump allocator
package main

// arenaSize mirrors the 1 MiB static backing store original_source's
// lib/src/alloc.c reserves for its first-fit allocator.
const arenaSize = 1 << 20

// descSize is the per-block header: a 1-byte free flag followed by an
// 8-byte little-endian size, the same fields alloc.c's BlockDescriptor
// carries, encoded directly into the arena bytes rather than as a separate
// Go struct so header and payload stay part of the same byte-addressable
// region.
const descSize = 9

// BumpAllocator is a scratch allocator used by the CLI harness (cmdInspect's
// needed-dependency name copies) for short-lived buffers that don't need
// Go's GC to track them, adapted from original_source/lib/src/alloc.c's
// static-arena first-fit allocator into a value the loader's own code can
// hold and reset between runs instead of relying on a single global.
type BumpAllocator struct {
	arena []byte
}

// NewBumpAllocator creates an allocator over a fresh arenaSize-byte arena,
// with the entire arena as one free block (alloc.c's brk()).
func NewBumpAllocator() *BumpAllocator {
	a := &BumpAllocator{arena: make([]byte, arenaSize)}
	a.setBlock(0, true, arenaSize-descSize)
	return a
}

// Alloc reserves n bytes from the arena using first-fit search over the
// block chain, splitting a block when the remainder is large enough to
// host another header, exactly as alloc.c's alloc() does. It returns nil
// when no free block is large enough, matching the original's NULL return.
func (a *BumpAllocator) Alloc(n int) []byte {
	off := 0
	for off+descSize <= len(a.arena) {
		free, size := a.blockAt(off)
		if free && size >= n {
			remaining := size - n
			if remaining > descSize {
				a.setBlock(off, false, n)
				splitOff := off + descSize + n
				a.setBlock(splitOff, true, remaining-descSize)
			} else {
				a.setBlock(off, false, size)
			}
			return a.arena[off+descSize : off+descSize+n]
		}
		off += descSize + size
	}
	return nil
}

// Free marks the block backing buf as free again, mirroring alloc.c's
// dealloc(); it does not coalesce adjacent free blocks, matching the
// original's behavior.
func (a *BumpAllocator) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	hdrOff := len(a.arena) - cap(buf) - descSize
	if hdrOff < 0 || hdrOff >= len(a.arena) {
		return
	}
	_, size := a.blockAt(hdrOff)
	a.setBlock(hdrOff, true, size)
}

func (a *BumpAllocator) blockAt(off int) (free bool, size int) {
	free = a.arena[off] != 0
	size = int(leUint64(a.arena[off+1 : off+9]))
	return
}

func (a *BumpAllocator) setBlock(off int, free bool, size int) {
	if free {
		a.arena[off] = 1
	} else {
		a.arena[off] = 0
	}
	b := uint64(size)
	for i := 0; i < 8; i++ {
		a.arena[off+1+i] = byte(b)
		b >>= 8
	}
}
