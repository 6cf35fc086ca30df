// Completion: 100% - Byte-level memory utilities
package main

import "unsafe"

// addrBytes views n bytes starting at the raw virtual address addr as a Go
// byte slice, without copying. Every mapped DSO image and every reservation
// this loader creates is addressed this way; it is the "raw pointer math"
// the design notes (§9) call out as shared by the mapper, symbol walker and
// relocation engine.
func addrBytes(addr uintptr, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// memset sets the n bytes starting at dst to c, mirroring the §6 contract
// for the memset collaborator: "leaves every byte of d[0..n) equal to c and
// returns d".
func memset(dst uintptr, c byte, n int) uintptr {
	b := addrBytes(dst, n)
	for i := range b {
		b[i] = c
	}
	return dst
}

// memcpy copies n bytes from src to dst, mirroring the §6 contract: "leaves
// d[0..n) == s[0..n) and returns d". Per §6, the core never calls memcpy
// with dst and src overlapping such that `src <= dst < src+n`; the only
// caller (R_X86_64_COPY handling in reloc.go) copies between two distinct
// DSO images, so the disjoint-buffers assumption always holds and a plain
// forward copy loop is correct. (The original's invocations never have this
// overlap pattern either; Go's builtin copy() is deliberately not used here
// so the contract stays explicit and testable at this boundary.)
func memcpy(dst, src uintptr, n int) uintptr {
	d := addrBytes(dst, n)
	s := addrBytes(src, n)
	for i := 0; i < n; i++ {
		d[i] = s[i]
	}
	return dst
}
