package main

import "testing"

func TestMemset(t *testing.T) {
	base := mmapTestPage(t)
	memset(base, 0xAB, 16)
	b := addrBytes(base, 16)
	for i, c := range b {
		if c != 0xAB {
			t.Fatalf("byte %d = 0x%x, want 0xab", i, c)
		}
	}
}

func TestMemcpy(t *testing.T) {
	base := mmapTestPage(t)
	src := addrBytes(base, 8)
	copy(src, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	dst := mmapTestPage(t)
	memcpy(dst, base, 8)
	got := addrBytes(dst, 8)
	for i := 0; i < 8; i++ {
		if got[i] != byte(i+1) {
			t.Fatalf("byte %d = %d, want %d", i, got[i], i+1)
		}
	}
}

func TestAddrBytesZeroLength(t *testing.T) {
	if b := addrBytes(0, 0); b != nil {
		t.Fatalf("expected nil slice for n=0, got %v", b)
	}
}
