package main

import (
	"encoding/binary"
	"testing"
)

func makeEhdrBytes(class, data, osabi byte, etype uint16, phnum, phentsize uint16) []byte {
	b := make([]byte, ehdrSize)
	b[eiMag0], b[eiMag1], b[eiMag2], b[eiMag3] = elfMag0, elfMag1, elfMag2, elfMag3
	b[eiClass] = class
	b[eiData] = data
	b[eiOSABI] = osabi
	binary.LittleEndian.PutUint16(b[16:18], etype)
	binary.LittleEndian.PutUint16(b[54:56], phentsize)
	binary.LittleEndian.PutUint16(b[56:58], phnum)
	return b
}

func TestDecodeEhdrValidMagic(t *testing.T) {
	b := makeEhdrBytes(elfClass64, elfData2LSB, elfOSABISysV, etDyn, 4, phdrSize)
	e, err := decodeEhdr(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.validMagic() {
		t.Fatal("expected valid magic/class/data/osabi")
	}
	if e.Type != etDyn || e.PhNum != 4 || e.PhEntSize != phdrSize {
		t.Fatalf("fields not decoded correctly: %+v", e)
	}
}

func TestDecodeEhdrRejectsBadClass(t *testing.T) {
	b := makeEhdrBytes(1 /* ELFCLASS32 */, elfData2LSB, elfOSABISysV, etDyn, 1, phdrSize)
	e, err := decodeEhdr(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.validMagic() {
		t.Fatal("32-bit class must not validate")
	}
}

func TestDecodeEhdrShortRead(t *testing.T) {
	if _, err := decodeEhdr(make([]byte, ehdrSize-1)); err == nil {
		t.Fatal("expected short read error")
	}
}

func TestDecodePhdr(t *testing.T) {
	buf := make([]byte, phdrSize*2)
	binary.LittleEndian.PutUint32(buf[phdrSize+0:], ptLoad)
	binary.LittleEndian.PutUint32(buf[phdrSize+4:], pfR|pfX)
	binary.LittleEndian.PutUint64(buf[phdrSize+16:], 0x1000)
	binary.LittleEndian.PutUint64(buf[phdrSize+40:], 0x2000)

	p, err := decodePhdr(buf, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != ptLoad || p.VAddr != 0x1000 || p.MemSz != 0x2000 {
		t.Fatalf("phdr not decoded: %+v", p)
	}
	if p.Flags&pfW != 0 {
		t.Fatalf("unexpected write flag: %+v", p)
	}
}

// fakeImage is a trivial imageReader over an in-process byte buffer, used
// to test the in-memory decoders without a real mmap.
type fakeImage struct{ buf []byte }

func (f *fakeImage) at(addr uint64, n int) ([]byte, error) {
	if int(addr)+n > len(f.buf) {
		return nil, errShortRead("fake image", n, len(f.buf)-int(addr))
	}
	return f.buf[addr : int(addr)+n], nil
}

func TestDecodeDynAt(t *testing.T) {
	buf := make([]byte, dynSize)
	binary.LittleEndian.PutUint64(buf[0:8], dtNeeded)
	binary.LittleEndian.PutUint64(buf[8:16], 0x10)
	img := &fakeImage{buf: buf}

	d, err := decodeDynAt(img, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Tag != dtNeeded || d.Val != 0x10 {
		t.Fatalf("dyn not decoded: %+v", d)
	}
}

func TestSymBindType(t *testing.T) {
	s := Sym{Info: (stbGlobal << 4) | sttFunc}
	if s.sType() != sttFunc || s.sBind() != stbGlobal {
		t.Fatalf("bind/type not decoded: %+v", s)
	}
}

func TestRelaIndexAndType(t *testing.T) {
	r := Rela{Info: (uint64(5) << 32) | uint64(rX8664JumpSlot)}
	if r.symIndex() != 5 || r.relType() != rX8664JumpSlot {
		t.Fatalf("rela info not decoded: idx=%d type=%d", r.symIndex(), r.relType())
	}
}
