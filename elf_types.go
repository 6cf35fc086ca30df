// Completion: 100% - ELF64 on-disk structure readers
package main

import "encoding/binary"

// ELF64 identification, segment, dynamic-section and relocation constants
// used by the loader. Only the x86_64 System V subset the core needs is
// defined here; this is not a general-purpose ELF package.
const (
	eiMag0    = 0
	eiMag1    = 1
	eiMag2    = 2
	eiMag3    = 3
	eiClass   = 4
	eiData    = 5
	eiVersion = 6
	eiOSABI   = 7

	elfMag0 = 0x7f
	elfMag1 = 'E'
	elfMag2 = 'L'
	elfMag3 = 'F'

	elfClass64   = 2
	elfData2LSB  = 1
	elfOSABISysV = 0

	etDyn = 2

	ehdrSize = 64
	phdrSize = 56
	dynSize  = 16
	symSize  = 24
	relaSize = 24
)

// Program header types (Phdr.Type).
const (
	ptNull    = 0
	ptLoad    = 1
	ptDynamic = 2
	ptInterp  = 3
	ptNote    = 4
	ptPHdr    = 6
	ptTLS     = 7
)

// Program header flag bits (Phdr.Flags).
const (
	pfX = 0x1
	pfW = 0x2
	pfR = 0x4
)

// Dynamic-section tags (Dyn.Tag). Values match the real ELF64 psABI
// numbering (not the original C prototype's compressed enumeration) so that
// DT_INIT_ARRAY/DT_FINI_ARRAY, which the lifecycle stage needs, have a home
// without inventing nonstandard numbers.
const (
	dtNull         = 0
	dtNeeded       = 1
	dtPLTRelSz     = 2
	dtPLTGOT       = 3
	dtHash         = 4
	dtStrTab       = 5
	dtSymTab       = 6
	dtRela         = 7
	dtRelaSz       = 8
	dtRelaEnt      = 9
	dtStrSz        = 10
	dtSymEnt       = 11
	dtInit         = 12
	dtFini         = 13
	dtSoName       = 14
	dtJmpRel       = 23
	dtInitArray    = 25
	dtFiniArray    = 26
	dtInitArraySz  = 27
	dtFiniArraySz  = 28
	dtMaxTag       = 29 // dynamic[] is dense over [0, dtMaxTag)
)

// Symbol table binding/type (packed into Sym.Info) and section-index sentinel.
const (
	sttObject = 1
	sttFunc   = 2

	stbGlobal = 1

	shnUndef = 0
)

// x86_64 relocation kinds (Rela.Info low 32 bits).
const (
	rX8664Relative = 8
	rX8664GlobDat  = 6
	rX8664JumpSlot = 7
	rX8664_64      = 1
	rX8664Copy     = 5
)

// pageSize is the fixed page size the loader assumes and verifies against
// AT_PAGESZ (§6 Wire/ABI).
const pageSize = 4096

// Ehdr holds the fields of an on-disk ELF64 file header, decoded by copy.
type Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

// decodeEhdr parses an ELF64 header from buf, which must be at least
// ehdrSize bytes.
func decodeEhdr(buf []byte) (Ehdr, error) {
	var e Ehdr
	if len(buf) < ehdrSize {
		return e, errShortRead("Elf64_Ehdr", ehdrSize, len(buf))
	}
	copy(e.Ident[:], buf[0:16])
	e.Type = binary.LittleEndian.Uint16(buf[16:18])
	e.Machine = binary.LittleEndian.Uint16(buf[18:20])
	e.Version = binary.LittleEndian.Uint32(buf[20:24])
	e.Entry = binary.LittleEndian.Uint64(buf[24:32])
	e.PhOff = binary.LittleEndian.Uint64(buf[32:40])
	e.ShOff = binary.LittleEndian.Uint64(buf[40:48])
	e.Flags = binary.LittleEndian.Uint32(buf[48:52])
	e.EhSize = binary.LittleEndian.Uint16(buf[52:54])
	e.PhEntSize = binary.LittleEndian.Uint16(buf[54:56])
	e.PhNum = binary.LittleEndian.Uint16(buf[56:58])
	e.ShEntSize = binary.LittleEndian.Uint16(buf[58:60])
	e.ShNum = binary.LittleEndian.Uint16(buf[60:62])
	e.ShStrNdx = binary.LittleEndian.Uint16(buf[62:64])
	return e, nil
}

// validMagic reports whether the ELF identification bytes match the
// required 64-bit little-endian SysV ABI this loader supports.
func (e Ehdr) validMagic() bool {
	return e.Ident[eiMag0] == elfMag0 && e.Ident[eiMag1] == elfMag1 &&
		e.Ident[eiMag2] == elfMag2 && e.Ident[eiMag3] == elfMag3 &&
		e.Ident[eiClass] == elfClass64 && e.Ident[eiData] == elfData2LSB &&
		e.Ident[eiOSABI] == elfOSABISysV
}

// Phdr holds the fields of an on-disk ELF64 program header, decoded by copy.
type Phdr struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

// decodePhdr parses a single program header at offset idx*phdrSize in buf.
func decodePhdr(buf []byte, idx int) (Phdr, error) {
	var p Phdr
	off := idx * phdrSize
	if off+phdrSize > len(buf) {
		return p, errShortRead("Elf64_Phdr", phdrSize, len(buf)-off)
	}
	b := buf[off : off+phdrSize]
	p.Type = binary.LittleEndian.Uint32(b[0:4])
	p.Flags = binary.LittleEndian.Uint32(b[4:8])
	p.Offset = binary.LittleEndian.Uint64(b[8:16])
	p.VAddr = binary.LittleEndian.Uint64(b[16:24])
	p.PAddr = binary.LittleEndian.Uint64(b[24:32])
	p.FileSz = binary.LittleEndian.Uint64(b[32:40])
	p.MemSz = binary.LittleEndian.Uint64(b[40:48])
	p.Align = binary.LittleEndian.Uint64(b[48:56])
	return p, nil
}

// Dyn holds the fields of one `.dynamic` section entry, decoded by copy.
type Dyn struct {
	Tag int64
	Val uint64
}

// decodeDynAt parses a Dyn entry directly from process/image memory starting
// at addr. It is used by the in-process dynamic-section walk (dynamic.go),
// which reads live mapped images rather than on-disk file buffers.
func decodeDynAt(mem imageReader, addr uint64) (Dyn, error) {
	b, err := mem.at(addr, dynSize)
	if err != nil {
		return Dyn{}, err
	}
	return Dyn{
		Tag: int64(binary.LittleEndian.Uint64(b[0:8])),
		Val: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// Sym holds the fields of one dynamic symbol table entry, decoded by copy.
type Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

func decodeSymAt(mem imageReader, addr uint64) (Sym, error) {
	b, err := mem.at(addr, symSize)
	if err != nil {
		return Sym{}, err
	}
	var s Sym
	s.Name = binary.LittleEndian.Uint32(b[0:4])
	s.Info = b[4]
	s.Other = b[5]
	s.Shndx = binary.LittleEndian.Uint16(b[6:8])
	s.Value = binary.LittleEndian.Uint64(b[8:16])
	s.Size = binary.LittleEndian.Uint64(b[16:24])
	return s, nil
}

func (s Sym) sType() uint8 { return s.Info & 0xf }
func (s Sym) sBind() uint8 { return s.Info >> 4 }

// Rela holds the fields of one Elf64_Rela relocation entry, decoded by copy.
type Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

func decodeRelaAt(mem imageReader, addr uint64) (Rela, error) {
	b, err := mem.at(addr, relaSize)
	if err != nil {
		return Rela{}, err
	}
	return Rela{
		Offset: binary.LittleEndian.Uint64(b[0:8]),
		Info:   binary.LittleEndian.Uint64(b[8:16]),
		Addend: int64(binary.LittleEndian.Uint64(b[16:24])),
	}, nil
}

func (r Rela) symIndex() uint32 { return uint32(r.Info >> 32) }
func (r Rela) relType() uint32  { return uint32(r.Info) }

// imageReader is a byte-addressable view over a mapped image, keyed by
// image-relative address. DSO implements it over its own mapping as a
// zero-copy, bounds-checked slice; no implementation checks alignment.
type imageReader interface {
	at(addr uint64, n int) ([]byte, error)
}
