// Completion: 100% - DSO model & main-program construction
package main

// maxNeededEntries bounds the number of DT_NEEDED dependency names a single
// DSO may declare. The source fixes this at 1; lifting it to support
// transitive dependency graphs is flagged as future work (§9 Open
// Questions), out of scope here.
const maxNeededEntries = 1

// DSO represents one ELF image mapped into memory, either the main program
// or a dependency library (§3).
type DSO struct {
	Name string // diagnostic label: "main" or the dependency's path

	base    uintptr // byte-address bias for this image's virtual addresses
	entry   uintptr // image's entry address; only set for the main program
	dynamic [dtMaxTag]uint64
	needed  []uint32 // string-table byte offsets naming SONAME dependencies

	// memLow/memHigh bound the image's mapped extent relative to base,
	// used to bounds-check relocation offsets (§8 testable property:
	// r.offset + 8 <= size of the D image).
	memLow, memHigh uint64
}

// Base returns the byte address this DSO's virtual addresses are biased by.
func (d *DSO) Base() uintptr { return d.base }

// Entry returns the DSO's entry address, or 0 if unset.
func (d *DSO) Entry() uintptr { return d.entry }

// Dynamic returns the decoded value of a `.dynamic` tag, or 0 if absent.
func (d *DSO) Dynamic(tag int64) uint64 {
	if tag < 0 || tag >= dtMaxTag {
		return 0
	}
	return d.dynamic[tag]
}

// Needed returns the bounded sequence of string-table offsets naming this
// DSO's dependency SONAMEs.
func (d *DSO) Needed() []uint32 { return d.needed }

// size reports the image's mapped extent in bytes, for relocation bounds
// checks.
func (d *DSO) size() uint64 {
	if d.memHigh <= d.memLow {
		return 0
	}
	return d.memHigh - d.memLow
}

// at implements imageReader: a zero-copy byte view at an image-relative
// address (vaddr). Bounds are enforced only when the image extent is known
// (memHigh > memLow); the address is not checked for alignment.
func (d *DSO) at(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, newFatal(CategoryMalformedELF, "negative read length")
	}
	if d.memHigh > d.memLow { // bounds are known; enforce them
		if addr < d.memLow || uint64(n) > d.memHigh-addr || addr+uint64(n) > d.memHigh {
			return nil, newFatal(CategoryCapacity, "%s: address 0x%x+%d out of image bounds [0x%x,0x%x)", d.Name, addr, n, d.memLow, d.memHigh)
		}
	}
	return addrBytes(d.base+uintptr(addr), n), nil
}

// decodePhdrAtAbs reads a single program header directly from an absolute
// virtual address (the kernel has already mapped it); used only for the
// main program, whose PHDR table the kernel hands us via AT_PHDR before we
// know the program's base address.
func decodePhdrAtAbs(absAddr uint64, idx int) Phdr {
	b := addrBytes(uintptr(absAddr)+uintptr(idx*phdrSize), phdrSize)
	p, _ := decodePhdr(b, 0)
	return p
}

// NewMainDSO constructs the DSO handle for the already-kernel-mapped main
// program, per §4.2: recover the base address from AT_PHDR/PT_PHDR, locate
// PT_DYNAMIC, reject PT_TLS, decode the dynamic section, and record the
// entry point from AT_ENTRY.
func NewMainDSO(av *AuxView) (*DSO, error) {
	if err := errorOn(av.Aux(AT_EXECFD) != 0, CategoryProcessInit, "AT_EXECFD set: kernel did not map the main program"); err != nil {
		return nil, err
	}
	atPHDR := av.Aux(AT_PHDR)
	if err := errorOn(atPHDR == 0, CategoryProcessInit, "AT_PHDR missing from auxiliary vector"); err != nil {
		return nil, err
	}
	phEnt := av.Aux(AT_PHENT)
	if err := errorOn(phEnt != phdrSize, CategoryMalformedELF, "AT_PHENT %d does not match Elf64_Phdr size %d", phEnt, phdrSize); err != nil {
		return nil, err
	}
	pageSz := av.Aux(AT_PAGESZ)
	if err := errorOn(pageSz != pageSize, CategoryProcessInit, "AT_PAGESZ %d does not match the page size %d this loader assumes", pageSz, pageSize); err != nil {
		return nil, err
	}
	phNum := av.Aux(AT_PHNUM)

	d := &DSO{Name: "main"}
	var dynOff uint64
	haveBase := false
	haveDynamic := false
	var low, high uint64 = ^uint64(0), 0

	for i := uint64(0); i < phNum; i++ {
		p := decodePhdrAtAbs(atPHDR, int(i))
		switch p.Type {
		case ptPHdr:
			if atPHDR < p.VAddr {
				return nil, newFatal(CategoryProcessInit, "AT_PHDR 0x%x is below PT_PHDR vaddr 0x%x", atPHDR, p.VAddr)
			}
			d.base = uintptr(atPHDR - p.VAddr)
			haveBase = true
		case ptDynamic:
			dynOff = p.VAddr
			haveDynamic = true
		case ptLoad:
			if p.VAddr < low {
				low = p.VAddr
			}
			if p.VAddr+p.MemSz > high {
				high = p.VAddr + p.MemSz
			}
		case ptTLS:
			return nil, newFatal(CategoryProcessInit, "PT_TLS present in main program: thread-local storage is unsupported")
		}
	}
	if !haveBase {
		return nil, newFatal(CategoryProcessInit, "PT_PHDR entry missing from main program's program headers")
	}
	if !haveDynamic {
		return nil, newFatal(CategoryProcessInit, "PT_DYNAMIC entry missing from main program's program headers")
	}
	if low < high {
		d.memLow, d.memHigh = low, high
	}

	if err := decodeDynamic(d, dynOff); err != nil {
		return nil, err
	}

	entry := av.Aux(AT_ENTRY)
	if entry == 0 {
		return nil, newFatal(CategoryProcessInit, "AT_ENTRY missing from auxiliary vector")
	}
	d.entry = uintptr(entry)

	return d, nil
}
