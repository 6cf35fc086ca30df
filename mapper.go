// Completion: 100% - Dependency mapper
package main

// pageAlignDown rounds addr down to the nearest page boundary.
func pageAlignDown(addr uint64) uint64 {
	return addr &^ (pageSize - 1)
}

// pageAlignUp rounds addr up to the nearest page boundary.
func pageAlignUp(addr uint64) uint64 {
	return pageAlignDown(addr+pageSize-1)
}

// segProt derives an mmap protection bitmask from a program header's
// PF_R/PF_W/PF_X flags (§4.4).
func segProt(flags uint32) int {
	prot := 0
	if flags&pfR != 0 {
		prot |= ProtRead
	}
	if flags&pfW != 0 {
		prot |= ProtWrite
	}
	if flags&pfX != 0 {
		prot |= ProtExec
	}
	return prot
}

// MapDependency loads path as a shared-object dependency, per §4.4: validate
// the ELF header, read the program header table, compute the PT_LOAD
// address range, reserve that span with a PROT_NONE anonymous mapping, then
// replace it segment by segment with MAP_FIXED file-backed mappings at the
// right protection, zeroing any BSS tail, before decoding the dynamic
// section.
func MapDependency(path string) (*DSO, error) {
	if err := sysAccess(path, 4 /* R_OK */); err != nil {
		return nil, newFatal(CategoryHostIO, "dependency %q not accessible: %v", path, err)
	}
	fd, err := sysOpenReadOnly(path)
	if err != nil {
		return nil, newFatal(CategoryHostIO, "opening dependency %q: %v", path, err)
	}
	defer sysClose(fd)

	ehBuf := make([]byte, ehdrSize)
	if n, err := sysPread(fd, ehBuf, 0); err != nil || n != ehdrSize {
		return nil, errShortRead("ELF header of "+path, ehdrSize, n)
	}
	eh, err := decodeEhdr(ehBuf)
	if err != nil {
		return nil, newFatal(CategoryMalformedELF, "%s: %v", path, err)
	}
	if !eh.validMagic() {
		return nil, newFatal(CategoryMalformedELF, "%s: bad ELF magic, class, byte order or OS/ABI", path)
	}
	if eh.Type != etDyn {
		return nil, newFatal(CategoryMalformedELF, "%s: not an ET_DYN shared object", path)
	}
	if eh.PhNum == 0 {
		return nil, newFatal(CategoryMalformedELF, "%s: no program headers", path)
	}
	if eh.PhEntSize != phdrSize {
		return nil, newFatal(CategoryMalformedELF, "%s: e_phentsize %d does not match Elf64_Phdr size %d", path, eh.PhEntSize, phdrSize)
	}

	phBuf := make([]byte, int(eh.PhNum)*phdrSize)
	if n, err := sysPread(fd, phBuf, int64(eh.PhOff)); err != nil || n != len(phBuf) {
		return nil, errShortRead("program headers of "+path, len(phBuf), n)
	}
	phdrs := make([]Phdr, eh.PhNum)
	for i := range phdrs {
		p, err := decodePhdr(phBuf, i)
		if err != nil {
			return nil, newFatal(CategoryMalformedELF, "%s: program header %d: %v", path, i, err)
		}
		phdrs[i] = p
	}

	var low, high uint64 = ^uint64(0), 0
	haveLoad := false
	for _, p := range phdrs {
		switch p.Type {
		case ptLoad:
			haveLoad = true
			if p.VAddr < low {
				low = p.VAddr
			}
			if p.VAddr+p.MemSz > high {
				high = p.VAddr + p.MemSz
			}
		case ptTLS:
			return nil, newFatal(CategoryProcessInit, "%s: PT_TLS present: thread-local storage is unsupported", path)
		}
	}
	if !haveLoad {
		return nil, newFatal(CategoryMalformedELF, "%s: no PT_LOAD segments", path)
	}

	alignedLow := pageAlignDown(low)
	alignedHigh := pageAlignUp(high)
	span := int(alignedHigh - alignedLow)

	reserveAddr, err := sysMmap(0, span, ProtNone, MapPrivate|MapAnonymous, -1, 0)
	if err != nil {
		return nil, newFatal(CategoryHostIO, "%s: reserving %d bytes: %v", path, span, err)
	}
	base := reserveAddr - uintptr(alignedLow)

	for _, p := range phdrs {
		if p.Type != ptLoad {
			continue
		}
		fileAlignedOff := pageAlignDown(p.Offset)
		vaddrAligned := pageAlignDown(p.VAddr)
		mapLen := int(pageAlignUp(p.VAddr + p.MemSz - vaddrAligned))

		segAddr := base + uintptr(vaddrAligned)
		if _, err := sysMmap(segAddr, mapLen, segProt(p.Flags), MapFixed|MapPrivate, fd, int64(fileAlignedOff)); err != nil {
			return nil, newFatal(CategoryHostIO, "%s: mapping segment at 0x%x: %v", path, p.VAddr, err)
		}
		// Zero the portion of this segment's tail beyond its file contents.
		fileEnd := p.VAddr + p.FileSz
		memEnd := p.VAddr + p.MemSz
		if memEnd > fileEnd {
			zeroAddr := base + uintptr(fileEnd)
			memset(zeroAddr, 0, int(memEnd-fileEnd))
		}
	}

	d := &DSO{Name: path, base: base, memLow: alignedLow, memHigh: alignedHigh}

	var dynOff uint64
	haveDynamic := false
	for _, p := range phdrs {
		if p.Type == ptDynamic {
			dynOff = p.VAddr
			haveDynamic = true
		}
	}
	if !haveDynamic {
		return nil, newFatal(CategoryMalformedELF, "%s: no PT_DYNAMIC segment", path)
	}

	if err := decodeDynamic(d, dynOff); err != nil {
		return nil, err
	}
	return d, nil
}
