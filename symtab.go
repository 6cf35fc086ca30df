// Completion: 100% - Symbol table access and lookup
package main

// numDynSyms returns the number of entries in d's dynamic symbol table,
// derived from the SysV hash table header the way the original does: the
// hash table's second word (nchain) equals the symbol count, since every
// symbol table entry has exactly one hash chain slot (§4.5).
func numDynSyms(d *DSO) (uint32, error) {
	hashAddr := d.dynamic[dtHash]
	b, err := d.at(hashAddr, 8)
	if err != nil {
		return 0, newFatal(CategoryMalformedELF, "%s: reading SysV hash header: %v", d.Name, err)
	}
	nchain := uint32(b[4]) | uint32(b[5])<<8 | uint32(b[6])<<16 | uint32(b[7])<<24
	return nchain, nil
}

// getStr reads a NUL-terminated string out of d's string table at byte
// offset off.
func getStr(d *DSO, off uint32) (string, error) {
	strTab := d.dynamic[dtStrTab]
	strSz := d.dynamic[dtStrSz]
	if uint64(off) >= strSz {
		return "", newFatal(CategoryMalformedELF, "%s: string offset %d beyond DT_STRSZ %d", d.Name, off, strSz)
	}
	max := int(strSz - uint64(off))
	b, err := d.at(strTab+uint64(off), max)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return "", newFatal(CategoryMalformedELF, "%s: unterminated string at offset %d", d.Name, off)
}

// getSym reads the idx'th dynamic symbol table entry.
func getSym(d *DSO, idx uint32) (Sym, error) {
	symTab := d.dynamic[dtSymTab]
	return decodeSymAt(d, symTab+uint64(idx)*symSize)
}

// lookupSym performs the §4.5 linear symbol search over start's dynamic
// symbol table: a candidate must be STT_OBJECT or STT_FUNC, STB_GLOBAL, not
// SHN_UNDEF, and name-equal to name. It walks the link map from start
// onward (not necessarily from the head), the mechanism R_X86_64_COPY uses
// to skip the main program's own definition (the copy destination).
func lookupSym(start *LinkMap, name string) (*DSO, Sym, bool) {
	for node := start; node != nil; node = node.Next {
		d := node.DSO
		n, err := numDynSyms(d)
		if err != nil {
			continue
		}
		for i := uint32(0); i < n; i++ {
			sym, err := getSym(d, i)
			if err != nil {
				continue
			}
			t := sym.sType()
			if t != sttObject && t != sttFunc {
				continue
			}
			if sym.sBind() != stbGlobal {
				continue
			}
			if sym.Shndx == shnUndef {
				continue
			}
			symName, err := getStr(d, sym.Name)
			if err != nil {
				continue
			}
			if symName == name {
				return d, sym, true
			}
		}
	}
	return nil, Sym{}, false
}
