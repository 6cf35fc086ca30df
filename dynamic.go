// Completion: 100% - Dynamic-section decoder
package main

// decodeDynamic walks the `.dynamic` array at dynOff within d's own image,
// per §4.3: entries run until DT_NULL; DT_NEEDED values are appended to
// d.needed (bounded by maxNeededEntries, a fatal overflow past that), and
// every other recognized tag is recorded last-wins into d.dynamic. Required
// tags are validated once the walk completes.
func decodeDynamic(d *DSO, dynOff uint64) error {
	for off := dynOff; ; off += dynSize {
		dyn, err := decodeDynAt(d, off)
		if err != nil {
			return newFatal(CategoryMalformedELF, "%s: reading dynamic entry at +0x%x: %v", d.Name, off, err)
		}
		if dyn.Tag == dtNull {
			break
		}
		if dyn.Tag == dtNeeded {
			if len(d.needed) >= maxNeededEntries {
				return newFatal(CategoryCapacity, "%s: more than %d DT_NEEDED entries", d.Name, maxNeededEntries)
			}
			d.needed = append(d.needed, uint32(dyn.Val))
			continue
		}
		if dyn.Tag >= 0 && dyn.Tag < dtMaxTag {
			d.dynamic[dyn.Tag] = dyn.Val
		}
	}
	return validateDynamic(d)
}

// validateDynamic enforces the presence of every tag the symbol and
// relocation engines assume is there (§4.3, §4.5): a string table, a symbol
// table with known entry size, and a SysV hash table to derive the symbol
// count from.
func validateDynamic(d *DSO) error {
	required := []struct {
		tag  int64
		name string
	}{
		{dtStrTab, "DT_STRTAB"},
		{dtStrSz, "DT_STRSZ"},
		{dtSymTab, "DT_SYMTAB"},
		{dtSymEnt, "DT_SYMENT"},
		{dtHash, "DT_HASH"},
	}
	for _, r := range required {
		if d.dynamic[r.tag] == 0 {
			return newFatal(CategoryMalformedELF, "%s: missing required dynamic tag %s", d.Name, r.name)
		}
	}
	if d.dynamic[dtSymEnt] != symSize {
		return newFatal(CategoryMalformedELF, "%s: DT_SYMENT %d does not match Elf64_Sym size %d", d.Name, d.dynamic[dtSymEnt], symSize)
	}
	return nil
}
