// Completion: 100% - Lazy-bind crash trampoline
package main

import "unsafe"

// trampolineRelocIdx and trampolineModuleID hold the two values the
// installed trampoline pops off the stack before handing control to
// trampolineReport. There is only ever one trampoline active at a time
// (the loader runs single-threaded and exits on the first hit), so a
// shared pair of process-wide scratch cells is enough.
var (
	trampolineRelocIdx uint64
	trampolineModuleID uint64
)

// trampolineReport is the Go landing point the trampoline jumps to. A
// real dynamic linker's lazy-bind stub resolves the callee and jumps to
// it; this loader never defers binding (§4.5 resolves everything
// eagerly), so landing here at all means the PLT called into a slot
// this loader never filled, and the only correct response is to report
// the two stack arguments the PLT stub pushed and terminate, mirroring
// original_source/04_dynld_nostd/dynld.c's dynresolve formatting got1
// and reloc_idx through efmt before giving up.
func trampolineReport() {
	diagf(stderrFD, "dynld: PLT trampoline hit: module=0x%lx reloc_idx=%ld\n", trampolineModuleID, int64(trampolineRelocIdx))
	sysExit(1)
}

// funcEntryPC extracts the raw machine-code entry address of a niladic
// Go function - the reverse of callNoArg's reinterpretation. A func
// value is a pointer to a funcval struct whose first word is the entry
// PC, so one dereference past the func value itself recovers it.
func funcEntryPC(fn func()) uintptr {
	fnPtr := *(*uintptr)(unsafe.Pointer(&fn))
	return *(*uintptr)(unsafe.Pointer(fnPtr))
}

// movabsRAX encodes `movabs rax, v` (48 B8 + 8 little-endian bytes).
func movabsRAX(v uint64) []byte {
	b := make([]byte, 10)
	b[0], b[1] = 0x48, 0xb8
	for i := 0; i < 8; i++ {
		b[2+i] = byte(v)
		v >>= 8
	}
	return b
}

// buildTrampolineCode hand-assembles the routine installed at GOT[2]:
// pop the two arguments a PLT stub pushes, stash them where Go code can
// read them, then tail-jump into trampolineReport. Built per-call as a
// []byte since it embeds this process's actual addresses for the scratch
// cells and the report function rather than a fixed literal.
//
//	pop rdi                  ; 5f              - relocation index
//	pop rsi                  ; 5e              - module/link-map id
//	movabs rax, &trampolineRelocIdx
//	mov [rax], rdi           ; 48 89 38        - stash relocation index
//	movabs rax, &trampolineModuleID
//	mov [rax], rsi           ; 48 89 30        - stash module id
//	movabs rax, trampolineReport's entry PC
//	jmp rax                  ; ff e0           - tail-jump, never returns
func buildTrampolineCode() []byte {
	reportPC := uint64(funcEntryPC(trampolineReport))
	idxAddr := uint64(uintptr(unsafe.Pointer(&trampolineRelocIdx)))
	modAddr := uint64(uintptr(unsafe.Pointer(&trampolineModuleID)))

	code := []byte{0x5f, 0x5e}
	code = append(code, movabsRAX(idxAddr)...)
	code = append(code, 0x48, 0x89, 0x38)
	code = append(code, movabsRAX(modAddr)...)
	code = append(code, 0x48, 0x89, 0x30)
	code = append(code, movabsRAX(reportPC)...)
	code = append(code, 0xff, 0xe0)
	return code
}

// installTrampoline writes a freshly built trampoline into a freshly
// mapped read/write/exec page and patches d's GOT slot 2 to point at it,
// matching the original's setup_got: a real dynamic linker's
// GOT[0]/[1]/[2] hold the link_map pointer and the lazy-bind resolver;
// slot 2 here holds this crash guard instead, since lazy binding is
// never performed. A DSO without DT_PLTGOT has no lazy-bind slot to
// patch and is left alone.
func installTrampoline(d *DSO) error {
	gotAddr := d.dynamic[dtPLTGOT]
	if gotAddr == 0 {
		return nil
	}

	page, err := sysMmap(0, pageSize, ProtRead|ProtWrite|ProtExec, MapPrivate|MapAnonymous, -1, 0)
	if err != nil {
		return newFatal(CategoryHostIO, "%s: mapping trampoline page: %v", d.Name, err)
	}
	code := buildTrampolineCode()
	copy(addrBytes(page, len(code)), code)

	writeAbs(d.base+uintptr(gotAddr)+16, uint64(page))
	return nil
}
