package main

import "testing"

// buildStoreByteFn assembles a tiny x86_64 routine that stores value at the
// fixed address target, then returns: `movabs rax, target; mov byte [rax],
// value; ret`. It exists purely to give runInit/runFini real, directly
// observable machine code to execute, the same style of hand-assembled
// bytes trampoline.go installs at GOT[2].
func buildStoreByteFn(target uintptr, value byte) []byte {
	code := make([]byte, 0, 14)
	code = append(code, 0x48, 0xB8) // movabs rax, imm64
	a := uint64(target)
	for i := 0; i < 8; i++ {
		code = append(code, byte(a))
		a >>= 8
	}
	code = append(code, 0xC6, 0x00, value) // mov byte [rax], value
	code = append(code, 0xC3)              // ret
	return code
}

func TestRunInitAscendingOrder(t *testing.T) {
	codePage := mmapExecTestPage(t)
	markerPage := mmapTestPage(t)

	fn0 := buildStoreByteFn(markerPage, 1)
	fn1 := buildStoreByteFn(markerPage, 2)
	copy(addrBytes(codePage, len(fn0)), fn0)
	copy(addrBytes(codePage+64, len(fn1)), fn1)

	arrOff := uint64(256)
	arr := addrBytes(codePage+uintptr(arrOff), 16)
	putU64(arr[0:8], 0)
	putU64(arr[8:16], 64)

	d := &DSO{Name: "x", base: codePage, memLow: 0, memHigh: pageSize}
	d.dynamic[dtInitArray] = arrOff
	d.dynamic[dtInitArraySz] = 16

	if err := runInit(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := addrBytes(markerPage, 1)[0]; got != 2 {
		t.Fatalf("expected last ascending entry (2) to win, got %d", got)
	}
}

func TestRunFiniDescendingOrder(t *testing.T) {
	codePage := mmapExecTestPage(t)
	markerPage := mmapTestPage(t)

	fn0 := buildStoreByteFn(markerPage, 10)
	fn1 := buildStoreByteFn(markerPage, 20)
	copy(addrBytes(codePage, len(fn0)), fn0)
	copy(addrBytes(codePage+64, len(fn1)), fn1)

	arrOff := uint64(256)
	arr := addrBytes(codePage+uintptr(arrOff), 16)
	putU64(arr[0:8], 0)
	putU64(arr[8:16], 64)

	d := &DSO{Name: "x", base: codePage, memLow: 0, memHigh: pageSize}
	d.dynamic[dtFiniArray] = arrOff
	d.dynamic[dtFiniArraySz] = 16

	if err := runFini(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := addrBytes(markerPage, 1)[0]; got != 10 {
		t.Fatalf("expected first (index-0) entry to win under descending order, got %d", got)
	}
}

// writeRela encodes one Elf64_Rela entry directly into img at off.
func writeRela(img []byte, off int, offset, info uint64, addend int64) {
	putU64(img[off:off+8], offset)
	putU64(img[off+8:off+16], info)
	putU64(img[off+16:off+24], uint64(addend))
}

// TestRunFullLifecycle exercises Run end to end against two synthetic,
// mmap-built DSOs: a dependency and a main program, each carrying one
// R_X86_64_RELATIVE relocation and hand-assembled DT_INIT/DT_FINI
// routines, plus a DT_PLTGOT slot for installTrampoline to patch. Shared
// marker cells double as relocate/init/fini order checks the same way
// TestRunInitAscendingOrder/TestRunFiniDescendingOrder already do: the
// last writer in the required order wins.
func TestRunFullLifecycle(t *testing.T) {
	libBase := mmapExecTestPage(t)
	progBase := mmapExecTestPage(t)
	markers := mmapTestPage(t)

	const (
		initCell  = 0  // lib writes 1, prog writes 2: prog must win
		finiCell  = 8  // prog writes 10, lib writes 20: lib must win
		entryCell = 16 // the program entry point writes 42
	)

	lib := &DSO{Name: "lib", base: libBase, memLow: 0, memHigh: pageSize}
	libInit := buildStoreByteFn(markers+initCell, 1)
	libFini := buildStoreByteFn(markers+finiCell, 20)
	copy(addrBytes(libBase+128, len(libInit)), libInit)
	copy(addrBytes(libBase+64, len(libFini)), libFini)
	writeRela(addrBytes(libBase, pageSize), 256, 32, uint64(rX8664Relative), 0x999)
	lib.dynamic[dtInit] = 128
	lib.dynamic[dtFini] = 64
	lib.dynamic[dtRela] = 256
	lib.dynamic[dtRelaSz] = relaSize
	lib.dynamic[dtPLTGOT] = 512

	prog := &DSO{Name: "main", base: progBase, memLow: 0, memHigh: pageSize}
	progInit := buildStoreByteFn(markers+initCell, 2)
	progEntry := buildStoreByteFn(markers+entryCell, 42)
	progFini := buildStoreByteFn(markers+finiCell, 10)
	copy(addrBytes(progBase+192, len(progInit)), progInit)
	copy(addrBytes(progBase+64, len(progEntry)), progEntry)
	copy(addrBytes(progBase+128, len(progFini)), progFini)
	writeRela(addrBytes(progBase, pageSize), 256, 32, uint64(rX8664Relative), 0x111)
	prog.dynamic[dtInit] = 192
	prog.dynamic[dtFini] = 128
	prog.dynamic[dtRela] = 256
	prog.dynamic[dtRelaSz] = relaSize
	prog.dynamic[dtPLTGOT] = 512
	prog.entry = progBase + 64

	if err := Run(prog, lib); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Relocations: lib first, then prog, each against its own base.
	libReloc := leUint64(addrBytes(libBase+32, 8))
	if want := uint64(libBase) + 0x999; libReloc != want {
		t.Fatalf("lib RELATIVE reloc: got 0x%x want 0x%x", libReloc, want)
	}
	progReloc := leUint64(addrBytes(progBase+32, 8))
	if want := uint64(progBase) + 0x111; progReloc != want {
		t.Fatalf("prog RELATIVE reloc: got 0x%x want 0x%x", progReloc, want)
	}

	// Init order: lib then prog, so prog's write (2) must be the one left.
	if got := addrBytes(markers+initCell, 1)[0]; got != 2 {
		t.Fatalf("init order: expected prog (2) to win, got %d", got)
	}
	// Entry point ran.
	if got := addrBytes(markers+entryCell, 1)[0]; got != 42 {
		t.Fatalf("entry point did not run: got %d", got)
	}
	// Fini order: prog then lib, so lib's write (20) must be the one left.
	if got := addrBytes(markers+finiCell, 1)[0]; got != 20 {
		t.Fatalf("fini order: expected lib (20) to win, got %d", got)
	}

	// Both trampolines installed: GOT slot 2 patched to a nonzero page.
	if slot2 := leUint64(addrBytes(libBase+512+16, 8)); slot2 == 0 {
		t.Fatal("lib trampoline not installed")
	}
	if slot2 := leUint64(addrBytes(progBase+512+16, 8)); slot2 == 0 {
		t.Fatal("prog trampoline not installed")
	}
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

func mmapExecTestPage(t *testing.T) uintptr {
	t.Helper()
	addr, err := sysMmap(0, pageSize, ProtRead|ProtWrite|ProtExec, MapPrivate|MapAnonymous, -1, 0)
	if err != nil {
		t.Fatalf("mmap failed: %v", err)
	}
	t.Cleanup(func() { _ = sysMunmap(addr, pageSize) })
	return addr
}
