// Completion: 100% - Process lifecycle orchestration
package main

import "unsafe"

// callNoArg invokes the code at addr as a niladic, no-return native
// function. Every lifecycle entry point this loader calls - DT_INIT,
// DT_INIT_ARRAY/DT_FINI_ARRAY entries, DT_FINI, the program's own entry
// point - has that signature. Go has no portable way to call a bare code
// address directly. A func value's in-memory representation is a pointer
// to a funcval struct whose first word is the real entry PC, so landing
// on addr takes two levels of indirection: codePtr holds addr itself,
// ptr holds the address of codePtr, and reinterpreting ptr's own storage
// as a func value makes the single dereference Go performs when calling
// fn() land on codePtr - which holds addr.
func callNoArg(addr uintptr) {
	if addr == 0 {
		return
	}
	codePtr := addr
	ptr := unsafe.Pointer(&codePtr)
	fn := *(*func())(unsafe.Pointer(&ptr))
	fn()
}

// runInit executes d's DT_INIT function (if present) followed by each
// DT_INIT_ARRAY entry in ascending order (§4.6 step 3).
func runInit(d *DSO) error {
	if init := d.dynamic[dtInit]; init != 0 {
		callNoArg(d.base + uintptr(init))
	}
	arr := d.dynamic[dtInitArray]
	sz := d.dynamic[dtInitArraySz]
	if arr == 0 || sz == 0 {
		return nil
	}
	n := sz / 8
	for i := uint64(0); i < n; i++ {
		b, err := d.at(arr+i*8, 8)
		if err != nil {
			return newFatal(CategoryMalformedELF, "%s: reading DT_INIT_ARRAY[%d]: %v", d.Name, i, err)
		}
		fnAddr := leUint64(b)
		callNoArg(d.base + uintptr(fnAddr))
	}
	return nil
}

// runFini executes each DT_FINI_ARRAY entry in descending order, then
// DT_FINI if present (§4.6 step 6).
func runFini(d *DSO) error {
	arr := d.dynamic[dtFiniArray]
	sz := d.dynamic[dtFiniArraySz]
	if arr != 0 && sz != 0 {
		n := sz / 8
		for i := n; i > 0; i-- {
			b, err := d.at(arr+(i-1)*8, 8)
			if err != nil {
				return newFatal(CategoryMalformedELF, "%s: reading DT_FINI_ARRAY[%d]: %v", d.Name, i-1, err)
			}
			fnAddr := leUint64(b)
			callNoArg(d.base + uintptr(fnAddr))
		}
	}
	if fini := d.dynamic[dtFini]; fini != 0 {
		callNoArg(d.base + uintptr(fini))
	}
	return nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Run performs the full §4.6 lifecycle: build the two-node link map,
// resolve the library's relocations then the main program's, run
// initializers (library then main program), install lazy-bind
// trampolines, invoke the entry point, then run finalizers (main program
// then library).
func Run(prog, lib *DSO) error {
	lm := NewLinkMap(prog, lib)
	copyScope := lm.Next // skip the main program when resolving COPY symbols

	if err := relocateDSO(lib, lm, copyScope); err != nil {
		return err
	}
	if err := relocateDSO(prog, lm, copyScope); err != nil {
		return err
	}

	if err := runInit(lib); err != nil {
		return err
	}
	if err := runInit(prog); err != nil {
		return err
	}

	if err := installTrampoline(lib); err != nil {
		return err
	}
	if err := installTrampoline(prog); err != nil {
		return err
	}

	callNoArg(prog.entry)

	if err := runFini(prog); err != nil {
		return err
	}
	if err := runFini(lib); err != nil {
		return err
	}
	return nil
}
