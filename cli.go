// Completion: 100% - Command-line harness
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

// VerboseMode gates the per-relocation trace line this loader emits
// through diagf; subcommands enable it from -v or from DYNLD_VERBOSE so a
// run can be made noisy without recompiling.
var VerboseMode bool

const usage = `dynld - a minimal x86_64 ELF dependency loader

Usage:
  dynld inspect <shared-object>          decode and print an ELF64 ET_DYN's
                                          dynamic section
  dynld lookup <shared-object> <symbol>  map a shared object and resolve a
                                          symbol within it
  dynld auxv                             decode and print this process's own
                                          auxiliary vector from /proc/self/auxv
  dynld run <shared-object>              treat this running process itself as
                                          the main DSO (via /proc/self/auxv),
                                          map shared-object as its one
                                          dependency, then run the full
                                          relocate/init/entry/fini lifecycle

Environment:
  DYNLD_VERBOSE   "1" enables -v without passing it explicitly
  DYNLD_CWD       overrides the directory dependency names are resolved in
`

// Main is the CLI entry point, returning the process exit status.
func Main(args []string) int {
	fs := flag.NewFlagSet("dynld", flag.ContinueOnError)
	verbose := fs.Bool("v", env.Bool("DYNLD_VERBOSE"), "enable verbose relocation tracing")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	VerboseMode = *verbose

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	if cwd := env.StrOr("DYNLD_CWD", ""); cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			Fatal(newFatal(CategoryHostIO, "chdir to DYNLD_CWD %q: %v", cwd, err))
		}
	}

	switch rest[0] {
	case "inspect":
		return cmdInspect(rest[1:])
	case "lookup":
		return cmdLookup(rest[1:])
	case "auxv":
		return cmdAuxv(rest[1:])
	case "run":
		return cmdRun(rest[1:])
	default:
		fmt.Fprintf(os.Stderr, "dynld: unknown subcommand %q\n\n", rest[0])
		fs.Usage()
		return 2
	}
}

func cmdInspect(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: dynld inspect <shared-object>")
		return 2
	}
	d, err := MapDependency(args[0])
	if err != nil {
		Fatal(err)
	}
	fmt.Printf("base:        0x%x\n", d.Base())
	fmt.Printf("DT_STRTAB:   0x%x\n", d.Dynamic(dtStrTab))
	fmt.Printf("DT_SYMTAB:   0x%x\n", d.Dynamic(dtSymTab))
	fmt.Printf("DT_HASH:     0x%x\n", d.Dynamic(dtHash))
	fmt.Printf("DT_RELA:     0x%x (size %d)\n", d.Dynamic(dtRela), d.Dynamic(dtRelaSz))
	fmt.Printf("DT_JMPREL:   0x%x (size %d)\n", d.Dynamic(dtJmpRel), d.Dynamic(dtPLTRelSz))
	fmt.Printf("DT_INIT:     0x%x\n", d.Dynamic(dtInit))
	fmt.Printf("DT_FINI:     0x%x\n", d.Dynamic(dtFini))
	n, err := numDynSyms(d)
	if err == nil {
		fmt.Printf("symbols:     %d\n", n)
	}
	// Needed-dependency names are copied through a scratch arena rather
	// than kept as slices into the mapped image, so printing them never
	// holds a reference into memory a later munmap could invalidate.
	ba := NewBumpAllocator()
	for _, off := range d.Needed() {
		name, err := getStr(d, off)
		if err != nil {
			continue
		}
		buf := ba.Alloc(len(name))
		if buf == nil {
			fmt.Printf("needed:      %s\n", name)
			continue
		}
		copy(buf, name)
		fmt.Printf("needed:      %s\n", string(buf))
		ba.Free(buf)
	}
	return 0
}

func cmdLookup(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: dynld lookup <shared-object> <symbol>")
		return 2
	}
	d, err := MapDependency(args[0])
	if err != nil {
		Fatal(err)
	}
	lm := NewLinkMap(d)
	owner, sym, ok := lookupSym(lm, args[1])
	if !ok {
		fmt.Fprintf(os.Stderr, "dynld: symbol %q not found in %s\n", args[1], args[0])
		return 1
	}
	fmt.Printf("%s resolved to 0x%x (size %d)\n", args[1], owner.Base()+uintptr(sym.Value), sym.Size)
	return 0
}

func cmdAuxv(args []string) int {
	av, err := readSelfAuxv()
	if err != nil {
		Fatal(err)
	}
	av.Dump(stdoutFD)
	return 0
}

func cmdRun(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: dynld run <shared-object>")
		return 2
	}
	av, err := readSelfAuxv()
	if err != nil {
		Fatal(err)
	}
	prog, err := NewMainDSO(av)
	if err != nil {
		Fatal(err)
	}
	lib, err := MapDependency(args[0])
	if err != nil {
		Fatal(err)
	}
	if err := Run(prog, lib); err != nil {
		Fatal(err)
	}
	return 0
}

// readSelfAuxv decodes the invoking process's own auxiliary vector from
// /proc/self/auxv, the (tag,value)-pair-only layout the kernel exposes
// there (no argc/argv/envp, unlike the raw process stack DecodeProcessStack
// parses). It is the realistic way this hosted CLI can exercise AuxView
// decoding against live process state without being exec'd as a PT_INTERP.
func readSelfAuxv() (*AuxView, error) {
	fd, err := sysOpenReadOnly("/proc/self/auxv")
	if err != nil {
		return nil, newFatal(CategoryHostIO, "opening /proc/self/auxv: %v", err)
	}
	defer sysClose(fd)

	var words []uint64
	buf := make([]byte, 16)
	for {
		n, err := sysRead(fd, buf)
		if n == 0 || err != nil {
			break
		}
		for off := 0; off+8 <= n; off += 8 {
			words = append(words, leUint64(buf[off:off+8]))
		}
	}

	aux := map[int]uint64{}
	for i := 0; i+1 < len(words); i += 2 {
		tag, val := words[i], words[i+1]
		if tag == AT_NULL {
			break
		}
		aux[int(tag)] = val
	}
	return NewSyntheticAuxView(nil, nil, aux), nil
}
