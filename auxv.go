// Completion: 100% - Process-init decoder
package main

import "fmt"

// Auxiliary-vector tags the loader understands. Tags at or above AuxMaxTag
// are discarded during the walk but never stop it early (§4.1).
const (
	AT_NULL   = 0
	AT_IGNORE = 1
	AT_EXECFD = 2
	AT_PHDR   = 3
	AT_PHENT  = 4
	AT_PHNUM  = 5
	AT_PAGESZ = 6
	AT_BASE   = 7
	AT_FLAGS  = 8
	AT_ENTRY  = 9
	AT_NOTELF = 10
	AT_UID    = 11
	AT_EUID   = 12
	AT_GID    = 13
	AT_EGID   = 14

	// AuxMaxTag bounds the dense auxv table; tags >= this are ignored.
	AuxMaxTag = 15
)

// AuxView is a snapshot of process-init data: argument count, argument and
// environment pointer sequences, and a dense auxiliary-vector table keyed by
// tag. It is created once from the initial stack frame and never mutated
// afterward (§3).
type AuxView struct {
	Argc int
	Argv []uint64 // raw argument pointers, as handed to the process
	Envv []uint64 // raw environment pointers
	aux  [AuxMaxTag]uint64
}

// Aux returns the value stored for tag, or 0 if the tag was never present
// (0 also distinguishes "not present" from a legitimate value of 0 for every
// tag this loader reads, since AT_EXECFD/AT_PHDR/AT_ENTRY are all nonzero by
// construction when the kernel actually sets them).
func (a *AuxView) Aux(tag int) uint64 {
	if tag < 0 || tag >= AuxMaxTag {
		return 0
	}
	return a.aux[tag]
}

// DecodeProcessStack interprets the raw stack image the kernel builds for a
// new process, per §4.1: the first word is argc, the next argc words are
// argument pointers followed by a NULL terminator, then environment
// pointers followed by a NULL terminator, then (tag, value) pairs
// terminated by AT_NULL. stack must contain at least the argc word.
func DecodeProcessStack(stack []uint64) (*AuxView, error) {
	if len(stack) < 1 {
		return nil, newFatal(CategoryProcessInit, "process stack too short to contain argc")
	}
	av := &AuxView{}
	av.Argc = int(stack[0])

	argvStart := 1
	if argvStart+av.Argc+1 > len(stack) {
		return nil, newFatal(CategoryProcessInit, "process stack truncated within argv")
	}
	av.Argv = stack[argvStart : argvStart+av.Argc]
	// stack[argvStart+argc] is the NULL terminator after argv.
	envvStart := argvStart + av.Argc + 1

	envEnd := envvStart
	for {
		if envEnd >= len(stack) {
			return nil, newFatal(CategoryProcessInit, "process stack truncated within envp")
		}
		if stack[envEnd] == 0 {
			break
		}
		envEnd++
	}
	av.Envv = stack[envvStart:envEnd]

	auxStart := envEnd + 1
	for i := auxStart; ; i += 2 {
		if i+1 >= len(stack) {
			return nil, newFatal(CategoryProcessInit, "process stack truncated within auxv")
		}
		tag, val := stack[i], stack[i+1]
		if tag == AT_NULL {
			break
		}
		if tag < AuxMaxTag {
			av.aux[tag] = val
		}
		// Tags >= AuxMaxTag are ignored but the walk continues (§4.1).
	}
	return av, nil
}

// NewSyntheticAuxView builds an AuxView directly from decoded fields,
// bypassing the raw-stack walk. Test fixtures and the CLI harness (which
// already has argv/envp/auxv as normal Go values, not a kernel-built stack
// image) use this instead of re-serializing into a fake stack just to
// re-parse it.
func NewSyntheticAuxView(argv, envv []uint64, aux map[int]uint64) *AuxView {
	av := &AuxView{Argc: len(argv), Argv: argv, Envv: envv}
	for tag, val := range aux {
		if tag >= 0 && tag < AuxMaxTag {
			av.aux[tag] = val
		}
	}
	return av
}

// Dump writes every auxiliary-vector slot this loader recognizes through
// the diagnostics formatter, reproducing the trace
// original_source/02_process_init/entry.c produces on startup.
func (a *AuxView) Dump(fd int) {
	diagf(fd, "Got %d arg(s)\n", a.Argc)
	diagf(fd, "Print auxiliary vector\n")
	diagf(fd, "\tAT_EXECFD: %ld\n", int64(a.Aux(AT_EXECFD)))
	diagf(fd, "\tAT_PHDR  : %p\n", uintptr(a.Aux(AT_PHDR)))
	diagf(fd, "\tAT_PHENT : %ld\n", int64(a.Aux(AT_PHENT)))
	diagf(fd, "\tAT_PHNUM : %ld\n", int64(a.Aux(AT_PHNUM)))
	diagf(fd, "\tAT_PAGESZ: %ld\n", int64(a.Aux(AT_PAGESZ)))
	diagf(fd, "\tAT_BASE  : %lx\n", a.Aux(AT_BASE))
	diagf(fd, "\tAT_FLAGS : %ld\n", int64(a.Aux(AT_FLAGS)))
	diagf(fd, "\tAT_ENTRY : %p\n", uintptr(a.Aux(AT_ENTRY)))
	diagf(fd, "\tAT_NOTELF: %lx\n", a.Aux(AT_NOTELF))
	diagf(fd, "\tAT_UID   : %ld\n", int64(a.Aux(AT_UID)))
	diagf(fd, "\tAT_EUID  : %ld\n", int64(a.Aux(AT_EUID)))
	diagf(fd, "\tAT_GID   : %ld\n", int64(a.Aux(AT_GID)))
	diagf(fd, "\tAT_EGID  : %ld\n", int64(a.Aux(AT_EGID)))
}

func (a *AuxView) String() string {
	return fmt.Sprintf("AuxView{argc=%d, AT_PHDR=0x%x, AT_ENTRY=0x%x}", a.Argc, a.Aux(AT_PHDR), a.Aux(AT_ENTRY))
}
