// Completion: 100% - Formatted diagnostics sink
package main

import "strconv"

// Fmt is the "%printf%-like sink" §6 specifies as an external collaborator:
// a minimal formatter supporting %d, %ld, %x, %lx, %s, %p, writing into a
// caller-supplied fixed buffer. It is modeled directly on
// original_source/lib/src/fmt.c's vfmt/fmt: a single pass over the format
// string, an 'l'-count that widens the next numeric verb from 32 to 64 bit,
// and a bounds-checked `put` that keeps counting even past the end of buf so
// the untruncated length can still be reported.
//
// Go has no va_list, so each verb consumes the next element of args; %d
// expects int or int64 (int64 when preceded by 'l'), %x expects uint32 or
// uint64 (uint64 when preceded by 'l'), %s expects string, %p expects
// anything convertible to uintptr via toPointerValue.
func Fmt(buf []byte, format string, args ...any) int {
	i := 0
	argi := 0
	put := func(c byte) {
		if i < len(buf) {
			buf[i] = c
		}
		i++
	}
	puts := func(s string) {
		for j := 0; j < len(s); j++ {
			put(s[j])
		}
	}
	next := func() any {
		if argi >= len(args) {
			return nil
		}
		v := args[argi]
		argi++
		return v
	}

	p := 0
	n := len(format)
	for p < n {
		if format[p] != '%' {
			put(format[p])
			p++
			continue
		}
		p++ // consume '%'
		lcnt := 0
		for p < n && format[p] == 'l' {
			lcnt++
			p++
		}
		if p >= n {
			break
		}
		verb := format[p]
		p++
		switch verb {
		case 'd':
			var val int64
			if lcnt > 0 {
				val, _ = next().(int64)
			} else if v, ok := next().(int); ok {
				val = int64(v)
			}
			if val < 0 {
				val = -val
				put('-')
			}
			puts(strconv.FormatUint(uint64(val), 10))
		case 'x':
			var val uint64
			if lcnt > 0 {
				val, _ = next().(uint64)
			} else if v, ok := next().(uint32); ok {
				val = uint64(v)
			}
			puts(strconv.FormatUint(val, 16))
		case 's':
			s, _ := next().(string)
			puts(s)
		case 'p':
			val := toPointerValue(next())
			put('0')
			put('x')
			puts(strconv.FormatUint(val, 16))
		default:
			put(verb)
		}
	}

	// Truncation is signalled by overwriting the buffer's tail with a short
	// notice instead of silently losing bytes (§6); the reported length is
	// always the untruncated count `i`, matching §8's boundary property.
	if len(buf) > 0 {
		if i >= len(buf) {
			const notice = "...\x00"
			if len(buf) >= len(notice) {
				copy(buf[len(buf)-len(notice):], notice)
			} else {
				buf[len(buf)-1] = 0
			}
		} else {
			buf[i] = 0
		}
	}
	return i
}

// toPointerValue coerces the handful of integer-ish types the core passes
// to %p (uintptr, uint64, int) into a uint64 for hex formatting.
func toPointerValue(v any) uint64 {
	switch x := v.(type) {
	case uintptr:
		return uint64(x)
	case uint64:
		return x
	case int:
		return uint64(x)
	case uint32:
		return uint64(x)
	default:
		return 0
	}
}

// diagScratchSize is the fixed scratch buffer size for the diagnostic sink,
// matching the original's stack-allocated `char scratch[...]`-style budget.
const diagScratchSize = 512

// diagf formats format/args into a fixed scratch buffer and writes the
// printable prefix (stopping at the formatter's NUL terminator) to fd via
// the raw syscall surface. Errors writing to the diagnostic stream are not
// escalated — there is nowhere left to report them.
func diagf(fd int, format string, args ...any) {
	var scratch [diagScratchSize]byte
	n := Fmt(scratch[:], format, args...)
	term := n
	if term >= len(scratch) {
		term = len(scratch) - 1
	}
	_, _ = sysWrite(fd, scratch[:term])
}
