// Package vm implements the target machine: a 16-bit byte-addressable CPU,
// its device bus, and the memory-mapped devices attached to it.
//
// The package is organized the way the instruction set is organized: types.go
// defines the base data types (words, registers, flags); instr.go decodes the
// bit fields of an encoded instruction; ops.go enumerates opcodes and
// addressing modes; bus.go and devices.go implement the memory-mapped I/O
// fabric; cpu.go and exec.go implement the fetch-decode-execute loop; and
// loader.go loads an assembled binary image into memory.
package vm
