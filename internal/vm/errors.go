package vm

// errors.go collects the CPU-side error taxonomy: decode
// faults, the cycle limit, and halt (a normal termination, not an error).

import (
	"errors"
	"fmt"
)

// ErrCycleLimit is returned by Run when MaxCycles is exceeded before the
// program halts.
var ErrCycleLimit = errors.New("vm: cycle limit exceeded")

// ErrHalt is a sentinel some callers may want to compare against; Run itself
// never returns it; a halted CPU simply stops and Run returns nil.
var ErrHalt = errors.New("vm: halted")

// DecodeError reports an undefined opcode within a class or an addressing
// mode with no address form where one is required.
type DecodeError struct {
	Instruction Instruction
	Reason      string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("vm: decode fault at %s: %s", e.Instruction, e.Reason)
}
