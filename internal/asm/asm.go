package asm

// asm.go defines the assembler's data model: the parsed operand variant, the
// symbol table, program entries, and the error taxonomy.

import (
	"fmt"
	"strings"

	"github.com/smoynes/elsie/internal/vm"
)

// SourceInfo locates a diagnostic in the source: the file it came from and
// its 1-based line number within that file.
type SourceInfo struct {
	File string
	Line int
}

func (s SourceInfo) String() string {
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// SyntaxError reports a malformed line: an unknown mnemonic or directive, an
// illegal operand shape, a local label with no preceding global label, or a
// reserved name reused as a symbol.
type SyntaxError struct {
	Source SourceInfo
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", e.Source, e.Msg)
}

// UnresolvedSymbolError reports a symbol reference that survives the
// resolve pass.
type UnresolvedSymbolError struct {
	Source SourceInfo
	Name   string
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("%s: unresolved symbol %q", e.Source, e.Name)
}

// EncodeMismatchError reports an entry whose recorded address disagrees
// with the emission cursor: a bug in the length calculator, not a user
// error.
type EncodeMismatchError struct {
	Entry   int
	Want    vm.Word
	Got     vm.Word
}

func (e *EncodeMismatchError) Error() string {
	return fmt.Sprintf("asm: entry %d: encode mismatch: cursor %s, recorded address %s",
		e.Entry, e.Got, e.Want)
}

// Operand is the parsed operand variant: register, number, symbol
// reference, indirect, or indirect-with-offset. The encoder pattern-matches
// it exhaustively.
type Operand interface {
	// Mode returns the addressing mode this operand occupies. It is fixed
	// at parse time and never re-derived from a resolved value, so that
	// forward symbol references keep their reserved imm16 slot regardless
	// of the symbol's eventual magnitude.
	Mode() vm.AddressingMode
	String() string
}

// RegisterOperand is a bare register name: r0..r7, sp, or pc.
type RegisterOperand struct{ Reg vm.GPR }

func (RegisterOperand) Mode() vm.AddressingMode { return vm.ModeReg }
func (o RegisterOperand) String() string        { return o.Reg.String() }

// NumberOperand is a resolved numeric value: an immediate literal, a
// character literal, or a symbol reference after the resolve pass. mode is
// fixed at the point the operand was created (imm4/imm8/imm16 by magnitude
// for a literal; always imm16 for a resolved symbol).
type NumberOperand struct {
	Value uint16
	mode  vm.AddressingMode
}

// NewNumberOperand classifies a literal value's addressing mode by
// magnitude, per the operand parser's table.
func NewNumberOperand(v uint16) NumberOperand {
	mode := vm.ModeImm16

	switch {
	case v <= 0xF:
		mode = vm.ModeImm4
	case v <= 0xFF:
		mode = vm.ModeImm8
	}

	return NumberOperand{Value: v, mode: mode}
}

// NewResolvedOperand builds the operand that replaces a symbol_ref during
// the resolve pass. Its mode is always imm16, regardless of the resolved
// value's magnitude, since the slot was already reserved at parse time.
func NewResolvedOperand(v uint16) NumberOperand {
	return NumberOperand{Value: v, mode: vm.ModeImm16}
}

func (o NumberOperand) Mode() vm.AddressingMode { return o.mode }
func (o NumberOperand) String() string          { return fmt.Sprintf("%#x", o.Value) }

// SymbolOperand is an unresolved reference to a label or @let alias. It
// always occupies the imm16 slot until the resolve pass replaces it with a
// NumberOperand.
type SymbolOperand struct{ Name string }

func (SymbolOperand) Mode() vm.AddressingMode { return vm.ModeImm16 }
func (o SymbolOperand) String() string        { return o.Name }

// IndirectOperand is `[ X ]`: a memory reference through a register or an
// absolute address (immediate or symbol).
type IndirectOperand struct{ Inner Operand }

func (o IndirectOperand) Mode() vm.AddressingMode {
	if _, ok := o.Inner.(RegisterOperand); ok {
		return vm.ModeIndirectReg
	}

	return vm.ModeIndirectImm16
}

func (o IndirectOperand) String() string { return "[" + o.Inner.String() + "]" }

// IndirectOffsetOperand is `[ reg + imm ]` or `[ reg - imm ]`. The sign is
// folded into Imm at parse time, so
// the CPU always sign-extends the stored value unconditionally.
type IndirectOffsetOperand struct {
	Reg vm.GPR
	Imm int16
}

func (IndirectOffsetOperand) Mode() vm.AddressingMode { return vm.ModeIndirectOffset }

func (o IndirectOffsetOperand) String() string {
	sign := "+"
	imm := o.Imm

	if imm < 0 {
		sign, imm = "-", -imm
	}

	return fmt.Sprintf("[%s %s %#x]", o.Reg, sign, imm)
}

// Length returns the instruction's total byte length: the fixed 2-byte
// opcode word plus whatever the addressing mode requires.
func Length(mode vm.AddressingMode) int {
	return 2 + mode.ExtraBytes()
}

// EntryKind distinguishes instruction entries from data entries in the
// assembled program.
type EntryKind int

const (
	EntryInstruction EntryKind = iota
	EntryData
)

// Entry is one ordered record of the assembled program: an instruction or a
// run of data bytes. Invariant: for entries[i], i>0, Address equals
// entries[i-1].Address + entries[i-1].Length.
type Entry struct {
	Kind    EntryKind
	Source  SourceInfo
	Address vm.Word
	Length  int

	// Instruction fields.
	Mnemonic string
	Opcode   vm.Opcode
	Operands []Operand
	Mode     vm.AddressingMode

	// Data fields.
	Bytes []byte
}

// symbolValue is either a resolved address or a raw @let token value.
type symbolValue struct {
	addr    uint16
	isAlias bool
	alias   string // Raw token, re-parsed wherever the alias is used.
}

// SymbolTable maps symbol names to addresses (from labels) or raw tokens
// (from @let). Names are case-sensitive; register mnemonics are reserved
// regardless of case.
type SymbolTable struct {
	values map[string]symbolValue
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{values: make(map[string]symbolValue)}
}

// IsReserved reports whether name collides with a register mnemonic,
// case-insensitively.
func IsReserved(name string) bool {
	switch strings.ToLower(name) {
	case "r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "sp", "pc":
		return true
	default:
		return false
	}
}

// DefineLabel binds name to an address. It fails if name is already bound
// or reserved.
func (st *SymbolTable) DefineLabel(name string, addr vm.Word) error {
	if IsReserved(name) {
		return fmt.Errorf("asm: %q is a reserved register name", name)
	}

	if _, ok := st.values[name]; ok {
		return fmt.Errorf("asm: %q is already defined", name)
	}

	st.values[name] = symbolValue{addr: uint16(addr)}

	return nil
}

// DefineAlias binds name to a raw token from an @let directive.
func (st *SymbolTable) DefineAlias(name, token string) error {
	if IsReserved(name) {
		return fmt.Errorf("asm: %q is a reserved register name", name)
	}

	if _, ok := st.values[name]; ok {
		return fmt.Errorf("asm: %q is already defined", name)
	}

	st.values[name] = symbolValue{isAlias: true, alias: token}

	return nil
}

// Lookup returns the raw alias token for an @let-defined name, if any.
func (st *SymbolTable) Lookup(name string) (token string, ok bool) {
	v, ok := st.values[name]
	if !ok || !v.isAlias {
		return "", false
	}

	return v.alias, true
}

// Resolve returns the address bound to a label, if any.
func (st *SymbolTable) Resolve(name string) (addr vm.Word, ok bool) {
	v, exists := st.values[name]
	if !exists || v.isAlias {
		return 0, false
	}

	return vm.Word(v.addr), true
}
