package asm

// ops.go is the mnemonic table: one entry per opcode naming its operand
// shape, consulted by the parser to know how many operands to expect and
// by the encoder to know how to pack them.

import "github.com/smoynes/elsie/internal/vm"

// opKind classifies an opcode's operand shape.
type opKind int

const (
	kindNullary  opKind = iota // No operands: NOP, HALT, RET.
	kindDestSrc                // dest register, source operand (addressing mode varies).
	kindDestOnly               // dest register only: NOT, NEG, POPB, POP.
	kindPush                   // source register only, encoded in the 4-bit operand field.
	kindTarget                 // single operand, any addressing-mode shape: jumps, CALL.
)

type opSpec struct {
	Opcode vm.Opcode
	Kind   opKind

	// indirectOnly restricts a kindDestSrc operand to the three indirect
	// addressing modes, per LOAD/STORE's bracket-syntax requirement.
	indirectOnly bool
}

var opTable = map[string]opSpec{
	"NOP":  {vm.NOP, kindNullary, false},
	"HALT": {vm.HALT, kindNullary, false},
	"RET":  {vm.RET, kindNullary, false},
	"MOV":  {vm.MOV, kindDestSrc, false},

	"ADD":  {vm.ADD, kindDestSrc, false},
	"SUB":  {vm.SUB, kindDestSrc, false},
	"MUL":  {vm.MUL, kindDestSrc, false},
	"MULH": {vm.MULH, kindDestSrc, false},
	"AND":  {vm.AND, kindDestSrc, false},
	"OR":   {vm.OR, kindDestSrc, false},
	"XOR":  {vm.XOR, kindDestSrc, false},
	"CMP":  {vm.CMP, kindDestSrc, false},
	"NOT":  {vm.NOT, kindDestOnly, false},
	"NEG":  {vm.NEG, kindDestOnly, false},
	"SHL":  {vm.SHL, kindDestSrc, false},
	"SHR":  {vm.SHR, kindDestSrc, false},
	"ASR":  {vm.ASR, kindDestSrc, false},
	"ROL":  {vm.ROL, kindDestSrc, false},
	"ROR":  {vm.ROR, kindDestSrc, false},

	"JMP":  {vm.JMP, kindTarget, false},
	"JZ":   {vm.JZ, kindTarget, false},
	"JEQ":  {vm.JZ, kindTarget, false},
	"JNZ":  {vm.JNZ, kindTarget, false},
	"JNE":  {vm.JNZ, kindTarget, false},
	"JLT":  {vm.JLT, kindTarget, false},
	"JGT":  {vm.JGT, kindTarget, false},
	"JC":   {vm.JC, kindTarget, false},
	"JNC":  {vm.JNC, kindTarget, false},
	"CALL": {vm.CALL, kindTarget, false},

	"LOADB":  {vm.LOADB, kindDestSrc, true},
	"LOAD":   {vm.LOAD, kindDestSrc, true},
	"STOREB": {vm.STOREB, kindDestSrc, true},
	"STORE":  {vm.STORE, kindDestSrc, true},
	"PUSHB":  {vm.PUSHB, kindPush, false},
	"PUSH":   {vm.PUSH, kindPush, false},
	"POPB":   {vm.POPB, kindDestOnly, false},
	"POP":    {vm.POP, kindDestOnly, false},
}

// isIndirectMode reports whether mode is one of the three indirect forms.
func isIndirectMode(mode vm.AddressingMode) bool {
	switch mode {
	case vm.ModeIndirectReg, vm.ModeIndirectOffset, vm.ModeIndirectImm16:
		return true
	default:
		return false
	}
}
