package asm

// gen.go packs a resolved Entry into its final instruction-word-plus-trailing-
// bytes encoding, mirroring the bit layout vm.Instruction decodes.

import (
	"encoding/binary"
	"fmt"

	"github.com/smoynes/elsie/internal/vm"
)

// encodeInstruction packs one fully resolved instruction entry into bytes,
// using order to pack the word and any multi-byte immediate.
// Operand shapes have already been validated by buildEntry; any mismatch
// surfacing here is an assembler bug, not a user error.
func encodeInstruction(entry Entry, order binary.ByteOrder) ([]byte, error) {
	spec, ok := opTable[entry.Mnemonic]
	if !ok {
		return nil, fmt.Errorf("asm: internal error: unknown mnemonic %q at encode time", entry.Mnemonic)
	}

	var (
		regA     vm.GPR
		operand4 uint8
		trailing []byte
	)

	switch spec.Kind {
	case kindNullary:
		// No operands; word only.

	case kindDestSrc:
		regA = entry.Operands[0].(RegisterOperand).Reg
		operand4, trailing = encodeOperand(entry.Operands[1], order)

	case kindDestOnly:
		regA = entry.Operands[0].(RegisterOperand).Reg

	case kindPush:
		operand4 = uint8(entry.Operands[0].(RegisterOperand).Reg)

	case kindTarget:
		operand4, trailing = encodeOperand(entry.Operands[0], order)

	default:
		return nil, fmt.Errorf("asm: internal error: unhandled operand kind for %s", entry.Mnemonic)
	}

	word := vm.NewInstruction(spec.Opcode, regA, operand4, entry.Mode)

	out := make([]byte, 2, entry.Length)
	order.PutUint16(out, uint16(word))
	out = append(out, trailing...)

	if len(out) != entry.Length {
		return nil, fmt.Errorf("asm: internal error: %s encoded to %d bytes, want %d",
			entry.Mnemonic, len(out), entry.Length)
	}

	return out, nil
}

// encodeOperand returns the 4-bit operand field and any trailing bytes for
// a single resolved operand, per the addressing-mode table.
func encodeOperand(op Operand, order binary.ByteOrder) (uint8, []byte) {
	switch o := op.(type) {
	case RegisterOperand:
		return uint8(o.Reg), nil

	case NumberOperand:
		switch o.Mode() {
		case vm.ModeImm4:
			return uint8(o.Value), nil
		case vm.ModeImm8:
			return 0, []byte{byte(o.Value)}
		default: // ModeImm16.
			b := make([]byte, 2)
			order.PutUint16(b, o.Value)

			return 0, b
		}

	case IndirectOperand:
		if reg, ok := o.Inner.(RegisterOperand); ok {
			return uint8(reg.Reg), nil
		}

		n := o.Inner.(NumberOperand)
		b := make([]byte, 2)
		order.PutUint16(b, n.Value)

		return 0, b

	case IndirectOffsetOperand:
		b := make([]byte, 2)
		order.PutUint16(b, uint16(o.Imm))

		return uint8(o.Reg), b

	default:
		panic(fmt.Sprintf("asm: internal error: unresolved operand %T at encode time", op))
	}
}
