package vm

// exec.go implements decode and execute: addressing-mode operand
// resolution, and the four per-class execution units (general, ALU, jump,
// memory/stack).

import "math/bits"

// execute decodes instr's class and dispatches to the matching unit.
func (cpu *CPU) execute(instr Instruction) error {
	switch instr.Class() {
	case ClassGeneral:
		return cpu.execGeneral(instr)
	case ClassALU:
		return cpu.execALU(instr)
	case ClassJump:
		return cpu.execJump(instr)
	case ClassMemStack:
		return cpu.execMemStack(instr)
	default:
		return &DecodeError{Instruction: instr, Reason: "undefined class"}
	}
}

// writeReg stores val in reg and derives Z/N from it, the way every
// register write does on the original machine: MOV, the ALU, LOAD/LOADB and
// POP/POPB all route through this one path rather than writing the
// register file directly.
func (cpu *CPU) writeReg(reg GPR, val Word) {
	cpu.Reg.Set(reg, val)
	cpu.Flags.setZN(val)
}

// regFromOperand converts a 4-bit operand field into a register index,
// rejecting values beyond the 9 addressable registers.
func regFromOperand(v uint8) (GPR, error) {
	if v > uint8(PC) {
		return 0, errInvalidRegister
	}

	return GPR(v), nil
}

var errInvalidRegister = &DecodeError{Reason: "operand field is not a valid register"}

// resolveValue produces the value denoted by mode/operand4: an ALU operand,
// a MOV source, or a jump target. PUSH/STORE sources are never resolved
// this way (those read a register directly). Extra bytes, when the mode
// calls for them, are fetched from the instruction stream and PC advances
// accordingly.
func (cpu *CPU) resolveValue(mode AddressingMode, operand4 uint8) (Word, error) {
	switch mode {
	case ModeImm4:
		return Word(operand4), nil

	case ModeImm8:
		b, err := cpu.fetchByte()
		return Word(b), err

	case ModeImm16:
		return cpu.fetchWord()

	case ModeReg:
		reg, err := regFromOperand(operand4)
		if err != nil {
			return 0, err
		}

		return cpu.Reg.Get(reg), nil

	case ModeIndirectReg:
		reg, err := regFromOperand(operand4)
		if err != nil {
			return 0, err
		}

		return cpu.Bus.ReadWord(cpu.Reg.Get(reg))

	case ModeIndirectOffset:
		reg, err := regFromOperand(operand4)
		if err != nil {
			return 0, err
		}

		off, err := cpu.fetchWord()
		if err != nil {
			return 0, err
		}

		return cpu.Bus.ReadWord(cpu.Reg.Get(reg) + off)

	case ModeIndirectImm16:
		addr, err := cpu.fetchWord()
		if err != nil {
			return 0, err
		}

		return cpu.Bus.ReadWord(addr)

	default:
		return 0, &DecodeError{Reason: "addressing mode 7 is reserved"}
	}
}

// resolveAddr produces the memory address denoted by mode/operand4. Only
// the three indirect modes have a defined address form; every other mode is
// a decode fault when an address is required (LOAD/STORE family operands).
func (cpu *CPU) resolveAddr(mode AddressingMode, operand4 uint8) (Word, error) {
	switch mode {
	case ModeIndirectReg:
		reg, err := regFromOperand(operand4)
		if err != nil {
			return 0, err
		}

		return cpu.Reg.Get(reg), nil

	case ModeIndirectOffset:
		reg, err := regFromOperand(operand4)
		if err != nil {
			return 0, err
		}

		off, err := cpu.fetchWord()
		if err != nil {
			return 0, err
		}

		return cpu.Reg.Get(reg) + off, nil

	case ModeIndirectImm16:
		return cpu.fetchWord()

	default:
		return 0, &DecodeError{Reason: "addressing mode has no address form"}
	}
}

// execGeneral executes NOP, HALT, RET and MOV.
func (cpu *CPU) execGeneral(instr Instruction) error {
	switch instr.Opcode() {
	case NOP:
		return nil

	case HALT:
		cpu.Halted = true
		return nil

	case RET:
		addr, err := cpu.popWord()
		if err != nil {
			return err
		}

		cpu.Reg[PC] = addr

		return nil

	case MOV:
		val, err := cpu.resolveValue(instr.Mode(), instr.Operand4())
		if err != nil {
			return err
		}

		cpu.writeReg(instr.RegA(), val)

		return nil

	default:
		return &DecodeError{Instruction: instr, Reason: "undefined general opcode"}
	}
}

// execALU executes the arithmetic, logical and shift operations.
func (cpu *CPU) execALU(instr Instruction) error {
	dest := instr.RegA()
	a := cpu.Reg.Get(dest)

	src, err := cpu.resolveValue(instr.Mode(), instr.Operand4())
	if err != nil {
		return err
	}

	var (
		result     Word
		carry      bool
		writeCarry bool
		write      = true
	)

	switch instr.Opcode() {
	case ADD:
		sum := uint32(a) + uint32(src)
		result, carry, writeCarry = Word(sum), sum > 0xFFFF, true

	case SUB:
		result, carry, writeCarry = a-src, a < src, true

	case MUL:
		prod := uint32(a) * uint32(src)
		result, carry, writeCarry = Word(prod), prod > 0xFFFF, true

	case MULH:
		result = Word((uint32(a) * uint32(src)) >> 16)

	case AND:
		result = a & src

	case OR:
		result = a | src

	case XOR:
		result = a ^ src

	case CMP:
		result, write = a-src, false

	case NOT:
		result = ^a

	case NEG:
		result = -a

	case SHL:
		n := uint(src & 0xF)
		result = a << n
		carry, writeCarry = n > 0 && n <= 16 && (a>>(16-n))&1 != 0, true

	case SHR:
		n := uint(src & 0xF)
		result = a >> n
		carry, writeCarry = n > 0 && (a>>(n-1))&1 != 0, true

	case ASR:
		n := uint(src & 0xF)
		result = Word(int16(a) >> n)
		carry, writeCarry = n > 0 && (a>>(n-1))&1 != 0, true

	case ROL:
		n := int(src & 0xF)
		result = Word(bits.RotateLeft16(uint16(a), n))
		carry, writeCarry = result&1 != 0, true

	case ROR:
		n := int(src & 0xF)
		result = Word(bits.RotateLeft16(uint16(a), -n))
		carry, writeCarry = result&0x8000 != 0, true

	default:
		return &DecodeError{Instruction: instr, Reason: "undefined ALU opcode"}
	}

	if writeCarry {
		cpu.Flags.C = carry
	}

	if write {
		cpu.writeReg(dest, result)
	} else {
		cpu.Flags.setZN(result)
	}

	return nil
}

// execJump executes the conditional and unconditional jumps, and CALL.
// Jump targets are always resolved via the value form, since several valid
// jump-operand shapes (imm4/imm8/imm16/reg) have no address form.
func (cpu *CPU) execJump(instr Instruction) error {
	target, err := cpu.resolveValue(instr.Mode(), instr.Operand4())
	if err != nil {
		return err
	}

	returnAddr := cpu.Reg[PC] // Address immediately after the full instruction.

	take := false

	switch instr.Opcode() {
	case JMP:
		take = true
	case JZ:
		take = cpu.Flags.Z
	case JNZ:
		take = !cpu.Flags.Z
	case JLT:
		take = cpu.Flags.N
	case JGT:
		take = !cpu.Flags.N
	case JC:
		take = cpu.Flags.C
	case JNC:
		take = !cpu.Flags.C
	case CALL:
		take = true

		if err := cpu.pushWord(returnAddr); err != nil {
			return err
		}
	default:
		return &DecodeError{Instruction: instr, Reason: "undefined jump opcode"}
	}

	if take {
		cpu.Reg[PC] = target
	}

	return nil
}

// execMemStack executes loads, stores and the stack operations.
func (cpu *CPU) execMemStack(instr Instruction) error {
	switch instr.Opcode() {
	case LOADB:
		addr, err := cpu.resolveAddr(instr.Mode(), instr.Operand4())
		if err != nil {
			return err
		}

		b, err := cpu.Bus.ReadByte(addr)
		if err != nil {
			return err
		}

		cpu.writeReg(instr.RegA(), Word(b))

		return nil

	case LOAD:
		addr, err := cpu.resolveAddr(instr.Mode(), instr.Operand4())
		if err != nil {
			return err
		}

		w, err := cpu.Bus.ReadWord(addr)
		if err != nil {
			return err
		}

		cpu.writeReg(instr.RegA(), w)

		return nil

	case STOREB:
		addr, err := cpu.resolveAddr(instr.Mode(), instr.Operand4())
		if err != nil {
			return err
		}

		return cpu.Bus.WriteByte(addr, byte(cpu.Reg.Get(instr.RegA())))

	case STORE:
		addr, err := cpu.resolveAddr(instr.Mode(), instr.Operand4())
		if err != nil {
			return err
		}

		return cpu.Bus.WriteWord(addr, cpu.Reg.Get(instr.RegA()))

	case PUSHB:
		return cpu.pushByte(byte(cpu.Reg.Get(instr.PushReg())))

	case PUSH:
		return cpu.pushWord(cpu.Reg.Get(instr.PushReg()))

	case POPB:
		b, err := cpu.popByte()
		if err != nil {
			return err
		}

		cpu.writeReg(instr.RegA(), Word(b))

		return nil

	case POP:
		w, err := cpu.popWord()
		if err != nil {
			return err
		}

		cpu.writeReg(instr.RegA(), w)

		return nil

	default:
		return &DecodeError{Instruction: instr, Reason: "undefined memory/stack opcode"}
	}
}

// pushByte and pushWord grow the stack downward, masking SP into the stack
// region on every update. The byte/word is written at the pre-update SP
// (push-word at [SP-1..SP]) before SP is decremented, so a pop reverses the
// order exactly: increment SP first, then read.
func (cpu *CPU) pushByte(b byte) error {
	addr := cpu.Reg[SP]

	if err := cpu.Bus.WriteByte(addr, b); err != nil {
		return err
	}

	cpu.Reg[SP]--
	cpu.Reg[SP] |= StackLow

	return nil
}

func (cpu *CPU) pushWord(w Word) error {
	addr := cpu.Reg[SP] - 1

	if err := cpu.Bus.WriteWord(addr, w); err != nil {
		return err
	}

	cpu.Reg[SP] -= 2
	cpu.Reg[SP] |= StackLow

	return nil
}

func (cpu *CPU) popByte() (byte, error) {
	cpu.Reg[SP]++
	cpu.Reg[SP] |= StackLow

	return cpu.Bus.ReadByte(cpu.Reg[SP])
}

func (cpu *CPU) popWord() (Word, error) {
	cpu.Reg[SP] += 2
	cpu.Reg[SP] |= StackLow

	return cpu.Bus.ReadWord(cpu.Reg[SP] - 1)
}
