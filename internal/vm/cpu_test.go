package vm

import (
	"encoding/binary"
	"testing"
)

// wordBytes returns the big-endian bytes of an instruction word.
func wordBytes(i Instruction) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(i))

	return b
}

func imm16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)

	return b
}

// newTestCPU builds a CPU over a fresh RAM-only bus with the given program
// loaded at address zero.
func newTestCPU(t *testing.T, program []byte) *CPU {
	t.Helper()

	mem := NewMemoryDevice(RAMMin, RAMMax, false)
	if err := mem.LoadProgram(program, 0); err != nil {
		t.Fatalf("LoadProgram: %s", err)
	}

	bus := NewBus()
	bus.Attach(mem)

	return New(WithBus(bus), WithDeviceTickRate(0))
}

func TestHaltStopsImmediately(t *testing.T) {
	var program []byte
	program = append(program, wordBytes(NewInstruction(HALT, 0, 0, ModeReg))...)
	program = append(program, wordBytes(NewInstruction(MOV, R1, 0, ModeImm16))...)
	program = append(program, imm16Bytes(0x0011)...)

	cpu := newTestCPU(t, program)

	if err := cpu.Run(-1); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if cpu.Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", cpu.Cycles)
	}

	if got := cpu.Reg.Get(R1); got != 0 {
		t.Errorf("R1 = %s, want 0", got)
	}

	if !cpu.Halted {
		t.Error("Halted = false, want true")
	}
}

func TestMovImm16SetsFlags(t *testing.T) {
	var program []byte
	program = append(program, wordBytes(NewInstruction(MOV, R0, 0, ModeImm16))...)
	program = append(program, imm16Bytes(0xFE73)...)

	cpu := newTestCPU(t, program)

	if err := cpu.Run(1); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if got := cpu.Reg.Get(R0); got != 0xFE73 {
		t.Errorf("R0 = %s, want 0xfe73", got)
	}

	if !cpu.Flags.N {
		t.Error("N flag not set")
	}

	if cpu.Flags.Z {
		t.Error("Z flag set, want clear")
	}
}

func TestCmpFlags(t *testing.T) {
	var program []byte
	program = append(program, wordBytes(NewInstruction(CMP, R0, uint8(R1), ModeReg))...)
	program = append(program, wordBytes(NewInstruction(CMP, R1, uint8(R2), ModeReg))...)

	cpu := newTestCPU(t, program)
	cpu.Reg.Set(R0, 2)
	cpu.Reg.Set(R1, 3)
	cpu.Reg.Set(R2, 3)

	if err := cpu.Run(1); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if cpu.Flags.Z {
		t.Error("after CMP r0,r1: Z set, want clear")
	}

	if !cpu.Flags.N {
		t.Error("after CMP r0,r1: N clear, want set")
	}

	if err := cpu.Run(1); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if !cpu.Flags.Z {
		t.Error("after CMP r1,r2: Z clear, want set")
	}

	if cpu.Flags.N {
		t.Error("after CMP r1,r2: N set, want clear")
	}
}

func TestBitwiseALUOps(t *testing.T) {
	var program []byte
	program = append(program, wordBytes(NewInstruction(AND, R0, uint8(R1), ModeReg))...)
	program = append(program, wordBytes(NewInstruction(OR, R2, uint8(R3), ModeReg))...)
	program = append(program, wordBytes(NewInstruction(XOR, R4, uint8(R5), ModeReg))...)

	cpu := newTestCPU(t, program)
	cpu.Reg.Set(R0, 0xF0F0)
	cpu.Reg.Set(R1, 0xFF00)
	cpu.Reg.Set(R2, 0x00F0)
	cpu.Reg.Set(R3, 0x0F00)
	cpu.Reg.Set(R4, 0xFFFF)
	cpu.Reg.Set(R5, 0x00FF)

	if err := cpu.Run(3); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if got := cpu.Reg.Get(R0); got != 0xF000 {
		t.Errorf("AND: R0 = %s, want 0xf000", got)
	}

	if got := cpu.Reg.Get(R2); got != 0x0FF0 {
		t.Errorf("OR: R2 = %s, want 0x0ff0", got)
	}

	if got := cpu.Reg.Get(R4); got != 0xFF00 {
		t.Errorf("XOR: R4 = %s, want 0xff00", got)
	}
}

// TestNonCarryALUOpsPreserveCFlag asserts that NOT, NEG, MULH and CMP, ops
// with no defined carry behavior, leave the C flag set by a preceding ADD,
// per spec.md §4.3's enumeration of exactly which ops write it.
func TestNonCarryALUOpsPreserveCFlag(t *testing.T) {
	var program []byte
	program = append(program, wordBytes(NewInstruction(ADD, R0, uint8(R1), ModeReg))...)
	program = append(program, wordBytes(NewInstruction(NOT, R2, 0, ModeReg))...)
	program = append(program, wordBytes(NewInstruction(NEG, R2, 0, ModeReg))...)
	program = append(program, wordBytes(NewInstruction(MULH, R3, uint8(R4), ModeReg))...)
	program = append(program, wordBytes(NewInstruction(CMP, R0, uint8(R1), ModeReg))...)

	cpu := newTestCPU(t, program)
	cpu.Reg.Set(R0, 0xFFFF)
	cpu.Reg.Set(R1, 1) // ADD overflows: sets C.
	cpu.Reg.Set(R3, 2)
	cpu.Reg.Set(R4, 3)

	if err := cpu.Run(1); err != nil {
		t.Fatalf("Run ADD: %s", err)
	}

	if !cpu.Flags.C {
		t.Fatal("after ADD overflow: C clear, want set")
	}

	if err := cpu.Run(3); err != nil {
		t.Fatalf("Run NOT/NEG/MULH: %s", err)
	}

	if !cpu.Flags.C {
		t.Error("after NOT/NEG/MULH: C was cleared, want preserved from ADD")
	}

	if err := cpu.Run(1); err != nil {
		t.Fatalf("Run CMP: %s", err)
	}

	if !cpu.Flags.C {
		t.Error("after CMP: C was cleared, want preserved (original never writes C for CMP)")
	}
}

func TestLoadAndPopSetZNFlags(t *testing.T) {
	program := wordBytes(NewInstruction(LOAD, R0, uint8(R1), ModeIndirectReg))
	program = append(program, wordBytes(NewInstruction(PUSH, 0, uint8(R2), ModeReg))...)
	program = append(program, wordBytes(NewInstruction(POP, R3, 0, ModeReg))...)

	cpu := newTestCPU(t, program)
	cpu.Reg.Set(R1, 0x0100)

	if err := cpu.Bus.WriteWord(0x0100, 0x8000); err != nil {
		t.Fatalf("WriteWord: %s", err)
	}

	if err := cpu.Run(1); err != nil {
		t.Fatalf("Run LOAD: %s", err)
	}

	if !cpu.Flags.N || cpu.Flags.Z {
		t.Errorf("after LOAD 0x8000: flags = %s, want N set, Z clear", cpu.Flags)
	}

	cpu.Reg.Set(R2, 0)

	if err := cpu.Run(2); err != nil {
		t.Fatalf("Run PUSH/POP: %s", err)
	}

	if !cpu.Flags.Z || cpu.Flags.N {
		t.Errorf("after POP 0: flags = %s, want Z set, N clear", cpu.Flags)
	}
}

func TestIndirectOffsetWraps(t *testing.T) {
	program := wordBytes(NewInstruction(LOADB, R3, uint8(R2), ModeIndirectOffset))
	program = append(program, imm16Bytes(1)...)

	// The program runs from 0x0100 so that the data byte at 0x0000 does not
	// overwrite the instruction under test.
	const origin Word = 0x0100

	cpu := newTestCPU(t, nil)

	for i, b := range program {
		if err := cpu.Bus.WriteByte(origin+Word(i), b); err != nil {
			t.Fatalf("WriteByte: %s", err)
		}
	}

	cpu.Reg[PC] = origin
	cpu.Reg.Set(R2, 0xFFFF)

	if err := cpu.Bus.WriteByte(0x0000, 42); err != nil {
		t.Fatalf("WriteByte: %s", err)
	}

	if err := cpu.Run(1); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if got := cpu.Reg.Get(R3); got != 42 {
		t.Errorf("R3 = %s, want 42", got)
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	var program []byte
	program = append(program, wordBytes(NewInstruction(PUSH, 0, uint8(R3), ModeReg))...)
	program = append(program, wordBytes(NewInstruction(POP, R2, 0, ModeReg))...)

	cpu := newTestCPU(t, program)
	cpu.Reg.Set(R3, 0xABCD)
	startSP := cpu.Reg.Get(SP)

	if err := cpu.Run(2); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if got := cpu.Reg.Get(R2); got != 0xABCD {
		t.Errorf("R2 = %s, want 0xabcd", got)
	}

	if got := cpu.Reg.Get(SP); got != startSP {
		t.Errorf("SP = %s, want unchanged %s", got, startSP)
	}
}

func TestCallRetRoundTrip(t *testing.T) {
	program := wordBytes(NewInstruction(CALL, 0, 0, ModeImm16))
	program = append(program, imm16Bytes(0x0100)...)

	// Pad with NOPs up to 0x0100, then RET.
	for len(program) < 0x0100 {
		program = append(program, wordBytes(NewInstruction(NOP, 0, 0, ModeReg))...)
	}

	program = append(program, wordBytes(NewInstruction(RET, 0, 0, ModeReg))...)

	cpu := newTestCPU(t, program)
	startSP := cpu.Reg.Get(SP)

	if err := cpu.Run(2); err != nil {
		t.Fatalf("Run: %s", err)
	}

	if got := cpu.Reg.Get(PC); got != 4 {
		t.Errorf("PC = %s, want 0x0004 (byte after CALL)", got)
	}

	if got := cpu.Reg.Get(SP); got != startSP {
		t.Errorf("SP = %s, want unchanged %s", got, startSP)
	}
}

func TestMaxCyclesReturnsErrCycleLimit(t *testing.T) {
	var program []byte
	for i := 0; i < 4; i++ {
		program = append(program, wordBytes(NewInstruction(NOP, 0, 0, ModeReg))...)
	}

	program = append(program, wordBytes(NewInstruction(JMP, 0, 0, ModeImm16))...)
	program = append(program, imm16Bytes(0)...)

	cpu := newTestCPU(t, program)
	cpu.MaxCycles = 2

	err := cpu.Run(-1)
	if err != ErrCycleLimit {
		t.Fatalf("Run: err = %v, want ErrCycleLimit", err)
	}
}
