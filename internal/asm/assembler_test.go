package asm

import (
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/smoynes/elsie/internal/vm"
)

// fixtureOpener resolves file names from an in-memory map, the way tests
// exercise @import without touching a real filesystem.
func fixtureOpener(files map[string]string) OpenFunc {
	return func(name string) (io.Reader, error) {
		src, ok := files[name]
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}

		return strings.NewReader(src), nil
	}
}

func assembleSource(t *testing.T, src string) []byte {
	t.Helper()

	a := NewAssembler("main.s", fixtureOpener(map[string]string{"main.s": src}), CP437)

	image, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %s", err)
	}

	return image
}

func TestAssembleSimpleProgram(t *testing.T) {
	image := assembleSource(t, "MOV r0, 5\nHALT\n")

	want := []byte{}
	want = append(want, wordBytes(vm.NewInstruction(vm.MOV, vm.R0, 5, vm.ModeImm4))...)
	want = append(want, wordBytes(vm.NewInstruction(vm.HALT, 0, 0, vm.ModeReg))...)

	if string(image) != string(want) {
		t.Errorf("image = % x, want % x", image, want)
	}
}

func TestAssembleByteOrderLittleEndian(t *testing.T) {
	a := NewAssembler("main.s", fixtureOpener(map[string]string{"main.s": "MOV r0, 0x1234\nHALT\n"}), CP437)
	a.ByteOrder = binary.LittleEndian

	image, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %s", err)
	}

	word := vm.NewInstruction(vm.MOV, vm.R0, 0, vm.ModeImm16)

	want := []byte{byte(uint16(word)), byte(uint16(word) >> 8), 0x34, 0x12}
	want = append(want, byte(uint16(vm.NewInstruction(vm.HALT, 0, 0, vm.ModeReg))),
		byte(uint16(vm.NewInstruction(vm.HALT, 0, 0, vm.ModeReg))>>8))

	if string(image) != string(want) {
		t.Errorf("image = % x, want % x", image, want)
	}
}

func TestAssembleForwardLabelReference(t *testing.T) {
	src := "JMP target\ntarget:\nHALT\n"

	image := assembleSource(t, src)

	if len(image) != 4+2 {
		t.Fatalf("image length = %d, want 6", len(image))
	}

	// JMP's imm16 operand should resolve to the address right after it: 4.
	if image[2] != 0x00 || image[3] != 0x04 {
		t.Errorf("resolved target = % x, want 00 04", image[2:4])
	}
}

func TestAssembleUndefinedSymbolFails(t *testing.T) {
	_, err := NewAssembler("main.s", fixtureOpener(map[string]string{
		"main.s": "JMP missing\n",
	}), CP437).Assemble()

	if err == nil {
		t.Fatal("Assemble: want error for undefined symbol, got nil")
	}

	if _, ok := err.(*UnresolvedSymbolError); !ok {
		t.Errorf("err = %T, want *UnresolvedSymbolError", err)
	}
}

func TestAssembleDataDirective(t *testing.T) {
	image := assembleSource(t, `@data "AB" 0x10`)

	want := []byte{'A', 'B', 0x10}
	if string(image) != string(want) {
		t.Errorf("image = % x, want % x", image, want)
	}
}

func TestAssembleLetAlias(t *testing.T) {
	image := assembleSource(t, "@let WIDTH = 0x20\nMOV r0, WIDTH\n")

	want := append(wordBytes(vm.NewInstruction(vm.MOV, vm.R0, 0, vm.ModeImm8)), 0x20)
	if string(image) != string(want) {
		t.Errorf("image = % x, want % x", image, want)
	}
}

func TestAssembleImportFIFOOrder(t *testing.T) {
	files := map[string]string{
		"main.s": "@import \"a.s\"\n@import \"b.s\"\nHALT\n",
		"a.s":    "NOP\n",
		"b.s":    "NOP\n",
	}

	a := NewAssembler("main.s", fixtureOpener(files), CP437)

	image, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %s", err)
	}

	// main.s's own HALT occupies the first two bytes; a.s and b.s follow in
	// import order.
	want := []byte{}
	want = append(want, wordBytes(vm.NewInstruction(vm.HALT, 0, 0, vm.ModeReg))...)
	want = append(want, wordBytes(vm.NewInstruction(vm.NOP, 0, 0, vm.ModeReg))...)
	want = append(want, wordBytes(vm.NewInstruction(vm.NOP, 0, 0, vm.ModeReg))...)

	if string(image) != string(want) {
		t.Errorf("image = % x, want % x", image, want)
	}
}

func TestAssembleCyclicImportDeduplicates(t *testing.T) {
	files := map[string]string{
		"a.s": "@import \"b.s\"\nHALT\n",
		"b.s": "@import \"a.s\"\nNOP\n",
	}

	a := NewAssembler("a.s", fixtureOpener(files), CP437)

	image, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %s", err)
	}

	if len(image) != 4 {
		t.Fatalf("image length = %d, want 4 (each file parsed exactly once)", len(image))
	}
}

func TestAssembleIndirectOffsetNegativeSign(t *testing.T) {
	image := assembleSource(t, "LOAD r0, [r1 - 2]\n")

	// The parser folds the sign into the immediate, so the emitted offset is
	// the two's-complement negative value.
	if image[2] != 0xFF || image[3] != 0xFE {
		t.Errorf("offset bytes = % x, want ff fe (-2 as int16)", image[2:4])
	}
}

func TestAssembleStoreRejectsNonIndirectOperand(t *testing.T) {
	_, err := NewAssembler("main.s", fixtureOpener(map[string]string{
		"main.s": "STORE r0, r1\n",
	}), CP437).Assemble()

	if err == nil {
		t.Fatal("Assemble: want syntax error for non-bracketed STORE operand, got nil")
	}
}

func wordBytes(i vm.Instruction) []byte {
	return []byte{byte(uint16(i) >> 8), byte(uint16(i))}
}

// TestAssembleRoundTripIsByteIdentical operationalizes spec.md §8's
// invariant that re-parsing and re-emitting the same program yields
// byte-identical output: assembling identical source twice, independently,
// must produce the same bytes every time.
func TestAssembleRoundTripIsByteIdentical(t *testing.T) {
	src := `
@let WIDTH = 0x20
start:
	MOV r0, WIDTH
	MOV r1, 0x1234
.loop:
	ADD r0, r1
	CMP r0, r1
	JNZ .loop
	LOAD r2, [r1 + 4]
	STOREB r0, [r3]
	PUSH r0
	POP r1
	CALL helper
	HALT
helper:
	@data "Hi" 0x00
	RET
`

	first := assembleSource(t, src)
	second := assembleSource(t, src)

	if string(first) != string(second) {
		t.Fatalf("two independent assembles of the same source differ:\n% x\n% x", first, second)
	}

	if len(first) == 0 {
		t.Fatal("assembled image is empty")
	}
}
