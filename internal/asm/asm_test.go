package asm

import (
	"testing"

	"github.com/smoynes/elsie/internal/vm"
)

func TestAssemblePushEncodesOperandField(t *testing.T) {
	image := assembleSource(t, "PUSH r5\n")

	instr := vm.Instruction(uint16(image[0])<<8 | uint16(image[1]))

	if got := instr.PushReg(); got != vm.R5 {
		t.Errorf("PushReg() = %s, want R5", got)
	}

	if got := instr.RegA(); got != vm.R0 {
		t.Errorf("RegA() = %s, want R0 (unused by PUSH)", got)
	}
}

func TestAssembleIndirectImm16(t *testing.T) {
	image := assembleSource(t, "LOAD r0, [0x1234]\n")

	if len(image) != 4 {
		t.Fatalf("image length = %d, want 4", len(image))
	}

	if image[2] != 0x12 || image[3] != 0x34 {
		t.Errorf("absolute address bytes = % x, want 12 34", image[2:4])
	}
}

func TestAssembleIndirectReg(t *testing.T) {
	image := assembleSource(t, "LOAD r0, [r1]\n")

	if len(image) != 2 {
		t.Fatalf("image length = %d, want 2", len(image))
	}

	instr := vm.Instruction(uint16(image[0])<<8 | uint16(image[1]))
	if got := instr.Mode(); got != vm.ModeIndirectReg {
		t.Errorf("Mode() = %s, want indirect_reg", got)
	}
}

func TestSymbolTableReservedNames(t *testing.T) {
	st := NewSymbolTable()

	if err := st.DefineLabel("sp", 0); err == nil {
		t.Fatal("DefineLabel(\"sp\"): want error, got nil")
	}

	if !IsReserved("PC") {
		t.Error("IsReserved(\"PC\") = false, want true (case-insensitive)")
	}
}

func TestSymbolTableDuplicateDefinitionFails(t *testing.T) {
	st := NewSymbolTable()

	if err := st.DefineLabel("loop", 0); err != nil {
		t.Fatalf("DefineLabel: %s", err)
	}

	if err := st.DefineLabel("loop", 4); err == nil {
		t.Fatal("redefining \"loop\": want error, got nil")
	}
}

func TestTokenizeStripsCommentsRespectingQuotes(t *testing.T) {
	toks, err := tokenize(stripComment(`MOV r0, "a;b" ; trailing comment`))
	if err != nil {
		t.Fatalf("tokenize: %s", err)
	}

	if len(toks) != 3 {
		t.Fatalf("tokens = %#v, want 3", toks)
	}

	if toks[2].text != "a;b" || !toks[2].quoted {
		t.Errorf("toks[2] = %#v, want quoted \"a;b\"", toks[2])
	}
}

func TestEncodeStringASCIIPassthrough(t *testing.T) {
	enc, ok := EncodeString(CP437, "Hi!")
	if !ok {
		t.Fatal("EncodeString: ok = false, want true")
	}

	if string(enc) != "Hi!" {
		t.Errorf("EncodeString = %q, want %q", enc, "Hi!")
	}
}

func TestEncodeRuneCodePage(t *testing.T) {
	b, ok := EncodeRune(CP437, 'Ç')
	if !ok || b != 0x80 {
		t.Errorf("EncodeRune(CP437, 'Ç') = %#x, %v; want 0x80, true", b, ok)
	}

	if _, ok := EncodeRune(CP437, '€'); ok {
		t.Error("EncodeRune(CP437, '€'): ok = true, want false (not in CP437)")
	}
}
