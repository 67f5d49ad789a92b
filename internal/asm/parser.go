package asm

// parser.go dispatches each tokenized line to a label, directive, or
// instruction, resolves operand shapes, and appends program entries. It
// holds the state that is local to parsing one file: the
// current scope (for local label namespacing) and the source position used
// in diagnostics. Everything shared across files — the symbol table, the
// program, the import queue — lives on the owning Assembler.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smoynes/elsie/internal/vm"
)

// Parser tokenizes and interprets the lines of a single source file,
// threading a mutable "current scope" through the parse so local labels
// resolve against the nearest preceding global label: parser-local
// state, not a process-global.
type Parser struct {
	asm    *Assembler
	scope  string
	source string
	lineNo int
}

func (p *Parser) src() SourceInfo {
	return SourceInfo{File: p.source, Line: p.lineNo}
}

func (p *Parser) errorf(format string, args ...any) error {
	return &SyntaxError{Source: p.src(), Msg: fmt.Sprintf(format, args...)}
}

// parseLine tokenizes and dispatches one source line.
func (p *Parser) parseLine(line string) error {
	toks, err := tokenize(stripComment(line))
	if err != nil {
		return p.errorf("%s", err)
	}

	return p.dispatch(toks)
}

// dispatch interprets an already-tokenized line: directive, label, or
// instruction, in that priority order.
func (p *Parser) dispatch(toks []token) error {
	if len(toks) == 0 {
		return nil
	}

	first := toks[0]

	switch {
	case !first.quoted && strings.HasPrefix(first.text, "@"):
		return p.parseDirective(first.text, toks[1:])

	case !first.quoted && strings.HasSuffix(first.text, ":"):
		return p.parseLabel(first.text, toks[1:])

	default:
		return p.parseInstruction(first.text, toks[1:])
	}
}

// parseLabel binds a label to the current program counter. A global label
// (no leading '.') sets the current scope; a local label is namespaced
// under the most recent global label. Any remaining tokens on the line are
// parsed as a subsequent line.
func (p *Parser) parseLabel(tok string, rest []token) error {
	name := strings.TrimSuffix(tok, ":")
	if name == "" {
		return p.errorf("empty label")
	}

	if strings.HasPrefix(name, ".") {
		if p.scope == "" {
			return p.errorf("local label %q has no preceding global label", name)
		}

		full := p.scope + name

		if err := p.asm.Symbols.DefineLabel(full, p.asm.pc); err != nil {
			return p.errorf("%s", err)
		}
	} else {
		if err := p.asm.Symbols.DefineLabel(name, p.asm.pc); err != nil {
			return p.errorf("%s", err)
		}

		p.scope = name
	}

	return p.dispatch(rest)
}

// parseDirective dispatches @let, @data, and @import.
func (p *Parser) parseDirective(name string, rest []token) error {
	switch strings.ToLower(name) {
	case "@let":
		return p.parseLet(rest)
	case "@data":
		return p.parseData(rest)
	case "@import":
		return p.parseImport(rest)
	default:
		return p.errorf("unknown directive %q", name)
	}
}

// parseLet binds NAME to the raw VALUE token, expanded wherever NAME is
// used as an operand.
func (p *Parser) parseLet(rest []token) error {
	if len(rest) < 3 || rest[1].quoted || rest[1].text != "=" {
		return p.errorf("@let expects NAME = VALUE")
	}

	name := rest[0].text
	if IsReserved(name) {
		return p.errorf("%q is a reserved register name", name)
	}

	if err := p.asm.Symbols.DefineAlias(name, reserialize(rest[2])); err != nil {
		return p.errorf("%s", err)
	}

	return nil
}

// parseData appends a data entry: string literals (charset-encoded, escapes
// already processed by the tokenizer) concatenated with one-byte numerals.
func (p *Parser) parseData(rest []token) error {
	if len(rest) == 0 {
		return p.errorf("@data expects at least one value")
	}

	var bytes []byte

	for _, t := range rest {
		if t.quoted {
			enc, ok := EncodeString(p.asm.Charset, t.text)
			if !ok {
				return p.errorf("character not representable in selected code page")
			}

			bytes = append(bytes, enc...)

			continue
		}

		v, err := parseNumeral(t.text)
		if err != nil {
			return p.errorf("%s", err)
		}

		bytes = append(bytes, byte(v))
	}

	p.asm.Program = append(p.asm.Program, Entry{
		Kind:    EntryData,
		Source:  p.src(),
		Address: p.asm.pc,
		Length:  len(bytes),
		Bytes:   bytes,
	})
	p.asm.pc += vm.Word(len(bytes))

	return nil
}

// parseImport queues a file for parsing once the current file completes.
func (p *Parser) parseImport(rest []token) error {
	if len(rest) != 1 || !rest[0].quoted {
		return p.errorf("@import expects a single quoted file name")
	}

	p.asm.enqueueImport(p.source, rest[0].text)

	return nil
}

// parseInstruction parses a mnemonic and its operands and appends an
// instruction entry.
func (p *Parser) parseInstruction(mnemonic string, operandToks []token) error {
	spec, ok := opTable[strings.ToUpper(mnemonic)]
	if !ok {
		return p.errorf("unknown mnemonic %q", mnemonic)
	}

	operands, err := p.parseOperandList(operandToks)
	if err != nil {
		return err
	}

	entry, err := p.buildEntry(strings.ToUpper(mnemonic), spec, operands)
	if err != nil {
		return err
	}

	entry.Source = p.src()
	entry.Address = p.asm.pc
	p.asm.Program = append(p.asm.Program, entry)
	p.asm.pc += vm.Word(entry.Length)

	return nil
}

// buildEntry validates operand count and shape against spec and computes
// the instruction's addressing mode and length. The encoder (gen.go) later
// packs the same Entry into bytes using exactly this mode.
func (p *Parser) buildEntry(mnemonic string, spec opSpec, operands []Operand) (Entry, error) {
	entry := Entry{Kind: EntryInstruction, Mnemonic: mnemonic, Opcode: spec.Opcode, Operands: operands}

	switch spec.Kind {
	case kindNullary:
		if len(operands) != 0 {
			return entry, p.errorf("%s takes no operands", mnemonic)
		}

		entry.Mode = vm.ModeReg // Unused; base length only.

	case kindDestSrc:
		if len(operands) != 2 {
			return entry, p.errorf("%s expects 2 operands", mnemonic)
		}

		if _, ok := operands[0].(RegisterOperand); !ok {
			return entry, p.errorf("%s: first operand must be a register", mnemonic)
		}

		mode := operands[1].Mode()
		if spec.indirectOnly && !isIndirectMode(mode) {
			return entry, p.errorf("%s requires a bracketed memory operand", mnemonic)
		}

		entry.Mode = mode

	case kindDestOnly:
		if len(operands) != 1 {
			return entry, p.errorf("%s expects 1 operand", mnemonic)
		}

		if _, ok := operands[0].(RegisterOperand); !ok {
			return entry, p.errorf("%s operand must be a register", mnemonic)
		}

		entry.Mode = vm.ModeReg

	case kindPush:
		if len(operands) != 1 {
			return entry, p.errorf("%s expects 1 operand", mnemonic)
		}

		if _, ok := operands[0].(RegisterOperand); !ok {
			return entry, p.errorf("%s operand must be a register", mnemonic)
		}

		entry.Mode = vm.ModeReg

	case kindTarget:
		if len(operands) != 1 {
			return entry, p.errorf("%s expects 1 operand", mnemonic)
		}

		entry.Mode = operands[0].Mode()
	}

	entry.Length = Length(entry.Mode)

	return entry, nil
}

// parseOperandList parses a flat, already-tokenized operand list (commas
// were discarded by the tokenizer) into zero or more Operands.
func (p *Parser) parseOperandList(toks []token) ([]Operand, error) {
	var operands []Operand

	pos := 0
	for pos < len(toks) {
		op, err := p.parseOperand(toks, &pos)
		if err != nil {
			return nil, err
		}

		operands = append(operands, op)
	}

	return operands, nil
}

// parseOperand parses one operand starting at *pos, advancing *pos past it.
func (p *Parser) parseOperand(toks []token, pos *int) (Operand, error) {
	t := toks[*pos]

	if !t.quoted && t.text == "[" {
		return p.parseIndirect(toks, pos)
	}

	return p.parseAtom(toks, pos)
}

// parseIndirect parses `[ X ]` or `[ A + B ]` / `[ A - B ]`, starting at the
// opening bracket.
func (p *Parser) parseIndirect(toks []token, pos *int) (Operand, error) {
	*pos++ // Consume '['.

	if *pos >= len(toks) {
		return nil, p.errorf("unterminated '['")
	}

	first, err := p.parseAtom(toks, pos)
	if err != nil {
		return nil, err
	}

	if *pos >= len(toks) {
		return nil, p.errorf("unterminated '['")
	}

	next := toks[*pos]

	if !next.quoted && (next.text == "+" || next.text == "-") {
		sign := next.text
		*pos++

		if *pos >= len(toks) {
			return nil, p.errorf("expected operand after %q", sign)
		}

		second, err := p.parseAtom(toks, pos)
		if err != nil {
			return nil, err
		}

		reg, imm, err := splitRegImm(first, second)
		if err != nil {
			return nil, p.errorf("%s", err)
		}

		if sign == "-" {
			imm = -imm
		}

		if err := p.expectBracketClose(toks, pos); err != nil {
			return nil, err
		}

		return IndirectOffsetOperand{Reg: reg, Imm: imm}, nil
	}

	if err := p.expectBracketClose(toks, pos); err != nil {
		return nil, err
	}

	return IndirectOperand{Inner: first}, nil
}

func (p *Parser) expectBracketClose(toks []token, pos *int) error {
	if *pos >= len(toks) || toks[*pos].quoted || toks[*pos].text != "]" {
		return p.errorf("expected ']'")
	}

	*pos++

	return nil
}

// splitRegImm requires exactly one register and one number among a, b and
// returns them in (register, immediate) order; two registers, or two
// immediates, is a syntax error.
func splitRegImm(a, b Operand) (vm.GPR, int16, error) {
	ra, aReg := a.(RegisterOperand)
	rb, bReg := b.(RegisterOperand)

	switch {
	case aReg && !bReg:
		n, ok := b.(NumberOperand)
		if !ok {
			return 0, 0, fmt.Errorf("indirect offset requires a register and an immediate")
		}

		return ra.Reg, int16(n.Value), nil

	case bReg && !aReg:
		n, ok := a.(NumberOperand)
		if !ok {
			return 0, 0, fmt.Errorf("indirect offset requires a register and an immediate")
		}

		return rb.Reg, int16(n.Value), nil

	default:
		return 0, 0, fmt.Errorf("indirect offset requires exactly one register and one immediate")
	}
}

// parseAtom parses a single-token (or, for @let expansion, recursively
// re-tokenized) operand: a register, a local symbol, a character literal, a
// numeral, an alias, or a bare symbol reference.
func (p *Parser) parseAtom(toks []token, pos *int) (Operand, error) {
	t := toks[*pos]
	*pos++

	if t.quoted {
		enc, ok := EncodeString(p.asm.Charset, t.text)
		if !ok || len(enc) == 0 {
			return nil, p.errorf("character literal not representable in selected code page")
		}

		return NewNumberOperand(uint16(enc[0])), nil
	}

	if reg, ok := registerNamed(t.text); ok {
		return RegisterOperand{Reg: reg}, nil
	}

	if strings.HasPrefix(t.text, ".") {
		if p.scope == "" {
			return nil, p.errorf("local symbol %q has no preceding global label", t.text)
		}

		return SymbolOperand{Name: p.scope + t.text}, nil
	}

	if looksNumeric(t.text) {
		v, err := parseNumeral(t.text)
		if err != nil {
			return nil, p.errorf("%s", err)
		}

		return NewNumberOperand(v), nil
	}

	if raw, ok := p.asm.Symbols.Lookup(t.text); ok {
		return p.parseAliasValue(t.text, raw)
	}

	if isIdentifier(t.text) {
		return SymbolOperand{Name: t.text}, nil
	}

	return nil, p.errorf("invalid operand %q", t.text)
}

// parseAliasValue re-tokenizes and re-parses an @let alias's raw value,
// inheriting whatever shape it parses to.
func (p *Parser) parseAliasValue(name, raw string) (Operand, error) {
	toks, err := tokenize(raw)
	if err != nil {
		return nil, p.errorf("alias %q: %s", name, err)
	}

	if len(toks) == 0 {
		return nil, p.errorf("alias %q has an empty value", name)
	}

	pos := 0

	op, err := p.parseAtom(toks, &pos)
	if err != nil {
		return nil, err
	}

	if pos != len(toks) {
		return nil, p.errorf("alias %q has a multi-token value", name)
	}

	return op, nil
}

func registerNamed(s string) (vm.GPR, bool) {
	switch strings.ToLower(s) {
	case "r0":
		return vm.R0, true
	case "r1":
		return vm.R1, true
	case "r2":
		return vm.R2, true
	case "r3":
		return vm.R3, true
	case "r4":
		return vm.R4, true
	case "r5":
		return vm.R5, true
	case "r6":
		return vm.R6, true
	case "r7", "sp":
		return vm.SP, true
	case "pc":
		return vm.PC, true
	default:
		return 0, false
	}
}

func isIdentifier(s string) bool {
	if s == "" || !isAlpha(rune(s[0])) {
		return false
	}

	for _, r := range s {
		if !isAlpha(r) && !isDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func isAlpha(r rune) bool { return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}

	r := rune(s[0])

	return isDigit(r) || (r == '-' && len(s) > 1 && isDigit(rune(s[1])))
}

// parseNumeral parses a hex (0x…), binary (0b…) or decimal numeral,
// truncating the result to 16 bits.
func parseNumeral(s string) (uint16, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var (
		v   uint64
		err error
	)

	switch {
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		v, err = strconv.ParseUint(s[2:], 16, 64)
	case strings.HasPrefix(strings.ToLower(s), "0b"):
		v, err = strconv.ParseUint(s[2:], 2, 64)
	default:
		v, err = strconv.ParseUint(s, 10, 64)
	}

	if err != nil {
		return 0, fmt.Errorf("invalid numeral %q", s)
	}

	if neg {
		return uint16(-int64(v)), nil
	}

	return uint16(v), nil
}
