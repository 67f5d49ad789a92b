package asm

// assembler.go orchestrates a two-pass build across one or more source
// files: parse (building the symbol table and a flat entry list while
// following @import directives breadth-first), resolve (replacing every
// SymbolOperand with its bound address), and emit (packing entries into the
// final byte image).

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"

	"github.com/smoynes/elsie/internal/vm"
)

// Open resolves an import's file name to a readable source. Callers
// typically bind this to os.Open; tests bind it to an in-memory fixture
// map so the parser never touches a real filesystem.
type OpenFunc func(name string) (io.Reader, error)

// Assembler holds state shared across every file in a multi-file build.
type Assembler struct {
	Symbols *SymbolTable
	Charset Charset
	Program []Entry

	Open OpenFunc

	// ByteOrder controls how instruction words and multi-byte immediates
	// are packed into the output image. It defaults to big-endian; @data
	// bytes are always emitted verbatim regardless of this setting, since
	// they carry no word-sized structure of their own.
	ByteOrder binary.ByteOrder

	pc vm.Word

	queue   []importJob
	seen    map[string]bool
	current string
}

type importJob struct {
	from string // Importing file, for resolving relative names and diagnostics.
	name string // As written in the @import directive.
}

// NewAssembler creates an Assembler ready to assemble starting from an
// entry file. The entry point is enqueued as an import of itself so
// Assemble's loop has a single code path for every file.
func NewAssembler(entry string, open OpenFunc, cs Charset) *Assembler {
	return &Assembler{
		Symbols:   NewSymbolTable(),
		Charset:   cs,
		Open:      open,
		ByteOrder: binary.BigEndian,
		seen:      make(map[string]bool),
		queue:     []importJob{{from: "", name: entry}},
	}
}

// enqueueImport queues name for parsing once the current file is done.
// Assemble skips any queued file whose canonical path was already parsed,
// so cyclic or repeated @imports are each parsed exactly once instead of
// looping forever.
func (a *Assembler) enqueueImport(from, name string) {
	a.queue = append(a.queue, importJob{from: from, name: name})
}

func canonical(from, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}

	return filepath.Clean(filepath.Join(filepath.Dir(from), name))
}

// Assemble runs the parse, resolve, and emit passes over the entry file and
// everything it (transitively) imports, returning the final byte image.
func (a *Assembler) Assemble() ([]byte, error) {
	for len(a.queue) > 0 {
		job := a.queue[0]
		a.queue = a.queue[1:]

		path := canonical(job.from, job.name)
		if a.seen[path] {
			continue
		}

		a.seen[path] = true

		if err := a.parseFile(path); err != nil {
			return nil, err
		}
	}

	if err := a.resolve(); err != nil {
		return nil, err
	}

	return a.emit()
}

// parseFile reads and parses a single file line by line, advancing the
// shared program counter across the whole build (labels in one file are
// visible, and addressed relative to the whole image, from every other).
func (a *Assembler) parseFile(path string) error {
	r, err := a.Open(path)
	if err != nil {
		return fmt.Errorf("asm: opening %s: %w", path, err)
	}

	prevFile := a.current
	a.current = path

	defer func() { a.current = prevFile }()

	p := &Parser{asm: a, source: path}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.lineNo++

		if err := p.parseLine(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("asm: reading %s: %w", path, err)
	}

	return nil
}

// resolve replaces every SymbolOperand in the program with the label
// address bound to its name (@let aliases were already expanded during
// parsing). A name still unresolved at this point is
// a genuine undefined-symbol error, not a forward reference: every label in
// every file has already been recorded during the parse pass.
func (a *Assembler) resolve() error {
	for i := range a.Program {
		entry := &a.Program[i]
		if entry.Kind != EntryInstruction {
			continue
		}

		for j, op := range entry.Operands {
			resolved, err := a.resolveOperand(entry.Source, op)
			if err != nil {
				return err
			}

			entry.Operands[j] = resolved
		}
	}

	return nil
}

// resolveOperand replaces a SymbolOperand, wherever it occurs — bare or
// nested inside an indirect — with its bound address.
func (a *Assembler) resolveOperand(src SourceInfo, op Operand) (Operand, error) {
	switch o := op.(type) {
	case SymbolOperand:
		addr, ok := a.Symbols.Resolve(o.Name)
		if !ok {
			return nil, &UnresolvedSymbolError{Source: src, Name: o.Name}
		}

		return NewResolvedOperand(uint16(addr)), nil

	case IndirectOperand:
		inner, err := a.resolveOperand(src, o.Inner)
		if err != nil {
			return nil, err
		}

		return IndirectOperand{Inner: inner}, nil

	default:
		return op, nil
	}
}

// emit packs the resolved program into its final byte image, verifying as
// it goes that each entry lands at the address recorded for it during
// parsing — any mismatch means a length was miscalculated upstream, which
// is a bug in the assembler rather than a malformed source file.
func (a *Assembler) emit() ([]byte, error) {
	var cursor vm.Word

	var out []byte

	for i, entry := range a.Program {
		if entry.Address != cursor {
			return nil, &EncodeMismatchError{Entry: i, Want: entry.Address, Got: cursor}
		}

		switch entry.Kind {
		case EntryData:
			out = append(out, entry.Bytes...)
		case EntryInstruction:
			bytes, err := encodeInstruction(entry, a.ByteOrder)
			if err != nil {
				return nil, err
			}

			out = append(out, bytes...)
		}

		cursor += vm.Word(entry.Length)
	}

	return out, nil
}
