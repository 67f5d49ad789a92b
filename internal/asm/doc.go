// Package asm implements the two-pass assembler: a parser that tokenizes
// source lines into labels, directives and instructions, and an assembler
// that orchestrates multi-file parsing, resolves symbols, and emits the
// binary image.
package asm
