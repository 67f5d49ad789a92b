package asm

// charset.go implements the two single-byte code pages allowed
// for character and string literals: CP437 (the default) and CP850. Only
// the non-ASCII half of each page is tabulated; bytes below 0x80 are
// identical to ASCII in both.

// Charset selects how runes above ASCII are encoded to a single byte.
type Charset int

const (
	CP437 Charset = iota
	CP850
)

// ParseCharset maps the `-c` CLI flag value to a Charset. An unrecognized
// name is a configuration error the caller should report; ParseCharset
// itself just reports ok=false.
func ParseCharset(name string) (Charset, bool) {
	switch name {
	case "", "cp437":
		return CP437, true
	case "cp850":
		return CP850, true
	default:
		return 0, false
	}
}

// cp437Upper holds the upper 128 code points of CP437, indexed by byte-0x80.
var cp437Upper = [128]rune{
	'Ç', 'ü', 'é', 'â', 'ä', 'à', 'å', 'ç', 'ê', 'ë', 'è', 'ï', 'î', 'ì', 'Ä', 'Å',
	'É', 'æ', 'Æ', 'ô', 'ö', 'ò', 'û', 'ù', 'ÿ', 'Ö', 'Ü', '¢', '£', '¥', '₧', 'ƒ',
	'á', 'í', 'ó', 'ú', 'ñ', 'Ñ', 'ª', 'º', '¿', '⌐', '¬', '½', '¼', '¡', '«', '»',
	'░', '▒', '▓', '│', '┤', '╡', '╢', '╖', '╕', '╣', '║', '╗', '╝', '╜', '╛', '┐',
	'└', '┴', '┬', '├', '─', '┼', '╞', '╟', '╚', '╔', '╩', '╦', '╠', '═', '╬', '╧',
	'╨', '╤', '╥', '╙', '╘', '╒', '╓', '╫', '╪', '┘', '┌', '█', '▄', '▌', '▐', '▀',
	'α', 'ß', 'Γ', 'π', 'Σ', 'σ', 'µ', 'τ', 'Φ', 'Θ', 'Ω', 'δ', '∞', 'φ', 'ε', '∩',
	'≡', '±', '≥', '≤', '⌠', '⌡', '÷', '≈', '°', '∙', '·', '√', 'ⁿ', '²', '■', ' ',
}

// cp850Upper holds the upper 128 code points of CP850.
var cp850Upper = [128]rune{
	'Ç', 'ü', 'é', 'â', 'ä', 'à', 'å', 'ç', 'ê', 'ë', 'è', 'ï', 'î', 'ì', 'Ä', 'Å',
	'É', 'æ', 'Æ', 'ô', 'ö', 'ò', 'û', 'ù', 'ÿ', 'Ö', 'Ü', 'ø', '£', 'Ø', '×', 'ƒ',
	'á', 'í', 'ó', 'ú', 'ñ', 'Ñ', 'ª', 'º', '¿', '®', '¬', '½', '¼', '¡', '«', '»',
	'░', '▒', '▓', '│', '┤', 'Á', 'Â', 'À', '©', '╣', '║', '╗', '╝', '¢', '¥', '┐',
	'└', '┴', '┬', '├', '─', '┼', 'ã', 'Ã', '╚', '╔', '╩', '╦', '╠', '═', '╬', '¤',
	'ð', 'Ð', 'Ê', 'Ë', 'È', 'ı', 'Í', 'Î', 'Ï', '┘', '┌', '█', '▄', '¦', 'Ì', '▀',
	'Ó', 'ß', 'Ô', 'Ò', 'õ', 'Õ', 'µ', 'þ', 'Þ', 'Ú', 'Û', 'Ù', 'ý', 'Ý', '¯', '´',
	'­', '±', '‗', '¾', '¶', '§', '÷', '¸', '°', '¨', '·', '¹', '³', '²', '■', ' ',
}

func table(cs Charset) *[128]rune {
	if cs == CP850 {
		return &cp850Upper
	}

	return &cp437Upper
}

// EncodeRune encodes a single rune to its byte value in the selected code
// page. ASCII runes pass through unchanged; unmapped runes outside the
// table return ok=false so the caller can report a syntax error.
func EncodeRune(cs Charset, r rune) (byte, bool) {
	if r < 0x80 {
		return byte(r), true
	}

	tbl := table(cs)
	for i, c := range tbl {
		if c == r {
			return byte(0x80 + i), true
		}
	}

	return 0, false
}

// EncodeString encodes a Go string (already escape-processed) to the bytes
// of the selected code page.
func EncodeString(cs Charset, s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))

	for _, r := range s {
		b, ok := EncodeRune(cs, r)
		if !ok {
			return nil, false
		}

		out = append(out, b)
	}

	return out, true
}
