package lexer

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/veld-lang/veld/diag"
)

// Lexer is a byte cursor over a single source file. The source is
// terminated with a "\n\x00" sentinel so lookahead never runs off the
// end; hasNext goes false at the NUL, one position before the real end.
type Lexer struct {
	sink *diag.Sink
	file string
	src  []byte
	pos  int
	toks []Token
}

func New(sink *diag.Sink, filename, src string) *Lexer {
	sink.Register(filename, src)
	return &Lexer{
		sink: sink,
		file: filename,
		src:  append([]byte(src), '\n', 0),
	}
}

func (l *Lexer) ch() byte             { return l.src[l.pos] }
func (l *Lexer) peek() byte           { return l.src[l.pos+1] }
func (l *Lexer) at(i int) byte        { return l.src[l.pos+i] }
func (l *Lexer) hasNext() bool        { return l.pos < len(l.src)-1 }
func (l *Lexer) loc() diag.Loc        { return diag.At(l.file, l.pos) }
func (l *Lexer) locAt(p int) diag.Loc { return diag.At(l.file, p) }

func (l *Lexer) errorf(from, to int, format string, args ...any) {
	l.sink.Errorf(l.locAt(from), l.locAt(to), format, args...)
}

func isLower(c byte) bool { return 'a' <= c && c <= 'z' }
func isUpper(c byte) bool { return 'A' <= c && c <= 'Z' }
func isDigit(c byte) bool { return '0' <= c && c <= '9' }
func isIdentStart(c byte) bool {
	return isLower(c) || c == '_'
}
func isIdentPart(c byte) bool {
	return isLower(c) || isUpper(c) || isDigit(c) || c == '_'
}
func isHexDigit(c byte) bool {
	return isDigit(c) || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
func digitVal(c byte) int {
	switch {
	case isDigit(c):
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}
	return 16
}

func (l *Lexer) emit(t Token) {
	l.toks = append(l.toks, t)
}

// Lex scans the whole file and returns the token sequence. Errors are
// reported through the sink; lexing never aborts.
func (l *Lexer) Lex() []Token {
	for l.hasNext() {
		c := l.ch()
		switch {
		case c == '\n':
			l.emit(Token{Kind: Newline, Loc: l.loc(), Len: 1})
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '/' && l.peek() == '/':
			for l.ch() != '\n' && l.ch() != 0 {
				l.pos++
			}
		case c == 'b' && (l.peek() == '\'' || l.peek() == '"'):
			l.lexByte()
		case isIdentStart(c):
			l.lexIdentOrKeyword()
		case isUpper(c):
			l.lexTypename()
		case c == '@':
			l.lexPackname()
		case c == '#':
			if l.peek() == '|' {
				l.lexRawStr()
			} else {
				l.lexAttribute()
			}
		case isDigit(c):
			l.lexNumber()
		case c == '\'':
			l.lexChar()
		case c == '"':
			l.lexStr()
		default:
			l.lexOperator()
		}
	}
	return mergeRawStrs(l.sink, l.toks)
}

func (l *Lexer) lexIdentOrKeyword() {
	start := l.pos
	for isIdentPart(l.ch()) {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	if kind, ok := Keywords[text]; ok {
		tok := Token{Kind: kind, Loc: l.locAt(start), Len: l.pos - start}
		if kind == Pub {
			switch {
			case l.pos+5 <= len(l.src) && string(l.src[l.pos:l.pos+5]) == "(all)":
				l.pos += 5
				tok = Token{Kind: Puball, Loc: l.locAt(start), Len: l.pos - start}
			case l.pos+6 <= len(l.src) && string(l.src[l.pos:l.pos+6]) == "(open)":
				l.pos += 6
				tok = Token{Kind: Pubopen, Loc: l.locAt(start), Len: l.pos - start}
			}
		}
		l.emit(tok)
		return
	}
	l.emit(Token{Kind: Ident, Loc: l.locAt(start), Len: l.pos - start, Text: text})
}

func (l *Lexer) lexTypename() {
	start := l.pos
	for isIdentPart(l.ch()) {
		l.pos++
	}
	l.emit(Token{Kind: Typename, Loc: l.locAt(start), Len: l.pos - start, Text: string(l.src[start:l.pos])})
}

func (l *Lexer) lexPackname() {
	start := l.pos
	l.pos++
	for isIdentPart(l.ch()) {
		l.pos++
	}
	l.emit(Token{Kind: Packname, Loc: l.locAt(start), Len: l.pos - start, Text: string(l.src[start+1 : l.pos])})
}

func (l *Lexer) lexAttribute() {
	start := l.pos
	l.pos++
	for isIdentPart(l.ch()) || l.ch() == '.' {
		l.pos++
	}
	l.emit(Token{Kind: Attribute, Loc: l.locAt(start), Len: l.pos - start, Text: string(l.src[start+1 : l.pos])})
}

func (l *Lexer) digitsValid(base int) func(byte) bool {
	switch base {
	case 16:
		return isHexDigit
	default:
		return func(c byte) bool { return isDigit(c) && digitVal(c) < base }
	}
}

// lexDigits consumes digits and underscores, reporting digits invalid
// under the base. Base-10 and base-2/8 runs stop at the first
// non-decimal byte; hex runs consume the full hex-digit class.
func (l *Lexer) lexDigits(base int) string {
	var sb strings.Builder
	valid := l.digitsValid(base)
	for {
		c := l.ch()
		switch {
		case c == '_':
			l.pos++
		case base == 16 && isHexDigit(c):
			sb.WriteByte(c)
			l.pos++
		case base != 16 && isDigit(c):
			if !valid(c) {
				l.errorf(l.pos, l.pos, "%q is not a valid digit in base %d", c, base)
			}
			sb.WriteByte(c)
			l.pos++
		default:
			return sb.String()
		}
	}
}

func (l *Lexer) lexNumber() {
	start := l.pos
	base := 10
	if l.ch() == '0' {
		switch l.peek() {
		case 'x', 'X':
			base = 16
			l.pos += 2
		case 'o':
			base = 8
			l.pos += 2
		case 'b':
			base = 2
			l.pos += 2
		}
	}
	mant := l.lexDigits(base)
	if mant == "" && base != 10 {
		l.errorf(start, l.pos, "no digits in base-%d literal", base)
		mant = "0"
	}

	isDouble := false
	frac := ""
	// `..` and `..=` terminate the integer with no fractional part.
	if l.ch() == '.' && l.peek() != '.' && (base == 10 || base == 16) {
		isDouble = true
		l.pos++
		frac = l.lexDigits(base)
		if mant == "" && frac == "" {
			l.errorf(start, l.pos, "no digits in number")
		}
	}

	expNeg := false
	exp := ""
	hasExp := false
	if base == 10 && (l.ch() == 'e' || l.ch() == 'E') ||
		base == 16 && (l.ch() == 'p' || l.ch() == 'P') {
		isDouble = true
		hasExp = true
		l.pos++
		if l.ch() == '+' || l.ch() == '-' {
			expNeg = l.ch() == '-'
			l.pos++
		}
		for isDigit(l.ch()) {
			exp += string(l.ch())
			l.pos++
		}
		if exp == "" {
			l.errorf(start, l.pos, "no digits in exponent")
			exp = "0"
		}
	}
	if base == 16 && isDouble && !hasExp {
		l.errorf(start, l.pos, "hexadecimal mantissa requires 'p' exponent")
		exp = "0"
	}

	isFloat := false
	ity := DefaultIntTy
	for {
		switch l.ch() {
		case 'F', 'f':
			isFloat = true
		case 'N', 'n':
			ity = IntTy{Len: -1, Signed: true}
		case 'u', 'U':
			ity.Signed = !ity.Signed
		case 'l', 'L':
			if ity.Len == 64 {
				ity.Len = 32
			} else {
				ity.Len = 64
			}
			ity.Signed = true
		default:
			tok := Token{Loc: l.locAt(start), Len: l.pos - start}
			if isDouble || isFloat {
				tok.Kind = Double
				if isFloat {
					tok.Kind = Float
				}
				tok.Fl = l.floatValue(start, base, mant, frac, exp, expNeg)
			} else {
				tok.Kind = Int
				tok.IntTy = ity
				v, ok := new(big.Int).SetString(mant, base)
				if !ok {
					l.errorf(start, l.pos, "invalid base-%d integer literal", base)
					v = new(big.Int)
				}
				tok.Int = v
			}
			l.emit(tok)
			return
		}
		l.pos++
	}
}

func (l *Lexer) floatValue(start, base int, mant, frac, exp string, expNeg bool) float64 {
	if base == 10 {
		lit := mant
		if lit == "" {
			lit = "0"
		}
		if frac != "" {
			lit += "." + frac
		}
		if exp != "" {
			sign := ""
			if expNeg {
				sign = "-"
			}
			lit += "e" + sign + exp
		}
		f, err := parseFloat(lit)
		if err != nil {
			l.errorf(start, l.pos, "invalid float literal")
			return 0
		}
		return f
	}
	// hex float: mantissa digits are hex, exponent is a decimal power
	// of two
	var v float64
	for i := 0; i < len(mant); i++ {
		v = v*16 + float64(digitVal(mant[i]))
	}
	scale := 1.0 / 16
	for i := 0; i < len(frac); i++ {
		v += float64(digitVal(frac[i])) * scale
		scale /= 16
	}
	e := 0
	for i := 0; i < len(exp); i++ {
		e = e*10 + int(exp[i]-'0')
	}
	if expNeg {
		e = -e
	}
	return math.Ldexp(v, e)
}

// lexEscapeAt reads one escape sequence from s starting after the
// backslash, returning the code point and the number of bytes consumed.
func lexEscapeAt(s string) (r rune, n int, msg string) {
	if len(s) == 0 {
		return 0, 0, "escape sequence not terminated"
	}
	switch s[0] {
	case 'n':
		return '\n', 1, ""
	case 't':
		return '\t', 1, ""
	case 'r':
		return '\r', 1, ""
	case 'b':
		return '\b', 1, ""
	case '0':
		return 0, 1, ""
	case '\\':
		return '\\', 1, ""
	case '"':
		return '"', 1, ""
	case '\'':
		return '\'', 1, ""
	case 'u':
		if len(s) > 1 && s[1] == '{' {
			i := 2
			var x uint32
			for i < len(s) && s[i] != '}' {
				if !isHexDigit(s[i]) {
					return 0, i, "invalid character in escape sequence"
				}
				x = x*16 + uint32(digitVal(s[i]))
				i++
			}
			if i == len(s) {
				return 0, i, "escape sequence not terminated"
			}
			return checkScalar(x, i+1)
		}
		return lexFixedHex(s[1:], 4)
	case 'x':
		return lexFixedHex(s[1:], 2)
	}
	return 0, 1, "unknown escape sequence"
}

func lexFixedHex(s string, n int) (rune, int, string) {
	var x uint32
	for i := 0; i < n; i++ {
		if i >= len(s) || !isHexDigit(s[i]) {
			return 0, i + 1, "invalid character in escape sequence"
		}
		x = x*16 + uint32(digitVal(s[i]))
	}
	return checkScalar(x, n+1)
}

func checkScalar(x uint32, n int) (rune, int, string) {
	if x > unicode.MaxRune || 0xD800 <= x && x < 0xE000 {
		return 0, n, "escape sequence is not a valid Unicode scalar"
	}
	return rune(x), n, ""
}

// lexCharBody reads a quoted char starting at the opening quote,
// returning the rune and whether the literal was terminated. The cursor
// is left just past the closing quote when there is one.
func (l *Lexer) lexCharBody() (rune, bool) {
	l.pos++
	var r rune
	switch c := l.ch(); {
	case c == '\\':
		l.pos++
		rest := string(l.src[l.pos:])
		esc, n, msg := lexEscapeAt(rest)
		if msg != "" {
			l.errorf(l.pos-1, l.pos+n, "%s", msg)
		}
		l.pos += n
		r = esc
	case c == '\n' || c == 0:
		l.errorf(l.pos-1, l.pos, "unterminated char literal")
		return 0, false
	default:
		dec, size := utf8.DecodeRune(l.src[l.pos:])
		l.pos += size
		r = dec
	}
	if l.ch() != '\'' {
		l.errorf(l.pos, l.pos, "unterminated char literal")
		for l.ch() != '\'' && l.ch() != '\n' && l.ch() != 0 {
			l.pos++
		}
		if l.ch() == '\'' {
			l.pos++
		}
		return r, false
	}
	l.pos++
	return r, true
}

func (l *Lexer) lexChar() {
	start := l.pos
	r, _ := l.lexCharBody()
	l.emit(Token{Kind: Char, Loc: l.locAt(start), Len: l.pos - start, Ch: r})
}

// lexStrBody scans a quoted string starting at the opening quote and
// returns the raw content between the quotes. A quote is escaped iff
// preceded by an odd number of backslashes; escapes are left
// unresolved.
func (l *Lexer) lexStrBody() (string, bool) {
	start := l.pos
	l.pos++
	backslashes := 0
	for {
		switch c := l.ch(); {
		case c == 0:
			l.errorf(start, l.pos, "unterminated string literal")
			return string(l.src[start+1 : l.pos]), false
		case c == '"' && backslashes%2 == 0:
			content := string(l.src[start+1 : l.pos])
			l.pos++
			return content, true
		case c == '\\':
			backslashes++
			l.pos++
		default:
			backslashes = 0
			l.pos++
		}
	}
}

func (l *Lexer) lexStr() {
	start := l.pos
	content, _ := l.lexStrBody()
	l.emit(Token{Kind: Str, Loc: l.locAt(start), Len: l.pos - start, Text: content})
}

func (l *Lexer) lexRawStr() {
	start := l.pos
	l.pos += 2
	for l.ch() != '\n' && l.ch() != 0 {
		l.pos++
	}
	if l.ch() == '\n' {
		l.pos++
	}
	l.emit(Token{Kind: RawStr, Loc: l.locAt(start), Len: l.pos - start, Text: string(l.src[start+2 : l.pos])})
}

func (l *Lexer) lexByte() {
	start := l.pos
	l.pos++ // 'b'
	if l.ch() == '\'' {
		r, _ := l.lexCharBody()
		if r < 0 || r > 255 {
			l.errorf(start, l.pos, "byte literal out of range [0, 255]")
			r = 0
		}
		l.emit(Token{Kind: Byte, Loc: l.locAt(start), Len: l.pos - start, Byte: byte(r)})
		return
	}
	content, _ := l.lexStrBody()
	l.emit(Token{Kind: ByteStr, Loc: l.locAt(start), Len: l.pos - start, Bytes: l.resolveEscapes(start, content)})
}

// resolveEscapes rewrites escape sequences in a byte-string body and
// encodes the result as UTF-8.
func (l *Lexer) resolveEscapes(at int, s string) []byte {
	var out []byte
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			out = append(out, s[i])
			i++
			continue
		}
		r, n, msg := lexEscapeAt(s[i+1:])
		if msg != "" {
			l.errorf(at, at+i, "%s", msg)
		}
		out = utf8.AppendRune(out, r)
		i += 1 + n
	}
	return out
}

func (l *Lexer) lexOperator() {
	start := l.pos
	if kind, ok := TripleCharTokens[[3]byte{l.ch(), l.at(1), l.at(2)}]; ok {
		l.pos += 3
		l.emit(Token{Kind: kind, Loc: l.locAt(start), Len: 3})
		return
	}
	if kind, ok := DoubleCharTokens[[2]byte{l.ch(), l.peek()}]; ok {
		l.pos += 2
		l.emit(Token{Kind: kind, Loc: l.locAt(start), Len: 2})
		return
	}
	if kind, ok := SingleCharTokens[l.ch()]; ok {
		l.pos++
		l.emit(Token{Kind: kind, Loc: l.locAt(start), Len: 1})
		return
	}
	r, size := utf8.DecodeRune(l.src[l.pos:])
	l.pos += size
	l.errorf(start, l.pos-1, "unrecognized character %q", r)
}

// mergeRawStrs joins adjacent raw-string fragments into a single token
// spanning the joint content. Every fragment must already carry its
// terminating newline.
func mergeRawStrs(sink *diag.Sink, toks []Token) []Token {
	out := toks[:0]
	for _, t := range toks {
		if t.Kind == RawStr && !strings.HasSuffix(t.Text, "\n") {
			sink.Errorf(t.Loc, t.Loc.Advance(t.Len), "raw-string fragment missing terminating newline")
		}
		if t.Kind == RawStr && len(out) > 0 && out[len(out)-1].Kind == RawStr {
			prev := &out[len(out)-1]
			prev.Text += t.Text
			prev.Len += t.Len
			continue
		}
		out = append(out, t)
	}
	return out
}

func parseFloat(lit string) (float64, error) {
	return strconv.ParseFloat(lit, 64)
}
