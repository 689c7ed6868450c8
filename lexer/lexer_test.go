package lexer_test

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/veld-lang/veld/diag"
	. "github.com/veld-lang/veld/lexer"
	"golang.org/x/exp/slices"
)

const testFile = "test.veld"

func lex(t *testing.T, src string) ([]Token, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink()
	return New(sink, testFile, src).Lex(), sink
}

// dropNewlines strips Newline tokens, including the sentinel's.
func dropNewlines(toks []Token) []Token {
	var out []Token
	for _, tok := range toks {
		if tok.Kind != Newline {
			out = append(out, tok)
		}
	}
	return out
}

func tok(kind Kind) Token            { return Token{Kind: kind} }
func ident(s string) Token           { return Token{Kind: Ident, Text: s} }
func typename(s string) Token        { return Token{Kind: Typename, Text: s} }
func intTok(v int64, ty IntTy) Token { return Token{Kind: Int, Int: big.NewInt(v), IntTy: ty} }
func dblTok(v float64) Token         { return Token{Kind: Double, Fl: v} }
func fltTok(v float64) Token         { return Token{Kind: Float, Fl: v} }

func TestLexer(t *testing.T) {
	run := func(name, src string, expected []Token) {
		t.Run(name, func(t *testing.T) {
			got, sink := lex(t, src)
			got = dropNewlines(got)
			if len(sink.Errors()) != 0 {
				t.Errorf("unexpected diagnostics:\n%s", sink)
			}
			if !slices.EqualFunc(got, expected, Token.Eq) {
				pretty.Ldiff(t, expected, got)
				t.Fail()
			}
		})
	}

	run("operators", "..= ..< .. :: -> => == <= >= != << >> += -= *= /= %= &= |= ^= && || |> + - * / % & | ^ < > = ! , ; : . ? ( ) { } [ ]", []Token{
		tok(DotDotEq), tok(DotDotLt), tok(DotDot), tok(ColonColon), tok(Arrow),
		tok(FatArrow), tok(EqEq), tok(Le), tok(Ge), tok(Ne), tok(Shl), tok(Shr),
		tok(PlusEq), tok(MinusEq), tok(StarEq), tok(SlashEq), tok(PercentEq),
		tok(AmpEq), tok(PipeEq), tok(CaretEq), tok(AndAnd), tok(OrOr), tok(PipeGt),
		tok(Plus), tok(Minus), tok(Star), tok(Slash), tok(Percent), tok(Amp),
		tok(Pipe), tok(Caret), tok(Lt), tok(Gt), tok(Eq), tok(Not), tok(Comma),
		tok(Semicolon), tok(Colon), tok(Dot), tok(Question), tok(LParen),
		tok(RParen), tok(LBrace), tok(RBrace), tok(LBracket), tok(RBracket),
	})

	run("keywords", "fn impl struct trait enum abstract global let var mut if else match is return break continue while for in guard test use type true false", []Token{
		tok(KwFn), tok(KwImpl), tok(KwStruct), tok(KwTrait), tok(KwEnum),
		tok(KwAbstract), tok(KwGlobal), tok(KwLet), tok(KwVar), tok(KwMut),
		tok(KwIf), tok(KwElse), tok(KwMatch), tok(KwIs), tok(KwReturn),
		tok(KwBreak), tok(KwContinue), tok(KwWhile), tok(KwFor), tok(KwIn),
		tok(KwGuard), tok(KwTest), tok(KwUse), tok(KwType), tok(KwTrue), tok(KwFalse),
	})

	run("pub", "pub pub(all) pub(open) pub (all)", []Token{
		tok(Pub), tok(Puball), tok(Pubopen), tok(Pub), tok(LParen), ident("all"), tok(RParen),
	})

	run("identifiers", "_ __ a_b_c a12 snake fnord Matcher B @std @collections #inline #target.os", []Token{
		ident("_"), ident("__"), ident("a_b_c"), ident("a12"), ident("snake"),
		ident("fnord"), typename("Matcher"), typename("B"),
		{Kind: Packname, Text: "std"}, {Kind: Packname, Text: "collections"},
		{Kind: Attribute, Text: "inline"}, {Kind: Attribute, Text: "target.os"},
	})

	run("comments", "a // the rest is skipped ..= \nb", []Token{
		ident("a"), ident("b"),
	})

	run("integers", "0 7 1_000 0x1 0xFB 0b01001 0o777 42N 7u 7L 7uL 0xFFuL", []Token{
		intTok(0, DefaultIntTy),
		intTok(7, DefaultIntTy),
		intTok(1000, DefaultIntTy),
		intTok(1, DefaultIntTy),
		intTok(0xFB, DefaultIntTy),
		intTok(9, DefaultIntTy),
		intTok(0o777, DefaultIntTy),
		intTok(42, IntTy{Len: -1, Signed: true}),
		intTok(7, IntTy{Len: 32, Signed: false}),
		intTok(7, IntTy{Len: 64, Signed: true}),
		intTok(7, IntTy{Len: 64, Signed: true}),
		intTok(255, IntTy{Len: 64, Signed: true}),
	})

	run("floats", "1.2 0.3 1.2e3 1.2e+3 1.2e-3 1_000e3 1F 1.5f 0x1.8p2F 0x1.8p2", []Token{
		dblTok(1.2), dblTok(0.3), dblTok(1.2e3), dblTok(1.2e3), dblTok(1.2e-3),
		dblTok(1e6), fltTok(1), fltTok(1.5), fltTok(6), dblTok(6),
	})

	run("range cutoff", "1..5 1..=5 0..<n", []Token{
		intTok(1, DefaultIntTy), tok(DotDot), intTok(5, DefaultIntTy),
		intTok(1, DefaultIntTy), tok(DotDotEq), intTok(5, DefaultIntTy),
		intTok(0, DefaultIntTy), tok(DotDotLt), ident("n"),
	})

	run("chars", `'a' '\n' '\t' '\\' '\'' '\0' '\u{1F600}' '\uABCD' '\x41'`, []Token{
		{Kind: Char, Ch: 'a'}, {Kind: Char, Ch: '\n'}, {Kind: Char, Ch: '\t'},
		{Kind: Char, Ch: '\\'}, {Kind: Char, Ch: '\''}, {Kind: Char, Ch: 0},
		{Kind: Char, Ch: 0x1F600}, {Kind: Char, Ch: 0xABCD}, {Kind: Char, Ch: 'A'},
	})

	run("strings keep escapes unresolved", `"hello" "a\nb" "quote \" inside" "\\"`, []Token{
		{Kind: Str, Text: "hello"}, {Kind: Str, Text: `a\nb`},
		{Kind: Str, Text: `quote \" inside`}, {Kind: Str, Text: `\\`},
	})

	run("bytes", `b'a' b'\n' b"hi" b"a\tb"`, []Token{
		{Kind: Byte, Byte: 'a'}, {Kind: Byte, Byte: '\n'},
		{Kind: ByteStr, Bytes: []byte("hi")}, {Kind: ByteStr, Bytes: []byte("a\tb")},
	})

	run("byte string utf8", `b"我"`, []Token{
		{Kind: ByteStr, Bytes: []byte{0xE6, 0x88, 0x91}},
	})
}

func TestNewlines(t *testing.T) {
	got, sink := lex(t, "a\nb\n")
	if len(sink.Errors()) != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", sink)
	}
	// the sentinel newline is lexed like any other
	expected := []Token{
		{Kind: Ident, Loc: diag.At(testFile, 0), Len: 1, Text: "a"},
		{Kind: Newline, Loc: diag.At(testFile, 1), Len: 1},
		{Kind: Ident, Loc: diag.At(testFile, 2), Len: 1, Text: "b"},
		{Kind: Newline, Loc: diag.At(testFile, 3), Len: 1},
		{Kind: Newline, Loc: diag.At(testFile, 4), Len: 1},
	}
	if !slices.EqualFunc(got, expected, Token.ExactEq) {
		pretty.Ldiff(t, expected, got)
		t.Fail()
	}
}

func TestIntWidthSpans(t *testing.T) {
	got, sink := lex(t, "0xFFuL")
	if len(sink.Errors()) != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", sink)
	}
	got = dropNewlines(got)
	if len(got) != 1 {
		t.Fatalf("expected one token, got %v", got)
	}
	want := Token{Kind: Int, Loc: diag.At(testFile, 0), Len: 6, Int: big.NewInt(255), IntTy: IntTy{Len: 64, Signed: true}}
	if !got[0].ExactEq(want) {
		t.Errorf("got %#v, want %#v", got[0], want)
	}
}

func TestRawStrMerge(t *testing.T) {
	got, sink := lex(t, "#|a\n#|b\n#|c\n")
	if len(sink.Errors()) != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", sink)
	}
	got = dropNewlines(got)
	if len(got) != 1 {
		t.Fatalf("expected one merged token, got %v", got)
	}
	want := Token{Kind: RawStr, Loc: diag.At(testFile, 0), Len: 12, Text: "a\nb\nc\n"}
	if !got[0].ExactEq(want) {
		t.Errorf("got %#v, want %#v", got[0], want)
	}
}

func TestRawStrSeparated(t *testing.T) {
	got, _ := lex(t, "#|a\nx\n#|b\n")
	got = dropNewlines(got)
	expected := []Token{
		{Kind: RawStr, Text: "a\n"},
		{Kind: Ident, Text: "x"},
		{Kind: RawStr, Text: "b\n"},
	}
	if !slices.EqualFunc(got, expected, Token.Eq) {
		pretty.Ldiff(t, expected, got)
		t.Fail()
	}
}

// Every token's span must slice the source back to its lexeme, so
// re-lexing the slice reproduces the token.
func TestSpanRoundTrip(t *testing.T) {
	sources := []string{
		"let x = 1 + 2",
		"fn add(a: Int, b: Int) -> Int { a + b }",
		"0xFFuL 1_000e3 42N 0x1.8p2F 'x' \"abc\\n\" b'q'",
		"for i = 0; i < 10; i += 1 { continue }",
		"@std::List.map(xs) |> print",
	}
	for _, src := range sources {
		toks, sink := lex(t, src)
		if n := len(sink.Errors()); n != 0 {
			t.Fatalf("%q: %d diagnostics:\n%s", src, n, sink)
		}
		full := src + "\n"
		for _, tk := range toks {
			lexeme := full[tk.Loc.Pos : tk.Loc.Pos+tk.Len]
			if tk.Kind == Newline {
				if lexeme != "\n" {
					t.Errorf("%q: newline token slice %q", src, lexeme)
				}
				continue
			}
			again, _ := lex(t, lexeme)
			again = dropNewlines(again)
			if len(again) != 1 || !again[0].Eq(tk) {
				t.Errorf("%q: slice %q does not re-lex to %v (got %v)", src, lexeme, tk, again)
			}
		}
	}
}

// Integer parse closure: the lexed value of a digit string equals the
// base-b horner sum of its digits.
func TestIntegerParseClosure(t *testing.T) {
	digits := map[int]string{2: "01", 8: "01234567", 10: "0123456789", 16: "0123456789abcdef"}
	prefix := map[int]string{2: "0b", 8: "0o", 10: "", 16: "0x"}
	for base, alphabet := range digits {
		for seed := 0; seed < 50; seed++ {
			var sb strings.Builder
			n := seed%5 + 1
			v := new(big.Int)
			state := seed
			for i := 0; i < n; i++ {
				state = (state*31 + 17) % len(alphabet)
				d := alphabet[state]
				sb.WriteByte(d)
				v.Mul(v, big.NewInt(int64(base)))
				v.Add(v, big.NewInt(int64(strings.IndexByte(alphabet, d))))
			}
			src := prefix[base] + sb.String()
			toks, sink := lex(t, src)
			toks = dropNewlines(toks)
			if len(sink.Errors()) != 0 {
				t.Fatalf("%q: %s", src, sink)
			}
			if len(toks) != 1 || toks[0].Kind != Int {
				t.Fatalf("%q: got %v", src, toks)
			}
			if toks[0].Int.Cmp(v) != 0 {
				t.Errorf("%q: value %s, want %s", src, toks[0].Int, v)
			}
		}
	}
}

func TestLexErrors(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{`"unterminated`, "unterminated string literal"},
		{`'a`, "unterminated char literal"},
		{`'\q'`, "unknown escape sequence"},
		{`'\uD800'`, "not a valid Unicode scalar"},
		{`b'我'`, "byte literal out of range"},
		{"0b102", "not a valid digit in base 2"},
		{"0o8", "not a valid digit in base 8"},
		{"0x", "no digits"},
		{"1.2e", "no digits in exponent"},
		{"0x1.8", "requires 'p' exponent"},
		{"\x01", "unrecognized character"},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			_, sink := lex(t, c.src)
			errs := sink.Errors()
			if len(errs) == 0 {
				t.Fatalf("expected a diagnostic for %q", c.src)
			}
			if !strings.Contains(errs[0].Msg, c.want) {
				t.Errorf("got %q, want substring %q", errs[0].Msg, c.want)
			}
		})
	}
}

func TestDiagnosticPositions(t *testing.T) {
	_, sink := lex(t, "let x = 1\nlet y = '\\q'\n")
	errs := sink.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected one diagnostic, got %v", errs)
	}
	if got := sink.FormatLoc(errs[0].From); !strings.HasPrefix(got, fmt.Sprintf("%s:2:", testFile)) {
		t.Errorf("diagnostic on wrong line: %s", got)
	}
}
