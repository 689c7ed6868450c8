package lexer

import (
	"fmt"
	"math/big"

	"github.com/veld-lang/veld/diag"
	"golang.org/x/exp/slices"
)

type Kind int

const (
	EOF Kind = iota
	Newline

	Ident
	Typename
	Packname
	Attribute

	Int
	Double
	Float
	Str
	RawStr
	Char
	Byte
	ByteStr

	KwFn
	KwImpl
	KwStruct
	KwTrait
	KwEnum
	KwAbstract
	KwGlobal
	KwLet
	KwVar
	KwMut
	KwIf
	KwElse
	KwMatch
	KwIs
	KwReturn
	KwBreak
	KwContinue
	KwWhile
	KwFor
	KwIn
	KwGuard
	KwTest
	KwUse
	KwType
	KwTrue
	KwFalse
	Pub
	Puball
	Pubopen

	Plus
	Minus
	Star
	Slash
	Percent
	Amp
	Pipe
	Caret
	Lt
	Gt
	Eq
	Not
	Comma
	Semicolon
	Colon
	Dot
	Question
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket

	DotDot
	ColonColon
	Arrow
	FatArrow
	EqEq
	Le
	Ge
	Ne
	Shl
	Shr
	PlusEq
	MinusEq
	StarEq
	SlashEq
	PercentEq
	AmpEq
	PipeEq
	CaretEq
	AndAnd
	OrOr
	PipeGt

	DotDotEq
	DotDotLt
)

// IntTy records the declared width and signedness of an integer
// literal. Len is in bits; -1 marks an arbitrary-precision literal.
type IntTy struct {
	Len    int
	Signed bool
}

var DefaultIntTy = IntTy{Len: 32, Signed: true}

// Token carries its kind, the Loc of its first byte, and the byte
// length of its lexeme. Payload fields are populated per kind.
type Token struct {
	Kind Kind
	Loc  diag.Loc
	Len  int

	Text  string   // Ident, Typename, Packname, Attribute, Str, RawStr
	Int   *big.Int // Int
	IntTy IntTy    // Int
	Fl    float64  // Double, Float
	Ch    rune     // Char
	Byte  byte     // Byte
	Bytes []byte   // ByteStr
}

func (t Token) String() string {
	switch t.Kind {
	case Ident, Typename, Packname, Attribute, Str, RawStr:
		return fmt.Sprintf("%s:%s %q", t.Loc, t.Kind, t.Text)
	case Int:
		return fmt.Sprintf("%s:%s %s", t.Loc, t.Kind, t.Int)
	case Double, Float:
		return fmt.Sprintf("%s:%s %v", t.Loc, t.Kind, t.Fl)
	case Char:
		return fmt.Sprintf("%s:%s %q", t.Loc, t.Kind, t.Ch)
	}
	return fmt.Sprintf("%s:%s", t.Loc, t.Kind)
}

// Eq compares kind and payloads, ignoring position.
func (a Token) Eq(b Token) bool {
	if a.Kind != b.Kind || a.Text != b.Text || a.IntTy != b.IntTy ||
		a.Fl != b.Fl || a.Ch != b.Ch || a.Byte != b.Byte ||
		!slices.Equal(a.Bytes, b.Bytes) {
		return false
	}
	if (a.Int == nil) != (b.Int == nil) {
		return false
	}
	return a.Int == nil || a.Int.Cmp(b.Int) == 0
}

// ExactEq additionally compares position and length.
func (a Token) ExactEq(b Token) bool {
	return a.Eq(b) && a.Loc == b.Loc && a.Len == b.Len
}

var Keywords = map[string]Kind{
	"fn":       KwFn,
	"impl":     KwImpl,
	"struct":   KwStruct,
	"trait":    KwTrait,
	"enum":     KwEnum,
	"abstract": KwAbstract,
	"global":   KwGlobal,
	"let":      KwLet,
	"var":      KwVar,
	"mut":      KwMut,
	"if":       KwIf,
	"else":     KwElse,
	"match":    KwMatch,
	"is":       KwIs,
	"return":   KwReturn,
	"break":    KwBreak,
	"continue": KwContinue,
	"while":    KwWhile,
	"for":      KwFor,
	"in":       KwIn,
	"guard":    KwGuard,
	"test":     KwTest,
	"use":      KwUse,
	"type":     KwType,
	"true":     KwTrue,
	"false":    KwFalse,
	"pub":      Pub,
}

var SingleCharTokens = map[byte]Kind{
	'+': Plus,
	'-': Minus,
	'*': Star,
	'/': Slash,
	'%': Percent,
	'&': Amp,
	'|': Pipe,
	'^': Caret,
	'<': Lt,
	'>': Gt,
	'=': Eq,
	'!': Not,
	',': Comma,
	';': Semicolon,
	':': Colon,
	'.': Dot,
	'?': Question,
	'(': LParen,
	')': RParen,
	'{': LBrace,
	'}': RBrace,
	'[': LBracket,
	']': RBracket,
}

var DoubleCharTokens = map[[2]byte]Kind{
	{'.', '.'}: DotDot,
	{':', ':'}: ColonColon,
	{'-', '>'}: Arrow,
	{'=', '>'}: FatArrow,
	{'=', '='}: EqEq,
	{'<', '='}: Le,
	{'>', '='}: Ge,
	{'!', '='}: Ne,
	{'<', '<'}: Shl,
	{'>', '>'}: Shr,
	{'+', '='}: PlusEq,
	{'-', '='}: MinusEq,
	{'*', '='}: StarEq,
	{'/', '='}: SlashEq,
	{'%', '='}: PercentEq,
	{'&', '='}: AmpEq,
	{'|', '='}: PipeEq,
	{'^', '='}: CaretEq,
	{'&', '&'}: AndAnd,
	{'|', '|'}: OrOr,
	{'|', '>'}: PipeGt,
}

var TripleCharTokens = map[[3]byte]Kind{
	{'.', '.', '='}: DotDotEq,
	{'.', '.', '<'}: DotDotLt,
}

var kindNames = map[Kind]string{
	EOF:        "EOF",
	Newline:    "Newline",
	Ident:      "Ident",
	Typename:   "Typename",
	Packname:   "Packname",
	Attribute:  "Attribute",
	Int:        "Int",
	Double:     "Double",
	Float:      "Float",
	Str:        "Str",
	RawStr:     "RawStr",
	Char:       "Char",
	Byte:       "Byte",
	ByteStr:    "ByteStr",
	KwFn:       "fn",
	KwImpl:     "impl",
	KwStruct:   "struct",
	KwTrait:    "trait",
	KwEnum:     "enum",
	KwAbstract: "abstract",
	KwGlobal:   "global",
	KwLet:      "let",
	KwVar:      "var",
	KwMut:      "mut",
	KwIf:       "if",
	KwElse:     "else",
	KwMatch:    "match",
	KwIs:       "is",
	KwReturn:   "return",
	KwBreak:    "break",
	KwContinue: "continue",
	KwWhile:    "while",
	KwFor:      "for",
	KwIn:       "in",
	KwGuard:    "guard",
	KwTest:     "test",
	KwUse:      "use",
	KwType:     "type",
	KwTrue:     "true",
	KwFalse:    "false",
	Pub:        "pub",
	Puball:     "pub(all)",
	Pubopen:    "pub(open)",
	Plus:       "+",
	Minus:      "-",
	Star:       "*",
	Slash:      "/",
	Percent:    "%",
	Amp:        "&",
	Pipe:       "|",
	Caret:      "^",
	Lt:         "<",
	Gt:         ">",
	Eq:         "=",
	Not:        "!",
	Comma:      ",",
	Semicolon:  ";",
	Colon:      ":",
	Dot:        ".",
	Question:   "?",
	LParen:     "(",
	RParen:     ")",
	LBrace:     "{",
	RBrace:     "}",
	LBracket:   "[",
	RBracket:   "]",
	DotDot:     "..",
	ColonColon: "::",
	Arrow:      "->",
	FatArrow:   "=>",
	EqEq:       "==",
	Le:         "<=",
	Ge:         ">=",
	Ne:         "!=",
	Shl:        "<<",
	Shr:        ">>",
	PlusEq:     "+=",
	MinusEq:    "-=",
	StarEq:     "*=",
	SlashEq:    "/=",
	PercentEq:  "%=",
	AmpEq:      "&=",
	PipeEq:     "|=",
	CaretEq:    "^=",
	AndAnd:     "&&",
	OrOr:       "||",
	PipeGt:     "|>",
	DotDotEq:   "..=",
	DotDotLt:   "..<",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}
