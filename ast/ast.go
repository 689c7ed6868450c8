// Package ast defines the syntax tree consumed by the checker. A node
// is a kind-tagged record with a source span and a mutable inferred
// type slot; the fields populated depend on the kind.
package ast

import (
	"io"
	"math/big"

	"github.com/veld-lang/veld/diag"
	"github.com/veld-lang/veld/lexer"
	"github.com/veld-lang/veld/names"
	"github.com/veld-lang/veld/types"
)

type Kind int

const (
	Bad Kind = iota

	// declarations
	FnDecl
	ImplDecl
	StructDecl
	TraitDecl
	EnumDecl
	AbstractDecl
	GlobalDecl
	VarDecl
	ParamDecl
	TupleDecl
	StructLet
	EnumLet
	Typealias
	Fnalias

	// expressions
	IntLit
	DoubleLit
	FloatLit
	StrLit
	FstrLit
	BoolLit
	CharLit
	ByteLit
	ByteStrLit
	ArrLit
	UnitLit
	Leaf
	Block
	If
	Match
	Is
	TupleMake
	TupleAccess
	Return
	Break
	Continue
	EnumConstr
	StructInit
	StructModif
	FieldRef
	ArrAccess
	View
	Call
	ChainCall
	Unary
	Binary
	BinaryInplace
	VarRef

	// control flow
	While
	For
	ForIn
	Guard
	IncRange
	ExcRange
	FFIBody
	Test
)

var kindNames = [...]string{
	Bad:           "Bad",
	FnDecl:        "FnDecl",
	ImplDecl:      "ImplDecl",
	StructDecl:    "StructDecl",
	TraitDecl:     "TraitDecl",
	EnumDecl:      "EnumDecl",
	AbstractDecl:  "AbstractDecl",
	GlobalDecl:    "GlobalDecl",
	VarDecl:       "VarDecl",
	ParamDecl:     "ParamDecl",
	TupleDecl:     "TupleDecl",
	StructLet:     "StructLet",
	EnumLet:       "EnumLet",
	Typealias:     "Typealias",
	Fnalias:       "Fnalias",
	IntLit:        "IntLit",
	DoubleLit:     "DoubleLit",
	FloatLit:      "FloatLit",
	StrLit:        "StrLit",
	FstrLit:       "FstrLit",
	BoolLit:       "BoolLit",
	CharLit:       "CharLit",
	ByteLit:       "ByteLit",
	ByteStrLit:    "ByteStrLit",
	ArrLit:        "ArrLit",
	UnitLit:       "UnitLit",
	Leaf:          "Leaf",
	Block:         "Block",
	If:            "If",
	Match:         "Match",
	Is:            "Is",
	TupleMake:     "TupleMake",
	TupleAccess:   "TupleAccess",
	Return:        "Return",
	Break:         "Break",
	Continue:      "Continue",
	EnumConstr:    "EnumConstr",
	StructInit:    "StructInit",
	StructModif:   "StructModif",
	FieldRef:      "FieldRef",
	ArrAccess:     "ArrAccess",
	View:          "View",
	Call:          "Call",
	ChainCall:     "ChainCall",
	Unary:         "Unary",
	Binary:        "Binary",
	BinaryInplace: "BinaryInplace",
	VarRef:        "VarRef",
	While:         "While",
	For:           "For",
	ForIn:         "ForIn",
	Guard:         "Guard",
	IncRange:      "IncRange",
	ExcRange:      "ExcRange",
	FFIBody:       "FFIBody",
	Test:          "Test",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(?)"
}

// LitterDump renders the kind by name in ast.Dump output.
func (k Kind) LitterDump(w io.Writer) {
	io.WriteString(w, k.String())
}

// TyParam is a declared type parameter with its trait bounds.
type TyParam struct {
	Name   string
	Bounds []names.Name
}

// Arg is a call argument, struct-init field, or struct-modif field.
// An empty Name marks a positional argument.
type Arg struct {
	Name  string
	Value *Node
}

// Arm is one match arm.
type Arm struct {
	Pat  *Node
	Body *Node
}

// Variant is one enum constructor declaration.
type Variant struct {
	Name string
	Tys  []types.Type
}

// Node is a syntax node. From/To span the node in source; Ty starts
// Unknown and is filled in during inference.
type Node struct {
	Kind Kind
	From diag.Loc
	To   diag.Loc
	Ty   types.Type

	Name    names.Name  // decls, refs, struct/enum constructors
	Text    string      // literals, field names, methods, variants, test names
	Int     *big.Int    // IntLit
	IntTy   lexer.IntTy // IntLit
	Fl      float64     // DoubleLit, FloatLit
	Bool    bool        // BoolLit
	Ch      rune        // CharLit
	Byte    byte        // ByteLit
	Bytes   []byte      // ByteStrLit
	Op      lexer.Kind  // Unary, Binary, BinaryInplace
	Idx     int         // TupleAccess
	Mutable bool        // VarDecl, GlobalDecl, ParamDecl
	Kw      bool        // ParamDecl: keyword-only parameter
	Default *Node       // ParamDecl: default value, nil when required

	Ann      types.Type   // declared type annotation, nil when absent
	Ret      types.Type   // FnDecl declared return, nil when absent
	Tyvars   []TyParam    // FnDecl, StructDecl, EnumDecl, AbstractDecl
	Args     []Arg        // Call kwargs, StructInit, StructModif
	Arms     []Arm        // Match
	Variants []Variant    // EnumDecl
	Vars     []names.Name // ForIn, TupleDecl, StructLet, EnumLet

	X      *Node   // operand, callee, subject, initializer, receiver
	Pat    *Node   // Is
	Cond   *Node   // If, While, Guard
	Then   *Node   // If
	Else   *Node   // If, Guard
	Left   *Node   // Binary, BinaryInplace, ranges
	Right  *Node   // Binary, BinaryInplace, ranges, ArrAccess index
	Body   *Node   // FnDecl, loops, Test
	Params []*Node // FnDecl ParamDecls
	Kids   []*Node // Block elems, call positionals, tuple/array elems,
	// fstr parts, continue values, trait/impl members
	Starts []*Node // For induction declarations
	Steps  []*Node // For step assignments
	Stop   *Node   // For condition
	Exit   *Node   // For exit expression, nil when absent
}

func New(kind Kind, from, to diag.Loc) *Node {
	return &Node{Kind: kind, From: from, To: to, Ty: types.Unknown}
}

func (n *Node) children() []*Node {
	var out []*Node
	add := func(ns ...*Node) {
		for _, c := range ns {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	add(n.X, n.Pat, n.Cond, n.Then, n.Else, n.Left, n.Right, n.Body, n.Stop, n.Exit, n.Default)
	add(n.Params...)
	add(n.Kids...)
	add(n.Starts...)
	add(n.Steps...)
	for _, a := range n.Args {
		add(a.Value)
	}
	for _, a := range n.Arms {
		add(a.Pat, a.Body)
	}
	return out
}

// Walk visits n and every descendant in pre-order. Returning false
// from f skips the node's children.
func Walk(n *Node, f func(*Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range n.children() {
		Walk(c, f)
	}
}

// MapTypes rewrites every node's inferred type slot through f,
// in traversal order.
func MapTypes(n *Node, f func(types.Type) types.Type) *Node {
	Walk(n, func(n *Node) bool {
		if n.Ty != nil {
			n.Ty = f(n.Ty)
		}
		if n.Ann != nil {
			n.Ann = f(n.Ann)
		}
		if n.Ret != nil {
			n.Ret = f(n.Ret)
		}
		return true
	})
	return n
}
