// Package types defines the type algebra: builtin scalars, compound
// forms, user-declared references, and weak metavariables backed by
// shared mutable cells.
package types

import (
	"fmt"
	"strings"

	"github.com/veld-lang/veld/names"
)

type Type interface {
	isType()
	fmt.Stringer
}

var (
	_ Type = Base(0)
	_ Type = Option{}
	_ Type = FixedArray{}
	_ Type = Tuple{}
	_ Type = Function{}
	_ Type = Named{}
	_ Type = Struct{}
	_ Type = Enum{}
	_ Type = Abstract{}
	_ Type = Typevar{}
	_ Type = Weak{}
	_ Type = MayError{}
	_ Type = HasError{}
	_ Type = VirtualBase{}
)

type Base int

const (
	Int Base = iota
	Long
	Float
	Double
	Bool
	Char
	String
	Unit
	Err
	Unknown
)

func (Base) isType() {}

func (b Base) String() string {
	switch b {
	case Int:
		return "Int"
	case Long:
		return "Long"
	case Float:
		return "Float"
	case Double:
		return "Double"
	case Bool:
		return "Bool"
	case Char:
		return "Char"
	case String:
		return "String"
	case Unit:
		return "Unit"
	case Err:
		return "Error"
	case Unknown:
		return "Unknown"
	default:
		panic("unreachable")
	}
}

type Option struct {
	Elem Type
}

func (Option) isType() {}

func (t Option) String() string { return "Option[" + t.Elem.String() + "]" }

type FixedArray struct {
	Elem Type
}

func (FixedArray) isType() {}

func (t FixedArray) String() string { return "FixedArray[" + t.Elem.String() + "]" }

type Tuple struct {
	Elems []Type
}

func (Tuple) isType() {}

func (t Tuple) String() string {
	return "(" + joinTypes(t.Elems, ", ") + ")"
}

// KwParam is a declared keyword parameter of a function. Default marks
// whether the callee supplies a value when the caller omits it.
type KwParam struct {
	Name    string
	Ty      Type
	Default bool
}

type Function struct {
	Params []Type
	Kw     []KwParam
	Ret    Type
}

func (Function) isType() {}

func (t Function) String() string {
	return "fn(" + joinTypes(t.Params, ", ") + ") -> " + t.Ret.String()
}

// Named is an unresolved reference to a user-declared type. Resolution
// replaces it with Struct, Enum, or Abstract.
type Named struct {
	Name names.Name
	Args []Type
}

func (Named) isType() {}

func (t Named) String() string { return appliedString(t.Name, t.Args) }

type Struct struct {
	Name names.Name
	Args []Type
}

func (Struct) isType() {}

func (t Struct) String() string { return appliedString(t.Name, t.Args) }

type Enum struct {
	Name names.Name
	Args []Type
}

func (Enum) isType() {}

func (t Enum) String() string { return appliedString(t.Name, t.Args) }

type Abstract struct {
	Name names.Name
	Args []Type
}

func (Abstract) isType() {}

func (t Abstract) String() string { return appliedString(t.Name, t.Args) }

// Typevar is a declared type parameter carrying its trait bounds.
type Typevar struct {
	Name   string
	Traits []names.Name
}

func (Typevar) isType() {}

func (t Typevar) String() string { return t.Name }

// WeakCell is the shared mutable store behind a Weak type. A free cell
// holds Unknown; otherwise it holds either a concrete type or a link to
// another cell (Weak), which Deweak chases. A linked cell is resolved
// exactly when its chain ends in a concrete type. Once it holds
// something other than Unknown a cell never becomes free again.
type WeakCell struct {
	Val Type
}

func NewWeakCell() *WeakCell {
	return &WeakCell{Val: Unknown}
}

// Resolved reports whether the cell's chain terminates in a concrete
// type.
func (c *WeakCell) Resolved() bool {
	t := c.Val
	for {
		switch v := t.(type) {
		case Base:
			if v == Unknown {
				return false
			}
			return true
		case Weak:
			t = v.Cell.Val
		default:
			return true
		}
	}
}

// Terminal returns the last cell in the link chain.
func (c *WeakCell) Terminal() *WeakCell {
	for {
		w, ok := c.Val.(Weak)
		if !ok {
			return c
		}
		c = w.Cell
	}
}

type Weak struct {
	Cell *WeakCell
}

func (Weak) isType() {}

func (t Weak) String() string {
	if t.Cell.Resolved() {
		return Deweak(t).String()
	}
	return "_"
}

type MayError struct {
	Elem Type
}

func (MayError) isType() {}

func (t MayError) String() string { return t.Elem.String() + "!" }

type HasError struct {
	Elem Type
	Err  Type
}

func (HasError) isType() {}

func (t HasError) String() string { return t.Elem.String() + "!" + t.Err.String() }

type VirtualBase struct {
	Elem Type
}

func (VirtualBase) isType() {}

func (t VirtualBase) String() string { return "virtual " + t.Elem.String() }

func joinTypes(ts []Type, sep string) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

func appliedString(n names.Name, args []Type) string {
	if len(args) == 0 {
		return n.String()
	}
	return n.String() + "[" + joinTypes(args, ", ") + "]"
}
