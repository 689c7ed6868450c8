package types_test

import (
	"reflect"
	"testing"

	"github.com/veld-lang/veld/names"
	. "github.com/veld-lang/veld/types"
)

func fn(params []Type, ret Type) Function {
	return Function{Params: params, Ret: ret}
}

var samples = []Type{
	Int,
	Long,
	Unit,
	Option{Elem: String},
	FixedArray{Elem: Char},
	Tuple{Elems: []Type{Int, Bool}},
	fn([]Type{Int, Int}, Int),
	Named{Name: names.N("List"), Args: []Type{Int}},
	Struct{Name: names.Qualified("std", "", "Map"), Args: []Type{String, Int}},
	Enum{Name: names.N("Color")},
	Abstract{Name: names.N("Handle")},
	Typevar{Name: "T"},
	MayError{Elem: Int},
	HasError{Elem: Int, Err: Named{Name: names.N("IoError")}},
	VirtualBase{Elem: Struct{Name: names.N("Base")}},
}

func TestMapIdentity(t *testing.T) {
	id := func(t Type) Type { return t }
	for _, s := range samples {
		if got := Map(s, id); !reflect.DeepEqual(got, s) {
			t.Errorf("Map(id) changed %s: %#v", s, got)
		}
	}
	w := Weak{Cell: NewWeakCell()}
	if got := Map(w, id); got.(Weak).Cell != w.Cell {
		t.Error("Map(id) must preserve cell identity")
	}
}

func TestWeakenFreshCells(t *testing.T) {
	src := fn([]Type{Unknown, Int}, Unknown)
	a := Weaken(src).(Function)
	b := Weaken(src).(Function)
	wa, ok := a.Params[0].(Weak)
	if !ok {
		t.Fatal("Unknown param must weaken")
	}
	if _, ok := a.Params[1].(Weak); ok {
		t.Fatal("concrete param must stay concrete")
	}
	wb := b.Params[0].(Weak)
	if wa.Cell == wb.Cell {
		t.Error("cells must be fresh per Weaken call")
	}
	if ra, rb := a.Ret.(Weak), b.Ret.(Weak); ra.Cell == rb.Cell || ra.Cell == wa.Cell {
		t.Error("every Unknown gets its own cell")
	}
}

func TestDeweakChains(t *testing.T) {
	inner := NewWeakCell()
	outer := NewWeakCell()
	outer.Val = Weak{Cell: inner}
	inner.Val = Int
	got := Deweak(fn([]Type{Weak{Cell: outer}}, Weak{Cell: NewWeakCell()}))
	want := fn([]Type{Int}, Unknown)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
	if ContainsWeak(got) {
		t.Error("no Weak may survive Deweak")
	}
}

func TestWeakCellMonotone(t *testing.T) {
	c := NewWeakCell()
	if c.Resolved() {
		t.Fatal("fresh cell must be free")
	}
	c.Val = Int
	if !c.Resolved() {
		t.Fatal("assigned cell must be resolved")
	}
}

func TestPrune(t *testing.T) {
	resolved := NewWeakCell()
	resolved.Val = Int
	if got := Prune(Weak{Cell: resolved}); got != Type(Int) {
		t.Errorf("resolved weak must prune to its payload, got %s", got)
	}
	link := NewWeakCell()
	freeCell := NewWeakCell()
	link.Val = Weak{Cell: freeCell}
	got, ok := Prune(Weak{Cell: link}).(Weak)
	if !ok || got.Cell != freeCell {
		t.Error("free chain must prune to the terminal cell")
	}
}

func TestTypeName(t *testing.T) {
	cases := []struct {
		t    Type
		want string
		ok   bool
	}{
		{Int, "@builtin::Int", true},
		{String, "@builtin::String", true},
		{Option{Elem: Int}, "@builtin::Option", true},
		{FixedArray{Elem: Int}, "@builtin::FixedArray", true},
		{Struct{Name: names.N("Point")}, "Point", true},
		{Named{Name: names.Qualified("std", "", "List")}, "@std::List", true},
		{Unknown, "", false},
		{Typevar{Name: "T"}, "", false},
		{Tuple{Elems: []Type{Int}}, "", false},
		{fn(nil, Unit), "", false},
		{MayError{Elem: Int}, "@builtin::Int", true},
	}
	for _, c := range cases {
		n, ok := TypeName(c.t)
		if ok != c.ok {
			t.Errorf("%s: ok=%v, want %v", c.t, ok, c.ok)
			continue
		}
		if ok && n.String() != c.want {
			t.Errorf("%s: got %s, want %s", c.t, n, c.want)
		}
	}
}

func TestResolveSelf(t *testing.T) {
	owner := names.Qualified("std", "", "List")
	sig := fn([]Type{Named{Name: names.N("Self")}}, Named{Name: names.N("Self")})
	got := ResolveSelf(sig, owner).(Function)
	want := fn([]Type{Named{Name: owner}}, Named{Name: owner})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
	// a namespaced Self lookalike is left alone
	other := Named{Name: names.Qualified("", "X", "Self")}
	if !reflect.DeepEqual(ResolveSelf(other, owner), Type(other)) {
		t.Error("only standalone Self resolves")
	}
}
