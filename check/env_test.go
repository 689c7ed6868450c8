package check_test

import (
	"testing"

	"github.com/veld-lang/veld/ast"
	. "github.com/veld-lang/veld/check"
	"github.com/veld-lang/veld/diag"
	"github.com/veld-lang/veld/names"
	"github.com/veld-lang/veld/types"
)

func TestCloneScopesDoNotLeak(t *testing.T) {
	e, _ := newEnv(t)
	e.AddLocal(names.N("outer"), false, types.Int)

	child := e.Clone()
	child.AddLocal(names.N("inner"), false, types.Bool)

	if _, ok := child.GetLocalOpt(names.N("outer")); !ok {
		t.Error("child must see parent bindings")
	}
	if _, ok := e.GetLocalOpt(names.N("inner")); ok {
		t.Error("parent must not see child bindings")
	}
}

func TestCloneSharesValues(t *testing.T) {
	e, _ := newEnv(t)
	w := freshWeak()
	e.AddLocal(names.N("x"), false, w)

	child := e.Clone()
	// resolving the weak cell through the child is visible to the parent
	child.Unify(w, types.Int, diag.NoLoc, diag.NoLoc)
	l, _ := e.GetLocalOpt(names.N("x"))
	if types.Deweak(l.Ty) != types.Type(types.Int) {
		t.Error("weak cells must be shared across scopes")
	}
}

func TestCloneShadowing(t *testing.T) {
	e, _ := newEnv(t)
	e.AddLocal(names.N("x"), false, types.Int)
	child := e.Clone()
	child.AddLocal(names.N("x"), false, types.String)

	cl, _ := child.GetLocalOpt(names.N("x"))
	pl, _ := e.GetLocalOpt(names.N("x"))
	if cl.Ty != types.Type(types.String) || pl.Ty != types.Type(types.Int) {
		t.Errorf("shadowing leaked: child %s, parent %s", cl.Ty, pl.Ty)
	}
}

func TestResolveIdempotent(t *testing.T) {
	e, _ := newEnv(t)
	if err := e.Load(&PackDetail{
		Fullname: "builtin",
		Structs:  []StructDetail{{Name: names.N("Array"), TyParams: []string{"T"}}},
	}); err != nil {
		t.Fatal(err)
	}
	n := names.N("Array")
	r1 := e.Resolve(n)
	r2 := e.Resolve(r1)
	if r1 != r2 {
		t.Errorf("resolve not idempotent: %s vs %s", r1, r2)
	}
	if r1 != names.Qualified("builtin", "", "Array") {
		t.Errorf("got %s", r1)
	}
	// unknown names resolve to themselves
	if got := e.Resolve(names.N("Nope")); got != names.N("Nope") {
		t.Errorf("got %s", got)
	}
}

func TestResolveCycles(t *testing.T) {
	e, _ := newEnv(t)
	x := ast.New(ast.Typealias, diag.NoLoc, diag.NoLoc)
	x.Name = names.N("A")
	x.Ann = types.Named{Name: names.N("B")}
	y := ast.New(ast.Typealias, diag.NoLoc, diag.NoLoc)
	y.Name = names.N("B")
	y.Ann = types.Named{Name: names.N("A")}
	root := ast.New(ast.Block, diag.NoLoc, diag.NoLoc)
	root.Kids = []*ast.Node{x, y}
	e.Bind(root)

	// must terminate and stay idempotent despite the cycle
	r := e.Resolve(names.N("A"))
	if got := e.Resolve(r); got != r {
		t.Errorf("cyclic chain not idempotent: %s vs %s", r, got)
	}
}

func TestLoadInvalidName(t *testing.T) {
	e, _ := newEnv(t)
	if err := e.Load(&PackDetail{Fullname: "bad name!"}); err == nil {
		t.Fatal("invalid package names must be rejected")
	}
}

func TestLoadExposesBuiltins(t *testing.T) {
	e, _ := newEnv(t)
	if err := e.Load(&PackDetail{
		Fullname: "builtin",
		Fns: []FnDetail{{
			Name: names.N("print"),
			Ty:   types.Function{Params: []types.Type{types.String}, Ret: types.Unit},
		}},
	}); err != nil {
		t.Fatal(err)
	}
	if got := e.Resolve(names.N("print")); got != names.Qualified("builtin", "", "print") {
		t.Errorf("short name not exposed: %s", got)
	}
}

func TestLoadNonBuiltinNotExposed(t *testing.T) {
	e, _ := newEnv(t)
	if err := e.Load(&PackDetail{
		Fullname: "vendor/color",
		Structs:  []StructDetail{{Name: names.N("Rgb")}},
	}); err != nil {
		t.Fatal(err)
	}
	if got := e.Resolve(names.N("Rgb")); got != names.N("Rgb") {
		t.Errorf("non-builtin decls must not be exposed, got %s", got)
	}
	if e.LookupType(names.Qualified("vendor/color", "", "Rgb"), nil) == types.Type(types.Unknown) {
		t.Error("qualified lookup must find the loaded struct")
	}
}

func TestLoadResolvesSelf(t *testing.T) {
	e, _ := newEnv(t)
	if err := e.Load(&PackDetail{
		Fullname: "builtin",
		Structs:  []StructDetail{{Name: names.N("Array"), TyParams: []string{"T"}}},
		Fns: []FnDetail{{
			Name: names.Name{Ns: "Array", Name: "len"},
			Ty: types.Function{
				Params: []types.Type{types.Named{Name: names.N("Self")}},
				Ret:    types.Int,
			},
		}},
	}); err != nil {
		t.Fatal(err)
	}
	sig, ok := e.MethodTy(names.Qualified("builtin", "", "Array"), "len")
	if !ok {
		t.Fatal("method not found")
	}
	recv, ok := sig.Params[0].(types.Named)
	if !ok || recv.Name != names.Qualified("builtin", "", "Array") {
		t.Errorf("Self not resolved: %s", sig.Params[0])
	}
}

func TestLookupType(t *testing.T) {
	sink := diag.NewSink()
	e := Empty(sink)
	if err := e.Load(&PackDetail{
		Fullname: "builtin",
		Structs:  []StructDetail{{Name: names.N("Array"), TyParams: []string{"T"}}},
		Enums:    []EnumDetail{{Name: names.N("Ordering")}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.LookupType(names.N("Array"), []types.Type{types.Int}).(types.Struct); !ok {
		t.Error("struct lookup through the exposed name")
	}
	if _, ok := e.LookupType(names.N("Ordering"), nil).(types.Enum); !ok {
		t.Error("enum lookup")
	}
	if got := e.LookupType(names.N("Int"), nil); got != types.Type(types.Int) {
		t.Errorf("builtin scalar lookup, got %s", got)
	}
	if got := e.LookupType(names.N("Whatever"), nil); got != types.Type(types.Unknown) {
		t.Errorf("unknown names yield Unknown, got %s", got)
	}
}

func TestBindMergesAndOverrides(t *testing.T) {
	e, _ := newEnv(t)
	g := ast.New(ast.GlobalDecl, diag.NoLoc, diag.NoLoc)
	g.Name = names.N("limit")
	g.Ann = types.Int
	root := ast.New(ast.Block, diag.NoLoc, diag.NoLoc)
	root.Kids = []*ast.Node{g}
	e.Bind(root)

	g2 := ast.New(ast.GlobalDecl, diag.NoLoc, diag.NoLoc)
	g2.Name = names.N("limit")
	g2.Ann = types.Long
	root2 := ast.New(ast.Block, diag.NoLoc, diag.NoLoc)
	root2.Kids = []*ast.Node{g2}
	e.Bind(root2)

	fn := ast.New(ast.FnDecl, diag.NoLoc, diag.NoLoc)
	fn.Name = names.N("f")
	root3 := ast.New(ast.Block, diag.NoLoc, diag.NoLoc)
	root3.Kids = []*ast.Node{fn}
	e.Bind(root3)

	// rebinding kept the function table growing and overrode the global
	ref := ast.New(ast.VarRef, diag.NoLoc, diag.NoLoc)
	ref.Name = names.N("f")
	if e.Infer(ref); ref.Ty == types.Type(types.Unknown) {
		t.Error("function from an earlier bind must stay visible")
	}
	lim := ast.New(ast.VarRef, diag.NoLoc, diag.NoLoc)
	lim.Name = names.N("limit")
	if e.Infer(lim); lim.Ty != types.Type(types.Long) {
		t.Errorf("rebinding must override, got %s", lim.Ty)
	}
}
