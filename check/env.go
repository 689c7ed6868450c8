// Package check binds declarations into scoped environments, unifies
// types, and infers a type for every AST node.
package check

import (
	set "github.com/hashicorp/go-set/v3"
	"github.com/veld-lang/veld/ast"
	"github.com/veld-lang/veld/diag"
	"github.com/veld-lang/veld/names"
	"github.com/veld-lang/veld/types"
)

// Local is a lexically scoped binding.
type Local struct {
	Name    names.Name
	Mutable bool
	Ty      types.Type
}

type Field struct {
	Name string
	Ty   types.Type
}

type StructInfo struct {
	Name     names.Name
	TyParams []string
	Fields   []Field
}

type VariantInfo struct {
	Name string
	Tys  []types.Type
}

type EnumInfo struct {
	Name     names.Name
	TyParams []string
	Variants []VariantInfo
}

type AbstractInfo struct {
	Name     names.Name
	TyParams []string
}

type TraitInfo struct {
	Name    names.Name
	Methods []Field
}

type ImplInfo struct {
	Trait  names.Name
	Target names.Name
}

var scalarNames = map[string]types.Base{
	"Int":    types.Int,
	"Long":   types.Long,
	"Float":  types.Float,
	"Double": types.Double,
	"Bool":   types.Bool,
	"Char":   types.Char,
	"String": types.String,
	"Unit":   types.Unit,
}

// breakJoin accumulates the value type carried by break statements in
// the innermost loop. seen flips once a valued break or an exit
// expression contributes, making the loop an expression.
type breakJoin struct {
	ty   types.Type
	seen bool
}

// Env holds the scope tables of one checking context. Clone opens a
// nested scope: the symbol tables are persistent, so a child's inserts
// are invisible to the parent, while values (locals, weak cells, the
// AST) stay shared.
type Env struct {
	sink *diag.Sink

	locals    nameMap[*Local]
	globals   nameMap[*Local]
	structs   nameMap[*StructInfo]
	enums     nameMap[*EnumInfo]
	abstracts nameMap[*AbstractInfo]
	traits    nameMap[*TraitInfo]
	fns       nameMap[types.Type]
	impls     []ImplInfo

	exposed     map[names.Name]names.Name
	tyvars      map[string]types.Type
	tyvarTraits map[string][]names.Name

	currFn  *names.Name
	currRet types.Type
	currFor *ast.Node
	currBrk *breakJoin

	ast *ast.Node
}

// Empty yields an Env with no bindings and a Leaf AST.
func Empty(sink *diag.Sink) *Env {
	return &Env{
		sink:        sink,
		locals:      newNameMap[*Local](),
		globals:     newNameMap[*Local](),
		structs:     newNameMap[*StructInfo](),
		enums:       newNameMap[*EnumInfo](),
		abstracts:   newNameMap[*AbstractInfo](),
		traits:      newNameMap[*TraitInfo](),
		fns:         newNameMap[types.Type](),
		exposed:     make(map[names.Name]names.Name),
		tyvars:      make(map[string]types.Type),
		tyvarTraits: make(map[string][]names.Name),
		ast:         ast.New(ast.Leaf, diag.NoLoc, diag.NoLoc),
	}
}

func New(sink *diag.Sink, x *ast.Node) *Env {
	e := Empty(sink)
	e.Bind(x)
	return e
}

// Clone opens a nested scope. The symbol-table containers are
// independent (structural sharing, no leak upward); exposed, tyvars,
// and trait bounds stay shared with the parent.
func (e *Env) Clone() *Env {
	child := *e
	return &child
}

// Bind walks the AST and installs top-level declarations. Existing
// bindings are kept; rebinding merges and overrides.
func (e *Env) Bind(x *ast.Node) {
	e.ast = x
	if x.Kind == ast.Block {
		for _, k := range x.Kids {
			e.bindDecl(k)
		}
		return
	}
	e.bindDecl(x)
}

func (e *Env) bindDecl(x *ast.Node) {
	switch x.Kind {
	case ast.GlobalDecl:
		e.globals = e.globals.Set(x.Name, &Local{Name: x.Name, Mutable: x.Mutable, Ty: annOr(x.Ann)})
	case ast.StructDecl:
		info := &StructInfo{Name: x.Name, TyParams: tyParamNames(x.Tyvars)}
		for _, f := range x.Params {
			info.Fields = append(info.Fields, Field{Name: f.Name.Name, Ty: annOr(f.Ann)})
		}
		e.structs = e.structs.Set(x.Name, info)
	case ast.EnumDecl:
		info := &EnumInfo{Name: x.Name, TyParams: tyParamNames(x.Tyvars)}
		for _, v := range x.Variants {
			info.Variants = append(info.Variants, VariantInfo{Name: v.Name, Tys: v.Tys})
		}
		e.enums = e.enums.Set(x.Name, info)
	case ast.AbstractDecl:
		e.abstracts = e.abstracts.Set(x.Name, &AbstractInfo{Name: x.Name, TyParams: tyParamNames(x.Tyvars)})
	case ast.TraitDecl:
		info := &TraitInfo{Name: x.Name}
		for _, m := range x.Kids {
			info.Methods = append(info.Methods, Field{Name: m.Name.Name, Ty: signature(m)})
		}
		e.traits = e.traits.Set(x.Name, info)
	case ast.FnDecl:
		e.fns = e.fns.Set(x.Name, signature(x))
	case ast.ImplDecl:
		target := x.Name
		if tn, ok := types.TypeName(annOr(x.Ann)); ok {
			target = tn
		}
		if x.Name.Name != "" {
			e.impls = append(e.impls, ImplInfo{Trait: x.Name, Target: target})
		}
		for _, m := range x.Kids {
			if m.Kind != ast.FnDecl {
				continue
			}
			qual := m.Name.WithNs(target.Name)
			qual.Pack = target.Pack
			e.fns = e.fns.Set(qual, types.ResolveSelf(signature(m), target))
		}
	case ast.Typealias:
		if n, ok := x.Ann.(types.Named); ok {
			e.exposed[x.Name] = n.Name
		}
	case ast.Fnalias:
		if x.X != nil && x.X.Kind == ast.VarRef {
			e.exposed[x.Name] = x.X.Name
		}
	}
}

func annOr(t types.Type) types.Type {
	if t == nil {
		return types.Unknown
	}
	return t
}

func tyParamNames(ps []ast.TyParam) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

// signature builds the function type of a FnDecl from its parameter
// annotations, keyword parameters, and declared return.
func signature(x *ast.Node) types.Function {
	var sig types.Function
	for _, p := range x.Params {
		if p.Kw {
			sig.Kw = append(sig.Kw, types.KwParam{
				Name:    p.Name.Name,
				Ty:      annOr(p.Ann),
				Default: p.Default != nil,
			})
			continue
		}
		sig.Params = append(sig.Params, annOr(p.Ann))
	}
	sig.Ret = annOr(x.Ret)
	return sig
}

// Resolve follows the exposed-name table to a fixed point. Cyclic
// chains terminate via the visited set; the result is memoized so
// later lookups take one step.
func (e *Env) Resolve(n names.Name) names.Name {
	seen := set.New[names.Name](0)
	cur := n
	for {
		next, ok := e.exposed[cur]
		if !ok || seen.Contains(cur) {
			break
		}
		seen.Insert(cur)
		cur = next
	}
	if cur != n {
		e.exposed[n] = cur
	}
	return cur
}

// MethodTy looks up method on the type named owner, constructing the
// qualified name {pack: owner.pack, ns: owner.name, name: method}.
func (e *Env) MethodTy(owner names.Name, method string) (types.Function, bool) {
	qual := names.Name{Pack: owner.Pack, Ns: owner.Name, Name: method}
	t, ok := e.fns.Get(qual)
	if !ok {
		t, ok = e.fns.Get(e.Resolve(qual))
	}
	if !ok {
		return types.Function{}, false
	}
	fn, ok := t.(types.Function)
	return fn, ok
}

// LookupType resolves a type reference: a standalone name bound as a
// type variable wins, then declared structs, enums, and abstracts,
// then builtin scalars. Anything else is Unknown.
func (e *Env) LookupType(n names.Name, args []types.Type) types.Type {
	rn := e.Resolve(n)
	if rn.Standalone() {
		if t, ok := e.tyvars[rn.Name]; ok {
			return t
		}
	}
	if _, ok := e.structs.Get(rn); ok {
		return types.Struct{Name: rn, Args: args}
	}
	if _, ok := e.enums.Get(rn); ok {
		return types.Enum{Name: rn, Args: args}
	}
	if _, ok := e.abstracts.Get(rn); ok {
		return types.Abstract{Name: rn, Args: args}
	}
	if rn.Ns == "" && (rn.Pack == "" || rn.Pack == types.BuiltinPack) {
		if b, ok := scalarNames[rn.Name]; ok {
			return b
		}
	}
	return types.Unknown
}

func (e *Env) AddLocal(n names.Name, mutable bool, ty types.Type) {
	e.locals = e.locals.Set(n, &Local{Name: n, Mutable: mutable, Ty: ty})
}

func (e *Env) GetLocalOpt(n names.Name) (*Local, bool) {
	return e.locals.Get(n)
}

func (e *Env) GetLocal(n names.Name) *Local {
	l, _ := e.locals.Get(n)
	return l
}

// Implements reports whether trait is implemented for the type named
// target.
func (e *Env) Implements(trait, target names.Name) bool {
	trait = e.Resolve(trait)
	target = e.Resolve(target)
	for _, im := range e.impls {
		if e.Resolve(im.Trait) == trait && e.Resolve(im.Target) == target {
			return true
		}
	}
	return false
}
