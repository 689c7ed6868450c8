package check

import (
	set "github.com/hashicorp/go-set/v3"
	"github.com/samber/lo"
	"github.com/veld-lang/veld/ast"
	"github.com/veld-lang/veld/lexer"
	"github.com/veld-lang/veld/names"
	"github.com/veld-lang/veld/types"
)

// Check infers the bound AST and returns it with every weak cell
// collapsed out of the node types.
func (e *Env) Check() *ast.Node {
	e.Infer(e.ast)
	return ast.MapTypes(e.ast, types.Deweak)
}

// Infer assigns x (and its descendants) a type. All failures are
// diagnostics; the node gets a best-effort type, typically Unknown.
func (e *Env) Infer(x *ast.Node) types.Type {
	t := e.infer(x)
	if t == nil {
		t = types.Unknown
	}
	x.Ty = t
	return t
}

func fresh() types.Weak {
	return types.Weak{Cell: types.NewWeakCell()}
}

func (e *Env) infer(x *ast.Node) types.Type {
	switch x.Kind {
	case ast.IntLit:
		if x.IntTy.Len == 64 {
			return types.Long
		}
		return types.Int
	case ast.DoubleLit:
		return types.Double
	case ast.FloatLit:
		return types.Float
	case ast.StrLit:
		return types.String
	case ast.BoolLit:
		return types.Bool
	case ast.CharLit:
		return types.Char
	case ast.ByteLit:
		return types.Int
	case ast.ByteStrLit:
		return types.FixedArray{Elem: types.Int}
	case ast.UnitLit, ast.Leaf:
		return types.Unit

	case ast.FstrLit:
		for _, k := range x.Kids {
			e.Infer(k)
		}
		return types.String

	case ast.ArrLit:
		elem := types.Type(fresh())
		for _, k := range x.Kids {
			elem = e.Unify(e.Infer(k), elem, k.From, k.To)
		}
		return types.FixedArray{Elem: elem}

	case ast.Block:
		var last types.Type = types.Unit
		for i, k := range x.Kids {
			t := e.Infer(k)
			if i == len(x.Kids)-1 {
				last = t
			}
		}
		return last

	case ast.Unary:
		t := e.Infer(x.X)
		if x.Op == lexer.Not {
			return e.Unify(t, types.Bool, x.From, x.To)
		}
		return t

	case ast.Binary:
		return e.inferBinary(x)

	case ast.BinaryInplace:
		e.checkAssignable(x.Left)
		e.Unify(e.Infer(x.Left), e.Infer(x.Right), x.From, x.To)
		return types.Unit

	case ast.VarDecl:
		return e.inferVarDecl(x, false)
	case ast.GlobalDecl:
		return e.inferVarDecl(x, true)

	case ast.TupleDecl:
		it := e.Infer(x.X)
		elems := make([]types.Type, len(x.Vars))
		for i := range elems {
			elems[i] = fresh()
		}
		e.Unify(it, types.Tuple{Elems: elems}, x.From, x.To)
		for i, v := range x.Vars {
			e.AddLocal(v, x.Mutable, elems[i])
		}
		return types.Unit

	case ast.StructLet:
		return e.inferStructLet(x)
	case ast.EnumLet:
		return e.inferEnumLet(x)

	case ast.VarRef:
		return e.inferVarRef(x)

	case ast.If:
		e.Unify(e.Infer(x.Cond), types.Bool, x.Cond.From, x.Cond.To)
		thenT := e.Infer(x.Then)
		if x.Else == nil {
			return e.Unify(thenT, types.Unit, x.From, x.To)
		}
		return e.Unify(thenT, e.Infer(x.Else), x.From, x.To)

	case ast.Match:
		scrut := e.Infer(x.X)
		var joined types.Type = nil
		for _, arm := range x.Arms {
			child := e.Clone()
			child.bindPattern(arm.Pat, scrut)
			bt := child.Infer(arm.Body)
			if joined == nil {
				joined = bt
			} else {
				joined = e.Unify(joined, bt, arm.Body.From, arm.Body.To)
			}
		}
		if joined == nil {
			return types.Unit
		}
		return joined

	case ast.Is:
		t := e.Infer(x.X)
		e.bindPattern(x.Pat, t)
		return types.Bool

	case ast.TupleMake:
		elems := lo.Map(x.Kids, func(k *ast.Node, _ int) types.Type { return e.Infer(k) })
		return types.Tuple{Elems: elems}

	case ast.TupleAccess:
		switch t := types.Prune(e.Infer(x.X)).(type) {
		case types.Tuple:
			if x.Idx < 0 || x.Idx >= len(t.Elems) {
				e.sink.Errorf(x.From, x.To, "tuple index %d out of range for %s", x.Idx, t)
				return types.Unknown
			}
			return t.Elems[x.Idx]
		case types.Weak:
			e.sink.Errorf(x.From, x.To, "cannot determine tuple type")
			return types.Unknown
		default:
			e.sink.Errorf(x.From, x.To, "cannot access element %d of %s", x.Idx, t)
			return types.Unknown
		}

	case ast.Return:
		if e.currFn == nil {
			e.sink.Errorf(x.From, x.To, "return outside of a function")
			return types.Unit
		}
		var vt types.Type = types.Unit
		if x.X != nil {
			vt = e.Infer(x.X)
		}
		e.Unify(e.currRet, vt, x.From, x.To)
		return types.Unit

	case ast.Break:
		if e.currFor == nil {
			e.sink.Errorf(x.From, x.To, "break outside of a loop")
			if x.X != nil {
				e.Infer(x.X)
			}
			return types.Unit
		}
		if x.X != nil {
			vt := e.Infer(x.X)
			if e.currBrk != nil {
				e.currBrk.ty = e.Unify(e.currBrk.ty, vt, x.From, x.To)
				e.currBrk.seen = true
			}
		}
		return types.Unit

	case ast.Continue:
		return e.inferContinue(x)

	case ast.Call:
		return e.inferCall(x)
	case ast.ChainCall:
		return e.inferChainCall(x)

	case ast.FieldRef:
		return e.inferFieldRef(x)

	case ast.ArrAccess:
		idxT := e.Infer(x.Right)
		e.Unify(idxT, types.Int, x.Right.From, x.Right.To)
		switch t := types.Prune(e.Infer(x.X)).(type) {
		case types.FixedArray:
			return t.Elem
		case types.Weak:
			elem := fresh()
			e.Unify(types.Type(t), types.FixedArray{Elem: elem}, x.From, x.To)
			return elem
		default:
			e.sink.Errorf(x.From, x.To, "cannot index a value of type %s", t)
			return types.Unknown
		}

	case ast.StructInit:
		return e.inferStructInit(x)
	case ast.StructModif:
		return e.inferStructModif(x)
	case ast.EnumConstr:
		return e.inferEnumConstr(x)

	case ast.While:
		child := e.Clone()
		child.currFor = x
		brk := &breakJoin{ty: types.Type(fresh())}
		child.currBrk = brk
		child.Unify(child.Infer(x.Cond), types.Bool, x.Cond.From, x.Cond.To)
		child.Unify(child.Infer(x.Body), types.Unit, x.Body.From, x.Body.To)
		if brk.seen {
			return brk.ty
		}
		return types.Unit

	case ast.For:
		return e.inferFor(x)
	case ast.ForIn:
		return e.inferForIn(x)

	case ast.Guard:
		e.Unify(e.Infer(x.Cond), types.Bool, x.Cond.From, x.Cond.To)
		if x.Else != nil {
			e.Infer(x.Else)
		}
		return types.Unit

	case ast.IncRange, ast.ExcRange:
		j := e.Unify(e.Infer(x.Left), e.Infer(x.Right), x.From, x.To)
		switch types.Deweak(j) {
		case types.Type(types.Int), types.Type(types.Long):
		default:
			e.sink.Errorf(x.From, x.To, "range endpoints must be Int or Long, not %s", j)
		}
		return types.Struct{Name: types.Builtin("Iter"), Args: []types.Type{types.Int}}

	case ast.FnDecl:
		e.bindDecl(x)
		e.inferFn(x, x.Name)
		return types.Unit

	case ast.ImplDecl:
		e.bindDecl(x)
		target := x.Name
		if tn, ok := types.TypeName(annOr(x.Ann)); ok {
			target = tn
		}
		for _, m := range x.Kids {
			if m.Kind != ast.FnDecl {
				continue
			}
			qual := m.Name.WithNs(target.Name)
			qual.Pack = target.Pack
			e.inferFn(m, qual)
		}
		return types.Unit

	case ast.StructDecl, ast.EnumDecl, ast.AbstractDecl, ast.TraitDecl,
		ast.Typealias, ast.Fnalias:
		e.bindDecl(x)
		return types.Unit

	case ast.ParamDecl:
		return annOr(x.Ann)

	case ast.Test:
		child := e.Clone()
		child.Infer(x.Body)
		return types.Unit

	case ast.View, ast.FFIBody:
		e.sink.Errorf(x.From, x.To, "inference not yet supported for %s", x.Kind)
		return types.Unknown
	}

	e.sink.Errorf(x.From, x.To, "inference not yet supported for %s", x.Kind)
	return types.Unknown
}

func (e *Env) inferBinary(x *ast.Node) types.Type {
	lt := e.Infer(x.Left)
	rt := e.Infer(x.Right)
	j := e.Unify(lt, rt, x.From, x.To)
	switch x.Op {
	case lexer.AndAnd, lexer.OrOr:
		e.Unify(j, types.Bool, x.From, x.To)
		return types.Bool
	case lexer.Lt, lexer.Le, lexer.Gt, lexer.Ge, lexer.EqEq, lexer.Ne:
		return types.Bool
	case lexer.Eq:
		e.checkAssignable(x.Left)
		return types.Unit
	}
	return j
}

func (e *Env) checkAssignable(target *ast.Node) {
	if target.Kind != ast.VarRef || !target.Name.Standalone() {
		return
	}
	if l, ok := e.GetLocalOpt(target.Name); ok && !l.Mutable {
		e.sink.Errorf(target.From, target.To, "cannot assign to immutable binding %s", target.Name)
	}
}

func (e *Env) inferVarDecl(x *ast.Node, global bool) types.Type {
	var it types.Type = fresh()
	if x.X != nil {
		it = e.Infer(x.X)
	}
	t := it
	if x.Ann != nil {
		t = e.Unify(it, types.Weaken(x.Ann), x.From, x.To)
	}
	if global {
		if g, ok := e.globals.Get(x.Name); ok {
			g.Ty = t
		} else {
			e.globals = e.globals.Set(x.Name, &Local{Name: x.Name, Mutable: x.Mutable, Ty: t})
		}
	} else {
		e.AddLocal(x.Name, x.Mutable, t)
	}
	return types.Unit
}

func (e *Env) inferVarRef(x *ast.Node) types.Type {
	if x.Name.Standalone() {
		if l, ok := e.GetLocalOpt(x.Name); ok {
			return l.Ty
		}
		if g, ok := e.globals.Get(x.Name); ok {
			return g.Ty
		}
		if f, ok := e.fns.Get(x.Name); ok {
			return f
		}
	}
	rn := e.Resolve(x.Name)
	if f, ok := e.fns.Get(rn); ok {
		return f
	}
	if g, ok := e.globals.Get(rn); ok {
		return g.Ty
	}
	e.sink.Errorf(x.From, x.To, "unknown identifier %s", x.Name)
	return types.Unknown
}

// inferFn checks a function body in a child scope. The signature is
// taken from the fns table under name (falling back to the node's own
// annotations), weakened so unannotated positions become fresh
// metavariables.
func (e *Env) inferFn(x *ast.Node, name names.Name) {
	child := e.Clone()
	child.currFn = &name

	for _, tp := range x.Tyvars {
		child.tyvars[tp.Name] = types.Type(fresh())
		child.tyvarTraits[tp.Name] = tp.Bounds
	}

	sig := signature(x)
	if t, ok := e.fns.Get(name); ok {
		if f, isFn := t.(types.Function); isFn {
			sig = f
		}
	}
	wsig := types.Weaken(sig).(types.Function)
	child.currRet = wsig.Ret

	i := 0
	for _, p := range x.Params {
		if p.Kw {
			continue
		}
		var pt types.Type = fresh()
		if i < len(wsig.Params) {
			pt = wsig.Params[i]
		}
		child.AddLocal(p.Name, p.Mutable, pt)
		p.Ty = pt
		i++
	}
	for _, p := range x.Params {
		if !p.Kw {
			continue
		}
		kw, ok := lo.Find(wsig.Kw, func(k types.KwParam) bool { return k.Name == p.Name.Name })
		var pt types.Type = fresh()
		if ok {
			pt = kw.Ty
		}
		child.AddLocal(p.Name, p.Mutable, pt)
		p.Ty = pt
		if p.Default != nil {
			child.Unify(child.Infer(p.Default), pt, p.Default.From, p.Default.To)
		}
	}

	if x.Body != nil {
		bt := child.Infer(x.Body)
		child.Unify(wsig.Ret, bt, x.Body.From, x.Body.To)
	}
}

func (e *Env) inferCall(x *ast.Node) types.Type {
	calleeT := e.Infer(x.X)
	argTys := lo.Map(x.Kids, func(k *ast.Node, _ int) types.Type { return e.Infer(k) })

	switch ct := types.Prune(calleeT).(type) {
	case types.Function:
		if len(argTys) != len(ct.Params) {
			e.sink.Errorf(x.From, x.To, "expected %d arguments, got %d", len(ct.Params), len(argTys))
		}
		for i := range argTys {
			if i < len(ct.Params) {
				e.Unify(argTys[i], ct.Params[i], x.Kids[i].From, x.Kids[i].To)
			}
		}
		e.checkKwargs(x, ct)
		return ct.Ret
	case types.Weak:
		ret := fresh()
		e.Unify(types.Type(ct), types.Function{Params: argTys, Ret: ret}, x.From, x.To)
		return ret
	default:
		if b, ok := ct.(types.Base); !ok || b != types.Unknown {
			e.sink.Errorf(x.From, x.To, "calling a non-function type %s", ct)
		}
		for _, a := range x.Args {
			e.Infer(a.Value)
		}
		return types.Unit
	}
}

// checkKwargs matches keyword arguments by name after positional
// binding: unknown and duplicate keywords are errors, as is a missing
// keyword with no default.
func (e *Env) checkKwargs(x *ast.Node, fn types.Function) {
	seen := set.New[string](len(x.Args))
	for _, a := range x.Args {
		if a.Name == "" {
			continue
		}
		vt := e.Infer(a.Value)
		if seen.Contains(a.Name) {
			e.sink.Errorf(a.Value.From, a.Value.To, "duplicate keyword argument %s", a.Name)
			continue
		}
		seen.Insert(a.Name)
		kw, ok := lo.Find(fn.Kw, func(k types.KwParam) bool { return k.Name == a.Name })
		if !ok {
			e.sink.Errorf(a.Value.From, a.Value.To, "unknown keyword argument %s", a.Name)
			continue
		}
		e.Unify(vt, kw.Ty, a.Value.From, a.Value.To)
	}
	for _, kw := range fn.Kw {
		if !kw.Default && !seen.Contains(kw.Name) {
			e.sink.Errorf(x.From, x.To, "missing keyword argument %s", kw.Name)
		}
	}
}

func (e *Env) inferChainCall(x *ast.Node) types.Type {
	recvT := e.Infer(x.X)
	tn, ok := types.TypeName(types.Prune(recvT))
	if !ok {
		e.sink.Errorf(x.From, x.To, "cannot call method %s on a value of type %s", x.Text, recvT)
		for _, k := range x.Kids {
			e.Infer(k)
		}
		return types.Unknown
	}
	sig, ok := e.MethodTy(e.Resolve(tn), x.Text)
	if !ok {
		e.sink.Errorf(x.From, x.To, "%s has no method %s", tn, x.Text)
		for _, k := range x.Kids {
			e.Infer(k)
		}
		return types.Unknown
	}
	inst := e.ownerInst(tn)
	isig := substTyvars(sig, inst).(types.Function)
	if len(isig.Params) == 0 {
		e.sink.Errorf(x.From, x.To, "method %s takes no receiver", x.Text)
		return types.Unknown
	}
	e.Unify(isig.Params[0], recvT, x.X.From, x.X.To)
	rest := isig.Params[1:]
	if len(x.Kids) != len(rest) {
		e.sink.Errorf(x.From, x.To, "expected %d arguments, got %d", len(rest), len(x.Kids))
	}
	for i, k := range x.Kids {
		at := e.Infer(k)
		if i < len(rest) {
			e.Unify(at, rest[i], k.From, k.To)
		}
	}
	e.checkKwargs(x, isig)
	return isig.Ret
}

func (e *Env) inferFieldRef(x *ast.Node) types.Type {
	switch t := types.Prune(e.Infer(x.X)).(type) {
	case types.Struct:
		info, ok := e.structs.Get(e.Resolve(t.Name))
		if !ok {
			e.sink.Errorf(x.From, x.To, "unknown type %s", t.Name)
			return types.Unknown
		}
		inst := bindTyParams(info.TyParams, t.Args)
		for _, f := range info.Fields {
			if f.Name == x.Text {
				return substTyvars(f.Ty, inst)
			}
		}
		e.sink.Errorf(x.From, x.To, "%s has no field %s", t.Name, x.Text)
		return types.Unknown
	case types.Weak:
		e.sink.Errorf(x.From, x.To, "cannot determine the type of %s's receiver", x.Text)
		return types.Unknown
	default:
		e.sink.Errorf(x.From, x.To, "%s has no field %s", t, x.Text)
		return types.Unknown
	}
}

func (e *Env) inferStructInit(x *ast.Node) types.Type {
	rn := e.Resolve(x.Name)
	info, ok := e.structs.Get(rn)
	if !ok {
		e.sink.Errorf(x.From, x.To, "unknown struct %s", x.Name)
		for _, a := range x.Args {
			e.Infer(a.Value)
		}
		return types.Unknown
	}
	inst, args := e.freshInst(info.TyParams)
	seen := set.New[string](len(x.Args))
	for _, a := range x.Args {
		vt := e.Infer(a.Value)
		f, ok := lo.Find(info.Fields, func(f Field) bool { return f.Name == a.Name })
		if !ok {
			e.sink.Errorf(a.Value.From, a.Value.To, "%s has no field %s", rn, a.Name)
			continue
		}
		seen.Insert(a.Name)
		e.Unify(vt, substTyvars(f.Ty, inst), a.Value.From, a.Value.To)
	}
	for _, f := range info.Fields {
		if !seen.Contains(f.Name) {
			e.sink.Errorf(x.From, x.To, "missing field %s in %s literal", f.Name, rn)
		}
	}
	return types.Struct{Name: rn, Args: args}
}

func (e *Env) inferStructModif(x *ast.Node) types.Type {
	xt := e.Infer(x.X)
	st, ok := types.Prune(xt).(types.Struct)
	if !ok {
		e.sink.Errorf(x.From, x.To, "cannot update fields of %s", xt)
		for _, a := range x.Args {
			e.Infer(a.Value)
		}
		return xt
	}
	info, infoOK := e.structs.Get(e.Resolve(st.Name))
	for _, a := range x.Args {
		vt := e.Infer(a.Value)
		if !infoOK {
			continue
		}
		f, ok := lo.Find(info.Fields, func(f Field) bool { return f.Name == a.Name })
		if !ok {
			e.sink.Errorf(a.Value.From, a.Value.To, "%s has no field %s", st.Name, a.Name)
			continue
		}
		e.Unify(vt, substTyvars(f.Ty, bindTyParams(info.TyParams, st.Args)), a.Value.From, a.Value.To)
	}
	return xt
}

func (e *Env) inferEnumConstr(x *ast.Node) types.Type {
	rn := e.Resolve(x.Name)
	info, ok := e.enums.Get(rn)
	if !ok {
		e.sink.Errorf(x.From, x.To, "unknown enum %s", x.Name)
		for _, k := range x.Kids {
			e.Infer(k)
		}
		return types.Unknown
	}
	inst, args := e.freshInst(info.TyParams)
	v, ok := lo.Find(info.Variants, func(v VariantInfo) bool { return v.Name == x.Text })
	if !ok {
		e.sink.Errorf(x.From, x.To, "%s has no variant %s", rn, x.Text)
		for _, k := range x.Kids {
			e.Infer(k)
		}
		return types.Enum{Name: rn, Args: args}
	}
	if len(x.Kids) != len(v.Tys) {
		e.sink.Errorf(x.From, x.To, "%s::%s takes %d values, got %d", rn, v.Name, len(v.Tys), len(x.Kids))
	}
	for i, k := range x.Kids {
		kt := e.Infer(k)
		if i < len(v.Tys) {
			e.Unify(kt, substTyvars(v.Tys[i], inst), k.From, k.To)
		}
	}
	return types.Enum{Name: rn, Args: args}
}

func (e *Env) inferStructLet(x *ast.Node) types.Type {
	xt := e.Infer(x.X)
	st, ok := types.Prune(xt).(types.Struct)
	if !ok {
		e.sink.Errorf(x.From, x.To, "cannot destructure a value of type %s", xt)
		for _, v := range x.Vars {
			e.AddLocal(v, x.Mutable, types.Unknown)
		}
		return types.Unit
	}
	info, infoOK := e.structs.Get(e.Resolve(st.Name))
	if !infoOK {
		e.sink.Errorf(x.From, x.To, "unknown struct %s", st.Name)
	} else if len(x.Vars) > len(info.Fields) {
		e.sink.Errorf(x.From, x.To, "%s has %d fields, cannot bind %d names", st.Name, len(info.Fields), len(x.Vars))
	}
	for i, v := range x.Vars {
		var ft types.Type = types.Unknown
		if infoOK && i < len(info.Fields) {
			ft = substTyvars(info.Fields[i].Ty, bindTyParams(info.TyParams, st.Args))
		}
		e.AddLocal(v, x.Mutable, ft)
	}
	return types.Unit
}

func (e *Env) inferEnumLet(x *ast.Node) types.Type {
	xt := e.Infer(x.X)
	et, ok := types.Prune(xt).(types.Enum)
	if !ok {
		e.sink.Errorf(x.From, x.To, "cannot destructure a value of type %s", xt)
		for _, v := range x.Vars {
			e.AddLocal(v, x.Mutable, types.Unknown)
		}
		return types.Unit
	}
	info, infoOK := e.enums.Get(e.Resolve(et.Name))
	if !infoOK {
		e.sink.Errorf(x.From, x.To, "unknown enum %s", et.Name)
		return types.Unit
	}
	v, ok := lo.Find(info.Variants, func(v VariantInfo) bool { return v.Name == x.Text })
	if !ok {
		e.sink.Errorf(x.From, x.To, "%s has no variant %s", et.Name, x.Text)
		return types.Unit
	}
	if len(x.Vars) != len(v.Tys) {
		e.sink.Errorf(x.From, x.To, "%s::%s carries %d values, cannot bind %d names", et.Name, v.Name, len(v.Tys), len(x.Vars))
	}
	for i, name := range x.Vars {
		var ft types.Type = types.Unknown
		if i < len(v.Tys) {
			ft = substTyvars(v.Tys[i], bindTyParams(info.TyParams, et.Args))
		}
		e.AddLocal(name, x.Mutable, ft)
	}
	return types.Unit
}

func (e *Env) inferFor(x *ast.Node) types.Type {
	child := e.Clone()
	child.currFor = x
	brk := &breakJoin{ty: types.Type(fresh())}
	child.currBrk = brk

	induction := set.New[names.Name](len(x.Starts))
	for _, s := range x.Starts {
		child.Infer(s)
		if s.Kind == ast.VarDecl {
			induction.Insert(s.Name)
		}
	}
	if x.Stop != nil {
		child.Unify(child.Infer(x.Stop), types.Bool, x.Stop.From, x.Stop.To)
	}
	for _, s := range x.Steps {
		target := stepTarget(s)
		if target == nil || !induction.Contains(target.Name) {
			child.sink.Errorf(s.From, s.To, "unknown induction variable in loop step")
			continue
		}
		child.Infer(s)
	}
	if x.Body != nil {
		child.Unify(child.Infer(x.Body), types.Unit, x.Body.From, x.Body.To)
	}
	if x.Exit != nil {
		et := child.Infer(x.Exit)
		brk.ty = child.Unify(brk.ty, et, x.Exit.From, x.Exit.To)
		brk.seen = true
	}
	if brk.seen {
		return brk.ty
	}
	return types.Unit
}

func stepTarget(s *ast.Node) *ast.Node {
	if s.Kind != ast.Binary && s.Kind != ast.BinaryInplace {
		return nil
	}
	if s.Kind == ast.Binary && s.Op != lexer.Eq {
		return nil
	}
	if s.Left == nil || s.Left.Kind != ast.VarRef || !s.Left.Name.Standalone() {
		return nil
	}
	return s.Left
}

func (e *Env) inferForIn(x *ast.Node) types.Type {
	child := e.Clone()
	child.currFor = x
	brk := &breakJoin{ty: types.Type(fresh())}
	child.currBrk = brk

	iterT := child.Infer(x.X)
	if len(x.Vars) > 2 {
		child.sink.Errorf(x.From, x.To, "for-in supports at most two variables, got %d", len(x.Vars))
		for _, v := range x.Vars {
			child.AddLocal(v, false, types.Unknown)
		}
		if x.Body != nil {
			child.Unify(child.Infer(x.Body), types.Unit, x.Body.From, x.Body.To)
		}
		return types.Unit
	}

	method, wrapper, want := "iter", "Iter", 1
	if len(x.Vars) == 2 {
		method, wrapper, want = "iter2", "Iter2", 2
	}

	elems := child.iterElems(x, iterT, method, wrapper, want)
	for i, v := range x.Vars {
		child.AddLocal(v, false, elems[i])
	}
	if x.Body != nil {
		child.Unify(child.Infer(x.Body), types.Unit, x.Body.From, x.Body.To)
	}
	if brk.seen {
		return brk.ty
	}
	return types.Unit
}

// iterElems resolves the iterable's iter/iter2 method and returns the
// element types, instantiated against the receiver. The signature must
// be fn(self) -> Iter[T] (or Iter2[K, V]).
func (e *Env) iterElems(x *ast.Node, iterT types.Type, method, wrapper string, want int) []types.Type {
	unknowns := make([]types.Type, want)
	for i := range unknowns {
		unknowns[i] = types.Unknown
	}

	tn, ok := types.TypeName(types.Prune(iterT))
	if !ok {
		e.sink.Errorf(x.X.From, x.X.To, "cannot iterate a value of type %s", iterT)
		return unknowns
	}
	owner := e.Resolve(tn)
	sig, ok := e.MethodTy(owner, method)
	if !ok {
		e.sink.Errorf(x.X.From, x.X.To, "%s has no %s method", tn, method)
		return unknowns
	}
	inst := e.ownerInst(owner)
	isig := substTyvars(sig, inst).(types.Function)
	retName, retArgs, shapeOK := appliedName(types.Prune(isig.Ret))
	if len(isig.Params) != 1 || !shapeOK ||
		e.Resolve(retName).Name != wrapper || len(retArgs) != want {
		e.sink.Errorf(x.X.From, x.X.To, "%s.%s must have signature fn(self) -> %s", tn, method, wrapper)
		return unknowns
	}
	e.Unify(isig.Params[0], iterT, x.X.From, x.X.To)
	return retArgs
}

func appliedName(t types.Type) (names.Name, []types.Type, bool) {
	switch t := t.(type) {
	case types.Struct:
		return t.Name, t.Args, true
	case types.Named:
		return t.Name, t.Args, true
	}
	return names.Name{}, nil, false
}

func (e *Env) inferContinue(x *ast.Node) types.Type {
	if e.currFor == nil {
		e.sink.Errorf(x.From, x.To, "continue outside of a loop")
		for _, k := range x.Kids {
			e.Infer(k)
		}
		return types.Unit
	}
	var vars []names.Name
	switch e.currFor.Kind {
	case ast.For:
		for _, s := range e.currFor.Starts {
			if s.Kind == ast.VarDecl {
				vars = append(vars, s.Name)
			}
		}
	case ast.ForIn:
		vars = e.currFor.Vars
	}
	if len(x.Kids) > len(vars) {
		e.sink.Errorf(x.From, x.To, "continue carries %d values, loop has %d variables", len(x.Kids), len(vars))
	}
	for i, k := range x.Kids {
		kt := e.Infer(k)
		if i >= len(vars) {
			continue
		}
		if l, ok := e.GetLocalOpt(vars[i]); ok {
			e.Unify(kt, l.Ty, k.From, k.To)
		}
	}
	return types.Unit
}

// bindPattern unifies a pattern with the matched type and introduces
// its binders into e.
func (e *Env) bindPattern(p *ast.Node, t types.Type) {
	switch p.Kind {
	case ast.VarRef:
		if p.Name.Standalone() {
			if p.Name.Name != "_" {
				e.AddLocal(p.Name, false, t)
			}
			p.Ty = t
			return
		}
		e.Unify(e.Infer(p), t, p.From, p.To)
	case ast.TupleMake:
		elems := make([]types.Type, len(p.Kids))
		for i := range elems {
			elems[i] = fresh()
		}
		e.Unify(t, types.Tuple{Elems: elems}, p.From, p.To)
		for i, k := range p.Kids {
			e.bindPattern(k, elems[i])
		}
		p.Ty = types.Tuple{Elems: elems}
	case ast.EnumConstr:
		rn := e.Resolve(p.Name)
		info, ok := e.enums.Get(rn)
		if !ok {
			e.sink.Errorf(p.From, p.To, "unknown enum %s", p.Name)
			return
		}
		inst, args := e.freshInst(info.TyParams)
		v, ok := lo.Find(info.Variants, func(v VariantInfo) bool { return v.Name == p.Text })
		if !ok {
			e.sink.Errorf(p.From, p.To, "%s has no variant %s", rn, p.Text)
			return
		}
		if len(p.Kids) != len(v.Tys) {
			e.sink.Errorf(p.From, p.To, "%s::%s carries %d values, pattern has %d", rn, v.Name, len(v.Tys), len(p.Kids))
		}
		for i, k := range p.Kids {
			var kt types.Type = types.Unknown
			if i < len(v.Tys) {
				kt = substTyvars(v.Tys[i], inst)
			}
			e.bindPattern(k, kt)
		}
		p.Ty = e.Unify(types.Enum{Name: rn, Args: args}, t, p.From, p.To)
	default:
		e.Unify(e.Infer(p), t, p.From, p.To)
	}
}

func (e *Env) freshInst(params []string) (map[string]types.Type, []types.Type) {
	m := make(map[string]types.Type, len(params))
	args := make([]types.Type, len(params))
	for i, p := range params {
		w := fresh()
		m[p] = w
		args[i] = w
	}
	return m, args
}

// ownerInst builds a fresh instantiation for the type parameters of
// the declared type named owner.
func (e *Env) ownerInst(owner names.Name) map[string]types.Type {
	var params []string
	if s, ok := e.structs.Get(owner); ok {
		params = s.TyParams
	} else if en, ok := e.enums.Get(owner); ok {
		params = en.TyParams
	} else if a, ok := e.abstracts.Get(owner); ok {
		params = a.TyParams
	}
	m, _ := e.freshInst(params)
	return m
}

func bindTyParams(params []string, args []types.Type) map[string]types.Type {
	m := make(map[string]types.Type, len(params))
	for i, p := range params {
		if i < len(args) {
			m[p] = args[i]
		} else {
			m[p] = types.Type(fresh())
		}
	}
	return m
}

// substTyvars replaces declared type parameters (written either as
// Typevar or as bare Named references) by their instantiation.
func substTyvars(t types.Type, m map[string]types.Type) types.Type {
	if len(m) == 0 {
		return t
	}
	return types.Map(t, func(t types.Type) types.Type {
		switch t := t.(type) {
		case types.Typevar:
			if r, ok := m[t.Name]; ok {
				return r
			}
		case types.Named:
			if t.Name.Standalone() && len(t.Args) == 0 {
				if r, ok := m[t.Name.Name]; ok {
					return r
				}
			}
		}
		return t
	})
}
