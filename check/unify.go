package check

import (
	"github.com/veld-lang/veld/diag"
	"github.com/veld-lang/veld/names"
	"github.com/veld-lang/veld/types"
)

func (e *Env) mismatch(x, y types.Type, from, to diag.Loc) types.Type {
	e.sink.Errorf(from, to, "cannot unify %s with %s", x, y)
	return types.Unknown
}

func free(c *types.WeakCell) bool {
	b, ok := c.Val.(types.Base)
	return ok && b == types.Unknown
}

// containsCell reports whether t reaches cell, chasing links.
func containsCell(t types.Type, cell *types.WeakCell) bool {
	found := false
	types.Map(t, func(t types.Type) types.Type {
		if w, ok := t.(types.Weak); ok {
			if w.Cell.Terminal() == cell {
				found = true
			} else if containsCell(w.Cell.Val, cell) {
				found = true
			}
		}
		return t
	})
	return found
}

// Unify destructively joins two types and returns the joined form.
// Weak cells are written in place. All failures are diagnostics so
// inference can continue: a mismatch yields Unknown, while a size
// mismatch of tuples, function parameters or type arguments keeps the
// left form.
func (e *Env) Unify(x, y types.Type, from, to diag.Loc) types.Type {
	xw, xIsWeak := x.(types.Weak)
	yw, yIsWeak := y.(types.Weak)
	switch {
	case xIsWeak && yIsWeak:
		xt, yt := xw.Cell.Terminal(), yw.Cell.Terminal()
		if xt == yt {
			return types.Weak{Cell: xt}
		}
		switch {
		case free(xt) && free(yt):
			// alias: resolving either cell resolves both
			yt.Val = types.Weak{Cell: xt}
			return types.Weak{Cell: xt}
		case free(xt):
			xt.Val = types.Prune(yt.Val)
			return xt.Val
		case free(yt):
			yt.Val = types.Prune(xt.Val)
			return yt.Val
		default:
			return e.Unify(xt.Val, yt.Val, from, to)
		}
	case xIsWeak:
		t := xw.Cell.Terminal()
		if !free(t) {
			return e.Unify(t.Val, y, from, to)
		}
		v := types.Prune(y)
		if containsCell(v, t) {
			e.sink.Errorf(from, to, "recursive type")
			return types.Unknown
		}
		t.Val = v
		return v
	case yIsWeak:
		return e.Unify(y, x, from, to)
	}

	// user-declared references resolve before structural comparison
	if n, ok := x.(types.Named); ok {
		rx := e.LookupType(n.Name, n.Args)
		if rx == types.Type(types.Unknown) {
			e.sink.Errorf(from, to, "unknown type %s", n.Name)
		}
		return e.Unify(rx, y, from, to)
	}
	if n, ok := y.(types.Named); ok {
		ry := e.LookupType(n.Name, n.Args)
		if ry == types.Type(types.Unknown) {
			e.sink.Errorf(from, to, "unknown type %s", n.Name)
		}
		return e.Unify(x, ry, from, to)
	}

	// type variables defer to their binding, checking bounds against
	// concrete partners
	if tv, ok := x.(types.Typevar); ok {
		return e.unifyTypevar(tv, y, from, to)
	}
	if tv, ok := y.(types.Typevar); ok {
		return e.unifyTypevar(tv, x, from, to)
	}

	// recovery: Unknown and Error join with anything
	if b, ok := x.(types.Base); ok && (b == types.Unknown || b == types.Err) {
		return y
	}
	if b, ok := y.(types.Base); ok && (b == types.Unknown || b == types.Err) {
		return x
	}

	switch x := x.(type) {
	case types.Base:
		if yb, ok := y.(types.Base); ok && x == yb {
			return x
		}

	case types.Tuple:
		yt, ok := y.(types.Tuple)
		if !ok {
			break
		}
		if len(x.Elems) != len(yt.Elems) {
			e.sink.Errorf(from, to, "tuple size mismatch: %d vs %d", len(x.Elems), len(yt.Elems))
		}
		out := make([]types.Type, len(x.Elems))
		for i := range x.Elems {
			if i < len(yt.Elems) {
				out[i] = e.Unify(x.Elems[i], yt.Elems[i], from, to)
			} else {
				out[i] = x.Elems[i]
			}
		}
		return types.Tuple{Elems: out}

	case types.FixedArray:
		if ya, ok := y.(types.FixedArray); ok {
			return types.FixedArray{Elem: e.Unify(x.Elem, ya.Elem, from, to)}
		}

	case types.Option:
		if yo, ok := y.(types.Option); ok {
			return types.Option{Elem: e.Unify(x.Elem, yo.Elem, from, to)}
		}

	case types.Function:
		yf, ok := y.(types.Function)
		if !ok {
			break
		}
		if len(x.Params) != len(yf.Params) {
			e.sink.Errorf(from, to, "function arity mismatch: %d vs %d", len(x.Params), len(yf.Params))
		}
		params := make([]types.Type, len(x.Params))
		for i := range x.Params {
			if i < len(yf.Params) {
				params[i] = e.Unify(x.Params[i], yf.Params[i], from, to)
			} else {
				params[i] = x.Params[i]
			}
		}
		return types.Function{Params: params, Kw: x.Kw, Ret: e.Unify(x.Ret, yf.Ret, from, to)}

	// structs and abstracts cross-unify when their resolved names match
	case types.Struct:
		if n, args, ok := structOrAbstract(y); ok {
			if e.Resolve(x.Name) != e.Resolve(n) {
				return e.mismatch(x, y, from, to)
			}
			return types.Struct{Name: x.Name, Args: e.unifyArgs(x.Args, args, from, to)}
		}
	case types.Abstract:
		if n, args, ok := structOrAbstract(y); ok {
			if e.Resolve(x.Name) != e.Resolve(n) {
				return e.mismatch(x, y, from, to)
			}
			return types.Abstract{Name: x.Name, Args: e.unifyArgs(x.Args, args, from, to)}
		}
	case types.Enum:
		if ye, ok := y.(types.Enum); ok {
			if e.Resolve(x.Name) != e.Resolve(ye.Name) {
				return e.mismatch(x, y, from, to)
			}
			return types.Enum{Name: x.Name, Args: e.unifyArgs(x.Args, ye.Args, from, to)}
		}

	case types.MayError:
		return types.MayError{Elem: e.Unify(x.Elem, unwrapped(y), from, to)}
	case types.HasError:
		return types.HasError{Elem: e.Unify(x.Elem, unwrapped(y), from, to), Err: x.Err}
	case types.VirtualBase:
		return types.VirtualBase{Elem: e.Unify(x.Elem, unwrapped(y), from, to)}
	}

	if _, ok := y.(types.MayError); ok {
		return e.Unify(y, x, from, to)
	}
	if _, ok := y.(types.HasError); ok {
		return e.Unify(y, x, from, to)
	}
	if _, ok := y.(types.VirtualBase); ok {
		return e.Unify(y, x, from, to)
	}

	return e.mismatch(x, y, from, to)
}

func structOrAbstract(t types.Type) (names.Name, []types.Type, bool) {
	switch t := t.(type) {
	case types.Struct:
		return t.Name, t.Args, true
	case types.Abstract:
		return t.Name, t.Args, true
	}
	return names.Name{}, nil, false
}

func (e *Env) unifyArgs(xs, ys []types.Type, from, to diag.Loc) []types.Type {
	if len(xs) != len(ys) {
		e.sink.Errorf(from, to, "wrong number of type arguments: %d vs %d", len(xs), len(ys))
	}
	out := make([]types.Type, len(xs))
	for i := range xs {
		if i < len(ys) {
			out[i] = e.Unify(xs[i], ys[i], from, to)
		} else {
			out[i] = xs[i]
		}
	}
	return out
}

func unwrapped(t types.Type) types.Type {
	switch t := t.(type) {
	case types.MayError:
		return t.Elem
	case types.HasError:
		return t.Elem
	case types.VirtualBase:
		return t.Elem
	}
	return t
}

func (e *Env) unifyTypevar(tv types.Typevar, other types.Type, from, to diag.Loc) types.Type {
	bound, ok := e.tyvars[tv.Name]
	if !ok {
		e.sink.Errorf(from, to, "unknown type variable %s", tv.Name)
		return types.Unknown
	}
	traits := tv.Traits
	if len(traits) == 0 {
		traits = e.tyvarTraits[tv.Name]
	}
	if len(traits) > 0 {
		if tn, named := types.TypeName(types.Prune(other)); named {
			for _, tr := range traits {
				if !e.Implements(tr, tn) {
					e.sink.Errorf(from, to, "%s does not implement %s", tn, tr)
				}
			}
		}
	}
	return e.Unify(bound, other, from, to)
}
