package types

import "github.com/veld-lang/veld/names"

// Map is a bottom-up structural rewrite: compound payloads are rebuilt
// first, then f is applied to the rebuilt node. Weak cells are not
// entered; their contents are shared state owned by the unifier, and
// rewriting through them is the business of Deweak.
func Map(t Type, f func(Type) Type) Type {
	switch t := t.(type) {
	case Option:
		return f(Option{Elem: Map(t.Elem, f)})
	case FixedArray:
		return f(FixedArray{Elem: Map(t.Elem, f)})
	case Tuple:
		return f(Tuple{Elems: mapSlice(t.Elems, f)})
	case Function:
		kw := make([]KwParam, len(t.Kw))
		for i, k := range t.Kw {
			kw[i] = KwParam{Name: k.Name, Ty: Map(k.Ty, f), Default: k.Default}
		}
		if len(kw) == 0 {
			kw = nil
		}
		return f(Function{Params: mapSlice(t.Params, f), Kw: kw, Ret: Map(t.Ret, f)})
	case Named:
		return f(Named{Name: t.Name, Args: mapSlice(t.Args, f)})
	case Struct:
		return f(Struct{Name: t.Name, Args: mapSlice(t.Args, f)})
	case Enum:
		return f(Enum{Name: t.Name, Args: mapSlice(t.Args, f)})
	case Abstract:
		return f(Abstract{Name: t.Name, Args: mapSlice(t.Args, f)})
	case MayError:
		return f(MayError{Elem: Map(t.Elem, f)})
	case HasError:
		return f(HasError{Elem: Map(t.Elem, f), Err: Map(t.Err, f)})
	case VirtualBase:
		return f(VirtualBase{Elem: Map(t.Elem, f)})
	default:
		return f(t)
	}
}

func mapSlice(ts []Type, f func(Type) Type) []Type {
	if len(ts) == 0 {
		return nil
	}
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = Map(t, f)
	}
	return out
}

// Deweak replaces every reachable Weak by its cell's current
// resolution, chasing link chains. Free cells collapse to Unknown, so
// no Weak remains in the result.
func Deweak(t Type) Type {
	return Map(t, func(t Type) Type {
		if w, ok := t.(Weak); ok {
			return Deweak(w.Cell.Terminal().Val)
		}
		return t
	})
}

// Weaken turns every reachable Unknown into a fresh free Weak cell.
// Cells are never shared between calls.
func Weaken(t Type) Type {
	return Map(t, func(t Type) Type {
		if b, ok := t.(Base); ok && b == Unknown {
			return Weak{Cell: NewWeakCell()}
		}
		return t
	})
}

// Prune shortens resolved weak chains without losing free cells: a
// Weak whose chain terminates in a concrete type becomes that type
// (recursively pruned); a free Weak becomes its terminal cell. Used
// when storing into cells so fresh metavariables stay live.
func Prune(t Type) Type {
	if w, ok := t.(Weak); ok {
		term := w.Cell.Terminal()
		if b, ok := term.Val.(Base); ok && b == Unknown {
			return Weak{Cell: term}
		}
		return Prune(term.Val)
	}
	return t
}

const BuiltinPack = "builtin"

// Builtin names a declaration of the builtin package.
func Builtin(local string) names.Name {
	return names.Name{Pack: BuiltinPack, Name: local}
}

// TypeName returns the canonical name of a type: builtins map to
// @builtin::<T>, user-declared forms keep their own name. Unknown,
// Typevar, Tuple, and Function have none. Effect wrappers and weak
// cells report the name of their payload.
func TypeName(t Type) (names.Name, bool) {
	switch t := t.(type) {
	case Base:
		if t == Unknown {
			return names.Name{}, false
		}
		return Builtin(t.String()), true
	case Option:
		return Builtin("Option"), true
	case FixedArray:
		return Builtin("FixedArray"), true
	case Named:
		return t.Name, true
	case Struct:
		return t.Name, true
	case Enum:
		return t.Name, true
	case Abstract:
		return t.Name, true
	case Weak:
		if !t.Cell.Resolved() {
			return names.Name{}, false
		}
		return TypeName(Deweak(t))
	case MayError:
		return TypeName(t.Elem)
	case HasError:
		return TypeName(t.Elem)
	case VirtualBase:
		return TypeName(t.Elem)
	}
	return names.Name{}, false
}

// ResolveSelf rewrites standalone references to Self into ns. Applied
// when a method signature is loaded into its owning type's namespace.
func ResolveSelf(t Type, ns names.Name) Type {
	return Map(t, func(t Type) Type {
		if n, ok := t.(Named); ok && n.Name.Standalone() && n.Name.Name == "Self" {
			return Named{Name: ns, Args: n.Args}
		}
		return t
	})
}

// ContainsWeak reports whether any Weak node is reachable in t.
func ContainsWeak(t Type) bool {
	found := false
	Map(t, func(t Type) Type {
		if _, ok := t.(Weak); ok {
			found = true
		}
		return t
	})
	return found
}
