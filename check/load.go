package check

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/veld-lang/veld/names"
	"github.com/veld-lang/veld/types"
	"golang.org/x/mod/module"
)

// PackDetail is the interface record of a dependency package, as
// produced by the package loader.
type PackDetail struct {
	Fullname  string
	Referred  string
	Fns       []FnDetail
	Structs   []StructDetail
	Enums     []EnumDetail
	Traits    []TraitDetail
	Abstracts []AbstractDetail
	Impls     []ImplDetail
}

type FnDetail struct {
	Name names.Name
	Ty   types.Type
}

type StructDetail struct {
	Name     names.Name
	TyParams []string
	Fields   []Field
}

type EnumDetail struct {
	Name     names.Name
	TyParams []string
	Variants []VariantInfo
}

type TraitDetail struct {
	Name    names.Name
	Methods []Field
}

type AbstractDetail struct {
	Name     names.Name
	TyParams []string
}

type ImplDetail struct {
	Trait  names.Name
	Target names.Name
}

// Load ingests a dependency package: every declaration is stored under
// its fully qualified name, method signatures get Self resolved to
// their owning type, and declarations of the builtin package are
// additionally exposed under their short names.
func (e *Env) Load(pd *PackDetail) error {
	if err := module.CheckImportPath(pd.Fullname); err != nil {
		return errors.Wrapf(err, "invalid package name %q", pd.Fullname)
	}
	pack := pd.Fullname
	builtin := pack == types.BuiltinPack

	expose := func(qual names.Name) {
		if builtin {
			e.exposed[names.N(qual.Name)] = qual
		}
	}

	lo.ForEach(pd.Fns, func(fd FnDetail, _ int) {
		qual := fd.Name.WithPack(pack)
		ty := fd.Ty
		if qual.Ns != "" {
			owner := names.Name{Pack: pack, Name: qual.Ns}
			ty = types.ResolveSelf(ty, owner)
		}
		e.fns = e.fns.Set(qual, ty)
		if qual.Ns == "" {
			expose(qual)
		}
	})
	lo.ForEach(pd.Structs, func(sd StructDetail, _ int) {
		qual := sd.Name.WithPack(pack)
		e.structs = e.structs.Set(qual, &StructInfo{Name: qual, TyParams: sd.TyParams, Fields: sd.Fields})
		expose(qual)
	})
	lo.ForEach(pd.Enums, func(ed EnumDetail, _ int) {
		qual := ed.Name.WithPack(pack)
		e.enums = e.enums.Set(qual, &EnumInfo{Name: qual, TyParams: ed.TyParams, Variants: ed.Variants})
		expose(qual)
	})
	lo.ForEach(pd.Traits, func(td TraitDetail, _ int) {
		qual := td.Name.WithPack(pack)
		e.traits = e.traits.Set(qual, &TraitInfo{Name: qual, Methods: td.Methods})
		expose(qual)
	})
	lo.ForEach(pd.Abstracts, func(ad AbstractDetail, _ int) {
		qual := ad.Name.WithPack(pack)
		e.abstracts = e.abstracts.Set(qual, &AbstractInfo{Name: qual, TyParams: ad.TyParams})
		expose(qual)
	})
	e.impls = append(e.impls, lo.Map(pd.Impls, func(id ImplDetail, _ int) ImplInfo {
		return ImplInfo{Trait: id.Trait, Target: id.Target}
	})...)
	return nil
}
