// Package names defines fully qualified names: an optional package, an
// optional namespace (the owning type, for methods), and a local name.
package names

import "strings"

// Name is comparable with == and usable as a map key. An empty Pack or
// Ns field means "absent".
type Name struct {
	Pack string
	Ns   string
	Name string
}

// N builds a standalone name.
func N(local string) Name {
	return Name{Name: local}
}

func Qualified(pack, ns, local string) Name {
	return Name{Pack: pack, Ns: ns, Name: local}
}

// Standalone reports whether the name has neither package nor namespace.
func (n Name) Standalone() bool {
	return n.Pack == "" && n.Ns == ""
}

// WithPack returns the name promoted into package p.
func (n Name) WithPack(p string) Name {
	n.Pack = p
	return n
}

// Unpack returns the name with its package stripped.
func (n Name) Unpack() Name {
	n.Pack = ""
	return n
}

// WithNs returns the name placed under namespace ns.
func (n Name) WithNs(ns string) Name {
	n.Ns = ns
	return n
}

func (n Name) String() string {
	var sb strings.Builder
	if n.Pack != "" {
		sb.WriteByte('@')
		sb.WriteString(n.Pack)
		sb.WriteString("::")
	}
	if n.Ns != "" {
		sb.WriteString(n.Ns)
		sb.WriteString("::")
	}
	sb.WriteString(n.Name)
	return sb.String()
}
