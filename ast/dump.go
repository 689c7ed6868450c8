package ast

import "github.com/sanity-io/litter"

var dumper = litter.Options{
	HidePrivateFields: true,
	HideZeroValues:    true,
	Compact:           true,
}

// Dump renders a stable textual form of the tree, for tests and
// debugging.
func Dump(n *Node) string {
	return dumper.Sdump(n)
}
