package check

import (
	"hash/fnv"

	"github.com/benbjohnson/immutable"
	"github.com/veld-lang/veld/names"
)

// nameHasher hashes qualified names for the persistent maps backing
// Env scopes.
type nameHasher struct{}

func (nameHasher) Hash(n names.Name) uint32 {
	h := fnv.New32a()
	h.Write([]byte(n.Pack))
	h.Write([]byte{0})
	h.Write([]byte(n.Ns))
	h.Write([]byte{0})
	h.Write([]byte(n.Name))
	return h.Sum32()
}

func (nameHasher) Equal(a, b names.Name) bool { return a == b }

// nameMap is a persistent name→value table. Set returns a new table
// sharing structure with the old one, which is what gives Env.Clone
// its container-deep, value-shallow semantics for free.
type nameMap[V any] struct {
	m *immutable.Map[names.Name, V]
}

func newNameMap[V any]() nameMap[V] {
	return nameMap[V]{m: immutable.NewMap[names.Name, V](nameHasher{})}
}

func (nm nameMap[V]) Get(k names.Name) (V, bool) {
	return nm.m.Get(k)
}

func (nm nameMap[V]) Set(k names.Name, v V) nameMap[V] {
	return nameMap[V]{m: nm.m.Set(k, v)}
}

func (nm nameMap[V]) Len() int {
	return nm.m.Len()
}

func (nm nameMap[V]) Range(f func(k names.Name, v V) bool) {
	it := nm.m.Iterator()
	for !it.Done() {
		k, v, _ := it.Next()
		if !f(k, v) {
			return
		}
	}
}
