// Package direction implements the fixed 3x3x3 lookup over the 27
// offset vectors (dx,dy,dz) in {-1,0,1}^3, including the zero vector,
// and the dense DirectionMap built on top of it.
package direction

import "github.com/mengshanfeng/stencil-2/dim3"

// Vector is one of the 27 direction offsets; each component is in
// {-1,0,1}.
type Vector = dim3.Dim3

// Zero is the (0,0,0) direction: never a real neighbor, but included
// in every DirectionMap slot.
var Zero = Vector{X: 0, Y: 0, Z: 0}

// All returns the 27 direction vectors in the dense index order used
// by DirectionMap: idx = (dx+1) + 3*(dy+1) + 9*(dz+1).
func All() []Vector {
	vs := make([]Vector, 27)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				vs[Index(Vector{X: dx, Y: dy, Z: dz})] = Vector{X: dx, Y: dy, Z: dz}
			}
		}
	}
	return vs
}

// Neighbors returns the 26 nonzero direction vectors, i.e. All minus
// the zero vector.
func Neighbors() []Vector {
	var vs []Vector
	for _, v := range All() {
		if v != Zero {
			vs = append(vs, v)
		}
	}
	return vs
}

// Index computes the dense slot for v in {-1,0,1}^3: (dx+1) +
// 3*(dy+1) + 9*(dz+1). Callers are expected to pass only vectors with
// components in {-1,0,1}; out-of-range components are not checked:
// they can alias another direction's slot (e.g. (2,-1,-1) maps to the
// slot of (-1,0,-1)) or yield an index outside [0,27), on which a
// DirectionMap access panics.
func Index(v Vector) int {
	return (v.X + 1) + 3*(v.Y+1) + 9*(v.Z+1)
}

// Opposite returns -v.
func Opposite(v Vector) Vector {
	return Vector{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Map is a total function from the 27 direction vectors to T,
// represented as a dense length-27 array with no hashing. The slot
// for the zero vector exists but is never populated by this module's
// planner.
type Map[T any] struct {
	slots [27]T
	set   [27]bool
}

// Get returns the value stored at v and whether it was set.
func (m *Map[T]) Get(v Vector) (T, bool) {
	i := Index(v)
	return m.slots[i], m.set[i]
}

// Set stores val at v.
func (m *Map[T]) Set(v Vector, val T) {
	i := Index(v)
	m.slots[i] = val
	m.set[i] = true
}

// Has reports whether v has a stored value.
func (m *Map[T]) Has(v Vector) bool {
	return m.set[Index(v)]
}

// Delete clears the slot for v.
func (m *Map[T]) Delete(v Vector) {
	i := Index(v)
	m.set[i] = false
	var zero T
	m.slots[i] = zero
}

// Each calls f for every one of the 26 nonzero directions that has a
// stored value, in dense index order.
func (m *Map[T]) Each(f func(v Vector, val T)) {
	for _, v := range Neighbors() {
		if val, ok := m.Get(v); ok {
			f(v, val)
		}
	}
}
