// Package dim3 provides the 3D index algebra used throughout the
// halo-exchange engine: a signed integer triple with componentwise
// arithmetic, Euclidean wrap, lexicographic flattening, and the
// prime-factor / cubeness helpers the partitioner builds on.
package dim3

import "fmt"

// Dim3 is an ordered triple of signed integers, used as both a vector
// and an extent.
type Dim3 struct {
	X, Y, Z int
}

// New constructs a Dim3 from its three components.
func New(x, y, z int) Dim3 { return Dim3{X: x, Y: y, Z: z} }

// Unit is the all-ones Dim3, used as the identity of Mul.
var Unit = Dim3{1, 1, 1}

func (a Dim3) Add(b Dim3) Dim3 { return Dim3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Dim3) Sub(b Dim3) Dim3 { return Dim3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Dim3) Mul(b Dim3) Dim3 { return Dim3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }
func (a Dim3) Div(b Dim3) Dim3 { return Dim3{a.X / b.X, a.Y / b.Y, a.Z / b.Z} }
func (a Dim3) Mod(b Dim3) Dim3 { return Dim3{a.X % b.X, a.Y % b.Y, a.Z % b.Z} }

// Scale multiplies every component by a scalar.
func (a Dim3) Scale(k int) Dim3 { return Dim3{a.X * k, a.Y * k, a.Z * k} }

// AddScalar adds a scalar to every component.
func (a Dim3) AddScalar(k int) Dim3 { return Dim3{a.X + k, a.Y + k, a.Z + k} }

// Flatten returns the volume x*y*z.
func (a Dim3) Flatten() int { return a.X * a.Y * a.Z }

// Index flattens a as a coordinate inside extent ext using
// x-stride-1, then y, then z ordering: idx = x + ext.X*(y + ext.Y*z).
func (a Dim3) Index(ext Dim3) int {
	return a.X + ext.X*(a.Y+ext.Y*a.Z)
}

// Unindex is the inverse of Index: it recovers the coordinate that
// flattens to idx inside extent ext.
func Unindex(idx int, ext Dim3) Dim3 {
	x := idx % ext.X
	rest := idx / ext.X
	y := rest % ext.Y
	z := rest / ext.Y
	return Dim3{X: x, Y: y, Z: z}
}

// Wrap returns a componentwise non-negative modulo of a by ext. Every
// component of the result lies in [0, ext_i) whenever ext_i > 0, and
// is congruent to a_i modulo ext_i.
func (a Dim3) Wrap(ext Dim3) Dim3 {
	return Dim3{
		X: wrapOne(a.X, ext.X),
		Y: wrapOne(a.Y, ext.Y),
		Z: wrapOne(a.Z, ext.Z),
	}
}

func wrapOne(v, m int) int {
	if m == 0 {
		return 0
	}
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}

// Ge reports whether every component of a is >= the matching
// component of b.
func (a Dim3) Ge(b Dim3) bool { return a.X >= b.X && a.Y >= b.Y && a.Z >= b.Z }

// Gt reports whether every component of a is > the matching
// component of b.
func (a Dim3) Gt(b Dim3) bool { return a.X > b.X && a.Y > b.Y && a.Z > b.Z }

// Eq reports componentwise equality.
func (a Dim3) Eq(b Dim3) bool { return a == b }

func (a Dim3) String() string { return fmt.Sprintf("(%d,%d,%d)", a.X, a.Y, a.Z) }

// DivCeil returns ceil(n/d) for positive d.
func DivCeil(n, d int) int {
	if d <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

// DivCeilDim3 applies DivCeil componentwise: ceil(a/b).
func DivCeilDim3(a, b Dim3) Dim3 {
	return Dim3{
		X: DivCeil(a.X, b.X),
		Y: DivCeil(a.Y, b.Y),
		Z: DivCeil(a.Z, b.Z),
	}
}

// PrimeFactors returns the prime factors of n in non-increasing
// order (largest first). For n in {0,1} it returns an empty slice.
func PrimeFactors(n int) []int {
	if n <= 1 {
		return nil
	}
	var factors []int
	m := n
	for d := 2; d*d <= m; d++ {
		for m%d == 0 {
			factors = append(factors, d)
			m /= d
		}
	}
	if m > 1 {
		factors = append(factors, m)
	}
	// factors were discovered in non-decreasing order; reverse to
	// get largest-first.
	for i, j := 0, len(factors)-1; i < j; i, j = i+1, j-1 {
		factors[i], factors[j] = factors[j], factors[i]
	}
	return factors
}

// Cubeness returns min(x,y,z)/max(x,y,z) as a shape score in (0,1],
// equal to 1 iff x == y == z. Undefined (and not called by this
// module) when any input is 0.
func Cubeness(x, y, z int) float64 {
	lo, hi := x, x
	for _, v := range []int{y, z} {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return float64(lo) / float64(hi)
}
