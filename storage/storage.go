// Package storage implements the typed N-D buffer that backs every
// registered data channel of a LocalDomain: a flat accelerator-backed
// allocation addressed by a Dim3 extent, living in one of {host,
// device, unified} memory.
package storage

import (
	"unsafe"

	"github.com/mengshanfeng/stencil-2/accel"
	"github.com/mengshanfeng/stencil-2/dim3"
)

// Mode names where an Array's bytes live.
type Mode int

const (
	Host Mode = iota
	Device
	Unified
)

// DataType is the element type of an Array.
type DataType int

const (
	U8 DataType = iota
	I8
	I16
	I32
	I64
	F32
	F64
)

// Size returns the size in bytes of one element of dtype.
func (dtype DataType) Size() int {
	switch dtype {
	case U8, I8:
		return 1
	case I16:
		return 2
	case I32, F32:
		return 4
	case I64, F64:
		return 8
	default:
		return 0
	}
}

// Array is a typed N-D buffer sized by a Dim3 extent, resident on one
// accelerator in the mode it was allocated with.
type Array struct {
	device accel.Device
	mode   Mode
	dtype  DataType
	extent dim3.Dim3
	buf    accel.Buffer
}

// Allocate allocates a new Array of the given extent and element
// type, in the given mode, on dev.
func Allocate(dev accel.Device, extent dim3.Dim3, dtype DataType, mode Mode) (*Array, error) {
	a := &Array{device: dev, mode: mode, dtype: dtype}
	if err := a.alloc(extent); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Array) alloc(extent dim3.Dim3) error {
	n := extent.Flatten() * a.dtype.Size()
	var buf accel.Buffer
	var err error
	switch a.mode {
	case Unified:
		buf, err = a.device.MallocUnified(n)
	default:
		buf, err = a.device.MallocBytes(n)
	}
	if err != nil {
		return err
	}
	a.buf = buf
	a.extent = extent
	return nil
}

// Extent returns the array's current Dim3 extent.
func (a *Array) Extent() dim3.Dim3 { return a.extent }

// Count returns the total element count (the extent's volume).
func (a *Array) Count() int { return a.extent.Flatten() }

// DataType returns the array's element type.
func (a *Array) DataType() DataType { return a.dtype }

// Mode returns where the array's bytes live.
func (a *Array) Mode() Mode { return a.mode }

// Data returns the array's underlying bytes.
func (a *Array) Data() []byte { return a.buf.Bytes() }

// Resize reallocates the array to a new extent, discarding contents.
func (a *Array) Resize(extent dim3.Dim3) error {
	if old := a.buf; old != nil {
		a.device.Free(old)
	}
	return a.alloc(extent)
}

// Swap exchanges the underlying buffers (and extents) of a and b.
// Used by double-buffered stencil kernels between iterations.
func (a *Array) Swap(b *Array) {
	a.buf, b.buf = b.buf, a.buf
	a.extent, b.extent = b.extent, a.extent
}

// As reinterprets the array's bytes as a []T. Callers are responsible
// for matching T to the array's DataType; used by the domain
// package's generic per-channel accessors where the element type is
// known at the call site from a typed DataHandle.
func As[T any](a *Array) []T {
	return asSlice[T](a.Data())
}

// RowBytes returns the half-open byte range of lenX contiguous
// elements starting at coordinate origin+(0,y,z), addressed within
// a's own full extent (which may differ from a peer array's extent
// when remainder cells have been distributed unevenly by the
// partitioner).
func (a *Array) RowBytes(origin dim3.Dim3, y, z, lenX int) (start, end int) {
	coord := dim3.Dim3{X: origin.X, Y: origin.Y + y, Z: origin.Z + z}
	idx := coord.Index(a.extent)
	sz := a.dtype.Size()
	start = idx * sz
	end = start + lenX*sz
	return start, end
}

// Release frees the array's underlying accelerator allocation. Safe
// to call on an array whose allocation already failed partway.
func (a *Array) Release() error {
	if a.buf == nil {
		return nil
	}
	err := a.device.Free(a.buf)
	a.buf = nil
	return err
}

func asSlice[T any](bs []byte) []T {
	if len(bs) == 0 {
		return nil
	}
	var zero T
	sz := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*T)(unsafe.Pointer(&bs[0])), len(bs)/sz)
}
