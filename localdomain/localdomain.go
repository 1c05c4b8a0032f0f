// Package localdomain implements the per-accelerator subdomain: its
// interior extents, halo radius, and one storage array per registered
// data channel, plus the send/receive halo-box geometry the transport
// package copies through.
package localdomain

import (
	"github.com/mengshanfeng/stencil-2/accel"
	"github.com/mengshanfeng/stencil-2/dim3"
	"github.com/mengshanfeng/stencil-2/direction"
	"github.com/mengshanfeng/stencil-2/herrors"
	"github.com/mengshanfeng/stencil-2/storage"
)

// Channel is a dense handle into a LocalDomain's registered data
// channels, equal to the channel's insertion index.
type Channel int

// LocalDomain is the subdomain owned by one accelerator: extents,
// radius, and one storage array per registered channel, sized
// (extents + 2*radius) on every axis. Created empty at construction,
// filled in by RegisterData/Realize, mutated afterwards only by
// transports writing halos and by the caller's kernel writing the
// interior.
type LocalDomain struct {
	extents  dim3.Dim3
	radius   int
	device   accel.Device
	dtypes   []storage.DataType
	arrays   []*storage.Array
	realized bool
}

// New constructs an unrealized LocalDomain of the given interior
// extents and uniform halo radius, owned by device.
func New(extents dim3.Dim3, radius int, device accel.Device) (*LocalDomain, error) {
	if radius < 1 {
		return nil, herrors.NewConfigError("localdomain: radius must be >= 1, got %d", radius)
	}
	if extents.X < 1 || extents.Y < 1 || extents.Z < 1 {
		return nil, herrors.NewTopologyError("localdomain: zero-sized subdomain extents %v", extents)
	}
	return &LocalDomain{extents: extents, radius: radius, device: device}, nil
}

// RegisterData declares a data channel of the given element type.
// Must be called before Realize; the returned handle equals the
// channel's insertion index.
func (d *LocalDomain) RegisterData(dtype storage.DataType) (Channel, error) {
	if d.realized {
		return 0, herrors.NewConfigError("localdomain: RegisterData called after Realize")
	}
	d.dtypes = append(d.dtypes, dtype)
	return Channel(len(d.dtypes) - 1), nil
}

// NumChannels returns the number of registered data channels.
func (d *LocalDomain) NumChannels() int { return len(d.dtypes) }

// FullExtent returns extents + 2*radius on every axis: the shape of
// every channel's backing array.
func (d *LocalDomain) FullExtent() dim3.Dim3 {
	return d.extents.AddScalar(2 * d.radius)
}

// Realize allocates one array per registered channel, sized
// FullExtent(), in the given storage mode, on the owned accelerator.
// Any array already allocated before a failure is released before
// returning the error.
func (d *LocalDomain) Realize(mode storage.Mode) error {
	if d.realized {
		return herrors.NewConfigError("localdomain: Realize called twice")
	}
	full := d.FullExtent()
	arrays := make([]*storage.Array, len(d.dtypes))
	for i, dtype := range d.dtypes {
		arr, err := storage.Allocate(d.device, full, dtype, mode)
		if err != nil {
			for _, a := range arrays[:i] {
				a.Release()
			}
			return herrors.NewResourceError(err, "localdomain: allocate channel")
		}
		arrays[i] = arr
	}
	d.arrays = arrays
	d.realized = true
	return nil
}

// Release frees every channel's underlying allocation. Idempotent and
// safe to call on a partially realized domain.
func (d *LocalDomain) Release() error {
	var firstErr error
	for _, a := range d.arrays {
		if a == nil {
			continue
		}
		if err := a.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Extents returns the interior extent (radius excluded).
func (d *LocalDomain) Extents() dim3.Dim3 { return d.extents }

// Radius returns the halo thickness, uniform on every axis.
func (d *LocalDomain) Radius() int { return d.radius }

// Device returns the accelerator this subdomain is realized on.
func (d *LocalDomain) Device() accel.Device { return d.device }

// Array returns the backing storage array for a registered channel.
func (d *LocalDomain) Array(ch Channel) *storage.Array { return d.arrays[ch] }

// InteriorRegion returns the origin and extent of the interior box:
// [radius, radius+extents) on every axis.
func (d *LocalDomain) InteriorRegion() (origin, extent dim3.Dim3) {
	r := d.radius
	return dim3.Dim3{X: r, Y: r, Z: r}, d.extents
}

// HaloRegion returns, for direction v, the origin of the send box
// (flush against the interior side facing +v), the origin of the
// receive box (flush against the outside face +v), and their shared
// extent, per the formulas in the data model:
//
//	v_i == 0  -> extent_i = extents_i
//	v_i == ±1 -> extent_i = radius
func (d *LocalDomain) HaloRegion(v direction.Vector) (sendOrigin, recvOrigin, extent dim3.Dim3) {
	sendOrigin.X, recvOrigin.X, extent.X = haloAxis(v.X, d.radius, d.extents.X)
	sendOrigin.Y, recvOrigin.Y, extent.Y = haloAxis(v.Y, d.radius, d.extents.Y)
	sendOrigin.Z, recvOrigin.Z, extent.Z = haloAxis(v.Z, d.radius, d.extents.Z)
	return sendOrigin, recvOrigin, extent
}

func haloAxis(vi, r, e int) (sendOrigin, recvOrigin, extent int) {
	switch vi {
	case 0:
		return r, r, e
	case 1:
		return e, r + e, r
	case -1:
		return r, 0, r
	default:
		panic("localdomain: direction component out of range")
	}
}
