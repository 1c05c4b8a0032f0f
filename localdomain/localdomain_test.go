package localdomain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengshanfeng/stencil-2/accel/fake"
	"github.com/mengshanfeng/stencil-2/dim3"
	"github.com/mengshanfeng/stencil-2/direction"
	"github.com/mengshanfeng/stencil-2/storage"
)

func newTestDomain(t *testing.T, extents dim3.Dim3, radius int) *LocalDomain {
	t.Helper()
	rt := fake.NewRuntime(1)
	dev, err := rt.Device(0)
	require.NoError(t, err)
	ld, err := New(extents, radius, dev)
	require.NoError(t, err)
	return ld
}

func TestRealizeAllocatesEveryChannelUniformly(t *testing.T) {
	ld := newTestDomain(t, dim3.Dim3{X: 4, Y: 4, Z: 4}, 1)
	_, err := ld.RegisterData(storage.F64)
	require.NoError(t, err)
	_, err = ld.RegisterData(storage.I32)
	require.NoError(t, err)

	require.NoError(t, ld.Realize(storage.Device))

	full := ld.FullExtent()
	require.Equal(t, dim3.Dim3{X: 6, Y: 6, Z: 6}, full)
	for ch := 0; ch < ld.NumChannels(); ch++ {
		require.Equal(t, full.Flatten(), ld.Array(Channel(ch)).Count())
	}
}

func TestRegisterDataAfterRealizeIsConfigError(t *testing.T) {
	ld := newTestDomain(t, dim3.Dim3{X: 2, Y: 2, Z: 2}, 1)
	require.NoError(t, ld.Realize(storage.Device))
	_, err := ld.RegisterData(storage.F64)
	require.Error(t, err)
}

func TestHaloRegionFacesEdgesCorners(t *testing.T) {
	r := 2
	ld := newTestDomain(t, dim3.Dim3{X: 5, Y: 6, Z: 7}, r)

	// +x face: send flush against the high interior face, recv flush
	// against the outside high face.
	send, recv, extent := ld.HaloRegion(direction.Vector{X: 1, Y: 0, Z: 0})
	require.Equal(t, dim3.Dim3{X: 5, Y: r, Z: r}, send)
	require.Equal(t, dim3.Dim3{X: 5 + r, Y: r, Z: r}, recv)
	require.Equal(t, dim3.Dim3{X: r, Y: 6, Z: 7}, extent)

	// -x face.
	send, recv, extent = ld.HaloRegion(direction.Vector{X: -1, Y: 0, Z: 0})
	require.Equal(t, dim3.Dim3{X: r, Y: r, Z: r}, send)
	require.Equal(t, dim3.Dim3{X: 0, Y: r, Z: r}, recv)
	require.Equal(t, dim3.Dim3{X: r, Y: 6, Z: 7}, extent)

	// a corner: (+1,-1,+1).
	send, recv, extent = ld.HaloRegion(direction.Vector{X: 1, Y: -1, Z: 1})
	require.Equal(t, dim3.Dim3{X: 5, Y: r, Z: 7}, send)
	require.Equal(t, dim3.Dim3{X: 5 + r, Y: 0, Z: 7 + r}, recv)
	require.Equal(t, dim3.Dim3{X: r, Y: r, Z: r}, extent)
}

func TestHaloRegionSendAndRecvAreDisjointFromInterior(t *testing.T) {
	r := 1
	ld := newTestDomain(t, dim3.Dim3{X: 4, Y: 4, Z: 4}, r)
	origin, extent := ld.InteriorRegion()
	require.Equal(t, dim3.Dim3{X: r, Y: r, Z: r}, origin)
	require.Equal(t, dim3.Dim3{X: 4, Y: 4, Z: 4}, extent)

	for _, v := range direction.Neighbors() {
		_, recv, haloExtent := ld.HaloRegion(v)
		// The recv box origin must fall outside [radius, radius+extents)
		// on every axis where v is nonzero.
		if v.X != 0 {
			require.True(t, recv.X < origin.X || recv.X >= origin.X+extent.X)
		}
		if v.Y != 0 {
			require.True(t, recv.Y < origin.Y || recv.Y >= origin.Y+extent.Y)
		}
		if v.Z != 0 {
			require.True(t, recv.Z < origin.Z || recv.Z >= origin.Z+extent.Z)
		}
		require.Equal(t, r, minNonZero(haloExtent, v))
	}
}

func minNonZero(extent dim3.Dim3, v direction.Vector) int {
	if v.X != 0 {
		return extent.X
	}
	if v.Y != 0 {
		return extent.Y
	}
	return extent.Z
}
