package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengshanfeng/stencil-2/accel/fake"
	"github.com/mengshanfeng/stencil-2/dim3"
	"github.com/mengshanfeng/stencil-2/direction"
	"github.com/mengshanfeng/stencil-2/localdomain"
	fakempi "github.com/mengshanfeng/stencil-2/mpi/fake"
	"github.com/mengshanfeng/stencil-2/storage"
)

func fillInterior(t *testing.T, ld *localdomain.LocalDomain, ch localdomain.Channel, f func(x, y, z int) float64) {
	t.Helper()
	arr := ld.Array(ch)
	vals := storage.As[float64](arr)
	full := ld.FullExtent()
	r := ld.Radius()
	ext := ld.Extents()
	for z := 0; z < ext.Z; z++ {
		for y := 0; y < ext.Y; y++ {
			for x := 0; x < ext.X; x++ {
				idx := dim3.Dim3{X: x + r, Y: y + r, Z: z + r}.Index(full)
				vals[idx] = f(x, y, z)
			}
		}
	}
}

func readAt(ld *localdomain.LocalDomain, ch localdomain.Channel, x, y, z int) float64 {
	full := ld.FullExtent()
	vals := storage.As[float64](ld.Array(ch))
	return vals[dim3.Dim3{X: x, Y: y, Z: z}.Index(full)]
}

func buildLocal(t *testing.T, rt *fake.Runtime, devID int, extents dim3.Dim3, radius int) *localdomain.LocalDomain {
	t.Helper()
	dev, err := rt.Device(devID)
	require.NoError(t, err)
	ld, err := localdomain.New(extents, radius, dev)
	require.NoError(t, err)
	_, err = ld.RegisterData(storage.F64)
	require.NoError(t, err)
	require.NoError(t, ld.Realize(storage.Device))
	return ld
}

func TestRegionCopierFillsPeerHalo(t *testing.T) {
	rt := fake.NewRuntime(2)
	src := buildLocal(t, rt, 0, dim3.Dim3{X: 4, Y: 4, Z: 4}, 1)
	dst := buildLocal(t, rt, 1, dim3.Dim3{X: 4, Y: 4, Z: 4}, 1)

	fillInterior(t, src, 0, func(x, y, z int) float64 { return float64(100*x + 10*y + z) })

	v := direction.Vector{X: 1, Y: 0, Z: 0}
	c := NewRegionCopier(src, dst, v)
	require.NoError(t, c.Allocate())
	require.Equal(t, RegionCopy, c.Strategy())
	require.NoError(t, c.Send(context.Background()))
	require.NoError(t, c.Wait())

	// dst's -x halo plane (x=0) should now equal src's interior at
	// x=extents.X-1=3, for every (y,z) in [0,4).
	for y := 0; y < 4; y++ {
		for z := 0; z < 4; z++ {
			want := readAt(src, 0, 4, y+1, z+1) // src interior x=3 (full-buffer x=4)
			got := readAt(dst, 0, 0, y+1, z+1)  // dst halo x=-1 (full-buffer x=0)
			require.Equal(t, want, got)
		}
	}
}

func TestPackMemcpyCopierFillsPeerHalo(t *testing.T) {
	rt := fake.NewRuntime(2)
	rt.RawDevice(0).Block(1) // force no peer access

	src := buildLocal(t, rt, 0, dim3.Dim3{X: 3, Y: 3, Z: 3}, 1)
	dst := buildLocal(t, rt, 1, dim3.Dim3{X: 3, Y: 3, Z: 3}, 1)

	fillInterior(t, src, 0, func(x, y, z int) float64 { return float64(x + y + z) })

	v := direction.Vector{X: 0, Y: 1, Z: 0}
	c := NewPackMemcpyCopier(src, dst, v)
	require.Equal(t, PackMemcpy, c.Strategy())
	require.NoError(t, c.Allocate())
	require.NoError(t, c.Send(context.Background()))
	require.NoError(t, c.Wait())

	for x := 0; x < 3; x++ {
		for z := 0; z < 3; z++ {
			want := readAt(src, 0, x+1, 3, z+1)
			got := readAt(dst, 0, x+1, 0, z+1)
			require.Equal(t, want, got)
		}
	}
}

func TestRegionSenderRecverOverMessagingLibrary(t *testing.T) {
	cluster := fakempi.NewUniformCluster(2, 1)
	rt0 := fake.NewRuntime(1)
	rt1 := fake.NewRuntime(1)

	src := buildLocal(t, rt0, 0, dim3.Dim3{X: 3, Y: 3, Z: 3}, 1)
	dst := buildLocal(t, rt1, 0, dim3.Dim3{X: 3, Y: 3, Z: 3}, 1)

	fillInterior(t, src, 0, func(x, y, z int) float64 { return float64(100*x + 10*y + z) })

	v := direction.Vector{X: 1, Y: 0, Z: 0}
	sender := NewRegionSender(src, v, cluster.Comm(0), 1, 10, 20)
	recver := NewRegionRecver(dst, v, cluster.Comm(1), 0, 10, 20)

	require.Equal(t, RegionMessage, sender.Strategy())
	require.Equal(t, RegionMessage, recver.Strategy())
	require.NoError(t, sender.Allocate())
	require.NoError(t, recver.Allocate())

	require.NoError(t, recver.Recv(context.Background()))
	require.NoError(t, sender.Send(context.Background()))

	require.NoError(t, recver.Wait())
	require.NoError(t, sender.Wait())

	for y := 0; y < 3; y++ {
		for z := 0; z < 3; z++ {
			want := readAt(src, 0, 3, y+1, z+1)
			got := readAt(dst, 0, 0, y+1, z+1)
			require.Equal(t, want, got)
		}
	}
}
