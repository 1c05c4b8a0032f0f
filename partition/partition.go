// Package partition implements the topology-aware, prime-factor /
// cubeness partitioner: it maps a logical 3D domain onto a two-level
// rank x accelerator grid and answers owner/index queries against it.
package partition

import (
	"github.com/mengshanfeng/stencil-2/dim3"
	"github.com/mengshanfeng/stencil-2/herrors"
)

// Partition is immutable after construction.
type Partition struct {
	size      dim3.Dim3
	rankDim   dim3.Dim3
	gpuDim    dim3.Dim3
	domDim    dim3.Dim3 // rankDim * gpuDim
	baseLocal dim3.Dim3 // ceil(size / domDim)
	rem       dim3.Dim3 // size mod domDim
}

// New builds the partition for a logical domain of extent size spread
// across nRanks ranks of nGpus accelerators each.
func New(size dim3.Dim3, nRanks, nGpus int) (*Partition, error) {
	if nRanks < 1 {
		return nil, herrors.NewConfigError("partition: nRanks must be >= 1, got %d", nRanks)
	}
	if nGpus < 1 {
		return nil, herrors.NewConfigError("partition: nGpus must be >= 1, got %d", nGpus)
	}
	if size.X < 1 || size.Y < 1 || size.Z < 1 {
		return nil, herrors.NewConfigError("partition: size components must be >= 1, got %v", size)
	}

	cur := size
	rankDim, cur := applyFactors(cur, dim3.PrimeFactors(nRanks))
	gpuDim, cur := applyFactors(cur, dim3.PrimeFactors(nGpus))

	domDim := rankDim.Mul(gpuDim)
	baseLocal := dim3.DivCeilDim3(size, domDim)
	rem := size.Mod(domDim)

	p := &Partition{
		size:      size,
		rankDim:   rankDim,
		gpuDim:    gpuDim,
		domDim:    domDim,
		baseLocal: baseLocal,
		rem:       rem,
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Partition) validate() error {
	n := p.domDim.Flatten()
	for d := 0; d < n; d++ {
		ext := p.LocalDomainSize(d)
		if ext.X < 1 || ext.Y < 1 || ext.Z < 1 {
			return herrors.NewTopologyError(
				"partition: domain %d would have a zero-sized subdomain %v (size=%v, rankDim=%v, gpuDim=%v)",
				d, ext, p.size, p.rankDim, p.gpuDim)
		}
	}
	return nil
}

// applyFactors greedily multiplies dim's axes by the given factors
// (largest first), each time picking the axis whose ceiling-divided
// candidate extent maximizes cubeness, tie-broken x > y > z.
func applyFactors(cur dim3.Dim3, factors []int) (dim dim3.Dim3, newCur dim3.Dim3) {
	dim = dim3.Unit
	for _, f := range factors {
		cx := dim3.DivCeil(cur.X, f)
		cy := dim3.DivCeil(cur.Y, f)
		cz := dim3.DivCeil(cur.Z, f)

		cubeX := dim3.Cubeness(cx, cur.Y, cur.Z)
		cubeY := dim3.Cubeness(cur.X, cy, cur.Z)
		cubeZ := dim3.Cubeness(cur.X, cur.Y, cz)

		switch {
		case cubeX >= cubeY && cubeX >= cubeZ:
			dim.X *= f
			cur.X = cx
		case cubeY >= cubeX && cubeY >= cubeZ:
			dim.Y *= f
			cur.Y = cy
		default:
			dim.Z *= f
			cur.Z = cz
		}
	}
	return dim, cur
}

// Size returns the logical global extent.
func (p *Partition) Size() dim3.Dim3 { return p.size }

// RankDim returns the 3D rank grid.
func (p *Partition) RankDim() dim3.Dim3 { return p.rankDim }

// GpuDim returns the 3D per-rank accelerator grid.
func (p *Partition) GpuDim() dim3.Dim3 { return p.gpuDim }

// DomDim returns rankDim * gpuDim, the shape of the combined domain
// index space.
func (p *Partition) DomDim() dim3.Dim3 { return p.domDim }

// NumDomains returns the total number of local subdomains across the
// whole cluster.
func (p *Partition) NumDomains() int { return p.domDim.Flatten() }

// GetRank returns the owning rank of domain index d.
func (p *Partition) GetRank(d int) int {
	domCoord := dim3.Unindex(d, p.domDim)
	rankCoord := domCoord.Div(p.gpuDim)
	return rankCoord.Index(p.rankDim)
}

// GetGpu returns the owning rank-local accelerator index of domain
// index d.
func (p *Partition) GetGpu(d int) int {
	domCoord := dim3.Unindex(d, p.domDim)
	gpuCoord := domCoord.Mod(p.gpuDim)
	return gpuCoord.Index(p.gpuDim)
}

// GpuIdx unflattens a rank-local accelerator index into its 3D
// coordinate within gpuDim.
func (p *Partition) GpuIdx(i int) dim3.Dim3 { return dim3.Unindex(i, p.gpuDim) }

// RankIdx unflattens a rank into its 3D coordinate within rankDim.
func (p *Partition) RankIdx(r int) dim3.Dim3 { return dim3.Unindex(r, p.rankDim) }

// DomIdx computes the flattened domain index owned by (rank, gpu).
func (p *Partition) DomIdx(rank, gpu int) int {
	domCoord := p.RankIdx(rank).Mul(p.gpuDim).Add(p.GpuIdx(gpu))
	return domCoord.Index(p.domDim)
}

// LocalDomainSize returns the nominal interior extent (radius excluded)
// owned by domain index d.
func (p *Partition) LocalDomainSize(d int) dim3.Dim3 {
	domCoord := dim3.Unindex(d, p.domDim)
	ext := p.baseLocal
	if p.rem.X != 0 && domCoord.X >= p.rem.X {
		ext.X--
	}
	if p.rem.Y != 0 && domCoord.Y >= p.rem.Y {
		ext.Y--
	}
	if p.rem.Z != 0 && domCoord.Z >= p.rem.Z {
		ext.Z--
	}
	return ext
}
