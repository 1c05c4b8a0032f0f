// Package domain implements DistributedDomain: the top-level object a
// caller constructs, registers data channels on, realizes, and then
// drives through repeated exchange rounds. It ties together the
// partitioner, the per-accelerator LocalDomains, and the transport
// planner, and owns the concurrent exchange driver.
package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mengshanfeng/stencil-2/accel"
	"github.com/mengshanfeng/stencil-2/dim3"
	"github.com/mengshanfeng/stencil-2/direction"
	"github.com/mengshanfeng/stencil-2/herrors"
	"github.com/mengshanfeng/stencil-2/localdomain"
	"github.com/mengshanfeng/stencil-2/log"
	"github.com/mengshanfeng/stencil-2/metrics"
	"github.com/mengshanfeng/stencil-2/mpi"
	"github.com/mengshanfeng/stencil-2/partition"
	"github.com/mengshanfeng/stencil-2/storage"
	"github.com/mengshanfeng/stencil-2/transport"
)

// DataHandle is a dense, typed handle to a registered data channel,
// returned by RegisterData. T is never stored at runtime; it only
// disambiguates which Array accessor a caller should reach for.
type DataHandle[T any] struct {
	channel localdomain.Channel
}

// Channel returns the untyped channel handle underlying h.
func (h DataHandle[T]) Channel() localdomain.Channel { return h.channel }

// RegisterData declares a new data channel of element type T on d.
// Must be called before Realize. Go methods cannot carry their own
// type parameters, so this is a package-level generic function
// rather than a method on DistributedDomain.
func RegisterData[T any](d *DistributedDomain) (DataHandle[T], error) {
	dtype, err := dtypeOf[T]()
	if err != nil {
		return DataHandle[T]{}, err
	}
	ch, err := d.registerData(dtype)
	if err != nil {
		return DataHandle[T]{}, err
	}
	return DataHandle[T]{channel: ch}, nil
}

// Data returns ld's backing buffer for h's channel as a []T.
func Data[T any](ld *localdomain.LocalDomain, h DataHandle[T]) []T {
	return storage.As[T](ld.Array(h.channel))
}

func dtypeOf[T any]() (storage.DataType, error) {
	var zero T
	switch any(zero).(type) {
	case float64:
		return storage.F64, nil
	case float32:
		return storage.F32, nil
	case int32:
		return storage.I32, nil
	case int64:
		return storage.I64, nil
	case int16:
		return storage.I16, nil
	case int8:
		return storage.I8, nil
	case uint8:
		return storage.U8, nil
	default:
		return 0, herrors.NewConfigError("domain: unsupported channel element type %T", zero)
	}
}

// DistributedDomain is the public entry point: it owns the local
// accelerators this rank is responsible for, the partition describing
// the whole cluster, and the per-subdomain communication plan.
type DistributedDomain struct {
	id uuid.UUID

	comm      mpi.Comm
	rank      int
	worldSize int
	shmRank   int
	shmSize   int
	colocated map[int]bool

	runtime accel.Runtime

	size   dim3.Dim3
	radius int

	localGpus  []accel.Device
	peerAccess [][]bool

	partition *partition.Partition

	dtypes   []storage.DataType
	realized bool

	locals    []*localdomain.LocalDomain
	domainIdx []int

	senders   []direction.Map[transport.Sender]
	receivers []direction.Map[transport.Receiver]

	metrics *metrics.Registry
}

// New constructs a DistributedDomain for a logical domain of extent
// (x,y,z), using comm for rank discovery and peer coordination and
// runtime for local accelerator enumeration. Radius defaults to 1;
// call SetRadius before Realize to change it.
func New(comm mpi.Comm, runtime accel.Runtime, x, y, z int) (*DistributedDomain, error) {
	if x < 1 || y < 1 || z < 1 {
		return nil, herrors.NewConfigError("domain: size components must be >= 1, got (%d,%d,%d)", x, y, z)
	}

	shmRank, shmSize, colocatedList, err := comm.SplitShared()
	if err != nil {
		return nil, herrors.NewResourceError(err, "domain: split shared communicator")
	}
	colocated := make(map[int]bool, len(colocatedList))
	for _, r := range colocatedList {
		colocated[r] = true
	}

	d := &DistributedDomain{
		id:        uuid.New(),
		comm:      comm,
		rank:      comm.Rank(),
		worldSize: comm.WorldSize(),
		shmRank:   shmRank,
		shmSize:   shmSize,
		colocated: colocated,
		runtime:   runtime,
		size:      dim3.Dim3{X: x, Y: y, Z: z},
		radius:    1,
		metrics:   metrics.Default,
	}

	if err := d.assignLocalGpus(); err != nil {
		return nil, err
	}
	if err := d.probePeerAccess(); err != nil {
		return nil, err
	}

	p, err := partition.New(d.size, d.worldSize, len(d.localGpus))
	if err != nil {
		return nil, err
	}
	d.partition = p

	log.Infof("domain %s: rank=%d/%d shm=%d/%d localGpus=%d rankDim=%v gpuDim=%v",
		d.id, d.rank, d.worldSize, d.shmRank, d.shmSize, len(d.localGpus), p.RankDim(), p.GpuDim())

	return d, nil
}

func (d *DistributedDomain) assignLocalGpus() error {
	devCount := d.runtime.DeviceCount()
	if devCount < 1 {
		return herrors.NewResourceError(fmt.Errorf("no accelerators visible on host"), "domain: DeviceCount")
	}

	var ids []int
	if d.shmSize <= devCount {
		for g := 0; g < devCount; g++ {
			if g%d.shmSize == d.shmRank {
				ids = append(ids, g)
			}
		}
	} else {
		ids = []int{d.shmRank % devCount}
	}

	devices := make([]accel.Device, len(ids))
	for i, g := range ids {
		dev, err := d.runtime.Device(g)
		if err != nil {
			return herrors.NewResourceError(err, "domain: acquire local accelerator")
		}
		devices[i] = dev
	}
	d.localGpus = devices
	return nil
}

func (d *DistributedDomain) probePeerAccess() error {
	devCount := d.runtime.DeviceCount()
	all := make([]accel.Device, devCount)
	for g := 0; g < devCount; g++ {
		dev, err := d.runtime.Device(g)
		if err != nil {
			return herrors.NewResourceError(err, "domain: probe peer access")
		}
		all[g] = dev
	}
	d.peerAccess = accel.ProbePeerAccess(all)
	return nil
}

// SetRadius overrides the halo thickness before Realize. radius == 0
// is rejected: its behavior is unspecified upstream.
func (d *DistributedDomain) SetRadius(radius int) error {
	if d.realized {
		return herrors.NewConfigError("domain: SetRadius called after Realize")
	}
	if radius < 1 {
		return herrors.NewConfigError("domain: radius must be >= 1, got %d", radius)
	}
	d.radius = radius
	return nil
}

func (d *DistributedDomain) registerData(dtype storage.DataType) (localdomain.Channel, error) {
	if d.realized {
		return 0, herrors.NewConfigError("domain: RegisterData called after Realize")
	}
	d.dtypes = append(d.dtypes, dtype)
	return localdomain.Channel(len(d.dtypes) - 1), nil
}

// Realize allocates every local subdomain and builds the 26-direction
// communication plan for each. unified selects unified-memory
// allocation over plain device allocation.
func (d *DistributedDomain) Realize(unified bool) error {
	if d.realized {
		return herrors.NewConfigError("domain: Realize called twice")
	}
	mode := storage.Device
	if unified {
		mode = storage.Unified
	}

	locals := make([]*localdomain.LocalDomain, len(d.localGpus))
	domainIdx := make([]int, len(d.localGpus))

	for i, dev := range d.localGpus {
		idx := d.partition.DomIdx(d.rank, i)
		extents := d.partition.LocalDomainSize(idx)

		ld, err := localdomain.New(extents, d.radius, dev)
		if err != nil {
			releaseAll(locals[:i])
			return err
		}
		for _, dtype := range d.dtypes {
			if _, err := ld.RegisterData(dtype); err != nil {
				releaseAll(locals[:i])
				return err
			}
		}
		if err := ld.Realize(mode); err != nil {
			releaseAll(locals[:i])
			return err
		}

		locals[i] = ld
		domainIdx[i] = idx
	}
	d.locals = locals
	d.domainIdx = domainIdx

	if err := d.buildPlan(); err != nil {
		releaseAll(locals)
		return err
	}

	d.realized = true
	log.Infof("domain %s: realized %d local subdomain(s)", d.id, len(locals))
	return nil
}

func releaseAll(locals []*localdomain.LocalDomain) {
	for _, ld := range locals {
		if ld != nil {
			ld.Release()
		}
	}
}

// buildPlan constructs, for every local subdomain and every nonzero
// direction, exactly one sender and (iff the source rank differs from
// this rank) one receiver. It must run after every local subdomain is
// realized, since same-rank transports address peer LocalDomains
// directly.
func (d *DistributedDomain) buildPlan() error {
	domDim := d.partition.DomDim()

	senders := make([]direction.Map[transport.Sender], len(d.locals))
	receivers := make([]direction.Map[transport.Receiver], len(d.locals))

	for i, ld := range d.locals {
		myIdx := d.domainIdx[i]
		myCoord := dim3.Unindex(myIdx, domDim)

		var sm direction.Map[transport.Sender]
		var rm direction.Map[transport.Receiver]

		for _, v := range direction.Neighbors() {
			dstIdx := myCoord.Add(v).Wrap(domDim).Index(domDim)
			srcIdx := myCoord.Sub(v).Wrap(domDim).Index(domDim)

			dstRank := d.partition.GetRank(dstIdx)
			dstGpu := d.partition.GetGpu(dstIdx)
			srcRank := d.partition.GetRank(srcIdx)

			sender, err := d.makeSender(ld, v, myIdx, dstIdx, dstRank, dstGpu)
			if err != nil {
				return err
			}
			if err := sender.Allocate(); err != nil {
				return herrors.NewResourceError(err, "domain: allocate sender")
			}
			sm.Set(v, sender)

			if srcRank != d.rank {
				recver := transport.NewRegionRecver(ld, v, d.comm, srcRank, srcIdx, myIdx)
				if err := recver.Allocate(); err != nil {
					return herrors.NewResourceError(err, "domain: allocate receiver")
				}
				rm.Set(v, recver)
			}
		}
		senders[i] = sm
		receivers[i] = rm
	}

	d.senders = senders
	d.receivers = receivers
	return nil
}

func (d *DistributedDomain) makeSender(src *localdomain.LocalDomain, v direction.Vector, myIdx, dstIdx, dstRank, dstGpu int) (transport.Sender, error) {
	if dstRank == d.rank {
		if dstGpu < 0 || dstGpu >= len(d.locals) {
			return nil, herrors.NewTopologyError("domain: no local subdomain at gpu slot %d on rank %d", dstGpu, d.rank)
		}
		dstLocal := d.locals[dstGpu]
		if d.peerAccess[src.Device().ID()][dstLocal.Device().ID()] {
			return transport.NewRegionCopier(src, dstLocal, v), nil
		}
		return transport.NewPackMemcpyCopier(src, dstLocal, v), nil
	}
	return transport.NewRegionSender(src, v, d.comm, dstRank, myIdx, dstIdx), nil
}

// Exchange runs one complete halo-exchange round: a barrier, then
// concurrent issue of every local subdomain's 26 sends and receives,
// an issue barrier, a structured receivers-then-senders wait, and a
// closing barrier. It returns only once every local halo is populated
// and every send buffer is free to reuse.
func (d *DistributedDomain) Exchange(ctx context.Context) error {
	if !d.realized {
		return herrors.NewConfigError("domain: Exchange called before Realize")
	}

	if err := d.comm.Barrier(); err != nil {
		return herrors.NewTransportError(err, "domain: pre-exchange barrier")
	}

	issueGroup, issueCtx := errgroup.WithContext(ctx)
	for i := range d.locals {
		i := i
		issueGroup.Go(func() error { return d.issue(issueCtx, i) })
	}
	if err := issueGroup.Wait(); err != nil {
		return err
	}

	if err := d.comm.Barrier(); err != nil {
		return herrors.NewTransportError(err, "domain: issue barrier")
	}

	waitGroup, waitCtx := errgroup.WithContext(ctx)
	for i := range d.locals {
		i := i
		waitGroup.Go(func() error { return d.waitRound(waitCtx, i) })
	}
	if err := waitGroup.Wait(); err != nil {
		return err
	}

	if err := d.comm.Barrier(); err != nil {
		return herrors.NewTransportError(err, "domain: post-exchange barrier")
	}

	d.metrics.IncRounds()
	return nil
}

func (d *DistributedDomain) issue(ctx context.Context, i int) error {
	for _, v := range direction.Neighbors() {
		if recv, ok := d.receivers[i].Get(v); ok {
			if err := recv.Recv(ctx); err != nil {
				return err
			}
		}
		sender, ok := d.senders[i].Get(v)
		if !ok {
			return herrors.NewTopologyError("domain: missing sender for subdomain %d direction %v", i, v)
		}
		if err := sender.Send(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *DistributedDomain) waitRound(ctx context.Context, i int) error {
	for _, v := range direction.Neighbors() {
		if recv, ok := d.receivers[i].Get(v); ok {
			if err := recv.Wait(); err != nil {
				return err
			}
		}
	}
	for _, v := range direction.Neighbors() {
		sender, ok := d.senders[i].Get(v)
		if !ok {
			continue
		}
		if err := sender.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Domains returns the local subdomains this rank owns, in the same
// order their accelerators were assigned.
func (d *DistributedDomain) Domains() []*localdomain.LocalDomain { return d.locals }

// Partition returns the cluster-wide partitioner this domain was
// realized against.
func (d *DistributedDomain) Partition() *partition.Partition { return d.partition }

// Metrics returns a snapshot of bytes-moved and rounds-completed
// counters.
func (d *DistributedDomain) Metrics() metrics.Snapshot { return d.metrics.Snapshot() }

// String renders rank, local accelerator count, and partition shape,
// for logging.
func (d *DistributedDomain) String() string {
	return fmt.Sprintf("DistributedDomain{id=%s rank=%d/%d shm=%d/%d localGpus=%d rankDim=%v gpuDim=%v}",
		d.id, d.rank, d.worldSize, d.shmRank, d.shmSize, len(d.localGpus), d.partition.RankDim(), d.partition.GpuDim())
}

// Close releases every local subdomain's accelerator allocations.
func (d *DistributedDomain) Close() error {
	var firstErr error
	for _, ld := range d.locals {
		if err := ld.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
