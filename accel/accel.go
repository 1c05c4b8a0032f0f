// Package accel names the accelerator runtime interfaces this module
// consumes: device enumeration, allocation, async memcpy, streams,
// and peer-access negotiation. The concrete runtime (CUDA, ROCm, a
// unified-memory emulator, ...) is supplied by the embedding program;
// this module only ever calls through these interfaces.
package accel

import "context"

// PeerAccessResult classifies the outcome of EnablePeerAccess, matching
// the four-way split named by the specification.
type PeerAccessResult int

const (
	Ok PeerAccessResult = iota
	AlreadyEnabled
	InvalidDevice
	Other
)

// Buffer is an opaque accelerator-resident allocation. Bytes exposes
// the allocation as a host-addressable byte slice; for a true
// device-only allocation a real runtime would restrict this to
// unified/host-mode buffers, but every strategy in this module reaches
// the data either via Bytes (pack/unpack paths) or via MemcpyAsync
// (same-accelerator / peer-access paths), never both on the same byte
// range in the same round.
type Buffer interface {
	Bytes() []byte
	Len() int
}

// Stream is an ordered sequence of asynchronous accelerator
// operations.
type Stream interface {
	Synchronize() error
}

// Device is one accelerator attached to the local host.
type Device interface {
	ID() int
	MallocBytes(n int) (Buffer, error)
	MallocUnified(n int) (Buffer, error)
	Free(b Buffer) error
	MemcpyAsync(ctx context.Context, dst, src Buffer, n int, s Stream) error
	EnablePeerAccess(dstDeviceID int) (PeerAccessResult, error)
	StreamCreate() (Stream, error)
}

// Runtime enumerates and selects accelerators on the local host.
type Runtime interface {
	DeviceCount() int
	SetDevice(id int) error
	Device(id int) (Device, error)
}

// ProbePeerAccess drives EnablePeerAccess pairwise across the given
// local accelerators and folds "already enabled" into true, matching
// §4.G step 3: the diagonal is always true, and a pair where
// enabling fails with InvalidDevice or Other becomes false.
func ProbePeerAccess(devices []Device) [][]bool {
	n := len(devices)
	matrix := make([][]bool, n)
	for i := range matrix {
		matrix[i] = make([]bool, n)
	}
	for i, di := range devices {
		matrix[i][i] = true
		for j, dj := range devices {
			if i == j {
				continue
			}
			res, err := di.EnablePeerAccess(dj.ID())
			matrix[i][j] = err == nil && (res == Ok || res == AlreadyEnabled)
		}
	}
	return matrix
}
