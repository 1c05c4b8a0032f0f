// Package mpi names the message-passing library interfaces this
// module consumes: rank/world-size discovery, shared-memory
// sub-communicator splitting (which also returns the co-located world
// ranks; there is no separate allgather), barrier, and non-blocking
// byte-level send/recv. The concrete library (MPI,
// NCCL's bootstrap, a test fake, ...) is supplied by the embedding
// program.
package mpi

// Tag identifies a message uniquely within a round: the
// (srcIdx, dstIdx, direction, channel) tuple the planner encodes.
type Tag struct {
	SrcIdx    int
	DstIdx    int
	Direction int // direction.Index(v)
	Channel   int
}

// SendHandle is returned by a non-blocking send; Wait blocks until
// the local send buffer is free to reuse.
type SendHandle interface {
	Wait() error
}

// RecvHandle is returned by a non-blocking recv; Wait blocks until
// the destination buffer is populated.
type RecvHandle interface {
	Wait() error
}

// Comm is one rank's endpoint into the cluster-wide communicator.
type Comm interface {
	Rank() int
	WorldSize() int

	// SplitShared groups world ranks that share memory (i.e. run on
	// the same host) and returns this rank's position within that
	// group, the group's size, and the sorted list of world ranks in
	// the group (including this rank).
	SplitShared() (shmRank, shmSize int, colocated []int, err error)

	Barrier() error

	ISend(data []byte, dstRank int, tag Tag) (SendHandle, error)
	IRecv(buf []byte, srcRank int, tag Tag) (RecvHandle, error)
}
