// Package fake is an in-process message-passing emulator: every
// "rank" is a goroutine-safe endpoint sharing Go channels with its
// peers inside the same process. It exists so the partitioner,
// transport planner, and exchange driver can be exercised end-to-end
// by tests without a real MPI installation.
package fake

import (
	"sync"

	"github.com/mengshanfeng/stencil-2/mpi"
)

type key struct {
	src, dst int
	tag      mpi.Tag
}

// Cluster is a fixed set of in-process ranks. hostIDs[i] names which
// host rank i runs on; SplitShared groups ranks sharing a host id.
type Cluster struct {
	mu      sync.Mutex
	hostIDs []int
	chans   map[key]chan []byte
}

// NewCluster builds a fake cluster of len(hostIDs) ranks, grouped into
// hosts by equal hostIDs values.
func NewCluster(hostIDs []int) *Cluster {
	return &Cluster{
		hostIDs: append([]int(nil), hostIDs...),
		chans:   make(map[key]chan []byte),
	}
}

// NewUniformCluster builds a fake cluster of n ranks, nPerHost of
// which share each host id.
func NewUniformCluster(n, nPerHost int) *Cluster {
	hostIDs := make([]int, n)
	for i := range hostIDs {
		hostIDs[i] = i / nPerHost
	}
	return NewCluster(hostIDs)
}

func (c *Cluster) chanFor(k key) chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chans[k]
	if !ok {
		ch = make(chan []byte, 64)
		c.chans[k] = ch
	}
	return ch
}

// Comm returns the mpi.Comm for the given world rank.
func (c *Cluster) Comm(rank int) mpi.Comm {
	return &comm{cluster: c, rank: rank}
}

type comm struct {
	cluster *Cluster
	rank    int
}

func (c *comm) Rank() int      { return c.rank }
func (c *comm) WorldSize() int { return len(c.cluster.hostIDs) }

func (c *comm) SplitShared() (int, int, []int, error) {
	myHost := c.cluster.hostIDs[c.rank]
	var colocated []int
	shmRank := -1
	for r, h := range c.cluster.hostIDs {
		if h == myHost {
			if r == c.rank {
				shmRank = len(colocated)
			}
			colocated = append(colocated, r)
		}
	}
	return shmRank, len(colocated), colocated, nil
}

func (c *comm) Barrier() error { return nil }

type sendHandle struct{}

func (sendHandle) Wait() error { return nil }

func (c *comm) ISend(data []byte, dstRank int, tag mpi.Tag) (mpi.SendHandle, error) {
	buf := append([]byte(nil), data...)
	k := key{src: c.rank, dst: dstRank, tag: tag}
	c.cluster.chanFor(k) <- buf
	return sendHandle{}, nil
}

type recvHandle struct {
	done chan error
}

func (h recvHandle) Wait() error { return <-h.done }

func (c *comm) IRecv(buf []byte, srcRank int, tag mpi.Tag) (mpi.RecvHandle, error) {
	k := key{src: srcRank, dst: c.rank, tag: tag}
	ch := c.cluster.chanFor(k)
	done := make(chan error, 1)
	go func() {
		data := <-ch
		n := copy(buf, data)
		if n != len(buf) {
			done <- errShortMessage
			return
		}
		done <- nil
	}()
	return recvHandle{done: done}, nil
}

var errShortMessage = shortMessageError{}

type shortMessageError struct{}

func (shortMessageError) Error() string { return "fake mpi: received message of unexpected length" }
