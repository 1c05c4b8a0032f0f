// Package fake is an in-process accelerator runtime emulator: every
// "device" is a tag on ordinary host memory. It exists so the
// planner, transports, and exchange driver can be exercised by tests
// without a real GPU, the same way the reference engine's own test
// suites stand up fakes for the collaborators they don't own.
package fake

import (
	"context"
	"sync"

	"github.com/mengshanfeng/stencil-2/accel"
)

type buffer struct {
	data []byte
}

func (b *buffer) Bytes() []byte { return b.data }
func (b *buffer) Len() int      { return len(b.data) }

type stream struct{}

func (stream) Synchronize() error { return nil }

// Device is a fake accelerator. Peer access between two Devices from
// the same Runtime succeeds unless Block has been called for that
// pair, which tests use that need to exercise the PackMemcpyCopier path.
type Device struct {
	id      int
	rt      *Runtime
	mu      sync.Mutex
	blocked map[int]bool // dst device id -> force failure
}

func (d *Device) ID() int { return d.id }

func (d *Device) MallocBytes(n int) (accel.Buffer, error) {
	return &buffer{data: make([]byte, n)}, nil
}

func (d *Device) MallocUnified(n int) (accel.Buffer, error) {
	return &buffer{data: make([]byte, n)}, nil
}

func (d *Device) Free(b accel.Buffer) error { return nil }

func (d *Device) MemcpyAsync(ctx context.Context, dst, src accel.Buffer, n int, s accel.Stream) error {
	copy(dst.Bytes()[:n], src.Bytes()[:n])
	return nil
}

func (d *Device) EnablePeerAccess(dstDeviceID int) (accel.PeerAccessResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blocked != nil && d.blocked[dstDeviceID] {
		return accel.InvalidDevice, nil
	}
	if dstDeviceID < 0 || dstDeviceID >= d.rt.DeviceCount() {
		return accel.InvalidDevice, nil
	}
	return accel.Ok, nil
}

func (d *Device) StreamCreate() (accel.Stream, error) { return stream{}, nil }

// Block forces EnablePeerAccess(dstDeviceID) to report InvalidDevice,
// simulating a host without a direct peer link.
func (d *Device) Block(dstDeviceID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blocked == nil {
		d.blocked = make(map[int]bool)
	}
	d.blocked[dstDeviceID] = true
}

// Runtime is a fake Runtime hosting a fixed number of fake Devices.
type Runtime struct {
	devices []*Device
	current int
}

func NewRuntime(deviceCount int) *Runtime {
	rt := &Runtime{}
	for i := 0; i < deviceCount; i++ {
		rt.devices = append(rt.devices, &Device{id: i, rt: rt})
	}
	return rt
}

func (rt *Runtime) DeviceCount() int { return len(rt.devices) }

func (rt *Runtime) SetDevice(id int) error {
	rt.current = id
	return nil
}

func (rt *Runtime) Device(id int) (accel.Device, error) {
	return rt.devices[id], nil
}

// RawDevice returns the concrete fake Device, for tests that need to
// call Block.
func (rt *Runtime) RawDevice(id int) *Device {
	return rt.devices[id]
}
