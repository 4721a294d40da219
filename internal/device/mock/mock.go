// Package mock provides a scripted capture device for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/large-farva/voicememo/internal/device"
	"github.com/large-farva/voicememo/internal/wav"
)

// Device is a device.Device whose buffer contents are supplied up front.
// Start allocates a buffer for the requested max duration and copies
// Fill into its head; Filling stays true until SetFilling(false) or Stop.
type Device struct {
	// DeviceFormat is returned by Format.
	DeviceFormat wav.Format

	// Fill is copied into the front of each new buffer.
	Fill []float32

	// StartErr, when set, is returned by Start.
	StartErr error

	// StopErr, when set, is returned by Stop.
	StopErr error

	mu      sync.Mutex
	active  bool
	filling bool
	buf     wav.Buffer
	starts  int
	lastMax time.Duration
}

var _ device.Device = (*Device)(nil)

func (d *Device) Format() wav.Format { return d.DeviceFormat }

func (d *Device) Start(_ context.Context, max time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.StartErr != nil {
		return d.StartErr
	}
	if d.active {
		return device.ErrBusy
	}
	d.buf = wav.NewBuffer(d.DeviceFormat, max)
	copy(d.buf.Samples, d.Fill)
	d.active = true
	d.filling = true
	d.starts++
	d.lastMax = max
	return nil
}

func (d *Device) Filling() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filling
}

// SetFilling simulates the device reaching the end of its buffer.
func (d *Device) SetFilling(v bool) {
	d.mu.Lock()
	d.filling = v
	d.mu.Unlock()
}

func (d *Device) Stop() (wav.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return wav.Buffer{}, device.ErrNotStarted
	}
	d.active = false
	d.filling = false
	if d.StopErr != nil {
		return wav.Buffer{}, d.StopErr
	}
	buf := d.buf
	d.buf = wav.Buffer{}
	return buf, nil
}

// Active reports whether a capture is running.
func (d *Device) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Starts returns how many times Start succeeded and the last max passed.
func (d *Device) Starts() (int, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.lastMax
}
