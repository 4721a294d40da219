// Package device defines the capture device contract the recorder relies
// on and ships a simulated tone source so the whole record/save/load
// pipeline can run without audio hardware.
package device

import (
	"context"
	"errors"
	"time"

	"github.com/large-farva/voicememo/internal/wav"
)

// ErrBusy is returned by Start while a capture is already running. The
// underlying hardware is a singleton; a second capture fails fast rather
// than queueing behind the first.
var ErrBusy = errors.New("capture device busy")

// ErrNotStarted is returned by Stop when no capture is running.
var ErrNotStarted = errors.New("capture device not started")

// Device is a source of interleaved float samples.
//
// Start pre-allocates a buffer sized for max and begins filling it from
// the front. Filling reports whether the device is still writing into
// that buffer; it turns false once the buffer is full. Stop ends the
// capture and hands back the whole pre-allocated buffer, including any
// tail that was never written.
type Device interface {
	Format() wav.Format
	Start(ctx context.Context, max time.Duration) error
	Filling() bool
	Stop() (wav.Buffer, error)
}
