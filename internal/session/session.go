// Package session drives a single record or load operation through its
// state machine:
//
//	record: IDLE -> CAPTURING -> TRIMMING -> ENCODING -> SAVED
//	load:   IDLE -> LOADING -> DECODING -> READY
//
// Any error moves the session to FAILED. Sessions are single-use; a call
// made out of order returns ErrInvalidState.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// State is a step in a session's lifecycle.
type State string

const (
	StateIdle      State = "IDLE"
	StateCapturing State = "CAPTURING"
	StateTrimming  State = "TRIMMING"
	StateEncoding  State = "ENCODING"
	StateSaved     State = "SAVED"
	StateLoading   State = "LOADING"
	StateDecoding  State = "DECODING"
	StateReady     State = "READY"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSaved || s == StateReady || s == StateFailed
}

var (
	// ErrStorageFailure wraps any error reported by the store.
	ErrStorageFailure = errors.New("storage failure")

	// ErrLoadTooShort means the decoded clip is shorter than the minimum
	// audible duration. The caller may simply try again.
	ErrLoadTooShort = errors.New("recording too short")

	// ErrCaptureActive means the device is already capturing.
	ErrCaptureActive = errors.New("capture already active")

	// ErrInvalidState is returned for a call made in the wrong state.
	ErrInvalidState = errors.New("invalid session state")
)

// OpError records the failed operation and the file it was working on.
type OpError struct {
	Op   string // start, capture, trim, encode, write, read, decode, validate
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func storageFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Metrics receives outcome measurements. observe.Metrics satisfies it.
type Metrics interface {
	CaptureSaved(ctx context.Context, audio time.Duration, discarded, bytes int, encode time.Duration)
	LoadDone(ctx context.Context, audio time.Duration)
	OpFailed(ctx context.Context, kind, op string)
}

// FileName builds a timestamped recording name such as
// "Audio_20260102T030405.0600Z.wav".
func FileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.wav", prefix, t.UTC().Format("20060102T150405.0000Z"))
}

func logf(l *log.Logger, format string, args ...any) {
	if l != nil {
		l.Printf(format, args...)
	}
}
