package wav

import "errors"

var (
	// ErrMalformedHeader means the RIFF/WAVE/fmt /data structure is
	// missing, inconsistent, or disagrees with the bytes that follow.
	ErrMalformedHeader = errors.New("malformed wav header")

	// ErrUnsupportedFormat means the stream is not 16-bit linear PCM.
	ErrUnsupportedFormat = errors.New("unsupported wav format")

	// ErrTruncatedFile means the data chunk declares more bytes than exist.
	ErrTruncatedFile = errors.New("truncated wav file")

	// ErrInvalidInput means a buffer handed to the encoder breaks the
	// Buffer invariants.
	ErrInvalidInput = errors.New("invalid sample buffer")
)
