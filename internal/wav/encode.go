package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the length of the canonical RIFF/WAVE header with a
	// 16-byte fmt sub-chunk and no extra chunks.
	HeaderSize = 44

	// BitsPerSample is the only sample width this package reads or writes.
	BitsPerSample = 16

	bytesPerSample = BitsPerSample / 8
	formatPCM      = 1
	fmtChunkSize   = 16

	// pcmScale maps [-1, 1] onto the int16 range. The decoder divides by
	// the same factor so quantized buffers survive a round trip exactly.
	pcmScale = 32767

	// maxDataSize is the largest payload whose RIFF size (36 + data) still
	// fits in a uint32.
	maxDataSize = math.MaxUint32 - 36
)

// header mirrors the 44-byte layout on the wire, field for field.
type header struct {
	// RIFF header
	RiffID   [4]byte
	RiffSize uint32
	WaveID   [4]byte
	// fmt sub-chunk
	FmtID       [4]byte
	FmtSize     uint32
	AudioFormat uint16
	NumChannels uint16
	SampleRate  uint32
	ByteRate    uint32
	BlockAlign  uint16
	BitsPerSamp uint16
	// data sub-chunk
	DataID   [4]byte
	DataSize uint32
}

func newHeader(f Format, dataSize uint32) header {
	blockAlign := uint16(f.Channels * bytesPerSample)
	return header{
		RiffID:      [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:    36 + dataSize,
		WaveID:      [4]byte{'W', 'A', 'V', 'E'},
		FmtID:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:     fmtChunkSize,
		AudioFormat: formatPCM,
		NumChannels: uint16(f.Channels),
		SampleRate:  uint32(f.SampleRate),
		ByteRate:    uint32(f.SampleRate) * uint32(blockAlign),
		BlockAlign:  blockAlign,
		BitsPerSamp: BitsPerSample,
		DataID:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:    dataSize,
	}
}

// Encode renders the first validSamples samples of buf as a WAV file.
//
// validSamples is clamped to [0, len(buf.Samples)] and then rounded down
// to a whole frame, so a trim result that overshoots the buffer encodes
// exactly like one that covers it.
func Encode(buf Buffer, validSamples int) ([]byte, error) {
	payload, err := payloadSamples(buf, validSamples)
	if err != nil {
		return nil, err
	}

	out := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(payload)*bytesPerSample))
	if err := write(out, buf.Format(), payload); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func payloadSamples(buf Buffer, validSamples int) ([]float32, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	n := clampValid(validSamples, len(buf.Samples), buf.Channels)
	if uint64(n)*bytesPerSample > maxDataSize {
		return nil, fmt.Errorf("%w: %d samples exceed the 4 GiB wav limit", ErrInvalidInput, n)
	}
	return buf.Samples[:n], nil
}

// clampValid bounds n to [0, total] and drops any partial trailing frame.
func clampValid(n, total, channels int) int {
	if n < 0 {
		n = 0
	}
	if n > total {
		n = total
	}
	return n - n%channels
}

func write(w io.Writer, f Format, samples []float32) error {
	h := newHeader(f, uint32(len(samples)*bytesPerSample))
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	const chunkSamples = 4096
	chunk := make([]byte, chunkSamples*bytesPerSample)
	for len(samples) > 0 {
		n := min(len(samples), chunkSamples)
		for i, s := range samples[:n] {
			binary.LittleEndian.PutUint16(chunk[i*bytesPerSample:], uint16(FloatToPCM(s)))
		}
		if _, err := w.Write(chunk[:n*bytesPerSample]); err != nil {
			return fmt.Errorf("write wav data: %w", err)
		}
		samples = samples[n:]
	}
	return nil
}

// FloatToPCM converts a normalized sample to int16 as round(s*32767),
// clamped so out-of-range input saturates instead of wrapping.
func FloatToPCM(s float32) int16 {
	v := math.Round(float64(s) * pcmScale)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// PCMToFloat converts an int16 sample back to [-1, 1]. The one value
// below -32767 saturates to -1.
func PCMToFloat(v int16) float32 {
	if v < -pcmScale {
		return -1
	}
	return float32(v) / pcmScale
}
