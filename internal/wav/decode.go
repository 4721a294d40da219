package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Info is the metadata carried by a WAV header.
type Info struct {
	SampleRate    int           `json:"sample_rate"`
	Channels      int           `json:"channels"`
	BitsPerSample int           `json:"bits_per_sample"`
	DataSize      int           `json:"data_size_bytes"`
	Frames        int           `json:"frames"`
	Duration      time.Duration `json:"duration_ns"`
}

// Format returns the sample rate and channel count described by the header.
func (i Info) Format() Format {
	return Format{SampleRate: i.SampleRate, Channels: i.Channels}
}

// Decode parses a canonical 16-bit PCM WAV stream into a Buffer. It never
// returns a partially filled buffer alongside an error.
func Decode(data []byte) (Buffer, error) {
	info, err := Inspect(data)
	if err != nil {
		return Buffer{}, err
	}

	payload := data[HeaderSize : HeaderSize+info.DataSize]
	samples := make([]float32, info.DataSize/bytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(payload[i*bytesPerSample:]))
		samples[i] = PCMToFloat(v)
	}

	return Buffer{
		Samples:    samples,
		Channels:   info.Channels,
		SampleRate: info.SampleRate,
	}, nil
}

// Inspect validates a WAV stream exactly as Decode does and returns its
// metadata without converting any samples.
func Inspect(data []byte) (Info, error) {
	if len(data) < HeaderSize {
		return Info{}, fmt.Errorf("%w: need at least %d bytes, got %d", ErrMalformedHeader, HeaderSize, len(data))
	}

	var h header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	switch {
	case string(h.RiffID[:]) != "RIFF":
		return Info{}, fmt.Errorf("%w: missing RIFF marker", ErrMalformedHeader)
	case string(h.WaveID[:]) != "WAVE":
		return Info{}, fmt.Errorf("%w: missing WAVE marker", ErrMalformedHeader)
	case string(h.FmtID[:]) != "fmt ":
		return Info{}, fmt.Errorf("%w: missing fmt chunk", ErrMalformedHeader)
	case string(h.DataID[:]) != "data":
		return Info{}, fmt.Errorf("%w: missing data chunk", ErrMalformedHeader)
	case h.FmtSize != fmtChunkSize:
		return Info{}, fmt.Errorf("%w: fmt chunk size %d, want %d", ErrMalformedHeader, h.FmtSize, fmtChunkSize)
	}

	if h.AudioFormat != formatPCM {
		return Info{}, fmt.Errorf("%w: audio format %d (only PCM is supported)", ErrUnsupportedFormat, h.AudioFormat)
	}
	if h.BitsPerSamp != BitsPerSample {
		return Info{}, fmt.Errorf("%w: %d bits per sample (only 16-bit is supported)", ErrUnsupportedFormat, h.BitsPerSamp)
	}

	if h.NumChannels == 0 {
		return Info{}, fmt.Errorf("%w: zero channels", ErrMalformedHeader)
	}
	if h.SampleRate == 0 {
		return Info{}, fmt.Errorf("%w: zero sample rate", ErrMalformedHeader)
	}
	blockAlign := uint32(h.NumChannels) * bytesPerSample
	if uint32(h.BlockAlign) != blockAlign {
		return Info{}, fmt.Errorf("%w: block align %d, want %d", ErrMalformedHeader, h.BlockAlign, blockAlign)
	}
	if uint64(h.ByteRate) != uint64(h.SampleRate)*uint64(blockAlign) {
		return Info{}, fmt.Errorf("%w: byte rate %d does not match %d Hz x %d bytes", ErrMalformedHeader, h.ByteRate, h.SampleRate, blockAlign)
	}

	available := uint64(len(data) - HeaderSize)
	if uint64(h.DataSize) > available {
		return Info{}, fmt.Errorf("%w: data chunk declares %d bytes, only %d present", ErrTruncatedFile, h.DataSize, available)
	}
	if uint64(h.DataSize) < available {
		return Info{}, fmt.Errorf("%w: %d bytes trail the data chunk", ErrMalformedHeader, available-uint64(h.DataSize))
	}
	if uint64(h.RiffSize) != 36+uint64(h.DataSize) {
		return Info{}, fmt.Errorf("%w: riff size %d, want %d", ErrMalformedHeader, h.RiffSize, 36+uint64(h.DataSize))
	}
	if h.DataSize%blockAlign != 0 {
		return Info{}, fmt.Errorf("%w: data size %d is not a whole number of %d-byte frames", ErrMalformedHeader, h.DataSize, blockAlign)
	}

	frames := int(h.DataSize / blockAlign)
	return Info{
		SampleRate:    int(h.SampleRate),
		Channels:      int(h.NumChannels),
		BitsPerSample: int(h.BitsPerSamp),
		DataSize:      int(h.DataSize),
		Frames:        frames,
		Duration:      time.Duration(float64(frames) / float64(h.SampleRate) * float64(time.Second)),
	}, nil
}
