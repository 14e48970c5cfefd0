// Package audio inspects synthesized WAV audio.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// ContentType is the media type used when publishing WAV artifacts.
const ContentType = "audio/wav"

// DefaultSampleRate is the rate the synthesis backends produce.
const DefaultSampleRate = 24000

const bitsPerByte = 8

// Error messages.
const (
	errFmtReadFile   = "failed to read audio file %s: %w"
	errFmtDuration   = "failed to compute audio duration: %w"
	errFmtInvalidWAV = "%w: missing RIFF/WAVE header"
	errFmtBadFormat  = "%w: sample rate %d, channels %d, bit depth %d"
)

var (
	// ErrInvalidWAV is returned when data is not a decodable WAV stream.
	ErrInvalidWAV = errors.New("invalid wav data")
	// ErrEmptyAudio is returned for zero-length audio data.
	ErrEmptyAudio = errors.New("audio data is empty")
)

// Info describes a WAV stream.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Inspect decodes the WAV header in data and reports its format and length.
func Inspect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmptyAudio
	}

	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return Info{}, fmt.Errorf(errFmtInvalidWAV, ErrInvalidWAV)
	}

	err := decoder.FwdToPCM()
	if err != nil {
		return Info{}, fmt.Errorf(errFmtDuration, err)
	}

	info := Info{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		Duration:   0,
	}

	bytesPerSecond := int64(info.SampleRate) * int64(info.Channels) * int64(info.BitDepth/bitsPerByte)
	if bytesPerSecond <= 0 {
		return Info{}, fmt.Errorf(errFmtBadFormat, ErrInvalidWAV, info.SampleRate, info.Channels, info.BitDepth)
	}

	info.Duration = time.Duration(decoder.PCMLen() * int64(time.Second) / bytesPerSecond)

	return info, nil
}

// InspectFile is Inspect for a file on disk.
func InspectFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf(errFmtReadFile, path, err)
	}

	return Inspect(data)
}
