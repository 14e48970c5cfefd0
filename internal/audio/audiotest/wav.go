// Package audiotest builds small WAV payloads for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"time"
)

const (
	pcmFormat    = 1
	monoChannels = 1
	bitDepth     = 16
	fmtChunkSize = 16
	headerSize   = 36
)

// SilentWAV returns a mono 16-bit PCM WAV of the given sample rate and
// length containing silence.
func SilentWAV(sampleRate int, duration time.Duration) []byte {
	bytesPerSample := bitDepth / 8
	samples := int64(sampleRate) * int64(duration) / int64(time.Second)
	dataSize := uint32(samples * int64(bytesPerSample))

	var buf bytes.Buffer

	buf.WriteString("RIFF")
	write(&buf, headerSize+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	write(&buf, uint32(fmtChunkSize))
	write(&buf, uint16(pcmFormat))
	write(&buf, uint16(monoChannels))
	write(&buf, uint32(sampleRate))
	write(&buf, uint32(sampleRate*monoChannels*bytesPerSample))
	write(&buf, uint16(monoChannels*bytesPerSample))
	write(&buf, uint16(bitDepth))
	buf.WriteString("data")
	write(&buf, dataSize)
	buf.Write(make([]byte, dataSize))

	return buf.Bytes()
}

func write(buf *bytes.Buffer, value any) {
	// bytes.Buffer writes cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, value)
}
