package audioio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ErrNotWAV is returned when data is not a PCM16 RIFF/WAVE file.
var ErrNotWAV = errors.New("audioio: not a PCM16 WAV file")

const wavHeaderSize = 44

// EncodeWAV wraps chunk in a canonical 44-byte PCM16 WAV header.
func EncodeWAV(chunk AudioChunk) []byte {
	data := chunk.Bytes()
	channels := chunk.Channels
	if channels == 0 {
		channels = 1
	}

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(data))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(chunk.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(chunk.SampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}

// DecodeWAV parses a PCM16 WAV file. Unknown chunks (LIST, fact) are skipped.
func DecodeWAV(b []byte) (AudioChunk, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return AudioChunk{}, ErrNotWAV
	}

	var (
		chunk   AudioChunk
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(b) {
				return AudioChunk{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(b[body:])
			bits := binary.LittleEndian.Uint16(b[body+14:])
			if format != 1 || bits != 16 {
				return AudioChunk{}, fmt.Errorf("%w: format %d, %d bits", ErrNotWAV, format, bits)
			}
			chunk.Channels = int(binary.LittleEndian.Uint16(b[body+2:]))
			chunk.SampleRate = int(binary.LittleEndian.Uint32(b[body+4:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return AudioChunk{}, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			end := body + size
			// Streaming writers leave the size at 0 or 0xFFFFFFFF.
			if size == 0 || end > len(b) || end < body {
				end = len(b)
			}
			chunk.Samples = BytesToSamples(b[body:end])
			return chunk, nil
		}

		pos = body + size + size%2
	}

	return AudioChunk{}, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// WriteWAVFile writes chunk to path as a WAV file.
func WriteWAVFile(path string, chunk AudioChunk) error {
	return os.WriteFile(path, EncodeWAV(chunk), 0o600)
}

// ReadWAVFile reads a WAV file from path.
func ReadWAVFile(path string) (AudioChunk, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return AudioChunk{}, err
	}
	chunk, err := DecodeWAV(b)
	if err != nil {
		return AudioChunk{}, fmt.Errorf("%s: %w", path, err)
	}
	return chunk, nil
}
