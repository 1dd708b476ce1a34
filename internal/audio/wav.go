package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV holds decoded PCM audio from a RIFF/WAVE container.
type WAV struct {
	// PCM is the raw sample data (16-bit little-endian).
	PCM []byte

	// SampleRate is the sample rate in Hz.
	SampleRate int

	// Channels is the channel count.
	Channels int
}

// EncodeWAV wraps 16-bit mono PCM in a minimal RIFF/WAVE container. Used for
// handing captured audio to subprocess backends and for debugging dumps.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	dataLen := uint32(len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV parses a RIFF/WAVE container with 16-bit PCM data. Only the fmt
// and data chunks are interpreted; other chunks are skipped. It covers the
// files piper and similar command-line synthesisers produce, not the full
// WAVE zoo.
func DecodeWAV(data []byte) (*WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("wav: not a RIFF/WAVE file")
	}

	w := &WAV{}
	sawFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("wav: truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("wav: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("wav: unsupported format %d, want PCM", format)
			}
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return nil, fmt.Errorf("wav: unsupported bit depth %d, want 16", bits)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			sawFmt = true
		case "data":
			w.PCM = data[body : body+size]
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !sawFmt {
		return nil, errors.New("wav: missing fmt chunk")
	}
	if w.PCM == nil {
		return nil, errors.New("wav: missing data chunk")
	}
	return w, nil
}

// Mono returns the WAV's PCM downmixed to mono. Stereo input is averaged;
// mono input is returned as-is.
func (w *WAV) Mono() []byte {
	if w.Channels == 2 {
		return StereoToMono(w.PCM)
	}
	return w.PCM
}
