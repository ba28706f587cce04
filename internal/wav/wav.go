package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
)

// Minimal RIFF/WAVE codec for the linear PCM clips the pipeline moves
// around. Only canonical 44-byte headers with a single data chunk are
// produced; reading tolerates extra chunks before data.

const headerSize = 44

// Encode serializes a PCM clip as a canonical WAV byte stream.
func Encode(audio capability.Audio) []byte {
	f := audio.Format
	dataLen := len(audio.PCM)
	byteRate := f.BytesPerSecond()
	blockAlign := f.FrameSize()

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+dataLen))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(f.BitDepth))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(audio.PCM)

	return buf.Bytes()
}

// Decode parses a WAV byte stream into a PCM clip.
func Decode(data []byte) (capability.Audio, error) {
	if len(data) < headerSize {
		return capability.Audio{}, fmt.Errorf("wav data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return capability.Audio{}, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var format capability.Format
	var pcm []byte
	sawFmt := false

	// Walk chunks after the 12-byte RIFF header.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return capability.Audio{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return capability.Audio{}, fmt.Errorf("unsupported wav encoding %d, want PCM", audioFormat)
			}
			format = capability.Format{
				Channels:   int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate: int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitDepth:   int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			sawFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word aligned.
		if size%2 == 1 {
			size++
		}
		offset = body + size
	}

	if !sawFmt {
		return capability.Audio{}, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return capability.Audio{}, fmt.Errorf("missing data chunk")
	}

	return capability.Audio{Format: format, PCM: pcm}, nil
}

// WriteFile writes a PCM clip to path as WAV.
func WriteFile(path string, audio capability.Audio) error {
	return os.WriteFile(path, Encode(audio), 0o644)
}

// ReadFile reads a WAV file into a PCM clip.
func ReadFile(path string) (capability.Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return capability.Audio{}, err
	}
	return Decode(data)
}
