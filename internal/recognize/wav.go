package recognize

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

// pcmAudio is the sample payload of a 16-bit PCM WAV file.
type pcmAudio struct {
	sampleRate uint32
	channels   uint16
	samples    []byte
}

// decodeWAV walks the RIFF chunks and returns the data chunk. Only 16-bit
// integer PCM is accepted.
func decodeWAV(data []byte) (pcmAudio, error) {
	var out pcmAudio
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return out, errNotWAV
	}

	haveFormat := false
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if end > len(data) {
			// ffmpeg writes a placeholder size when the output is not seekable
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return out, fmt.Errorf("fmt chunk too short: %d bytes", end-body)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			out.channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			out.sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return out, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", format, bits)
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return out, errors.New("wav data chunk before fmt chunk")
			}
			out.samples = data[body:end]
			return out, nil
		}

		// chunks are word aligned
		offset = end + size%2
	}
	return out, errors.New("wav file has no data chunk")
}
