package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/hajimehoshi/go-mp3"
)

// resampleQuality is passed to beep.Resample. 4 is plenty for speech.
const resampleQuality = 4

var (
	// ErrNotWAV is returned by StripWAV for data without a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a WAV file")

	// ErrUnsupportedFormat is returned for audio that is not 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// DecodeMP3 decodes MP3 data into 16-bit little-endian mono PCM and
// returns it with its sample rate.
func DecodeMP3(data []byte) ([]byte, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode mp3: %w", err)
	}

	stereo, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("read decoded mp3: %w", err)
	}
	return Downmix(stereo), decoder.SampleRate(), nil
}

// Downmix averages interleaved 16-bit stereo frames into mono. A trailing
// partial frame is dropped.
func Downmix(stereo []byte) []byte {
	const bytesPerFrame = 4
	frames := len(stereo) / bytesPerFrame
	mono := make([]byte, 0, frames*2)
	for i := 0; i < frames; i++ {
		offset := i * bytesPerFrame
		left := int16(binary.LittleEndian.Uint16(stereo[offset:]))
		right := int16(binary.LittleEndian.Uint16(stereo[offset+2:]))
		mixed := int16((int32(left) + int32(right)) / 2)
		mono = binary.LittleEndian.AppendUint16(mono, uint16(mixed))
	}
	return mono
}

// Upmix duplicates every mono sample into a stereo frame.
func Upmix(mono []byte) []byte {
	samples := len(mono) / 2
	stereo := make([]byte, 0, samples*4)
	for i := 0; i < samples; i++ {
		stereo = append(stereo, mono[2*i], mono[2*i+1], mono[2*i], mono[2*i+1])
	}
	return stereo
}

// StripWAV returns the mono PCM payload and sample rate of a RIFF/WAVE
// file. Stereo payloads are downmixed.
func StripWAV(data []byte) ([]byte, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	var (
		channels   int
		sampleRate int
		bits       int
		haveFormat bool
	)
	for offset := 12; offset+8 <= len(data); {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4:]))
		body := offset + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return nil, 0, fmt.Errorf("%w: truncated fmt chunk", ErrUnsupportedFormat)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			if format != 1 || bits != 16 || (channels != 1 && channels != 2) {
				return nil, 0, fmt.Errorf("%w: format %d, %d channels, %d bits", ErrUnsupportedFormat, format, channels, bits)
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, 0, fmt.Errorf("%w: data before fmt chunk", ErrUnsupportedFormat)
			}
			end := body + size
			// streamed WAVs may carry a bogus data size
			if end > len(data) || size == 0 {
				end = len(data)
			}
			pcm := data[body:end]
			if channels == 2 {
				pcm = Downmix(pcm)
			}
			return pcm, sampleRate, nil
		}

		// chunks are word aligned
		offset = body + size + size%2
	}
	return nil, 0, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
}

// Resample converts 16-bit mono PCM between sample rates with beep's
// resampler.
func Resample(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 || len(pcm) < 2 {
		return pcm
	}

	resampler := beep.Resample(resampleQuality, beep.SampleRate(from), beep.SampleRate(to), &pcmStreamer{pcm: pcm})
	out := make([]byte, 0, len(pcm)*to/from+4)
	buf := make([][2]float64, 512)
	for {
		n, ok := resampler.Stream(buf)
		for i := 0; i < n; i++ {
			out = binary.LittleEndian.AppendUint16(out, uint16(toInt16(buf[i][0])))
		}
		if !ok || n == 0 {
			break
		}
	}
	return out
}

// pcmStreamer exposes 16-bit mono PCM as a beep.Streamer.
type pcmStreamer struct {
	pcm []byte
	pos int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos+1 >= len(s.pcm) {
		return 0, false
	}
	n := 0
	for n < len(samples) && s.pos+1 < len(s.pcm) {
		v := float64(int16(binary.LittleEndian.Uint16(s.pcm[s.pos:]))) / 32768
		samples[n][0], samples[n][1] = v, v
		n++
		s.pos += 2
	}
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

func toInt16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	}
	return int16(v * 32767)
}
