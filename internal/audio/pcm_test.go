package audio

import (
	"encoding/binary"
	"errors"
	"testing"
)

func samples(values ...int16) []byte {
	out := make([]byte, 0, len(values)*2)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

func wavFile(channels, sampleRate, bits int, pcm []byte, extra ...[]byte) []byte {
	var b []byte
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(36+len(pcm)))
	b = append(b, "WAVE"...)
	for _, chunk := range extra {
		b = append(b, chunk...)
	}
	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = binary.LittleEndian.AppendUint16(b, uint16(channels))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate*channels*bits/8))
	b = binary.LittleEndian.AppendUint16(b, uint16(channels*bits/8))
	b = binary.LittleEndian.AppendUint16(b, uint16(bits))
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(pcm)))
	return append(b, pcm...)
}

func TestDownmix(t *testing.T) {
	stereo := samples(100, 300, -200, -400, 32767, 32767)
	got := Downmix(append(stereo, 0x01)) // trailing partial frame
	want := samples(200, -300, 32767)
	if string(got) != string(want) {
		t.Errorf("Downmix() = %v, want %v", got, want)
	}
}

func TestUpmix(t *testing.T) {
	got := Upmix(samples(1, -2))
	want := samples(1, 1, -2, -2)
	if string(got) != string(want) {
		t.Errorf("Upmix() = %v, want %v", got, want)
	}
}

func TestStripWAV(t *testing.T) {
	mono := samples(1, 2, 3, 4)

	tests := []struct {
		name     string
		data     []byte
		wantPCM  []byte
		wantRate int
		wantErr  error
	}{
		{
			name:     "mono",
			data:     wavFile(1, 22050, 16, mono),
			wantPCM:  mono,
			wantRate: 22050,
		},
		{
			name:     "stereo is downmixed",
			data:     wavFile(2, 24000, 16, samples(10, 20, 30, 50)),
			wantPCM:  samples(15, 40),
			wantRate: 24000,
		},
		{
			name:     "skips unknown chunks",
			data:     wavFile(1, 16000, 16, mono, append([]byte("LIST"), 3, 0, 0, 0, 'a', 'b', 'c', 0)),
			wantPCM:  mono,
			wantRate: 16000,
		},
		{
			name:    "not a wav",
			data:    []byte("ID3 this is an mp3"),
			wantErr: ErrNotWAV,
		},
		{
			name:    "8 bit",
			data:    wavFile(1, 8000, 8, []byte{1, 2, 3}),
			wantErr: ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm, rate, err := StripWAV(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("StripWAV() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("StripWAV() error = %v", err)
			}
			if rate != tt.wantRate {
				t.Errorf("sample rate = %d, want %d", rate, tt.wantRate)
			}
			if string(pcm) != string(tt.wantPCM) {
				t.Errorf("pcm = %v, want %v", pcm, tt.wantPCM)
			}
		})
	}
}

func TestResample(t *testing.T) {
	in := make([]byte, 2000) // 1000 silent samples

	if got := Resample(in, 22050, 22050); len(got) != len(in) {
		t.Errorf("same rate changed length to %d", len(got))
	}

	out := Resample(in, 22050, 44100)
	n := len(out) / 2
	if n < 1900 || n > 2100 {
		t.Errorf("upsampled 1000 samples to %d, want about 2000", n)
	}
	for i := 0; i+1 < len(out); i += 2 {
		if v := int16(binary.LittleEndian.Uint16(out[i:])); v != 0 {
			t.Fatalf("silence resampled to %d at sample %d", v, i/2)
		}
	}

	down := Resample(in, 44100, 22050)
	if n := len(down) / 2; n < 450 || n > 550 {
		t.Errorf("downsampled 1000 samples to %d, want about 500", n)
	}
}

func TestDecodeMP3Invalid(t *testing.T) {
	if _, _, err := DecodeMP3([]byte("definitely not mpeg audio")); err == nil {
		t.Error("DecodeMP3() should fail on garbage")
	}
}

func TestToInt16(t *testing.T) {
	tests := map[float64]int16{
		0:    0,
		1:    32767,
		1.5:  32767,
		-1:   -32768,
		-2:   -32768,
		0.5:  16383,
		-0.5: -16383,
	}
	for in, want := range tests {
		if got := toInt16(in); got != want {
			t.Errorf("toInt16(%v) = %d, want %d", in, got, want)
		}
	}
}
