package voice

import (
	"encoding/binary"
	"testing"
)

func TestEncodeAudio_PCMPassesThrough(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	got := EncodeAudio(AudioFormatPCM, pcm, 24000, 1)
	if string(got) != string(pcm) {
		t.Fatalf("expected PCM passthrough, got %v", got)
	}
}

func TestEncodeAudio_WAVHeader(t *testing.T) {
	pcm := make([]byte, 100)
	got := EncodeAudio(AudioFormatWAV, pcm, 24000, 1)

	if len(got) != 44+len(pcm) {
		t.Fatalf("expected 44-byte header + payload, got %d bytes", len(got))
	}
	if string(got[0:4]) != "RIFF" || string(got[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %v", got[0:12])
	}
	if string(got[12:16]) != "fmt " || string(got[36:40]) != "data" {
		t.Fatalf("missing fmt/data subchunk markers")
	}
	if sr := binary.LittleEndian.Uint32(got[24:28]); sr != 24000 {
		t.Fatalf("expected sample rate 24000 in header, got %d", sr)
	}
	if dataLen := binary.LittleEndian.Uint32(got[40:44]); dataLen != uint32(len(pcm)) {
		t.Fatalf("expected data chunk size %d, got %d", len(pcm), dataLen)
	}
	if string(got[44:]) != string(pcm) {
		t.Fatalf("expected payload to follow header unchanged")
	}
}
