package voice

import (
	"encoding/binary"
)

// AudioFormat is an output encoding for synthesized TTS audio (spec
// §4.15 supplement, grounded on the original audio encoder's AUDIO_FORMATS
// table). Only "pcm" (no wrapping) and "wav" are implemented: mp3/opus/
// flac/aac all require an external codec library (pydub/ffmpeg,
// libopus, libFLAC, libfdk-aac in the original), and none appears
// anywhere in the corpus this module was built from, so they're left
// unimplemented rather than faked with a stdlib stand-in.
type AudioFormat string

const (
	AudioFormatPCM AudioFormat = "pcm"
	AudioFormatWAV AudioFormat = "wav"
)

// EncodeAudio wraps raw 16-bit PCM in the requested container. PCM
// passes through unchanged; WAV prepends a standard RIFF/WAVE header so
// the bytes are directly playable without out-of-band format knowledge.
func EncodeAudio(format AudioFormat, pcm []byte, sampleRate, channels int) []byte {
	if format != AudioFormatWAV {
		return pcm
	}
	return pcmToWAV(pcm, sampleRate, channels, 2)
}

// pcmToWAV converts raw PCM to WAV format, grounded on the original
// audio_encoder.py's pcm_to_wav (Python's wave module writing a
// canonical 44-byte RIFF header ahead of the PCM payload).
func pcmToWAV(pcm []byte, sampleRate, channels, sampleWidth int) []byte {
	byteRate := sampleRate * channels * sampleWidth
	blockAlign := channels * sampleWidth
	dataLen := len(pcm)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)   // PCM format
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(sampleWidth*8))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	out := make([]byte, 0, len(header)+dataLen)
	out = append(out, header...)
	out = append(out, pcm...)
	return out
}
