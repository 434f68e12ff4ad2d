// Package audio converts captured samples into the relay's wire format:
// 24 kHz mono 16-bit little-endian PCM in fixed blocks, base64 encoded.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"
)

const (
	// SampleRate is the rate the provider expects for pcm16 input.
	SampleRate = 24000

	// BlockSize is the number of samples in one audio frame.
	BlockSize = 4096
)

// FloatTo16BitPCM converts float samples in [-1, 1] to signed 16-bit
// little-endian PCM. Out of range samples are clamped.
func FloatTo16BitPCM(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7fff)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 converts signed 16-bit little-endian PCM to float samples.
// A trailing odd byte is ignored.
func DecodePCM16(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(b[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// EncodeBase64 encodes PCM bytes for transport.
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// EncodeFrame converts one block of float samples to a base64 pcm16 frame.
func EncodeFrame(samples []float32) string {
	return EncodeBase64(FloatTo16BitPCM(samples))
}

// Base64Duration returns the playback length of base64 mono pcm16 at rate.
// The payload is not decoded; malformed input yields an approximate value.
func Base64Duration(payload string, rate int) time.Duration {
	if rate <= 0 || payload == "" {
		return 0
	}
	n := len(payload) / 4 * 3
	n -= strings.Count(payload[max(0, len(payload)-2):], "=")
	if n <= 0 {
		return 0
	}
	samples := n / 2
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
