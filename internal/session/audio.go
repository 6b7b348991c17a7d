package session

import (
	"encoding/binary"
	"math"
	"time"
)

// Sample rates of the audio exchanged with the model.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
)

// rms is the root mean square of PCM16LE samples scaled to [-1, 1].
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// pcmDuration is the play time of PCM16LE mono audio at rate.
func pcmDuration(bytes, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	samples := bytes / 2
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
