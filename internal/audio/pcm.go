package audio

import "math"

// DefaultSampleRate is the pipeline's target sample rate in Hz.
const DefaultSampleRate = 16000

// DecodePCM16LE converts raw PCM16LE mono bytes to float samples in [-1, 1].
// A trailing odd byte is dropped.
func DecodePCM16LE(pcm []byte) []float64 {
	n := len(pcm) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		samples[i] = float64(v) / 32768.0
	}
	return samples
}

// EncodePCM16LE converts float samples in [-1, 1] to raw PCM16LE mono bytes.
// Samples outside the range are clipped.
func EncodePCM16LE(samples []float64) []byte {
	pcm := make([]byte, 2*len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		pcm[2*i] = byte(uint16(v))
		pcm[2*i+1] = byte(uint16(v) >> 8)
	}
	return pcm
}

// RMS computes the root-mean-square energy of the samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ApplyGain scales samples in place and returns them.
func ApplyGain(samples []float64, gain float64) []float64 {
	if gain == 1 {
		return samples
	}
	for i := range samples {
		samples[i] *= gain
	}
	return samples
}
