package audio

import "math"

const (
	pitchMinHz = 80.0
	pitchMaxHz = 800.0
	// Minimum normalized autocorrelation for an estimate to be trusted.
	// Below this, non-voiced or silent frames would produce noise pitches.
	pitchCorrelationGate = 0.3
)

// EstimatePitch searches the autocorrelation of samples over lags
// corresponding to 80-800 Hz and returns the strongest periodicity as a
// frequency. ok is false when no lag clears the correlation gate.
func EstimatePitch(samples []float64, sampleRate int) (hz float64, ok bool) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	minLag := int(float64(sampleRate) / pitchMaxHz)
	maxLag := int(float64(sampleRate) / pitchMinHz)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(samples) {
		maxLag = len(samples) - 1
	}
	if maxLag <= minLag {
		return 0, false
	}

	energy := 0.0
	for _, s := range samples {
		energy += s * s
	}
	if energy == 0 {
		return 0, false
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := 0.0
		for i := 0; i+lag < len(samples); i++ {
			corr += samples[i] * samples[i+lag]
		}
		corr /= energy
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestCorr <= pitchCorrelationGate || bestLag == 0 {
		return 0, false
	}
	return float64(sampleRate) / float64(bestLag), true
}

// Sine generates n samples of a sine wave at the given frequency and
// amplitude. Used by capture self-checks and tests.
func Sine(freq float64, amplitude float64, n, sampleRate int) []float64 {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	samples := make([]float64, n)
	step := 2 * math.Pi * freq / float64(sampleRate)
	for i := range samples {
		samples[i] = amplitude * math.Sin(step*float64(i))
	}
	return samples
}
