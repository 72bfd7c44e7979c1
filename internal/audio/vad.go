package audio

import "time"

// VADConfig tunes the energy voice activity detector.
type VADConfig struct {
	// EnergyThreshold is the RMS level above which a frame counts as voiced.
	EnergyThreshold float64
	// MinVoiceDuration is how long voiced frames must persist before a
	// rising edge is confirmed.
	MinVoiceDuration time.Duration
	// MinSilenceDuration is how long silence must persist before a falling
	// edge is confirmed.
	MinSilenceDuration time.Duration
}

// DefaultVADConfig returns thresholds suitable for 16kHz normalized PCM.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold:    0.01,
		MinVoiceDuration:   300 * time.Millisecond,
		MinSilenceDuration: 500 * time.Millisecond,
	}
}

// VADState is the detector output for one frame.
type VADState struct {
	IsActive   bool
	Confidence float64
	Energy     float64
	Timestamp  time.Time
	// Started / Ended mark confirmed transitions; they are set on at most
	// one frame per transition, never on every frame of a voiced stretch.
	Started bool
	Ended   bool
}

// VAD classifies frames as speech or non-speech with temporal hysteresis:
// brief noise bursts below MinVoiceDuration never activate it, and pauses
// shorter than MinSilenceDuration never deactivate it.
type VAD struct {
	cfg      VADConfig
	active   bool
	hasVoice bool
	hasGap   bool
	voiceAt  time.Time
	gapAt    time.Time
}

func NewVAD(cfg VADConfig) *VAD {
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = 0.01
	}
	if cfg.MinVoiceDuration <= 0 {
		cfg.MinVoiceDuration = 300 * time.Millisecond
	}
	if cfg.MinSilenceDuration <= 0 {
		cfg.MinSilenceDuration = 500 * time.Millisecond
	}
	return &VAD{cfg: cfg}
}

// Process evaluates one frame's RMS energy at the given time.
func (v *VAD) Process(energy float64, now time.Time) VADState {
	voiced := energy > v.cfg.EnergyThreshold

	confidence := 0.0
	if voiced {
		confidence = energy / (v.cfg.EnergyThreshold * 3)
		if confidence > 1 {
			confidence = 1
		}
	}

	state := VADState{
		Confidence: confidence,
		Energy:     energy,
		Timestamp:  now,
	}

	if v.active {
		if voiced {
			v.hasGap = false
		} else {
			if !v.hasGap {
				v.hasGap = true
				v.gapAt = now
			}
			if now.Sub(v.gapAt) >= v.cfg.MinSilenceDuration {
				v.active = false
				v.hasGap = false
				v.hasVoice = false
				state.Ended = true
			}
		}
	} else {
		if voiced {
			if !v.hasVoice {
				v.hasVoice = true
				v.voiceAt = now
			}
			if now.Sub(v.voiceAt) >= v.cfg.MinVoiceDuration {
				v.active = true
				v.hasVoice = false
				v.hasGap = false
				state.Started = true
			}
		} else {
			v.hasVoice = false
		}
	}

	state.IsActive = v.active
	return state
}

// Active reports the current confirmed activity state.
func (v *VAD) Active() bool { return v.active }

// Reset clears hysteresis state.
func (v *VAD) Reset() {
	v.active = false
	v.hasVoice = false
	v.hasGap = false
}
