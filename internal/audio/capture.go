package audio

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadline-ai/leadline/internal/events"
	"github.com/leadline-ai/leadline/internal/reliability"
)

// CaptureState tracks the pipeline lifecycle.
type CaptureState string

const (
	CaptureIdle        CaptureState = "idle"
	CaptureInitialized CaptureState = "initialized"
	CaptureActive      CaptureState = "capturing"
	CaptureDestroyed   CaptureState = "destroyed"
)

// CaptureConfig configures one capture stream.
type CaptureConfig struct {
	SampleRate       int
	FrameSize        int // samples per processing frame
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	VAD              VADConfig
}

// DefaultCaptureConfig mirrors the defaults the browser capture path requests.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       DefaultSampleRate,
		FrameSize:        4096,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		VAD:              DefaultVADConfig(),
	}
}

// Stream is the handle for an active capture stream.
type Stream struct {
	ID        string
	Config    CaptureConfig
	StartedAt time.Time
}

// Frame is the per-frame processing result emitted as an audio_processed event.
type Frame struct {
	Volume    float64
	Energy    float64
	PitchHz   float64
	HasPitch  bool
	Waveform  []float64
	Spectrum  []float64
	VAD       VADState
	Timestamp time.Time
}

const (
	waveformPoints = 128
	spectrumBins   = 32
)

var (
	errCaptureDestroyed  = errors.New("capture pipeline destroyed")
	errNotInitialized    = errors.New("capture pipeline not initialized")
	errAlreadyCapturing  = errors.New("capture stream already active")
	errNoActiveStream    = errors.New("no active capture stream")
	errInvalidSampleRate = errors.New("sample rate must be positive")
)

// Capture owns the frame-processing pipeline for one session: gain, mute,
// energy, visualization snapshots, VAD and pitch. It is fed PCM16 chunks
// as they arrive from the client and is the exclusive owner of its stream
// while capturing.
type Capture struct {
	mu        sync.Mutex
	state     CaptureState
	cfg       CaptureConfig
	bus       *events.Bus
	sessionID string

	vad     *VAD
	volume  float64
	muted   bool
	pending []float64
	samples int64
	stream  *Stream
}

func NewCapture(bus *events.Bus, sessionID string) *Capture {
	return &Capture{
		state:     CaptureIdle,
		bus:       bus,
		sessionID: sessionID,
		volume:    1,
	}
}

// Initialize readies the pipeline. A destroyed pipeline cannot be revived;
// the caller must construct a new one.
func (c *Capture) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CaptureDestroyed {
		return reliability.Classify(reliability.CodeInitialization, errCaptureDestroyed)
	}
	if c.state == CaptureIdle {
		c.state = CaptureInitialized
	}
	return nil
}

// StartCapture opens a stream and builds the frame path. It fails with a
// CAPTURE_ERROR when the pipeline is uninitialized, already capturing, or
// misconfigured.
func (c *Capture) StartCapture(cfg CaptureConfig) (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CaptureDestroyed:
		return nil, reliability.Classify(reliability.CodeInitialization, errCaptureDestroyed)
	case CaptureIdle:
		return nil, reliability.Classify(reliability.CodeCapture, errNotInitialized)
	case CaptureActive:
		return nil, reliability.Classify(reliability.CodeCapture, errAlreadyCapturing)
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.SampleRate < 0 {
		return nil, reliability.Classify(reliability.CodeCapture, errInvalidSampleRate)
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 4096
	}

	c.cfg = cfg
	c.vad = NewVAD(cfg.VAD)
	c.pending = nil
	c.samples = 0
	c.stream = &Stream{
		ID:        uuid.NewString(),
		Config:    cfg,
		StartedAt: time.Now().UTC(),
	}
	c.state = CaptureActive
	return c.stream, nil
}

// ProcessPCM16 feeds raw PCM16LE mono bytes into the pipeline. Complete
// frames are processed immediately; a partial tail is buffered for the next
// call. Frames are timestamped by sample position so VAD hysteresis is
// driven by audio time, not arrival jitter.
func (c *Capture) ProcessPCM16(pcm []byte) ([]Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CaptureActive {
		return nil, reliability.Classify(reliability.CodeCapture, errNoActiveStream)
	}

	c.pending = append(c.pending, DecodePCM16LE(pcm)...)

	var frames []Frame
	for len(c.pending) >= c.cfg.FrameSize {
		chunk := make([]float64, c.cfg.FrameSize)
		copy(chunk, c.pending[:c.cfg.FrameSize])
		c.pending = c.pending[c.cfg.FrameSize:]

		ts := c.stream.StartedAt.Add(time.Duration(c.samples) * time.Second / time.Duration(c.cfg.SampleRate))
		c.samples += int64(c.cfg.FrameSize)
		frames = append(frames, c.processFrame(chunk, ts))
	}
	return frames, nil
}

func (c *Capture) processFrame(samples []float64, ts time.Time) Frame {
	if c.muted {
		for i := range samples {
			samples[i] = 0
		}
	} else {
		ApplyGain(samples, c.volume)
	}

	energy := RMS(samples)
	volume := energy * 4
	if volume > 1 {
		volume = 1
	}

	frame := Frame{
		Volume:    volume,
		Energy:    energy,
		Waveform:  downsample(samples, waveformPoints),
		Spectrum:  spectrum(samples, c.cfg.SampleRate, spectrumBins),
		Timestamp: ts,
	}

	frame.VAD = c.vad.Process(energy, ts)
	if frame.VAD.IsActive {
		if hz, ok := EstimatePitch(samples, c.cfg.SampleRate); ok {
			frame.PitchHz = hz
			frame.HasPitch = true
		}
	}

	if c.bus != nil {
		c.bus.Publish(events.Event{Type: events.TypeAudioProcessed, SessionID: c.sessionID, Payload: frame, Timestamp: ts})
		if frame.VAD.Started {
			c.bus.Publish(events.Event{Type: events.TypeVoiceActivityStart, SessionID: c.sessionID, Payload: frame.VAD, Timestamp: ts})
		}
		if frame.VAD.Ended {
			c.bus.Publish(events.Event{Type: events.TypeVoiceActivityEnd, SessionID: c.sessionID, Payload: frame.VAD, Timestamp: ts})
		}
	}
	return frame
}

// SetVolume adjusts input gain without rebuilding the frame path.
func (c *Capture) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 2 {
		v = 2
	}
	c.volume = v
}

func (c *Capture) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetMuted toggles track enablement; muted frames process as silence.
func (c *Capture) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = muted
}

func (c *Capture) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StopCapture tears down the active stream. Safe from any state.
func (c *Capture) StopCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CaptureActive {
		return
	}
	c.stream = nil
	c.pending = nil
	if c.vad != nil {
		c.vad.Reset()
	}
	c.state = CaptureInitialized
}

// Destroy releases the pipeline permanently. Idempotent and safe from any
// state, including mid-callback.
func (c *Capture) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream = nil
	c.pending = nil
	c.vad = nil
	c.state = CaptureDestroyed
}

func downsample(samples []float64, points int) []float64 {
	if len(samples) <= points {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}
	out := make([]float64, points)
	step := float64(len(samples)) / float64(points)
	for i := 0; i < points; i++ {
		out[i] = samples[int(float64(i)*step)]
	}
	return out
}

// spectrum computes band magnitudes with a per-bin Goertzel pass over a
// strided view of the frame, keeping per-frame cost constant.
func spectrum(samples []float64, sampleRate, bins int) []float64 {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	const maxPoints = 1024
	stride := 1
	if len(samples) > maxPoints {
		stride = len(samples) / maxPoints
	}

	out := make([]float64, bins)
	nyquist := float64(sampleRate) / 2
	effRate := float64(sampleRate) / float64(stride)
	n := 0
	for i := 0; i < len(samples); i += stride {
		n++
	}
	if n == 0 {
		return out
	}

	for b := 0; b < bins; b++ {
		freq := nyquist * float64(b+1) / float64(bins+1)
		if freq >= effRate/2 {
			break
		}
		w := 2 * math.Pi * freq / effRate
		coeff := 2 * math.Cos(w)
		var s0, s1, s2 float64
		for i := 0; i < len(samples); i += stride {
			s0 = samples[i] + coeff*s1 - s2
			s2 = s1
			s1 = s0
		}
		power := s1*s1 + s2*s2 - coeff*s1*s2
		if power < 0 {
			power = 0
		}
		out[b] = math.Sqrt(power) / float64(n)
	}
	return out
}
