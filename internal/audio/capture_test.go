package audio

import (
	"errors"
	"testing"

	"github.com/leadline-ai/leadline/internal/events"
	"github.com/leadline-ai/leadline/internal/reliability"
)

func newActiveCapture(t *testing.T, bus *events.Bus) *Capture {
	t.Helper()
	c := NewCapture(bus, "s1")
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	cfg := DefaultCaptureConfig()
	cfg.FrameSize = 1024
	if _, err := c.StartCapture(cfg); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	return c
}

func voiceErrCode(t *testing.T, err error) reliability.Code {
	t.Helper()
	var ve *reliability.VoiceError
	if !errors.As(err, &ve) {
		t.Fatalf("error %v is not a VoiceError", err)
	}
	return ve.Code
}

func TestCaptureLifecycle(t *testing.T) {
	c := NewCapture(nil, "s1")
	if c.State() != CaptureIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}

	if _, err := c.StartCapture(DefaultCaptureConfig()); err == nil {
		t.Fatalf("StartCapture before Initialize should fail")
	} else if code := voiceErrCode(t, err); code != reliability.CodeCapture {
		t.Fatalf("code = %s, want CAPTURE_ERROR", code)
	}

	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	stream, err := c.StartCapture(DefaultCaptureConfig())
	if err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	if stream.ID == "" {
		t.Fatalf("stream handle has no ID")
	}

	if _, err := c.StartCapture(DefaultCaptureConfig()); err == nil {
		t.Fatalf("second StartCapture should fail while active")
	}

	// Stop and Destroy are idempotent from any state.
	c.StopCapture()
	c.StopCapture()
	if c.State() != CaptureInitialized {
		t.Fatalf("state after stop = %s, want initialized", c.State())
	}
	c.Destroy()
	c.Destroy()
	if c.State() != CaptureDestroyed {
		t.Fatalf("state after destroy = %s, want destroyed", c.State())
	}

	if err := c.Initialize(); err == nil {
		t.Fatalf("Initialize after Destroy should fail")
	} else if code := voiceErrCode(t, err); code != reliability.CodeInitialization {
		t.Fatalf("code = %s, want INITIALIZATION_ERROR", code)
	}
}

func TestCaptureEmitsFramesAndEvents(t *testing.T) {
	bus := events.NewBus()
	var processed, starts int
	bus.Subscribe(func(events.Event) { processed++ }, events.TypeAudioProcessed)
	bus.Subscribe(func(events.Event) { starts++ }, events.TypeVoiceActivityStart)

	c := newActiveCapture(t, bus)

	// 16 frames of 1024 samples (64ms each) of a loud tone: enough voiced
	// audio time to confirm a voice_activity_start transition.
	tone := EncodePCM16LE(Sine(220, 0.5, 16*1024, DefaultSampleRate))
	frames, err := c.ProcessPCM16(tone)
	if err != nil {
		t.Fatalf("ProcessPCM16() error = %v", err)
	}
	if len(frames) != 16 {
		t.Fatalf("frames = %d, want 16", len(frames))
	}
	if processed != 16 {
		t.Fatalf("audio_processed events = %d, want 16", processed)
	}
	if starts != 1 {
		t.Fatalf("voice_activity_start events = %d, want 1", starts)
	}

	last := frames[len(frames)-1]
	if !last.VAD.IsActive {
		t.Fatalf("VAD inactive after sustained tone")
	}
	if !last.HasPitch {
		t.Fatalf("no pitch on a voiced tone frame")
	}
	if last.Volume <= 0 || last.Volume > 1 {
		t.Fatalf("volume = %v, want in (0, 1]", last.Volume)
	}
	if len(last.Waveform) != waveformPoints || len(last.Spectrum) != spectrumBins {
		t.Fatalf("snapshot sizes = %d/%d, want %d/%d",
			len(last.Waveform), len(last.Spectrum), waveformPoints, spectrumBins)
	}
}

func TestCapturePartialChunksBuffered(t *testing.T) {
	c := newActiveCapture(t, nil)

	half := EncodePCM16LE(Sine(220, 0.5, 512, DefaultSampleRate))
	frames, err := c.ProcessPCM16(half)
	if err != nil {
		t.Fatalf("ProcessPCM16() error = %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("frames from half chunk = %d, want 0", len(frames))
	}

	frames, err = c.ProcessPCM16(half)
	if err != nil {
		t.Fatalf("ProcessPCM16() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames after full frame accumulated = %d, want 1", len(frames))
	}
}

func TestCaptureMuteSilencesFrames(t *testing.T) {
	c := newActiveCapture(t, nil)
	c.SetMuted(true)
	if !c.Muted() {
		t.Fatalf("Muted() = false after SetMuted(true)")
	}

	tone := EncodePCM16LE(Sine(220, 0.5, 1024, DefaultSampleRate))
	frames, err := c.ProcessPCM16(tone)
	if err != nil {
		t.Fatalf("ProcessPCM16() error = %v", err)
	}
	if frames[0].Energy != 0 || frames[0].Volume != 0 {
		t.Fatalf("muted frame energy/volume = %v/%v, want 0/0", frames[0].Energy, frames[0].Volume)
	}
	if frames[0].VAD.IsActive {
		t.Fatalf("muted frame reported voice activity")
	}
}

func TestCaptureVolumeClamp(t *testing.T) {
	c := NewCapture(nil, "s1")
	c.SetVolume(-1)
	if c.Volume() != 0 {
		t.Fatalf("Volume() = %v, want 0", c.Volume())
	}
	c.SetVolume(5)
	if c.Volume() != 2 {
		t.Fatalf("Volume() = %v, want clamped to 2", c.Volume())
	}
}

func TestCaptureProcessWithoutStream(t *testing.T) {
	c := NewCapture(nil, "s1")
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := c.ProcessPCM16([]byte{0, 0}); err == nil {
		t.Fatalf("ProcessPCM16 without StartCapture should fail")
	}
}
