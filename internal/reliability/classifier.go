package reliability

import (
	"fmt"
	"time"
)

// Code identifies an error class in the voice subsystem taxonomy.
type Code string

const (
	CodeInitialization Code = "INITIALIZATION_ERROR"
	CodeCapture        Code = "CAPTURE_ERROR"
	CodeSTT            Code = "STT_ERROR"
	CodeTTS            Code = "TTS_ERROR"
	CodeEmotion        Code = "EMOTION_ERROR"
	CodePlayback       Code = "PLAYBACK_ERROR"
	CodeCallerMisuse   Code = "CALLER_MISUSE"
)

// VoiceError is a classified subsystem error. Recoverable errors may be
// auto-cleared by the session store after a grace period; fatal ones
// require explicit reinitialization.
type VoiceError struct {
	Code        Code
	Message     string
	Recoverable bool
	Timestamp   time.Time
}

func (e *VoiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Classify wraps err under the given code with the taxonomy's recoverable
// flag for that code.
func Classify(code Code, err error) *VoiceError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &VoiceError{
		Code:        code,
		Message:     msg,
		Recoverable: IsRecoverable(code),
		Timestamp:   time.Now().UTC(),
	}
}

// IsRecoverable reports whether errors of this code clear on their own.
// Initialization failures and caller misuse do not: the first needs an
// explicit re-init, the second indicates an integration bug.
func IsRecoverable(code Code) bool {
	switch code {
	case CodeInitialization, CodeCallerMisuse:
		return false
	default:
		return true
	}
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes from
// speech providers.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
// The subsystem itself never retries provider calls; this is for calling
// layers that add a retry policy on top.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
