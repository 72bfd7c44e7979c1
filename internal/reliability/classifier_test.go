package reliability

import (
	"errors"
	"testing"
	"time"
)

func TestClassifyRecoverableFlags(t *testing.T) {
	cases := []struct {
		code        Code
		recoverable bool
	}{
		{CodeInitialization, false},
		{CodeCallerMisuse, false},
		{CodeCapture, true},
		{CodeSTT, true},
		{CodeTTS, true},
		{CodeEmotion, true},
		{CodePlayback, true},
	}
	for _, tc := range cases {
		ve := Classify(tc.code, errors.New("x"))
		if ve.Recoverable != tc.recoverable {
			t.Errorf("Classify(%s).Recoverable = %v, want %v", tc.code, ve.Recoverable, tc.recoverable)
		}
		if ve.Timestamp.IsZero() {
			t.Errorf("Classify(%s) has zero timestamp", tc.code)
		}
	}
}

func TestVoiceErrorMessage(t *testing.T) {
	ve := Classify(CodeSTT, errors.New("provider unreachable"))
	if got, want := ve.Error(), "STT_ERROR: provider unreachable"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Errorf("IsRetryableHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Errorf("IsRetryableHTTPStatus(%d) = true, want false", code)
		}
	}
}

func TestExponentialBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	cap := time.Second
	if got := ExponentialBackoff(0, base, cap); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, cap); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 400ms", got)
	}
	if got := ExponentialBackoff(10, base, cap); got != cap {
		t.Fatalf("attempt 10 = %v, want cap %v", got, cap)
	}
}
