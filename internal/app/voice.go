package app

import (
	"fmt"
	"strings"

	"github.com/leadline-ai/leadline/internal/config"
	"github.com/leadline-ai/leadline/internal/voice"
)

type voiceSetup struct {
	stt              voice.SpeechToText
	tts              voice.TextToSpeech
	resolvedProvider string
	defaultVoiceID   string
	detail           string
}

func resolveVoiceProviders(cfg config.Config) (voiceSetup, error) {
	voiceMode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	if voiceMode == "" {
		voiceMode = "auto"
	}

	tryElevenLabs := func() (voiceSetup, bool) {
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
			return voiceSetup{}, false
		}
		p := voice.NewElevenLabsProvider(voice.ElevenLabsConfig{
			APIKey:         cfg.ElevenLabsAPIKey,
			BaseURL:        cfg.ElevenLabsBaseURL,
			STTModelID:     cfg.ElevenLabsSTTModel,
			TTSModelID:     cfg.ElevenLabsTTSModel,
			DefaultVoiceID: cfg.ElevenLabsTTSVoice,
		})
		stt, tts := withProviderRetry(p, p)
		return voiceSetup{
			stt:              stt,
			tts:              tts,
			resolvedProvider: "elevenlabs",
			defaultVoiceID:   cfg.ElevenLabsTTSVoice,
			detail:           "elevenlabs",
		}, true
	}

	mockSetup := func(detail string) voiceSetup {
		p := voice.NewMockProvider()
		return voiceSetup{
			stt:              p,
			tts:              p,
			resolvedProvider: "mock",
			defaultVoiceID:   "mock-avery",
			detail:           detail,
		}
	}

	switch voiceMode {
	case "elevenlabs":
		if setup, ok := tryElevenLabs(); ok {
			return setup, nil
		}
		return voiceSetup{}, fmt.Errorf("VOICE_PROVIDER=elevenlabs but ELEVENLABS_API_KEY is not set")
	case "mock":
		return mockSetup("mock"), nil
	case "auto":
		elevenSetup, hasEleven := tryElevenLabs()
		if !hasEleven {
			return mockSetup("mock (no elevenlabs key)"), nil
		}
		// Keep conversations alive through upstream outages: failed
		// ElevenLabs calls switch to the mock backend until it recovers.
		mock := voice.NewMockProvider()
		stt, tts := voice.NewFailoverPair(elevenSetup.stt, elevenSetup.tts, mock, mock, "mock-avery")
		elevenSetup.stt = stt
		elevenSetup.tts = tts
		elevenSetup.detail = "elevenlabs (automatic mock fallback)"
		return elevenSetup, nil
	default:
		return voiceSetup{}, fmt.Errorf("invalid VOICE_PROVIDER: %q (expected auto|elevenlabs|mock)", cfg.VoiceProvider)
	}
}
