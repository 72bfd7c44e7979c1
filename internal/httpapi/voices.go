package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/leadline-ai/leadline/internal/audio"
	"github.com/leadline-ai/leadline/internal/voice"
)

type listVoicesResponse struct {
	DefaultVoiceID string        `json:"default_voice_id"`
	Voices         []voice.Voice `json:"voices"`
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "synthesis provider not configured")
		return
	}

	voices, err := s.tts.Voices(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "voices_request_failed", err.Error())
		return
	}

	sort.Slice(voices, func(i, j int) bool {
		return strings.ToLower(voices[i].Name) < strings.ToLower(voices[j].Name)
	})

	respondJSON(w, http.StatusOK, listVoicesResponse{
		DefaultVoiceID: s.cfg.ElevenLabsTTSVoice,
		Voices:         voices,
	})
}

type previewTTSRequest struct {
	VoiceID string `json:"voice_id"`
	Text    string `json:"text"`
}

// handlePreviewTTS synthesizes a short sample and returns it as WAV so a
// browser audio element can play it directly.
func (s *Server) handlePreviewTTS(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "synthesis provider not configured")
		return
	}

	var req previewTTSRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = s.cfg.ElevenLabsTTSVoice
	}
	text := voice.SanitizeSpeechText(req.Text)
	if text == "" {
		text = "Hi, this is " + s.cfg.AgentName + ". Looking forward to helping you find your next home."
	}

	pcm, err := s.tts.Synthesize(r.Context(), text, voice.SynthesisOptions{VoiceID: voiceID, ModelID: s.cfg.ElevenLabsTTSModel})
	if err != nil {
		respondError(w, http.StatusBadGateway, "tts_preview_failed", err.Error())
		return
	}

	wav, err := audio.EncodeWAVPCM16LE(pcm, s.cfg.SampleRate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "wav_encode_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}
