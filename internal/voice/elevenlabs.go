package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/leadline-ai/leadline/internal/audio"
)

type ElevenLabsConfig struct {
	APIKey         string
	BaseURL        string
	STTModelID     string
	TTSModelID     string
	DefaultVoiceID string
}

// ElevenLabsProvider implements both speech capabilities against the
// ElevenLabs HTTP API. Synthesis requests PCM16 at the pipeline sample
// rate so audio flows straight into playback without transcoding. Every
// call is a single attempt bounded only by the caller's context; retry
// policy belongs to the configuration layer.
type ElevenLabsProvider struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.STTModelID) == "" {
		cfg.STTModelID = "scribe_v1"
	}
	if strings.TrimSpace(cfg.TTSModelID) == "" {
		cfg.TTSModelID = "eleven_multilingual_v2"
	}
	return &ElevenLabsProvider{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (TranscriptionResult, error) {
	if len(pcm) == 0 {
		return TranscriptionResult{}, fmt.Errorf("empty audio")
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model_id", p.cfg.STTModelID); err != nil {
		return TranscriptionResult{}, err
	}
	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return TranscriptionResult{}, err
	}
	// The endpoint sniffs the container, so wrap raw PCM in a WAV header.
	wav, err := audio.EncodeWAVPCM16LE(pcm, sampleRate)
	if err != nil {
		return TranscriptionResult{}, err
	}
	if _, err := part.Write(wav); err != nil {
		return TranscriptionResult{}, err
	}
	if err := mw.Close(); err != nil {
		return TranscriptionResult{}, err
	}

	data, err := p.do(ctx, http.MethodPost, "/v1/speech-to-text", mw.FormDataContentType(), body.Bytes())
	if err != nil {
		return TranscriptionResult{}, err
	}

	var parsed struct {
		Text                string  `json:"text"`
		LanguageProbability float64 `json:"language_probability"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return TranscriptionResult{}, fmt.Errorf("decode transcription: %w", err)
	}

	confidence := parsed.LanguageProbability
	if confidence <= 0 || confidence > 1 {
		confidence = 0.9
	}
	return TranscriptionResult{
		Text:       strings.TrimSpace(parsed.Text),
		Confidence: confidence,
		Provider:   p.Name(),
	}, nil
}

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text")
	}
	voiceID := strings.TrimSpace(opts.VoiceID)
	if voiceID == "" {
		voiceID = p.cfg.DefaultVoiceID
	}
	if voiceID == "" {
		return nil, fmt.Errorf("voice_id is required")
	}
	modelID := strings.TrimSpace(opts.ModelID)
	if modelID == "" {
		modelID = p.cfg.TTSModelID
	}
	settings := opts.Settings.Normalize()

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": modelID,
		"voice_settings": map[string]any{
			"stability":        settings.Stability,
			"similarity_boost": settings.SimilarityBoost,
			"style":            settings.Style,
			"speed":            settings.Speed,
		},
	})
	if err != nil {
		return nil, err
	}

	path := "/v1/text-to-speech/" + url.PathEscape(voiceID) + "?output_format=pcm_16000"
	return p.do(ctx, http.MethodPost, path, "application/json", payload)
}

func (p *ElevenLabsProvider) Voices(ctx context.Context) ([]Voice, error) {
	data, err := p.do(ctx, http.MethodGet, "/v1/voices", "", nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Voices []struct {
			VoiceID    string `json:"voice_id"`
			Name       string `json:"name"`
			Category   string `json:"category"`
			PreviewURL string `json:"preview_url"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}

	voices := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		voices = append(voices, Voice{
			ID:          v.VoiceID,
			Name:        v.Name,
			Description: v.Category,
			PreviewURL:  v.PreviewURL,
		})
	}
	return voices, nil
}

// do issues exactly one request. Deadlines come from ctx; a non-200 reply
// surfaces as a ProviderStatusError so callers can see transience.
func (p *ElevenLabsProvider) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderStatusError{
			Provider: p.Name(),
			Endpoint: path,
			Status:   resp.StatusCode,
			Body:     truncateBody(data),
		}
	}
	return data, nil
}

func truncateBody(data []byte) string {
	const max = 200
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
