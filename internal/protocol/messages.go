package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client -> server.
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeClientControl    MessageType = "client_control"

	// Server -> client.
	TypeTranscript          MessageType = "transcript"
	TypeAgentTurn           MessageType = "agent_turn"
	TypeAgentAudioChunk     MessageType = "agent_audio_chunk"
	TypeVoiceActivity       MessageType = "voice_activity"
	TypeQualificationUpdate MessageType = "qualification_update"
	TypeEmotion             MessageType = "emotion"
	TypeSystemEvent         MessageType = "system_event"
	TypeErrorEvent          MessageType = "error_event"
)

// Control actions accepted on client_control.
const (
	ActionStart     = "start"
	ActionEnd       = "end"
	ActionMute      = "mute"
	ActionUnmute    = "unmute"
	ActionSetVolume = "set_volume"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Value     float64     `json:"value,omitempty"`
	TSMs      int64       `json:"ts_ms,omitempty"`
}

type Transcript struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	TSMs       int64       `json:"ts_ms"`
}

type AgentTurn struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Text      string      `json:"text"`
	Phase     string      `json:"phase"`
	Intent    string      `json:"intent,omitempty"`
}

type AgentAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
}

type VoiceActivity struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	Active     bool        `json:"active"`
	Confidence float64     `json:"confidence"`
	TSMs       int64       `json:"ts_ms"`
}

type QualificationUpdate struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"session_id"`
	Phase     string          `json:"phase"`
	Score     float64         `json:"score"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

type Emotion struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	Emotion    string      `json:"emotion"`
	Confidence float64     `json:"confidence"`
	Arousal    float64     `json:"arousal"`
	Valence    float64     `json:"valence"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Code        string      `json:"code"`
	Recoverable bool        `json:"recoverable"`
	Detail      string      `json:"detail"`
}

// ParseClientMessage validates and decodes one inbound websocket frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionStart, ActionEnd, ActionMute, ActionUnmute, ActionSetVolume:
		default:
			return nil, fmt.Errorf("unknown control action %q", msg.Action)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
