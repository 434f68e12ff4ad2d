package realtime

// Audio formats accepted by the provider.
const (
	// AudioFormatPCM16 is 16-bit PCM, 24kHz, mono, little-endian.
	AudioFormatPCM16 = "pcm16"
)

// VAD modes for turn detection.
const (
	VADServerVAD = "server_vad"
)

// Modalities.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// DefaultInstructions asks the model to act as a translator into English.
const DefaultInstructions = "You are a real-time translator. Translate the user's speech into English. If already in English, return as it is. Return only the translated text"

// SessionConfig is the body of a session.update event.
type SessionConfig struct {
	Modalities       []string       `json:"modalities,omitempty"`
	Instructions     string         `json:"instructions,omitempty"`
	InputAudioFormat string         `json:"input_audio_format,omitempty"`
	TurnDetection    *TurnDetection `json:"turn_detection,omitempty"`
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type string `json:"type"`

	// Threshold is the VAD amplitude threshold (0.0-1.0).
	Threshold float64 `json:"threshold"`

	// SilenceDurationMs is the trailing silence that ends an utterance.
	SilenceDurationMs int `json:"silence_duration_ms"`
}

// TranslationSession returns the text-only translator configuration.
func TranslationSession(instructions string, threshold float64, silenceMs int) SessionConfig {
	if instructions == "" {
		instructions = DefaultInstructions
	}
	return SessionConfig{
		Modalities:       []string{ModalityText},
		Instructions:     instructions,
		InputAudioFormat: AudioFormatPCM16,
		TurnDetection: &TurnDetection{
			Type:              VADServerVAD,
			Threshold:         threshold,
			SilenceDurationMs: silenceMs,
		},
	}
}
