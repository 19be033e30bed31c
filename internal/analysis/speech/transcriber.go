// Package speech wraps the external speech-to-text model and provides
// the symptom-keyword helpers used for consultation summaries.
package speech

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/rs/zerolog/log"
)

// SentinelUnavailable is returned instead of a transcript when no
// speech engine was configured or it failed to initialize.
const SentinelUnavailable = "Transcription service not available"

// Engine is the underlying speech-to-text model. Input is a decoded
// WAV-compatible byte stream.
type Engine interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type Transcriber struct {
	engine Engine
}

// NewTranscriber accepts a nil engine; Transcribe then answers with
// the unavailable sentinel instead of failing.
func NewTranscriber(engine Engine) *Transcriber {
	return &Transcriber{engine: engine}
}

// Transcribe decodes a base64 audio clip (data-URL prefix allowed) and
// runs the engine. Decode failure yields an empty transcript, not an
// error; callers drop empty results.
func (t *Transcriber) Transcribe(ctx context.Context, audio string) (string, error) {
	if t.engine == nil {
		return SentinelUnavailable, nil
	}
	raw := decodeAudio(audio)
	if raw == nil {
		return "", nil
	}
	text, err := t.engine.Transcribe(ctx, raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func decodeAudio(audio string) []byte {
	if i := strings.IndexByte(audio, ','); i >= 0 {
		audio = audio[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(audio)
	if err != nil {
		log.Warn().Err(err).Str("module", "speech").Msg("bad base64 audio")
		return nil
	}
	return raw
}
