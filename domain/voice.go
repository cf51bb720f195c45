package domain

import "context"

// Synthesizer turns reply text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns recorded speech into draft text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
