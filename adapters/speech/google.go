package speech

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleSpeech transcribes short LINEAR16 voice notes into draft text.
type GoogleSpeech struct {
	client       *speech.Client
	languageCode string
	sampleRate   int32
}

func NewGoogleSpeech(ctx context.Context, languageCode string, sampleRateHertz int32) (*GoogleSpeech, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Google speech client: %w", err)
	}
	return &GoogleSpeech{
		client:       client,
		languageCode: languageCode,
		sampleRate:   sampleRateHertz,
	}, nil
}

// Transcribe implements domain.Transcriber. Results are joined in order
// using each one's most likely alternative.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: g.sampleRate,
			LanguageCode:    g.languageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognizing speech: %w", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}
	return strings.Join(parts, " "), nil
}

func (g *GoogleSpeech) Close() error {
	return g.client.Close()
}
