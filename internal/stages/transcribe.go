package stages

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Transcriber calls the Whisper speech-to-text service. The service URL
// is typically an NGROK tunnel to a GPU host, so transient failures are
// common and expected.
type Transcriber struct {
	baseURL string
	client  *http.Client
}

func NewTranscriber(baseURL string, timeout time.Duration) *Transcriber {
	return &Transcriber{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type transcribeRequest struct {
	AudioKey string `json:"audio_key"`
}

type transcribeResponse struct {
	Success    bool    `json:"success"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

func (c *Transcriber) Transcribe(ctx context.Context, audioKey string) (*Transcript, error) {
	var resp transcribeResponse
	url := c.baseURL + "/transcribe"
	if err := postJSON(ctx, c.client, StageTranscribe, url, transcribeRequest{AudioKey: audioKey}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, NewTransient(StageTranscribe, "transcriber reported failure: "+resp.Error, nil)
	}
	if resp.Transcript == "" {
		// No speech in the recording cannot be fixed by retrying.
		return nil, NewPermanent(StageTranscribe, "no speech detected in recording", nil)
	}

	slog.Debug("transcription finished", "chars", len(resp.Transcript), "confidence", resp.Confidence)
	return &Transcript{
		Text:       resp.Transcript,
		Confidence: resp.Confidence,
	}, nil
}
