package stages

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// AudioOptimizer calls the audio processing service that normalizes,
// denoises and downsamples a recording for the speech recognizer.
type AudioOptimizer struct {
	baseURL string
	client  *http.Client
}

func NewAudioOptimizer(baseURL string, timeout time.Duration) *AudioOptimizer {
	return &AudioOptimizer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type optimizeRequest struct {
	AudioKey string `json:"audio_key"`
}

type optimizeResponse struct {
	Success      bool    `json:"success"`
	OptimizedKey string  `json:"optimized_key"`
	Duration     float64 `json:"duration"`
	Error        string  `json:"error,omitempty"`
}

func (c *AudioOptimizer) Optimize(ctx context.Context, audioKey string) (*OptimizedAudio, error) {
	var resp optimizeResponse
	url := c.baseURL + "/optimize"
	if err := postJSON(ctx, c.client, StageAudioOptimize, url, optimizeRequest{AudioKey: audioKey}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, NewTransient(StageAudioOptimize, "optimizer reported failure: "+resp.Error, nil)
	}
	if resp.OptimizedKey == "" {
		return nil, NewTransient(StageAudioOptimize, "optimizer returned no audio reference", nil)
	}

	slog.Debug("audio optimized", "key", resp.OptimizedKey, "duration", resp.Duration)
	return &OptimizedAudio{
		AudioKey: resp.OptimizedKey,
		Duration: resp.Duration,
	}, nil
}
