package stages

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/haris936hk/EchoNote-sub001/internal/models"
)

// NLPExtractor calls the feature extraction service (entities, key
// phrases, sentiment, topics). Extraction is best-effort: callers may
// proceed with empty features when it fails.
type NLPExtractor struct {
	baseURL string
	client  *http.Client
}

func NewNLPExtractor(baseURL string, timeout time.Duration) *NLPExtractor {
	return &NLPExtractor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Success    bool               `json:"success"`
	Entities   []models.Entity    `json:"entities"`
	KeyPhrases []models.KeyPhrase `json:"keyPhrases"`
	Sentiment  *models.Sentiment  `json:"sentiment"`
	Topics     []string           `json:"topics"`
	Error      string             `json:"error,omitempty"`
}

func (c *NLPExtractor) Extract(ctx context.Context, transcript string) (*models.NLPFeatures, error) {
	var resp extractResponse
	url := c.baseURL + "/extract"
	if err := postJSON(ctx, c.client, StageNLPExtract, url, extractRequest{Text: transcript}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, NewTransient(StageNLPExtract, "extractor reported failure: "+resp.Error, nil)
	}

	slog.Debug("nlp extraction finished",
		"entities", len(resp.Entities),
		"key_phrases", len(resp.KeyPhrases),
		"topics", len(resp.Topics))

	return &models.NLPFeatures{
		Entities:   resp.Entities,
		KeyPhrases: resp.KeyPhrases,
		Sentiment:  resp.Sentiment,
		Topics:     resp.Topics,
	}, nil
}
