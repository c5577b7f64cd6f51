package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 512

// postJSON sends a JSON request to an external stage service and decodes
// the response. Failures are classified by status: 4xx means the request
// itself can never succeed (permanent), everything else is assumed to be
// a service hiccup (transient).
func postJSON(ctx context.Context, client *http.Client, stage, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return NewPermanent(stage, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewPermanent(stage, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "EchoNote-Pipeline/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return NewTransient(stage, "service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		reason := fmt.Sprintf("service returned %d: %s", resp.StatusCode, bytes.TrimSpace(excerpt))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return NewPermanent(stage, reason, nil)
		}
		return NewTransient(stage, reason, nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewTransient(stage, "malformed service response", err)
	}
	return nil
}
