package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/haris936hk/EchoNote-sub001/internal/models"
)

const summarySystemPrompt = `You are an expert meeting summarizer. Analyze the transcript and generate a structured summary in JSON format.

Your response MUST be valid JSON with this exact structure:
{
    "executiveSummary": "A concise 2-3 sentence summary of the main points",
    "keyDecisions": "Text describing the key decisions made in the meeting",
    "actionItems": [
        {
            "task": "Specific task description",
            "assignee": "Person name or role (or null if not mentioned)",
            "deadline": "When it's due (or null if not mentioned)",
            "priority": "high" | "medium" | "low"
        }
    ],
    "nextSteps": "Text describing what happens next",
    "keyTopics": ["Topic1", "Topic2", "Topic3"],
    "sentiment": "positive" | "negative" | "neutral"
}

IMPORTANT: Return ONLY the JSON object, no additional text.`

// MeetingMeta is the metadata handed to the summarizer prompt.
type MeetingMeta struct {
	Title    string
	Category string
	Duration float64 // seconds
}

// Summarizer produces the structured meeting summary through the Groq
// chat completion API (OpenAI-compatible).
type Summarizer struct {
	client *openai.Client
	model  string
}

func NewSummarizer(apiKey, baseURL, model string) *Summarizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Summarizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, transcript string, features *models.NLPFeatures, meta MeetingMeta) (*models.Summary, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildSummaryPrompt(transcript, features, meta)},
		},
		MaxTokens:   2000,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, NewTransient(StageSummarize, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewTransient(StageSummarize, "model returned no choices", nil)
	}

	summary, perr := parseSummary(resp.Choices[0].Message.Content)
	if perr != nil {
		return nil, perr
	}

	slog.Info("summary generated",
		"model", resp.Model,
		"tokens_used", resp.Usage.TotalTokens,
		"action_items", len(summary.ActionItems))
	return summary, nil
}

// buildSummaryPrompt assembles the user message from the transcript, the
// meeting metadata and whatever NLP features survived extraction.
func buildSummaryPrompt(transcript string, features *models.NLPFeatures, meta MeetingMeta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting Title: %s\n", meta.Title)
	fmt.Fprintf(&b, "Category: %s\n", meta.Category)
	fmt.Fprintf(&b, "Duration: %.1f minutes\n", meta.Duration/60)

	if features != nil {
		if len(features.Topics) > 0 {
			fmt.Fprintf(&b, "Detected topics: %s\n", strings.Join(features.Topics, ", "))
		}
		if len(features.KeyPhrases) > 0 {
			phrases := make([]string, 0, len(features.KeyPhrases))
			for _, p := range features.KeyPhrases {
				phrases = append(phrases, p.Phrase)
			}
			fmt.Fprintf(&b, "Key phrases: %s\n", strings.Join(phrases, ", "))
		}
	}

	fmt.Fprintf(&b, "\nTranscript:\n%s", transcript)
	return b.String()
}

// parseSummary decodes the model output, tolerating markdown code fences
// around the JSON object. Output that cannot be decoded is a permanent
// failure: the same prompt will keep producing the same garbage.
func parseSummary(content string) (*models.Summary, error) {
	raw := strings.TrimSpace(content)
	if idx := strings.Index(raw, "{"); idx >= 0 {
		if end := strings.LastIndex(raw, "}"); end > idx {
			raw = raw[idx : end+1]
		}
	}

	var summary models.Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, NewPermanent(StageSummarize, "model returned malformed JSON", err)
	}
	if summary.ExecutiveSummary == "" {
		return nil, NewPermanent(StageSummarize, "model returned empty summary", nil)
	}
	return &summary, nil
}
