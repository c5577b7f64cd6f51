package models

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks how far a meeting has progressed through the processing
// pipeline. The persisted value always names the stage currently in
// progress, so it doubles as the progress-reporting interface.
type Status string

const (
	StatusUploading       Status = "UPLOADING"
	StatusPending         Status = "PENDING"
	StatusProcessingAudio Status = "PROCESSING_AUDIO"
	StatusTranscribing    Status = "TRANSCRIBING"
	StatusProcessingNLP   Status = "PROCESSING_NLP"
	StatusSummarizing     Status = "SUMMARIZING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// Terminal reports whether a status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Meeting struct {
	ID                    uuid.UUID    `json:"id"`
	OwnerID               uuid.UUID    `json:"owner_id"`
	OwnerEmail            string       `json:"owner_email,omitempty"`
	Title                 string       `json:"title"`
	Category              string       `json:"category,omitempty"`
	AudioKey              string       `json:"audio_key"`
	AudioDuration         float64      `json:"audio_duration,omitempty"`
	Status                Status       `json:"status"`
	RetryCount            int          `json:"retry_count"`
	LastRetryAt           *time.Time   `json:"last_retry_at,omitempty"`
	ProcessingStartedAt   *time.Time   `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time   `json:"processing_completed_at,omitempty"`
	ErrorMessage          *string      `json:"error_message,omitempty"`
	Transcript            *string      `json:"transcript,omitempty"`
	TranscriptConfidence  *float64     `json:"transcript_confidence,omitempty"`
	NLPFeatures           *NLPFeatures `json:"nlp_features,omitempty"`
	Summary               *Summary     `json:"summary,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// NLPFeatures are the extracted transcript features. Every field may be
// empty: extraction is best-effort and the pipeline proceeds without it.
type NLPFeatures struct {
	Entities   []Entity    `json:"entities,omitempty"`
	KeyPhrases []KeyPhrase `json:"keyPhrases,omitempty"`
	Sentiment  *Sentiment  `json:"sentiment,omitempty"`
	Topics     []string    `json:"topics,omitempty"`
}

type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type KeyPhrase struct {
	Phrase    string  `json:"phrase"`
	Score     float64 `json:"score"`
	Frequency int     `json:"frequency"`
}

type Sentiment struct {
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
	Label        string  `json:"label"`
}

// Summary is the structured meeting summary produced by the LLM stage.
type Summary struct {
	ExecutiveSummary string       `json:"executiveSummary"`
	KeyDecisions     string       `json:"keyDecisions"`
	ActionItems      []ActionItem `json:"actionItems"`
	NextSteps        string       `json:"nextSteps"`
	KeyTopics        []string     `json:"keyTopics"`
	Sentiment        string       `json:"sentiment"`
}

type ActionItem struct {
	Task     string  `json:"task"`
	Assignee *string `json:"assignee"`
	Deadline *string `json:"deadline"`
	Priority string  `json:"priority"`
}
