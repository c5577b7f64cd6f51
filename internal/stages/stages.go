// Package stages wraps the five external pipeline collaborators (audio
// optimizer, transcriber, NLP extractor, summarizer, notifier). Every
// invoker returns failure as data: a tagged *Error classified transient
// or permanent, never a panic, so the orchestrator's handling stays a
// plain switch over outcomes.
package stages

import (
	"fmt"
)

// Stage names for logs and error messages.
const (
	StageAudioOptimize = "audio_optimize"
	StageTranscribe    = "transcribe"
	StageNLPExtract    = "nlp_extract"
	StageSummarize     = "summarize"
	StageNotify        = "notify"
)

// Error is a stage failure with a human-readable reason. Permanent
// failures (bad input, malformed model output) will never succeed on
// retry and skip the backoff schedule entirely.
type Error struct {
	Stage     string
	Reason    string
	Err       error
	permanent bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Permanent reports whether retrying can ever succeed.
func (e *Error) Permanent() bool {
	return e.permanent
}

// NewTransient builds a retryable stage failure.
func NewTransient(stage, reason string, err error) *Error {
	return &Error{Stage: stage, Reason: reason, Err: err}
}

// NewPermanent builds a stage failure that no retry can fix.
func NewPermanent(stage, reason string, err error) *Error {
	return &Error{Stage: stage, Reason: reason, Err: err, permanent: true}
}

// OptimizedAudio is the audio optimizer's success payload.
type OptimizedAudio struct {
	AudioKey string
	Duration float64
}

// Transcript is the transcriber's success payload.
type Transcript struct {
	Text       string
	Confidence float64
}
