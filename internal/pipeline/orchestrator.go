// Package pipeline sequences the five processing stages for one meeting
// and owns every status transition in between.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/haris936hk/EchoNote-sub001/internal/common"
	"github.com/haris936hk/EchoNote-sub001/internal/models"
	"github.com/haris936hk/EchoNote-sub001/internal/queue"
	"github.com/haris936hk/EchoNote-sub001/internal/stages"
)

// Store is the meeting persistence the orchestrator needs. Satisfied by
// *repository.Repository.
type Store interface {
	GetMeetingByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.Status) error
	MarkProcessingStarted(ctx context.Context, id uuid.UUID) error
	SaveAudioDuration(ctx context.Context, id uuid.UUID, duration float64) error
	SaveTranscript(ctx context.Context, id uuid.UUID, transcript string, confidence float64) error
	SaveNLPFeatures(ctx context.Context, id uuid.UUID, features models.NLPFeatures) error
	CompleteWithSummary(ctx context.Context, id uuid.UUID, summary models.Summary) error
}

type AudioOptimizer interface {
	Optimize(ctx context.Context, audioKey string) (*stages.OptimizedAudio, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioKey string) (*stages.Transcript, error)
}

type NLPExtractor interface {
	Extract(ctx context.Context, transcript string) (*models.NLPFeatures, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string, features *models.NLPFeatures, meta stages.MeetingMeta) (*models.Summary, error)
}

type Notifier interface {
	NotifyCompleted(ctx context.Context, recipient string, snap stages.ResultSnapshot) error
}

type Orchestrator struct {
	store       Store
	optimizer   AudioOptimizer
	transcriber Transcriber
	extractor   NLPExtractor
	summarizer  Summarizer
	notifier    Notifier
}

func NewOrchestrator(store Store, optimizer AudioOptimizer, transcriber Transcriber, extractor NLPExtractor, summarizer Summarizer, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		store:       store,
		optimizer:   optimizer,
		transcriber: transcriber,
		extractor:   extractor,
		summarizer:  summarizer,
		notifier:    notifier,
	}
}

// Run executes the pipeline for one dequeued entry. The status naming
// each stage is persisted before the stage is invoked, so the stored
// value is always the last known stage in progress. The first failing
// stage stops the sequence; the returned error carries the retry
// classification for the queue's scheduler.
func (o *Orchestrator) Run(ctx context.Context, e queue.Entry) error {
	m, err := o.store.GetMeetingByID(ctx, e.MeetingID)
	if err != nil {
		if common.IsNotFound(err) {
			// Deleted while queued; retrying cannot bring the row back.
			slog.Warn("skipping meeting no longer present", "meeting_id", e.MeetingID)
			return nil
		}
		return fmt.Errorf("failed to load meeting: %w", err)
	}
	if m.Status.Terminal() {
		// Deleted or already settled while queued; nothing to do.
		slog.Warn("skipping meeting in terminal state", "meeting_id", m.ID, "status", m.Status)
		return nil
	}

	if err := o.store.MarkProcessingStarted(ctx, m.ID); err != nil {
		return fmt.Errorf("failed to mark processing started: %w", err)
	}

	// Stage 1: audio optimization.
	if err := o.store.SetStatus(ctx, m.ID, models.StatusProcessingAudio); err != nil {
		return fmt.Errorf("failed to persist status: %w", err)
	}
	optimized, err := o.optimizer.Optimize(ctx, e.AudioKey)
	if err != nil {
		return err
	}
	if err := o.store.SaveAudioDuration(ctx, m.ID, optimized.Duration); err != nil {
		return fmt.Errorf("failed to save audio duration: %w", err)
	}

	// Stage 2: transcription.
	if err := o.store.SetStatus(ctx, m.ID, models.StatusTranscribing); err != nil {
		return fmt.Errorf("failed to persist status: %w", err)
	}
	transcript, err := o.transcriber.Transcribe(ctx, optimized.AudioKey)
	if err != nil {
		return err
	}
	if err := o.store.SaveTranscript(ctx, m.ID, transcript.Text, transcript.Confidence); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	// Stage 3: feature extraction. Best-effort: the summarizer works fine
	// without features, so a failed extraction does not burn an attempt.
	if err := o.store.SetStatus(ctx, m.ID, models.StatusProcessingNLP); err != nil {
		return fmt.Errorf("failed to persist status: %w", err)
	}
	features, err := o.extractor.Extract(ctx, transcript.Text)
	if err != nil {
		slog.Warn("nlp extraction failed, proceeding with empty features",
			"meeting_id", m.ID, "error", err)
		features = &models.NLPFeatures{}
	}
	if err := o.store.SaveNLPFeatures(ctx, m.ID, *features); err != nil {
		return fmt.Errorf("failed to save nlp features: %w", err)
	}

	// Stage 4: summarization.
	if err := o.store.SetStatus(ctx, m.ID, models.StatusSummarizing); err != nil {
		return fmt.Errorf("failed to persist status: %w", err)
	}
	summary, err := o.summarizer.Summarize(ctx, transcript.Text, features, stages.MeetingMeta{
		Title:    m.Title,
		Category: m.Category,
		Duration: optimized.Duration,
	})
	if err != nil {
		return err
	}
	if err := o.store.CompleteWithSummary(ctx, m.ID, *summary); err != nil {
		return fmt.Errorf("failed to complete meeting: %w", err)
	}

	// Stage 5: notification. The meeting is already COMPLETED; a lost
	// email never fails the job.
	if m.OwnerEmail != "" {
		err := o.notifier.NotifyCompleted(ctx, m.OwnerEmail, stages.ResultSnapshot{
			MeetingID: m.ID,
			Title:     m.Title,
			Duration:  optimized.Duration,
			Summary:   *summary,
		})
		if err != nil {
			slog.Warn("completion notification failed", "meeting_id", m.ID, "error", err)
		}
	}

	slog.Info("meeting pipeline completed", "meeting_id", m.ID, "attempt", e.Attempt)
	return nil
}
