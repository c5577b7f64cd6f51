package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/haris936hk/EchoNote-sub001/internal/common"
	"github.com/haris936hk/EchoNote-sub001/internal/database"
	"github.com/haris936hk/EchoNote-sub001/internal/models"
)

type Repository struct {
	db *database.DB
}

func New(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *database.DB {
	return r.db
}

func (r *Repository) CreateMeeting(ctx context.Context, m *models.Meeting) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = models.StatusUploading
	}

	query := `
		INSERT INTO meetings (id, owner_id, owner_email, title, category, audio_key, audio_duration, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, NOW(), NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query,
		m.ID,
		m.OwnerID,
		m.OwnerEmail,
		m.Title,
		m.Category,
		m.AudioKey,
		m.AudioDuration,
		m.Status,
	)
	return err
}

func (r *Repository) GetMeetingByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	query := `
		SELECT id, owner_id, owner_email, title, category, audio_key, audio_duration,
		       status, retry_count, last_retry_at, processing_started_at, processing_completed_at,
		       error_message, transcript, transcript_confidence, nlp_features, summary,
		       created_at, updated_at
		FROM meetings
		WHERE id = $1
	`

	var m models.Meeting
	var nlpRaw, summaryRaw []byte

	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.OwnerID,
		&m.OwnerEmail,
		&m.Title,
		&m.Category,
		&m.AudioKey,
		&m.AudioDuration,
		&m.Status,
		&m.RetryCount,
		&m.LastRetryAt,
		&m.ProcessingStartedAt,
		&m.ProcessingCompletedAt,
		&m.ErrorMessage,
		&m.Transcript,
		&m.TranscriptConfidence,
		&nlpRaw,
		&summaryRaw,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrMeetingNotFound
		}
		return nil, err
	}

	if len(nlpRaw) > 0 {
		var f models.NLPFeatures
		if err := json.Unmarshal(nlpRaw, &f); err != nil {
			return nil, fmt.Errorf("failed to decode nlp features: %w", err)
		}
		m.NLPFeatures = &f
	}
	if len(summaryRaw) > 0 {
		var s models.Summary
		if err := json.Unmarshal(summaryRaw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
		m.Summary = &s
	}

	return &m, nil
}

func (r *Repository) ListMeetingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Meeting, error) {
	query := `
		SELECT id, owner_id, owner_email, title, category, audio_key, audio_duration,
		       status, retry_count, error_message, processing_started_at, processing_completed_at,
		       created_at, updated_at
		FROM meetings
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []models.Meeting
	for rows.Next() {
		var m models.Meeting
		err := rows.Scan(
			&m.ID,
			&m.OwnerID,
			&m.OwnerEmail,
			&m.Title,
			&m.Category,
			&m.AudioKey,
			&m.AudioDuration,
			&m.Status,
			&m.RetryCount,
			&m.ErrorMessage,
			&m.ProcessingStartedAt,
			&m.ProcessingCompletedAt,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}

	return meetings, rows.Err()
}

// SetStatus persists the stage about to run. It is written before each
// stage starts so the stored value is always the last known stage in
// progress, even if the process dies mid-stage.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	query := `UPDATE meetings SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Pool().Exec(ctx, query, status, id)
	return err
}

func (r *Repository) MarkQueued(ctx context.Context, id uuid.UUID) error {
	return r.SetStatus(ctx, id, models.StatusPending)
}

func (r *Repository) MarkProcessingStarted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE meetings
		SET processing_started_at = NOW(), error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Pool().Exec(ctx, query, id)
	return err
}

// MarkRetryScheduled re-queues a failed attempt: status back to PENDING,
// retry counter bumped, failure reason kept for progress reporting.
func (r *Repository) MarkRetryScheduled(ctx context.Context, id uuid.UUID, attempt int, reason string) error {
	query := `
		UPDATE meetings
		SET status = $1, retry_count = $2, last_retry_at = NOW(), error_message = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := r.db.Pool().Exec(ctx, query, models.StatusPending, attempt, reason, id)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE meetings
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Pool().Exec(ctx, query, models.StatusFailed, reason, id)
	return err
}

func (r *Repository) SaveTranscript(ctx context.Context, id uuid.UUID, transcript string, confidence float64) error {
	query := `
		UPDATE meetings
		SET transcript = $1, transcript_confidence = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Pool().Exec(ctx, query, transcript, confidence, id)
	return err
}

func (r *Repository) SaveAudioDuration(ctx context.Context, id uuid.UUID, duration float64) error {
	query := `UPDATE meetings SET audio_duration = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Pool().Exec(ctx, query, duration, id)
	return err
}

func (r *Repository) SaveNLPFeatures(ctx context.Context, id uuid.UUID, features models.NLPFeatures) error {
	raw, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("failed to encode nlp features: %w", err)
	}

	query := `UPDATE meetings SET nlp_features = $1, updated_at = NOW() WHERE id = $2`
	_, err = r.db.Pool().Exec(ctx, query, raw, id)
	return err
}

// CompleteWithSummary stores the final summary and flips the meeting to
// COMPLETED in one transaction, so a crash between the two writes cannot
// leave a completed meeting without its summary.
func (r *Repository) CompleteWithSummary(ctx context.Context, id uuid.UUID, summary models.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE meetings SET summary = $1, updated_at = NOW() WHERE id = $2`,
			raw, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE meetings
			 SET status = $1, processing_completed_at = NOW(), error_message = NULL, updated_at = NOW()
			 WHERE id = $2`,
			models.StatusCompleted, id)
		return err
	})
}
