package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/haris936hk/EchoNote-sub001/internal/common"
	"github.com/haris936hk/EchoNote-sub001/internal/config"
	"github.com/haris936hk/EchoNote-sub001/internal/models"
	"github.com/haris936hk/EchoNote-sub001/internal/queue"
	"github.com/haris936hk/EchoNote-sub001/internal/repository"
	"github.com/haris936hk/EchoNote-sub001/internal/storage"
	"github.com/haris936hk/EchoNote-sub001/internal/validation"
)

// sniffLen is how many leading bytes are used for content detection.
const sniffLen = 3072

type Handlers struct {
	Q       queue.Queue
	Repo    *repository.Repository
	Storage storage.Storage
	Redis   *redis.Client // nil unless the Redis queue is configured
	Config  config.Config
}

func (h *Handlers) Routers(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Get("/files/*", h.serveFiles)

	r.Route("/v1", func(r chi.Router) {
		// uploads are expensive, rate limit them per client
		r.With(httprate.LimitByIP(10, time.Minute)).Post("/meetings", h.uploadMeeting)
		r.Get("/meetings", h.listMeetings)
		r.Get("/meetings/{id}", h.getMeeting)
		r.Post("/meetings/{id}/cancel", h.cancelMeeting)
		r.Get("/queue/stats", h.queueStats)
	})
}

func (h *Handlers) uploadMeeting(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.Config.MaxUploadSize); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	req := validation.UploadRequest{
		Title:      r.FormValue("title"),
		Category:   strings.ToUpper(r.FormValue("category")),
		OwnerID:    r.FormValue("owner_id"),
		OwnerEmail: r.FormValue("owner_email"),
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeValidationErrors(w, validation.ValidationErrors{
			{Field: "audio", Message: "audio file is required"},
		})
		return
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(file, head)
	head = head[:n]

	if validationErrs := validation.ValidateUpload(req, header, head); len(validationErrs) > 0 {
		writeValidationErrors(w, validationErrs)
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		http.Error(w, "invalid owner ID", http.StatusBadRequest)
		return
	}

	contentType := mimetype.Detect(head).String()
	content := io.MultiReader(bytes.NewReader(head), file)
	uploadResult, err := h.Storage.UploadFile(r.Context(), header.Filename, content, contentType)
	if err != nil {
		slog.Error("failed to store recording", "filename", header.Filename, "error", err)
		http.Error(w, "failed to store recording", http.StatusInternalServerError)
		return
	}

	meeting := &models.Meeting{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		OwnerEmail: req.OwnerEmail,
		Title:      req.Title,
		Category:   req.Category,
		AudioKey:   uploadResult.Key,
		Status:     models.StatusUploading,
	}
	if err := h.Repo.CreateMeeting(r.Context(), meeting); err != nil {
		slog.Error("failed to create meeting", "error", err)
		http.Error(w, "failed to create meeting", http.StatusInternalServerError)
		return
	}

	position, err := h.Q.Enqueue(r.Context(), queue.Entry{
		MeetingID: meeting.ID,
		OwnerID:   ownerID,
		AudioKey:  uploadResult.Key,
	})
	if err != nil {
		// The entry is queued in memory even when the status write failed;
		// processing will sort the status out.
		slog.Error("failed to persist queued status", "meeting_id", meeting.ID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"meeting_id":     meeting.ID,
		"status":         models.StatusPending,
		"queue_position": position,
	})
}

func (h *Handlers) getMeeting(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	meeting, err := h.Repo.GetMeetingByID(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get meeting", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(meeting); err != nil {
		slog.Warn("encode meeting", "err", err)
	}
}

func (h *Handlers) listMeetings(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("owner_id")
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "owner_id query parameter is required", http.StatusBadRequest)
		return
	}

	meetings, err := h.Repo.ListMeetingsByOwner(r.Context(), ownerID)
	if err != nil {
		slog.Error("failed to list meetings", "owner_id", ownerID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(meetings); err != nil {
		slog.Warn("encode meetings", "err", err)
	}
}

// cancelMeeting removes a queued meeting or a pending retry. A meeting
// that is mid-pipeline cannot be canceled.
func (h *Handlers) cancelMeeting(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := h.Q.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, common.ErrNotInQueue) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   "not in queue",
			})
			return
		}
		slog.Error("failed to cancel meeting", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (h *Handlers) queueStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Q.Stats()); err != nil {
		slog.Warn("encode stats", "err", err)
	}
}

// serveFiles streams stored recordings through the storage backend, so
// the same route works for the local filesystem and S3 modes.
func (h *Handlers) serveFiles(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		http.Error(w, "file path required", http.StatusBadRequest)
		return
	}
	if strings.Contains(key, "..") {
		http.Error(w, "invalid file path", http.StatusBadRequest)
		return
	}

	content, contentType, err := h.Storage.GetFile(r.Context(), key)
	if err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to read stored file", "key", key, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, content); err != nil {
		slog.Warn("serve file interrupted", "key", key, "err", err)
	}
}

func writeValidationErrors(w http.ResponseWriter, errs validation.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   "validation failed",
		"details": errs,
	})
}
