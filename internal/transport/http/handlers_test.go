package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haris936hk/EchoNote-sub001/internal/config"
	"github.com/haris936hk/EchoNote-sub001/internal/queue"
	"github.com/haris936hk/EchoNote-sub001/internal/storage"
)

type noopStore struct{}

func (noopStore) MarkQueued(ctx context.Context, id uuid.UUID) error { return nil }
func (noopStore) MarkRetryScheduled(ctx context.Context, id uuid.UUID, attempt int, reason string) error {
	return nil
}
func (noopStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error { return nil }

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, e queue.Entry) error { return nil }

func newTestHandlers(t *testing.T) (*Handlers, queue.Queue) {
	t.Helper()
	q := queue.NewMemoryQueue(noopRunner{}, noopStore{}, queue.Options{
		Tick:      time.Hour,
		RetryBase: time.Hour,
	})
	t.Cleanup(func() { q.Close() })

	h := &Handlers{
		Q:      q,
		Config: config.Config{StorageMode: "s3", MaxUploadSize: 50 << 20},
	}
	return h, q
}

func newTestRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	h.Routers(r)
	return r
}

func TestQueueStats_Empty(t *testing.T) {
	h, _ := newTestHandlers(t)
	r := newTestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/queue/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats queue.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.QueueLength != 0 || stats.Processing {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
}

func TestQueueStats_ReflectsEnqueued(t *testing.T) {
	h, q := newTestHandlers(t)
	r := newTestRouter(h)

	q.Enqueue(context.Background(), queue.Entry{MeetingID: uuid.New()})
	q.Enqueue(context.Background(), queue.Entry{MeetingID: uuid.New()})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/queue/stats", nil))

	var stats queue.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.QueueLength != 2 {
		t.Fatalf("expected queue length 2, got %d", stats.QueueLength)
	}
}

func TestCancelMeeting_Queued(t *testing.T) {
	h, q := newTestHandlers(t)
	r := newTestRouter(h)

	id := uuid.New()
	q.Enqueue(context.Background(), queue.Entry{MeetingID: id})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/meetings/"+id.String()+"/cancel", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if q.Stats().QueueLength != 0 {
		t.Fatalf("expected meeting removed from queue")
	}
}

func TestCancelMeeting_NotQueued(t *testing.T) {
	h, _ := newTestHandlers(t)
	r := newTestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/meetings/"+uuid.NewString()+"/cancel", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["success"] != false {
		t.Fatalf("expected success=false, got %v", body)
	}
}

func TestCancelMeeting_BadID(t *testing.T) {
	h, _ := newTestHandlers(t)
	r := newTestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/meetings/not-a-uuid/cancel", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUploadMeeting_MissingFile(t *testing.T) {
	h, _ := newTestHandlers(t)
	r := newTestRouter(h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("title", "Standup")
	mw.WriteField("owner_id", uuid.NewString())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/meetings", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadMeeting_InvalidMetadata(t *testing.T) {
	h, _ := newTestHandlers(t)
	r := newTestRouter(h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("title", "") // missing
	mw.WriteField("owner_id", "not-a-uuid")
	fw, _ := mw.CreateFormFile("audio", "standup.wav")
	fw.Write([]byte("RIFF\x24\x00\x00\x00WAVEfmt "))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/meetings", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Details) == 0 {
		t.Fatalf("expected validation details, got %s", rec.Body.String())
	}
}

func TestServeFiles_ThroughStorage(t *testing.T) {
	h, _ := newTestHandlers(t)
	store, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	h.Storage = store
	r := newTestRouter(h)

	up, err := store.UploadFile(context.Background(), "standup.wav",
		bytes.NewReader([]byte("RIFF\x24\x00\x00\x00WAVEfmt ")), "audio/wav")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+up.Key, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("expected audio/wav, got %s", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("RIFF")) {
		t.Fatalf("expected stored file content, got %q", rec.Body.String())
	}
}

func TestServeFiles_NotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	store, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	h.Storage = store
	r := newTestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/recordings/missing.wav", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetMeeting_BadID(t *testing.T) {
	h, _ := newTestHandlers(t)
	r := newTestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/meetings/not-a-uuid", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListMeetings_RequiresOwner(t *testing.T) {
	h, _ := newTestHandlers(t)
	r := newTestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/meetings", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
