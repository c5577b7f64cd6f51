package validation

import (
	"mime/multipart"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// Minimal valid WAV header for content sniffing.
var wavHead = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

func validRequest() UploadRequest {
	return UploadRequest{
		Title:      "Sprint planning",
		Category:   "PLANNING",
		OwnerID:    uuid.NewString(),
		OwnerEmail: "owner@example.com",
	}
}

func fileHeader(name string, size int64) *multipart.FileHeader {
	return &multipart.FileHeader{Filename: name, Size: size}
}

func hasFieldError(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateUpload_Valid(t *testing.T) {
	errs := ValidateUpload(validRequest(), fileHeader("standup.wav", 1024), wavHead)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateUpload_MissingTitle(t *testing.T) {
	req := validRequest()
	req.Title = ""
	errs := ValidateUpload(req, fileHeader("standup.wav", 1024), wavHead)
	if !hasFieldError(errs, "title") {
		t.Fatalf("expected title error, got %v", errs)
	}
}

func TestValidateUpload_TitleTooLong(t *testing.T) {
	req := validRequest()
	req.Title = strings.Repeat("x", MaxTitleLength+1)
	errs := ValidateUpload(req, fileHeader("standup.wav", 1024), wavHead)
	if !hasFieldError(errs, "title") {
		t.Fatalf("expected title error, got %v", errs)
	}
}

func TestValidateUpload_BadCategory(t *testing.T) {
	req := validRequest()
	req.Category = "KICKOFF"
	errs := ValidateUpload(req, fileHeader("standup.wav", 1024), wavHead)
	if !hasFieldError(errs, "category") {
		t.Fatalf("expected category error, got %v", errs)
	}
}

func TestValidateUpload_EmptyCategoryAllowed(t *testing.T) {
	req := validRequest()
	req.Category = ""
	errs := ValidateUpload(req, fileHeader("standup.wav", 1024), wavHead)
	if len(errs) != 0 {
		t.Fatalf("category should be optional, got %v", errs)
	}
}

func TestValidateUpload_BadOwnerID(t *testing.T) {
	req := validRequest()
	req.OwnerID = "not-a-uuid"
	errs := ValidateUpload(req, fileHeader("standup.wav", 1024), wavHead)
	if !hasFieldError(errs, "ownerid") {
		t.Fatalf("expected owner id error, got %v", errs)
	}
}

func TestValidateUpload_BadEmail(t *testing.T) {
	req := validRequest()
	req.OwnerEmail = "not-an-email"
	errs := ValidateUpload(req, fileHeader("standup.wav", 1024), wavHead)
	if !hasFieldError(errs, "owneremail") {
		t.Fatalf("expected email error, got %v", errs)
	}
}

func TestValidateUpload_MissingFile(t *testing.T) {
	errs := ValidateUpload(validRequest(), nil, nil)
	if !hasFieldError(errs, "audio") {
		t.Fatalf("expected audio error, got %v", errs)
	}
}

func TestValidateUpload_EmptyFile(t *testing.T) {
	errs := ValidateUpload(validRequest(), fileHeader("empty.wav", 0), nil)
	if !hasFieldError(errs, "audio") {
		t.Fatalf("expected audio error, got %v", errs)
	}
}

func TestValidateUpload_OversizedFile(t *testing.T) {
	errs := ValidateUpload(validRequest(), fileHeader("huge.wav", MaxFileSize+1), wavHead)
	if !hasFieldError(errs, "audio") {
		t.Fatalf("expected audio error, got %v", errs)
	}
}

func TestValidateUpload_NonAudioContent(t *testing.T) {
	pdfHead := []byte("%PDF-1.4 something")
	errs := ValidateUpload(validRequest(), fileHeader("report.wav", 1024), pdfHead)
	if !hasFieldError(errs, "audio") {
		t.Fatalf("expected content type error, got %v", errs)
	}
}

func TestValidateUpload_WebmAccepted(t *testing.T) {
	// Browser recordings sniff as webm containers: EBML magic plus a
	// DocType element naming "webm".
	webmHead := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x82, 0x84, 'w', 'e', 'b', 'm'}
	errs := ValidateUpload(validRequest(), fileHeader("recording.webm", 1024), webmHead)
	if hasFieldError(errs, "audio") {
		t.Fatalf("webm recording should be accepted, got %v", errs)
	}
}
