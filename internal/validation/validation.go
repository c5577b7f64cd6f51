package validation

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

const (
	MaxFileSize    = 50 << 20 // 50mb
	MaxTitleLength = 200
)

// Audio types the pipeline accepts. Browser MediaRecorder produces webm
// containers that sniff as video/webm even for audio-only tracks.
var allowedMimeTypes = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/mpeg":  true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/ogg":   true,
	"audio/flac":  true,
	"audio/aac":   true,
	"audio/webm":  true,
	"video/webm":  true,
}

var validate = validator.New()

// UploadRequest is the metadata part of a meeting upload.
type UploadRequest struct {
	Title      string `validate:"required,max=200"`
	Category   string `validate:"omitempty,oneof=STANDUP PLANNING RETROSPECTIVE CLIENT INTERVIEW OTHER"`
	OwnerID    string `validate:"required,uuid"`
	OwnerEmail string `validate:"omitempty,email"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidateUpload checks the metadata fields and the audio file. head is
// the first few hundred bytes of the file for content sniffing.
func ValidateUpload(req UploadRequest, file *multipart.FileHeader, head []byte) ValidationErrors {
	var errs ValidationErrors

	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, ValidationError{
					Field:   strings.ToLower(fe.Field()),
					Message: fieldMessage(fe),
				})
			}
		} else {
			errs = append(errs, ValidationError{Field: "request", Message: err.Error()})
		}
	}

	if file == nil {
		errs = append(errs, ValidationError{Field: "audio", Message: "audio file is required"})
		return errs
	}

	if file.Size == 0 {
		errs = append(errs, ValidationError{Field: "audio", Message: fmt.Sprintf("file %s is empty", file.Filename)})
	}
	if file.Size > MaxFileSize {
		errs = append(errs, ValidationError{
			Field:   "audio",
			Message: fmt.Sprintf("file %s exceeds maximum size of %d bytes", file.Filename, MaxFileSize),
		})
	}

	if len(head) > 0 {
		mtype := mimetype.Detect(head)
		if !allowedMimeTypes[mtype.String()] {
			errs = append(errs, ValidationError{
				Field:   "audio",
				Message: fmt.Sprintf("file %s has unsupported content type: %s", file.Filename, mtype.String()),
			})
		}
	}

	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
