// Package upload enforces file-type and size constraints before a file
// enters the analysis pipeline.
package upload

import (
	"fmt"
	"strings"
)

// Rejection reasons.
const (
	ReasonUnsupportedType = "unsupported_type"
	ReasonTooLarge        = "too_large"
)

// ValidationError describes why a file was rejected. It is
// user-correctable: the caller surfaces it inline and the user may
// resubmit.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validator checks uploads against configured constraints. The
// constraints are configuration, not code; the zero value is unusable.
type Validator struct {
	acceptedTypes map[string]struct{}
	maxSizeBytes  int64
}

// NewValidator creates a validator accepting the given MIME types up to
// maxSizeBytes. Type comparison is case-insensitive.
func NewValidator(acceptedTypes []string, maxSizeBytes int64) *Validator {
	types := make(map[string]struct{}, len(acceptedTypes))
	for _, t := range acceptedTypes {
		types[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Validator{
		acceptedTypes: types,
		maxSizeBytes:  maxSizeBytes,
	}
}

// Validate checks a file's content type and size. It is pure and
// synchronous; a nil return means the file may enter the pipeline.
func (v *Validator) Validate(contentType string, size int64) error {
	if _, ok := v.acceptedTypes[strings.ToLower(strings.TrimSpace(contentType))]; !ok {
		return &ValidationError{
			Reason:  ReasonUnsupportedType,
			Message: "Invalid file type. Please upload a PDF, JPG, or PNG file.",
		}
	}
	if size > v.maxSizeBytes {
		return &ValidationError{
			Reason:  ReasonTooLarge,
			Message: fmt.Sprintf("File size exceeds %dMB limit.", v.maxSizeBytes/(1024*1024)),
		}
	}
	return nil
}
