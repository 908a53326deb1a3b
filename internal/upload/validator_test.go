package upload

import (
	"errors"
	"testing"
)

func defaultValidator() *Validator {
	return NewValidator([]string{"application/pdf", "image/jpeg", "image/png"}, 10*1024*1024)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantReason  string
	}{
		{"accepts small pdf", "application/pdf", 2 * 1024 * 1024, ""},
		{"accepts jpeg", "image/jpeg", 512, ""},
		{"accepts png at limit", "image/png", 10 * 1024 * 1024, ""},
		{"accepts mixed-case type", "Application/PDF", 1024, ""},
		{"rejects docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", 1024, ReasonUnsupportedType},
		{"rejects empty type", "", 1024, ReasonUnsupportedType},
		{"rejects oversized file", "application/pdf", 15 * 1024 * 1024, ReasonTooLarge},
		{"type checked before size", "text/plain", 15 * 1024 * 1024, ReasonUnsupportedType},
	}

	v := defaultValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.contentType, tt.size)
			if tt.wantReason == "" {
				if err != nil {
					t.Errorf("Validate(%q, %d) = %v, expected nil", tt.contentType, tt.size, err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate(%q, %d) = %v, expected *ValidationError", tt.contentType, tt.size, err)
			}
			if verr.Reason != tt.wantReason {
				t.Errorf("reason = %q, expected %q", verr.Reason, tt.wantReason)
			}
			if verr.Message == "" {
				t.Error("rejection message is empty")
			}
		})
	}
}
