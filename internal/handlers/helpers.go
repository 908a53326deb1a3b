package handlers

import (
	"net/http"
	"strings"
)

const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgReportNotFound     = "Report not found"
	ErrMsgInternalError      = "Internal server error"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := JSONResponse(w, payload); err != nil {
		_, _ = w.Write([]byte(`{"error":"` + ErrMsgInternalError + `"}`))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// trimAll trims whitespace and drops empty entries.
func trimAll(values []string) []string {
	result := []string{}
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
