package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// problemTypeBase is the base URI for RFC 7807 problem-detail "type" fields.
const problemTypeBase = "https://mentionflow.dev/problems"

// problemDetail is an RFC 7807 problem-detail body, shared by the recovery
// and auth middlewares instead of each building their own.
type problemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	CorrelationID string `json:"correlationId"`
}

// writeProblemDetail writes an RFC 7807 compliant error response.
func writeProblemDetail(w http.ResponseWriter, r *http.Request, status int, title, detail, correlationID string) error {
	body := problemDetail{
		Type:          fmt.Sprintf("%s/%d", problemTypeBase, status),
		Title:         title,
		Status:        status,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: correlationID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(body)
}
