package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jhilgenberg/go-e-report/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusForError maps report error kinds to HTTP status codes.
func statusForError(err error) int {
	switch models.KindOf(err) {
	case models.KindConfiguration:
		return http.StatusBadRequest
	case models.KindTransport, models.KindProtocol, models.KindParse:
		return http.StatusBadGateway
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{
		"error": err.Error(),
		"kind":  string(models.KindOf(err)),
	})
}
