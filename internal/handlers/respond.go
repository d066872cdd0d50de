package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Debug widens 500 responses with the underlying error detail. Set from
// main outside production.
var Debug bool

func Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func serverError(w http.ResponseWriter, log *logrus.Logger, message string, err error) {
	log.WithError(err).Error(message)
	payload := map[string]string{"error": message, "message": message}
	if Debug && err != nil {
		payload["detail"] = err.Error()
	}
	respondJSON(w, http.StatusInternalServerError, payload)
}

func parsePositiveInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
