package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"traffic-sensor-stream/models"
)

const internalErrorMessage = "internal server error"

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
	Range   any    `json:"range,omitempty"`
}

type errorBody struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Message string              `json:"message,omitempty"`
	Fields  []models.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(data any) envelope {
	return envelope{Success: true, Data: data}
}

func okList(data any, n int) envelope {
	return envelope{Success: true, Data: data, Count: &n}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps service errors to HTTP responses. Storage causes are logged,
// never sent to the client.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid sensor data", Fields: verr.Fields})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: "no readings available"})
	case errors.Is(err, models.ErrInvalidRange):
		badRequest(w, err.Error())
	default:
		log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: internalErrorMessage})
	}
}
