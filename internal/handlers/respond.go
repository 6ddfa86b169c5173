package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/logger"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrStorage), errors.Is(err, apperr.ErrPartialComputation):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondWithServiceError writes err's status. Internal details of 5xx errors
// go to the log, not the client.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	code := statusFor(err)
	switch code {
	case http.StatusNotFound, http.StatusBadRequest:
		respondWithError(w, code, err.Error())
	case http.StatusServiceUnavailable:
		log.WithContext(r.Context()).Error("Request failed on storage", "error", err)
		respondWithError(w, code, "Service temporarily unavailable, please retry")
	default:
		log.WithContext(r.Context()).Error("Request failed", "error", err)
		respondWithError(w, code, "Internal server error")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func hasVar(r *http.Request, name string) bool {
	_, ok := mux.Vars(r)[name]
	return ok
}
