package server

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondWithError sends a JSON error response using the APIError model
func RespondWithError(w http.ResponseWriter, apiErr APIError) {
	RespondWithJSON(w, apiErr.StatusCode, apiErr)
}

// RespondWithJSON sends a JSON response with the specified status code
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// decodeJSON reads a JSON request body, responding with an error on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		RespondWithError(w, NewAPIError(ErrorCodeInvalidFormat, "invalid request payload", err.Error(), http.StatusBadRequest))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
