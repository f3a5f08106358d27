package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/capitalize-ai/care-messaging/pkg/apperror"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the body of every error response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeAppError maps err's kind to an HTTP status. Only the outermost
// message is exposed; wrapped driver causes stay in the logs.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	message := "internal error"

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	writeJSON(w, statusFor(kind), errorResponse{Error: message, Code: string(kind)})
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindInvalidInput, apperror.KindInvalidParticipants:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindMessagingNotConfigured, apperror.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.Wrap(apperror.KindInvalidInput, "invalid request body", err)
	}
	return nil
}

// queryInt parses a non-negative integer query parameter, returning def when
// the parameter is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.New(apperror.KindInvalidInput, "invalid "+name+" parameter")
	}
	return n, nil
}
