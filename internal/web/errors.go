package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"is31ledd/internal/is31fl3236a"
	"is31ledd/internal/ledservice"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	codeBadRequest      = "bad_request"
	codeInvalidChannel  = "invalid_channel"
	codeOutOfRange      = "out_of_range"
	codeInvalidArgument = "invalid_argument"
	codeUnsupported     = "unsupported"
	codeBusError        = "bus_error"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeDriverError maps driver and service errors onto HTTP statuses.
func writeDriverError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, is31fl3236a.ErrIndex):
		writeError(w, http.StatusNotFound, codeInvalidChannel, err.Error())
	case errors.Is(err, is31fl3236a.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, codeOutOfRange, err.Error())
	case errors.Is(err, is31fl3236a.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, codeInvalidArgument, err.Error())
	case errors.Is(err, is31fl3236a.ErrUnsupported):
		writeError(w, http.StatusMethodNotAllowed, codeUnsupported, err.Error())
	case errors.Is(err, is31fl3236a.ErrBus):
		writeError(w, http.StatusBadGateway, codeBusError, err.Error())
	case errors.Is(err, ledservice.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}
