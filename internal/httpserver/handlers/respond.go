package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/navigation"
	"github.com/MrSnakeDoc/orbit/internal/profile"
)

// maxBody bounds request bodies. Attachments travel inline as data URLs.
const maxBody = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr maps a domain error to its status code.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusOf(err), err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, navigation.ErrInvalidURL),
		errors.Is(err, profile.ErrInvalidExtension),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, completion.ErrUnknownTab),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, profile.ErrUnknownExtension),
		errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrLastProfile),
		errors.Is(err, profile.ErrCatalogueReadOnly):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return n, nil
}

// done answers a mutation that reports success as a bool.
func done(w http.ResponseWriter, ok bool, what string) {
	if !ok {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
