package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"bundleapi/internal/elastic"
)

// ErrorBody mirrors the store's error shape so synthesized failures look the
// same to callers as passed-through ones.
type ErrorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteRawJSON writes an already-encoded JSON body verbatim.
func WriteRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func WriteError(w http.ResponseWriter, status int, code, reason string) {
	WriteJSON(w, status, ErrorBody{Error: code, Reason: reason})
}

// WriteStoreError maps a failed store call onto the response: the store's own
// status and body when it answered, a synthesized body otherwise. Anything
// unclassified defaults to 502.
func WriteStoreError(w http.ResponseWriter, err error) {
	var storeErr *elastic.Error
	if errors.As(err, &storeErr) {
		if len(storeErr.Body) > 0 {
			WriteRawJSON(w, storeErr.Status, storeErr.Body)
			return
		}
		WriteError(w, storeErr.Status, storeErr.Kind.String(), storeErr.Reason)
		return
	}
	WriteError(w, http.StatusBadGateway, "bad_gateway", err.Error())
}
