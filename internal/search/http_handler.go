package search

import (
	"net/http"

	"bundleapi/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Register mounts the search routes on the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search/books/{field}/{query}", h.Books)
	mux.HandleFunc("GET /api/suggest/{field}/{query}", h.Suggest)
}

// Books handles GET /api/search/books/{field}/{query}
func (h *HTTPHandler) Books(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Books(r.Context(), r.PathValue("field"), r.PathValue("query"))
	if err != nil {
		httpx.WriteStoreError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, records)
}

// Suggest handles GET /api/suggest/{field}/{query}
func (h *HTTPHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	payload, err := h.service.Suggest(r.Context(), r.PathValue("field"), r.PathValue("query"))
	if err != nil {
		httpx.WriteStoreError(w, err)
		return
	}
	httpx.WriteRawJSON(w, http.StatusOK, payload)
}
