package bundle

import (
	"errors"
	"net/http"

	"bundleapi/internal/elastic"
	"bundleapi/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Register mounts the bundle routes on the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/bundle", h.Create)
	mux.HandleFunc("GET /api/bundle/{id}", h.Get)
	mux.HandleFunc("PUT /api/bundle/{id}/name/{name}", h.Rename)
	mux.HandleFunc("PUT /api/bundle/{id}/book/{bookID}", h.AddBook)
	mux.HandleFunc("DELETE /api/bundle/{id}/book/{bookID}", h.RemoveBook)
}

// Create handles POST /api/bundle?name=<name>
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Create(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		httpx.WriteStoreError(w, err)
		return
	}
	writeAck(w, http.StatusCreated, result)
}

// Get handles GET /api/bundle/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteStoreError(w, err)
		return
	}
	httpx.WriteRawJSON(w, http.StatusOK, doc.Raw)
}

// Rename handles PUT /api/bundle/{id}/name/{name}
func (h *HTTPHandler) Rename(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Rename(r.Context(), r.PathValue("id"), r.PathValue("name"))
	if err != nil {
		httpx.WriteStoreError(w, err)
		return
	}
	writeAck(w, http.StatusOK, result)
}

// AddBook handles PUT /api/bundle/{id}/book/{bookID}
func (h *HTTPHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.AddBook(r.Context(), r.PathValue("id"), r.PathValue("bookID"))
	if err != nil {
		httpx.WriteStoreError(w, err)
		return
	}
	writeAck(w, http.StatusOK, result)
}

// RemoveBook handles DELETE /api/bundle/{id}/book/{bookID}
func (h *HTTPHandler) RemoveBook(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RemoveBook(r.Context(), r.PathValue("id"), r.PathValue("bookID"))
	if err != nil {
		if errors.Is(err, ErrBookNotInBundle) {
			httpx.WriteError(w, http.StatusConflict, "conflict", "Bundle does not contain that book.")
			return
		}
		httpx.WriteStoreError(w, err)
		return
	}
	writeAck(w, http.StatusOK, result)
}

// writeAck passes the store's acknowledgement through verbatim when there is
// one; the no-op add path has no store response and is encoded from the struct.
func writeAck(w http.ResponseWriter, status int, result *elastic.WriteResult) {
	if len(result.Raw) > 0 {
		httpx.WriteRawJSON(w, status, result.Raw)
		return
	}
	httpx.WriteJSON(w, status, result)
}
