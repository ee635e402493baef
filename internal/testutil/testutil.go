package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeStore is an in-memory stand-in for the document store. It speaks just
// enough of the wire contract to exercise the service for real: GET/POST/PUT
// on <index>/<type>/<id> documents with ?version= preconditions, match
// queries and term suggestions on <index>/<type>/_search, and _bulk.
type FakeStore struct {
	Server *httptest.Server

	// AfterGet, when set, runs after a document GET has been served. Tests
	// use it to interleave a competing writer between a read and its write.
	AfterGet func()

	// ForceStatus and ForceBody, when ForceStatus is non-zero, answer the
	// next request with a fixed response and then reset.
	ForceStatus int
	ForceBody   string

	mu   sync.Mutex
	seq  int
	docs map[string]*fakeDoc
}

type fakeDoc struct {
	version int64
	source  json.RawMessage
}

func NewFakeStore(t *testing.T) *FakeStore {
	f := &FakeStore{docs: make(map[string]*fakeDoc)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeStore) URL() string { return f.Server.URL }

// Seed inserts or replaces a document directly, bumping its version, and
// returns the new version. It doubles as the "competing writer" in tests.
func (f *FakeStore) Seed(index, docType, id string, source any) int64 {
	payload, err := json.Marshal(source)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := index + "/" + docType + "/" + id
	doc := f.docs[key]
	if doc == nil {
		doc = &fakeDoc{}
		f.docs[key] = doc
	}
	doc.version++
	doc.source = payload
	return doc.version
}

// Source returns the stored source of a document, or false if absent.
func (f *FakeStore) Source(index, docType, id string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[index+"/"+docType+"/"+id]
	if !ok {
		return nil, false
	}
	return doc.source, true
}

// Version returns the current version of a document, or zero if absent.
func (f *FakeStore) Version(index, docType, id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[index+"/"+docType+"/"+id]
	if !ok {
		return 0
	}
	return doc.version
}

func (f *FakeStore) handle(w http.ResponseWriter, r *http.Request) {
	if f.ForceStatus != 0 {
		status, body := f.ForceStatus, f.ForceBody
		f.ForceStatus, f.ForceBody = 0, ""
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "":
		writeJSON(w, http.StatusOK, map[string]string{"tagline": "You Know, for Search"})
	case len(parts) == 1 && parts[0] == "_bulk":
		f.handleBulk(w, r)
	case len(parts) == 3 && parts[2] == "_search":
		f.handleSearch(w, r, parts[0]+"/"+parts[1])
	case len(parts) == 2 && r.Method == http.MethodPost:
		f.handleCreate(w, r, parts[0]+"/"+parts[1])
	case len(parts) == 3 && r.Method == http.MethodGet:
		f.handleGet(w, parts[0], parts[1], parts[2])
	case len(parts) == 3 && r.Method == http.MethodPut:
		f.handlePut(w, r, parts[0], parts[1], parts[2])
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported request"})
	}
}

func (f *FakeStore) handleGet(w http.ResponseWriter, index, docType, id string) {
	f.mu.Lock()
	doc, ok := f.docs[index+"/"+docType+"/"+id]
	var resp map[string]any
	if ok {
		resp = map[string]any{
			"_index": index, "_type": docType, "_id": id,
			"_version": doc.version, "found": true, "_source": doc.source,
		}
	}
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"_index": index, "_type": docType, "_id": id, "found": false,
		})
		return
	}

	// The hook runs after the snapshot but before the response leaves, so a
	// competing write it performs is guaranteed to land "between" this read
	// and whatever the caller does next.
	if f.AfterGet != nil {
		f.AfterGet()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeStore) handleCreate(w http.ResponseWriter, r *http.Request, collection string) {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	f.mu.Lock()
	f.seq++
	id := fmt.Sprintf("fake-%d", f.seq)
	f.docs[collection+"/"+id] = &fakeDoc{version: 1, source: body}
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"_id": id, "_version": 1, "result": "created",
	})
}

func (f *FakeStore) handlePut(w http.ResponseWriter, r *http.Request, index, docType, id string) {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := index + "/" + docType + "/" + id
	doc := f.docs[key]

	if param := r.URL.Query().Get("version"); param != "" && doc != nil {
		want, _ := strconv.ParseInt(param, 10, 64)
		if want != doc.version {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": map[string]any{
					"type":   "version_conflict_engine_exception",
					"reason": fmt.Sprintf("version conflict, current [%d], provided [%d]", doc.version, want),
				},
				"status": http.StatusConflict,
			})
			return
		}
	}

	result := "updated"
	if doc == nil {
		doc = &fakeDoc{}
		f.docs[key] = doc
		result = "created"
	}
	doc.version++
	doc.source = body

	writeJSON(w, http.StatusOK, map[string]any{
		"_id": id, "_version": doc.version, "result": result,
	})
}

func (f *FakeStore) handleSearch(w http.ResponseWriter, r *http.Request, collection string) {
	var req struct {
		Size  *int `json:"size"`
		Query *struct {
			Match map[string]any `json:"match"`
		} `json:"query"`
		Suggest map[string]struct {
			Text string `json:"text"`
		} `json:"suggest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad query"})
		return
	}

	if req.Suggest != nil {
		suggestions := make([]map[string]any, 0, len(req.Suggest))
		for _, s := range req.Suggest {
			suggestions = append(suggestions, map[string]any{
				"text": s.Text, "offset": 0, "length": len(s.Text), "options": []any{},
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"hits":    map[string]any{"hits": []any{}},
			"suggest": map[string]any{"suggestions": suggestions},
		})
		return
	}

	size := 10
	if req.Size != nil {
		size = *req.Size
	}

	hits := make([]map[string]any, 0)
	f.mu.Lock()
	for key, doc := range f.docs {
		if !strings.HasPrefix(key, collection+"/") || len(hits) >= size {
			continue
		}
		if req.Query != nil && !matches(doc.source, req.Query.Match) {
			continue
		}
		hits = append(hits, map[string]any{
			"_id":     strings.TrimPrefix(key, collection+"/"),
			"_source": doc.source,
		})
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"hits": map[string]any{"hits": hits}})
}

func (f *FakeStore) handleBulk(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	f.mu.Lock()
	items := 0
	for i := 0; i+1 < len(lines); i += 2 {
		var action struct {
			Index struct {
				Index string `json:"_index"`
				Type  string `json:"_type"`
				ID    string `json:"_id"`
			} `json:"index"`
		}
		if err := json.Unmarshal([]byte(lines[i]), &action); err != nil {
			continue
		}
		key := action.Index.Index + "/" + action.Index.Type + "/" + action.Index.ID
		f.docs[key] = &fakeDoc{version: 1, source: json.RawMessage(lines[i+1])}
		items++
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"errors": false, "items": items})
}

func matches(source json.RawMessage, match map[string]any) bool {
	var fields map[string]any
	if err := json.Unmarshal(source, &fields); err != nil {
		return false
	}
	for field, want := range match {
		got := strings.ToLower(fmt.Sprintf("%v", fields[field]))
		if !strings.Contains(got, strings.ToLower(fmt.Sprintf("%v", want))) {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
