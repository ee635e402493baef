package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to an Elasticsearch-compatible document store over HTTP.
// Every call carries the caller's context, so a cancelled request aborts
// the in-flight store call instead of letting it run to completion.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a store client for the given base URL. The timeout bounds
// every individual store call; a timeout surfaces as KindUnavailable.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Ping checks that the store answers on its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.baseURL+"/", nil, "")
	return err
}

// Collection returns a handle on one index/type pair.
func (c *Client) Collection(index, docType string) *Collection {
	return &Collection{client: c, path: index + "/" + docType}
}

// Bulk ships a newline-delimited bulk request body to the store and returns
// the store's response verbatim.
func (c *Client) Bulk(ctx context.Context, body io.Reader) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+"/_bulk", body, "application/x-ndjson")
}

// Collection addresses documents under a single <index>/<type> path.
type Collection struct {
	client *Client
	path   string
}

// Document is a single versioned document as the store returns it.
type Document struct {
	ID      string          `json:"_id"`
	Version int64           `json:"_version"`
	Source  json.RawMessage `json:"_source"`

	// Raw is the store's response body verbatim, for passthrough.
	Raw json.RawMessage `json:"-"`
}

// WriteResult is the store's acknowledgement of a create or update.
type WriteResult struct {
	ID      string `json:"_id"`
	Version int64  `json:"_version"`
	Result  string `json:"result,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// SearchHit is one matched document inside a search response.
type SearchHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// SearchResult is the store's search envelope. Suggest is kept raw because
// its shape is store-native and forwarded unmodified.
type SearchResult struct {
	Hits struct {
		Hits []SearchHit `json:"hits"`
	} `json:"hits"`
	Suggest json.RawMessage `json:"suggest,omitempty"`
}

// Get fetches the document with the given id, including its current version.
func (col *Collection) Get(ctx context.Context, id string) (*Document, error) {
	raw, err := col.client.doJSON(ctx, http.MethodGet, col.url(id), nil)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", col.path, id, err)
	}
	doc.Raw = raw
	return &doc, nil
}

// Create submits a fresh document; the store assigns its id and version.
func (col *Collection) Create(ctx context.Context, body any) (*WriteResult, error) {
	raw, err := col.client.doJSON(ctx, http.MethodPost, col.url(""), body)
	if err != nil {
		return nil, err
	}
	return parseWriteResult(raw, col.path)
}

// Put writes the document at id. A version greater than zero is sent as an
// optimistic-concurrency precondition; the store rejects the write with a
// conflict if the document has moved past it. Zero writes unconditionally.
func (col *Collection) Put(ctx context.Context, id string, body any, version int64) (*WriteResult, error) {
	target := col.url(id)
	if version > 0 {
		target += "?version=" + strconv.FormatInt(version, 10)
	}
	raw, err := col.client.doJSON(ctx, http.MethodPut, target, body)
	if err != nil {
		return nil, err
	}
	return parseWriteResult(raw, col.path)
}

// Search submits a query body to the collection's search endpoint.
func (col *Collection) Search(ctx context.Context, query any) (*SearchResult, error) {
	raw, err := col.client.doJSON(ctx, http.MethodPost, col.url("_search"), query)
	if err != nil {
		return nil, err
	}
	var result SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode search response from %s: %w", col.path, err)
	}
	return &result, nil
}

func (col *Collection) url(id string) string {
	target := col.client.baseURL + "/" + col.path
	if id != "" {
		target += "/" + url.PathEscape(id)
	}
	return target
}

func parseWriteResult(raw []byte, path string) (*WriteResult, error) {
	var result WriteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode write result from %s: %w", path, err)
	}
	result.Raw = raw
	return &result, nil
}

func (c *Client) doJSON(ctx context.Context, method, target string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	return c.do(ctx, method, target, reader, "application/json")
}

// do executes a single store call. There are no retries at this layer: a
// conflict or failure is reported once and the caller decides what to do.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(resp.StatusCode, respBody)
	}
	return respBody, nil
}
