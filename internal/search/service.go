package search

import (
	"context"
	"encoding/json"

	"bundleapi/internal/elastic"
)

const maxResults = 10

// Searcher is the slice of the document store the forwarder queries.
type Searcher interface {
	Search(ctx context.Context, query any) (*elastic.SearchResult, error)
}

// Service forwards read-only queries to the books collection. It holds no
// state, caches nothing, and never retries.
type Service struct {
	books Searcher
}

func NewService(books Searcher) *Service {
	return &Service{books: books}
}

// Books runs a field-match query and returns the bare book records, with the
// store's search envelope stripped.
func (s *Service) Books(ctx context.Context, field, query string) ([]json.RawMessage, error) {
	body := map[string]any{
		"size": maxResults,
		"query": map[string]any{
			"match": map[string]any{field: query},
		},
	}
	result, err := s.books.Search(ctx, body)
	if err != nil {
		return nil, err
	}
	records := make([]json.RawMessage, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}

// Suggest runs a term-suggestion query (no result documents) and returns the
// store's suggestion payload unmodified.
func (s *Service) Suggest(ctx context.Context, field, text string) (json.RawMessage, error) {
	body := map[string]any{
		"size": 0,
		"suggest": map[string]any{
			"suggestions": map[string]any{
				"text": text,
				"term": map[string]any{
					"field":        field,
					"suggest_mode": "popular",
				},
			},
		},
	}
	result, err := s.books.Search(ctx, body)
	if err != nil {
		return nil, err
	}
	return result.Suggest, nil
}
