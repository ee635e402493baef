package bundle

import (
	"context"
	"encoding/json"
	"fmt"

	"bundleapi/internal/elastic"
)

// Service owns every operation that changes bundle state. Each operation is
// one read-modify-write transaction against a single bundle document; the
// store's per-document version check is the only serialization of concurrent
// writers. Nothing is cached between calls and nothing is retried: a caller
// that receives a conflict re-issues the request itself.
type Service struct {
	bundles Store
	books   BookReader
}

// NewService creates a mutation engine over the bundles and books collections.
func NewService(bundles Store, books BookReader) *Service {
	return &Service{bundles: bundles, books: books}
}

// Create persists a new empty bundle; the store assigns its id and version.
// The name may be empty.
func (s *Service) Create(ctx context.Context, name string) (*elastic.WriteResult, error) {
	return s.bundles.Create(ctx, Bundle{Name: name, Books: []BookRef{}})
}

// Get returns the bundle document, including its current version.
func (s *Service) Get(ctx context.Context, id string) (*elastic.Document, error) {
	return s.bundles.Get(ctx, id)
}

// Rename sets the bundle's name. The write carries no version precondition:
// rename is last-writer-wins, unlike AddBook and RemoveBook.
func (s *Service) Rename(ctx context.Context, id, name string) (*elastic.WriteResult, error) {
	doc, err := s.bundles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := decodeBundle(doc)
	if err != nil {
		return nil, err
	}
	b.Name = name
	return s.bundles.Put(ctx, id, b, 0)
}

// AddBook appends a reference to the given catalog book, keyed by the book's
// id. Adding a book the bundle already holds is a no-op: the write is skipped
// and the state just read is acknowledged. The write carries the version
// captured by the read, so a concurrent writer causes a conflict.
func (s *Service) AddBook(ctx context.Context, bundleID, bookID string) (*elastic.WriteResult, error) {
	doc, err := s.bundles.Get(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	b, err := decodeBundle(doc)
	if err != nil {
		return nil, err
	}

	bookDoc, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}

	for _, ref := range b.Books {
		if ref.ID == bookID {
			return &elastic.WriteResult{ID: doc.ID, Version: doc.Version, Result: "noop"}, nil
		}
	}

	var book struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(bookDoc.Source, &book); err != nil {
		return nil, fmt.Errorf("decode book %s: %w", bookID, err)
	}

	b.Books = append(b.Books, BookRef{ID: bookID, Title: book.Title})
	return s.bundles.Put(ctx, bundleID, b, doc.Version)
}

// RemoveBook drops the reference with the given book id, preserving the order
// of the remaining entries. If the bundle does not contain the book the call
// fails with ErrBookNotInBundle before any write is attempted.
func (s *Service) RemoveBook(ctx context.Context, bundleID, bookID string) (*elastic.WriteResult, error) {
	doc, err := s.bundles.Get(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	b, err := decodeBundle(doc)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, ref := range b.Books {
		if ref.ID == bookID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrBookNotInBundle
	}

	b.Books = append(b.Books[:idx], b.Books[idx+1:]...)
	return s.bundles.Put(ctx, bundleID, b, doc.Version)
}

func decodeBundle(doc *elastic.Document) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(doc.Source, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode bundle %s: %w", doc.ID, err)
	}
	return b, nil
}
