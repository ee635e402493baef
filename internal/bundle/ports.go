package bundle

import (
	"context"

	"bundleapi/internal/elastic"
)

// Store is the slice of the document store the mutation engine writes
// bundles through.
type Store interface {
	Get(ctx context.Context, id string) (*elastic.Document, error)
	Create(ctx context.Context, body any) (*elastic.WriteResult, error)
	Put(ctx context.Context, id string, body any, version int64) (*elastic.WriteResult, error)
}

// BookReader reads catalog books. The catalog is read-only here.
type BookReader interface {
	Get(ctx context.Context, id string) (*elastic.Document, error)
}
