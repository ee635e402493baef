package bundle

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bundleapi/internal/elastic"
	"bundleapi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bundlesIndex = "b4"
	booksIndex   = "books"
)

func newTestService(t *testing.T) (*Service, *testutil.FakeStore) {
	fake := testutil.NewFakeStore(t)
	client := elastic.NewClient(fake.URL(), 5*time.Second)
	service := NewService(
		client.Collection(bundlesIndex, "bundle"),
		client.Collection(booksIndex, "book"),
	)
	return service, fake
}

func storedBundle(t *testing.T, fake *testutil.FakeStore, id string) Bundle {
	t.Helper()
	source, ok := fake.Source(bundlesIndex, "bundle", id)
	require.True(t, ok, "bundle %s not in store", id)
	var b Bundle
	require.NoError(t, json.Unmarshal(source, &b))
	return b
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, "Classics")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.Version)

	doc, err := service.Get(ctx, created.ID)
	require.NoError(t, err)

	var b Bundle
	require.NoError(t, json.Unmarshal(doc.Source, &b))
	assert.Equal(t, "Classics", b.Name)
	assert.Empty(t, b.Books)
}

func TestCreateAllowsEmptyName(t *testing.T) {
	service, fake := newTestService(t)

	created, err := service.Create(context.Background(), "")
	require.NoError(t, err)

	b := storedBundle(t, fake, created.ID)
	assert.Equal(t, "", b.Name)
	assert.NotNil(t, b.Books)
}

func TestGetUnknownBundle(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Get(context.Background(), "nope")
	assert.True(t, elastic.IsKind(err, elastic.KindNotFound))
}

func TestRename(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Old", Books: []BookRef{}})

	result, err := service.Rename(context.Background(), "bdl-1", "New")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Version)
	assert.Equal(t, "New", storedBundle(t, fake, "bdl-1").Name)
}

func TestRenameIsLastWriterWins(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Old", Books: []BookRef{}})

	// A competing writer bumps the bundle between read and write; rename
	// sends no version precondition so it still lands.
	interleaved := false
	fake.AfterGet = func() {
		if interleaved {
			return
		}
		interleaved = true
		fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Racer", Books: []BookRef{}})
	}

	_, err := service.Rename(context.Background(), "bdl-1", "New")
	require.NoError(t, err)
	assert.Equal(t, "New", storedBundle(t, fake, "bdl-1").Name)
}

func TestRenameUnknownBundle(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Rename(context.Background(), "nope", "New")
	assert.True(t, elastic.IsKind(err, elastic.KindNotFound))
}

func TestAddBook(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Classics", Books: []BookRef{}})
	fake.Seed(booksIndex, "book", "84", map[string]any{"title": "The Time Machine", "authors": []string{"H. G. Wells"}})

	result, err := service.AddBook(context.Background(), "bdl-1", "84")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Version)

	b := storedBundle(t, fake, "bdl-1")
	require.Len(t, b.Books, 1)
	assert.Equal(t, BookRef{ID: "84", Title: "The Time Machine"}, b.Books[0])
}

func TestAddBookIsIdempotent(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Classics", Books: []BookRef{}})
	fake.Seed(booksIndex, "book", "84", map[string]any{"title": "The Time Machine"})

	ctx := context.Background()
	_, err := service.AddBook(ctx, "bdl-1", "84")
	require.NoError(t, err)
	versionAfterFirst := fake.Version(bundlesIndex, "bundle", "bdl-1")

	result, err := service.AddBook(ctx, "bdl-1", "84")
	require.NoError(t, err)

	// Second call performs no write and reports the state it read.
	assert.Equal(t, "noop", result.Result)
	assert.Equal(t, versionAfterFirst, result.Version)
	assert.Equal(t, versionAfterFirst, fake.Version(bundlesIndex, "bundle", "bdl-1"))

	b := storedBundle(t, fake, "bdl-1")
	require.Len(t, b.Books, 1)
}

func TestAddBookAppendsInOrder(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Wells", Books: []BookRef{}})
	fake.Seed(booksIndex, "book", "84", map[string]any{"title": "The Time Machine"})
	fake.Seed(booksIndex, "book", "85", map[string]any{"title": "The Invisible Man"})
	fake.Seed(booksIndex, "book", "86", map[string]any{"title": "The War of the Worlds"})

	ctx := context.Background()
	for _, id := range []string{"84", "85", "86"} {
		_, err := service.AddBook(ctx, "bdl-1", id)
		require.NoError(t, err)
	}

	b := storedBundle(t, fake, "bdl-1")
	require.Len(t, b.Books, 3)
	assert.Equal(t, []string{"84", "85", "86"}, []string{b.Books[0].ID, b.Books[1].ID, b.Books[2].ID})
}

func TestAddBookUnknownBundle(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(booksIndex, "book", "84", map[string]any{"title": "The Time Machine"})

	_, err := service.AddBook(context.Background(), "nope", "84")
	assert.True(t, elastic.IsKind(err, elastic.KindNotFound))
}

func TestAddBookUnknownBook(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Classics", Books: []BookRef{}})

	_, err := service.AddBook(context.Background(), "bdl-1", "nope")
	assert.True(t, elastic.IsKind(err, elastic.KindNotFound))

	assert.Equal(t, int64(1), fake.Version(bundlesIndex, "bundle", "bdl-1"))
}

func TestAddBookConcurrentWriterConflicts(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Classics", Books: []BookRef{}})
	fake.Seed(booksIndex, "book", "84", map[string]any{"title": "The Time Machine"})

	// Another writer commits after our read captured version 1: the write
	// precondition no longer holds and the store must reject it. Nothing is
	// retried; the conflict surfaces to the caller.
	interleaved := false
	fake.AfterGet = func() {
		if interleaved {
			return
		}
		interleaved = true
		fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{
			Name:  "Classics",
			Books: []BookRef{{ID: "85", Title: "The Invisible Man"}},
		})
	}

	_, err := service.AddBook(context.Background(), "bdl-1", "84")
	assert.True(t, elastic.IsKind(err, elastic.KindConflict))

	// The winner's write is untouched.
	b := storedBundle(t, fake, "bdl-1")
	require.Len(t, b.Books, 1)
	assert.Equal(t, "85", b.Books[0].ID)
}

func TestRemoveBookPreservesOrder(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Wells", Books: []BookRef{
		{ID: "84", Title: "The Time Machine"},
		{ID: "85", Title: "The Invisible Man"},
		{ID: "86", Title: "The War of the Worlds"},
	}})

	result, err := service.RemoveBook(context.Background(), "bdl-1", "85")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Version)

	b := storedBundle(t, fake, "bdl-1")
	require.Len(t, b.Books, 2)
	assert.Equal(t, []string{"84", "86"}, []string{b.Books[0].ID, b.Books[1].ID})
}

func TestRemoveBookAbsentFailsFast(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Classics", Books: []BookRef{
		{ID: "84", Title: "The Time Machine"},
	}})

	_, err := service.RemoveBook(context.Background(), "bdl-1", "85")
	assert.ErrorIs(t, err, ErrBookNotInBundle)

	// No write was attempted.
	assert.Equal(t, int64(1), fake.Version(bundlesIndex, "bundle", "bdl-1"))
	b := storedBundle(t, fake, "bdl-1")
	require.Len(t, b.Books, 1)
}

func TestRemoveBookConcurrentWriterConflicts(t *testing.T) {
	service, fake := newTestService(t)
	fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Classics", Books: []BookRef{
		{ID: "84", Title: "The Time Machine"},
	}})

	interleaved := false
	fake.AfterGet = func() {
		if interleaved {
			return
		}
		interleaved = true
		fake.Seed(bundlesIndex, "bundle", "bdl-1", Bundle{Name: "Renamed", Books: []BookRef{
			{ID: "84", Title: "The Time Machine"},
		}})
	}

	_, err := service.RemoveBook(context.Background(), "bdl-1", "84")
	assert.True(t, elastic.IsKind(err, elastic.KindConflict))
}

func TestRemoveBookUnknownBundle(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.RemoveBook(context.Background(), "nope", "84")
	assert.True(t, elastic.IsKind(err, elastic.KindNotFound))
}
