// Command seed bulk-loads a book catalog JSON file into the books collection.
//
//	STORE_URL=http://localhost:9200 go run ./cmd/seed books.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"bundleapi/internal/elastic"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// bookRecord is the slice of a catalog record the index requires. The rest
// of each record's fields are shipped as-is.
type bookRecord struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"required"`
}

func main() {
	_ = godotenv.Load(".env.local")

	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <books.json>", os.Args[0])
	}

	storeURL := getEnv("STORE_URL", "http://localhost:9200")
	booksIndex := getEnv("BOOKS_INDEX", "books")

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("read %s: %v", os.Args[1], err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Fatalf("parse %s: %v", os.Args[1], err)
	}

	validate := validator.New()
	body, count, err := buildBulkBody(records, booksIndex, validate)
	if err != nil {
		log.Fatalf("build bulk request: %v", err)
	}
	if count == 0 {
		log.Fatal("no valid records to load")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := elastic.NewClient(storeURL, time.Minute)
	if _, err := client.Bulk(ctx, bytes.NewReader(body)); err != nil {
		log.Fatalf("bulk load failed: %v", err)
	}

	log.Printf("Loaded %d books into %s", count, booksIndex)
}

// buildBulkBody turns catalog records into newline-delimited bulk actions,
// skipping records that fail validation.
func buildBulkBody(records []json.RawMessage, index string, validate *validator.Validate) ([]byte, int, error) {
	var buf bytes.Buffer
	count := 0
	for i, record := range records {
		var book bookRecord
		if err := json.Unmarshal(record, &book); err != nil {
			log.Printf("skipping record %d: %v", i, err)
			continue
		}
		if err := validate.Struct(book); err != nil {
			log.Printf("skipping record %d (id=%q): %v", i, book.ID, err)
			continue
		}

		action, err := json.Marshal(map[string]any{
			"index": map[string]string{"_index": index, "_type": "book", "_id": book.ID},
		})
		if err != nil {
			return nil, 0, err
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(bytes.TrimSpace(record))
		buf.WriteByte('\n')
		count++
	}
	return buf.Bytes(), count, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
