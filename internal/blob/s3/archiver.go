package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/exdash/exdash/internal/domain"
)

// Archiver moves aged candle history out of the primary store: it queries
// candles older than the retention cutoff, serializes them to JSONL, uploads
// the result to S3, and deletes the archived rows. The in-memory candle
// window is unaffected.
type Archiver struct {
	writer domain.BlobWriter
	store  domain.CandleStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, store domain.CandleStore) *Archiver {
	return &Archiver{
		writer: writer,
		store:  store,
	}
}

// ArchiveCandles archives all candles with interval start strictly before
// the cutoff and prunes them from the store. It returns the number archived.
// The upload happens before the delete, so a failure between the two leaves
// duplicated rather than lost data.
func (a *Archiver) ArchiveCandles(ctx context.Context, before time.Time) (int64, error) {
	candles, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive candles query: %w", err)
	}
	if len(candles) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(candles)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive candles marshal: %w", err)
	}

	path := archivePath("candles", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive candles upload: %w", err)
	}

	deleted, err := a.store.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(candles)), fmt.Errorf("s3blob: archive candles prune: %w", err)
	}

	return deleted, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time, e.g. archive/candles/2026-09.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
