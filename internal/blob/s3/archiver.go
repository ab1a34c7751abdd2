package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Archiver implements domain.Archiver by snapshotting the full trade ledger
// to JSONL and uploading it to an S3-compatible bucket. Snapshots are
// additive; nothing is deleted from the primary ledger.
type Archiver struct {
	writer *Writer
	ledger domain.TradeLedger
	prefix string
	logger *slog.Logger
}

var _ domain.Archiver = (*Archiver)(nil)

// NewArchiver creates an Archiver that snapshots ledger under prefix.
func NewArchiver(writer *Writer, ledger domain.TradeLedger, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		ledger: ledger,
		prefix: prefix,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Archive uploads a ledger snapshot and returns its object key. An empty
// ledger uploads nothing and returns an empty key.
func (a *Archiver) Archive(ctx context.Context, now time.Time) (string, error) {
	trades, err := a.ledger.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive load ledger: %w", err)
	}
	if len(trades) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := a.snapshotKey(now)
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive upload: %w", err)
	}

	a.logger.Info("ledger snapshot archived",
		slog.String("key", key),
		slog.Int("trades", len(trades)),
	)
	return key, nil
}

// Run archives the ledger once per interval until ctx is cancelled. Upload
// failures are logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := a.Archive(ctx, now); err != nil {
				a.logger.Warn("ledger snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}

// snapshotKey builds the object key for a snapshot, partitioned by day.
//
//	ledger/2026/08/25/trades-20260825T120000Z.jsonl
func (a *Archiver) snapshotKey(now time.Time) string {
	utc := now.UTC()
	return fmt.Sprintf("%s/%s/trades-%s.jsonl",
		a.prefix, utc.Format("2006/01/02"), utc.Format("20060102T150405Z"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
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
