// Package csv implements the trade ledger as a single CSV file. The full
// table is rewritten through a temp-file rename on every mutation, so a crash
// mid-write can never leave a half-written ledger behind. The file has one
// writer: the bot process.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

var header = []string{
	"time", "strategy", "prev_ticker", "prev_context", "buy_ticker", "buy_side",
	"stake_usd", "price_usd", "contracts", "fee_usd", "gross_profit_usd",
	"outcome", "payout_usd", "profit_usd", "order_id",
}

// Ledger is a CSV-file-backed domain.TradeLedger.
type Ledger struct {
	path string

	mu   sync.Mutex
	rows []domain.Trade
}

var _ domain.TradeLedger = (*Ledger)(nil)

// Open creates the ledger, reading any existing file at path. A missing file
// means an empty ledger; the file is created on the first write.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate rows written before new columns existed
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: read ledger: %w", err)
	}
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == header[0] {
			continue // header row
		}
		l.rows = append(l.rows, fromRecord(rec))
	}
	return l, nil
}

// Load returns all recorded trades in insertion order.
func (l *Ledger) Load(context.Context) ([]domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Trade, len(l.rows))
	copy(out, l.rows)
	return out, nil
}

// Append records a new trade and rewrites the file.
func (l *Ledger) Append(_ context.Context, t domain.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rows = append(l.rows, t)
	if err := l.flush(); err != nil {
		l.rows = l.rows[:len(l.rows)-1]
		return err
	}
	return nil
}

// Update rewrites the trade identified by (Strategy, BuyTicker). It returns
// domain.ErrNotFound when no such trade exists.
func (l *Ledger) Update(_ context.Context, t domain.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.rows {
		if l.rows[i].Key() == t.Key() {
			old := l.rows[i]
			l.rows[i] = t
			if err := l.flush(); err != nil {
				l.rows[i] = old
				return err
			}
			return nil
		}
	}
	return fmt.Errorf("csv: update %s/%s: %w", t.Strategy, t.BuyTicker, domain.ErrNotFound)
}

// Close is a no-op; every mutation is already durable.
func (l *Ledger) Close() error {
	return nil
}

// flush writes the full table to a temp file in the ledger's directory and
// renames it over the real one. Caller must hold l.mu.
func (l *Ledger) flush() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csv: create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("csv: create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for i := range l.rows {
		if err := w.Write(toRecord(&l.rows[i])); err != nil {
			tmp.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("csv: flush ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("csv: sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close temp ledger: %w", err)
	}

	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("csv: swap ledger: %w", err)
	}
	return nil
}

func toRecord(t *domain.Trade) []string {
	return []string{
		t.Time.UTC().Format(time.RFC3339),
		t.Strategy,
		t.PreviousTicker,
		t.PreviousContext,
		t.BuyTicker,
		string(t.BuySide),
		num(t.StakeUSD),
		num(t.PriceUSD),
		num(t.Contracts),
		num(t.FeeUSD),
		num(t.GrossProfitUSD),
		string(t.Outcome),
		num(t.PayoutUSD),
		num(t.ProfitUSD),
		t.OrderID,
	}
}

// fromRecord parses one row. Malformed or missing numeric fields read as
// zero, and a missing outcome reads as unresolved.
func fromRecord(rec []string) domain.Trade {
	get := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	ts, _ := time.Parse(time.RFC3339, get(0))
	return domain.Trade{
		Time:            ts,
		Strategy:        get(1),
		PreviousTicker:  get(2),
		PreviousContext: get(3),
		BuyTicker:       get(4),
		BuySide:         domain.Side(get(5)),
		StakeUSD:        parseNum(get(6)),
		PriceUSD:        parseNum(get(7)),
		Contracts:       parseNum(get(8)),
		FeeUSD:          parseNum(get(9)),
		GrossProfitUSD:  parseNum(get(10)),
		Outcome:         domain.Outcome(get(11)),
		PayoutUSD:       parseNum(get(12)),
		ProfitUSD:       parseNum(get(13)),
		OrderID:         get(14),
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseNum(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
