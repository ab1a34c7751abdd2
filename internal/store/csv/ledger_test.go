package csv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

func tempLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "trades.csv"))
	require.NoError(t, err)
	return l
}

func sampleTrade() domain.Trade {
	return domain.Trade{
		Time:            time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Strategy:        domain.StrategyPrevious,
		PreviousTicker:  "KXBTC15M-PREV",
		PreviousContext: "prev=yes",
		BuyTicker:       "KXBTC15M-CUR",
		BuySide:         domain.SideYes,
		StakeUSD:        5,
		PriceUSD:        0.40,
		Contracts:       12.5,
		OrderID:         "PAPER-abc",
	}
}

func TestAppendLoadRoundTrip(t *testing.T) {
	l := tempLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, sampleTrade()))

	// Reopen to make sure the row survived the file.
	reopened, err := Open(l.path)
	require.NoError(t, err)
	rows, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sampleTrade(), rows[0])
}

func TestUpdateSettlement(t *testing.T) {
	l := tempLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Append(ctx, sampleTrade()))

	settled := sampleTrade()
	settled.Outcome = domain.OutcomeWin
	settled.PayoutUSD = 12.5
	settled.GrossProfitUSD = 7.5
	settled.ProfitUSD = 7.5
	require.NoError(t, l.Update(ctx, settled))

	reopened, err := Open(l.path)
	require.NoError(t, err)
	rows, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.OutcomeWin, rows[0].Outcome)
	assert.InDelta(t, 7.5, rows[0].ProfitUSD, 1e-9)
}

func TestUpdateUnknownTrade(t *testing.T) {
	l := tempLedger(t)
	err := l.Update(context.Background(), sampleTrade())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenMissingFile(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "nope", "trades.csv"))
	require.NoError(t, err)
	rows, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMalformedNumericsReadAsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	content := strings.Join([]string{
		strings.Join(header, ","),
		"2026-08-25T12:00:00Z,PREVIOUS,P,ctx,C,yes,not-a-number,0.4,12.5,,,WIN,12.5,oops,ord-1",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err := Open(path)
	require.NoError(t, err)
	rows, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Zero(t, rows[0].StakeUSD)
	assert.Zero(t, rows[0].ProfitUSD)
	assert.Zero(t, rows[0].FeeUSD)
	assert.InDelta(t, 12.5, rows[0].Contracts, 1e-9)
	assert.Equal(t, domain.OutcomeWin, rows[0].Outcome)
}

func TestShortRowTolerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, os.WriteFile(path,
		[]byte("2026-08-25T12:00:00Z,MOMENTUM,P,ctx,C,no,5,0.5\n"), 0o644))

	l, err := Open(path)
	require.NoError(t, err)
	rows, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.OutcomeUnresolved, rows[0].Outcome)
	assert.Empty(t, rows[0].OrderID)
}
