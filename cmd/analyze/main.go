// Command analyze prints per-strategy performance metrics from a trade
// ledger CSV file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/alanyoungcy/kalshibot/internal/report"
	csvstore "github.com/alanyoungcy/kalshibot/internal/store/csv"
)

func main() {
	ledgerPath := flag.String("ledger", "data/trades.csv", "path to the trade ledger CSV")
	flag.Parse()

	if _, err := os.Stat(*ledgerPath); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}

	ledger, err := csvstore.Open(*ledgerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}

	trades, err := ledger.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}

	rep := report.Compute(trades)
	pending := 0
	for _, s := range rep.Strategies {
		pending += s.Pending
	}

	fmt.Printf("Loaded %d trades from %s\n", len(trades), *ledgerPath)
	if pending > 0 {
		fmt.Printf("Note: %d trades are pending (no outcome yet)\n", pending)
	}
	fmt.Println()
	rep.Render(os.Stdout)
}
