package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/storage"
	"github.com/vietddude/swapquote/internal/infra/storage/postgres"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

var (
	runsChainID uint64
	runsOutcome string
	runsLimit   int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent quote runs from the database",
	Run:   runRuns,
}

func init() {
	runsCmd.Flags().Uint64Var(&runsChainID, "chain", 0, "only show this chain id")
	runsCmd.Flags().StringVar(&runsOutcome, "outcome", "", "only show this outcome (success, empty, gas_shim, failed, error)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("runs needs database.url to be configured")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	runs, err := postgres.NewRunRepo(db).List(ctx, storage.RunFilter{
		ChainID: domain.ChainID(runsChainID),
		Outcome: quoter.Outcome(runsOutcome),
		Limit:   runsLimit,
	})
	if err != nil {
		slog.Error("Failed to list quote runs", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STARTED\tCHAIN\tTYPE\tOUTCOME\tBLOCK\tATTEMPTS\tCALLS\tLATENCY\tFAILURES")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d/%d\t%s\t%v\n",
			r.StartedAt.Format(time.RFC3339),
			r.ChainID.Name(),
			r.TradeType,
			r.Outcome,
			r.BlockNumber,
			r.Attempts,
			r.TotalCalls, r.ExpectedCalls,
			r.Latency.Round(time.Millisecond),
			r.Failures,
		)
	}
	_ = w.Flush()
}
