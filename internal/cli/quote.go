package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/swapquote/internal/api"
	"github.com/vietddude/swapquote/internal/control"
	"github.com/vietddude/swapquote/internal/core/domain"
)

var (
	quoteChainID    uint64
	quoteTradeType  string
	quoteRoutesPath string
	quoteAmounts    string
	quoteBlock      uint64
	quoteOptimistic bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote routes once and print the result as JSON",
	Example: `  swapquote quote --chain 1 --routes routes.json --amounts 1000000,2000000
  swapquote quote --chain 42161 --trade-type exact_out --routes routes.json --amounts 5000 --block 250000000`,
	Run: runQuote,
}

func init() {
	quoteCmd.Flags().Uint64Var(&quoteChainID, "chain", 1, "chain id")
	quoteCmd.Flags().StringVar(&quoteTradeType, "trade-type", string(domain.ExactIn), "exact_in or exact_out")
	quoteCmd.Flags().StringVar(&quoteRoutesPath, "routes", "routes.json", "JSON file holding an array of routes")
	quoteCmd.Flags().StringVar(&quoteAmounts, "amounts", "", "comma separated amounts in base units")
	quoteCmd.Flags().Uint64Var(&quoteBlock, "block", 0, "pin the quote to a block (default: head)")
	quoteCmd.Flags().BoolVar(&quoteOptimistic, "optimistic", false, "label the routes as served from a route cache")
	_ = quoteCmd.MarkFlagRequired("amounts")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	data, err := os.ReadFile(quoteRoutesPath)
	if err != nil {
		slog.Error("Failed to read routes", "path", quoteRoutesPath, "error", err)
		os.Exit(1)
	}

	body := api.QuoteRequest{
		ChainID:     domain.ChainID(quoteChainID),
		TradeType:   quoteTradeType,
		Amounts:     strings.Split(quoteAmounts, ","),
		BlockNumber: quoteBlock,
		Optimistic:  quoteOptimistic,
	}
	if err := json.Unmarshal(data, &body.Routes); err != nil {
		slog.Error("Failed to parse routes", "path", quoteRoutesPath, "error", err)
		os.Exit(1)
	}
	req, err := body.ToDomain()
	if err != nil {
		slog.Error("Invalid quote request", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.QuoteTimeout)
	defer cancel()

	app, err := control.NewService(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	res, err := app.Quote(ctx, req)
	if err != nil {
		slog.Error("Quote failed", "chain", req.ChainID.Name(), "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
}
