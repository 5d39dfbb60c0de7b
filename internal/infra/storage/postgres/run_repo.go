package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/storage"
	"github.com/vietddude/swapquote/internal/quoting/metrics"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

const runColumns = `id, chain_id, trade_type, optimistic, routes, amounts, block_number, rolled_back,
	attempts, chunks, expected_calls, total_calls, retried_calls, max_calls_per_chunk,
	gas_limit_per_call, approx_gas_used_per_success_call, failures, outcome, error,
	started_at, latency_ms`

// runRow is the quote_runs row layout.
type runRow struct {
	ID               uuid.UUID `db:"id"`
	ChainID          int64     `db:"chain_id"`
	TradeType        string    `db:"trade_type"`
	Optimistic       bool      `db:"optimistic"`
	Routes           int       `db:"routes"`
	Amounts          int       `db:"amounts"`
	BlockNumber      int64     `db:"block_number"`
	RolledBack       bool      `db:"rolled_back"`
	Attempts         int       `db:"attempts"`
	Chunks           int       `db:"chunks"`
	ExpectedCalls    int       `db:"expected_calls"`
	TotalCalls       int       `db:"total_calls"`
	RetriedCalls     int       `db:"retried_calls"`
	MaxCallsPerChunk int       `db:"max_calls_per_chunk"`
	GasLimitPerCall  int64     `db:"gas_limit_per_call"`
	ApproxGasUsed    int64     `db:"approx_gas_used_per_success_call"`
	Failures         []byte    `db:"failures"`
	Outcome          string    `db:"outcome"`
	Error            string    `db:"error"`
	StartedAt        time.Time `db:"started_at"`
	LatencyMs        int64     `db:"latency_ms"`
}

func toRow(run *storage.QuoteRun) (*runRow, error) {
	failures := run.Failures
	if failures == nil {
		failures = map[string]int{}
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return nil, fmt.Errorf("marshal failures: %w", err)
	}
	return &runRow{
		ID:               run.ID,
		ChainID:          int64(run.ChainID),
		TradeType:        string(run.TradeType),
		Optimistic:       run.Optimistic,
		Routes:           run.Routes,
		Amounts:          run.Amounts,
		BlockNumber:      int64(run.BlockNumber),
		RolledBack:       run.RolledBack,
		Attempts:         run.Attempts,
		Chunks:           run.Chunks,
		ExpectedCalls:    run.ExpectedCalls,
		TotalCalls:       run.TotalCalls,
		RetriedCalls:     run.RetriedCalls,
		MaxCallsPerChunk: run.MaxCallsPerChunk,
		GasLimitPerCall:  int64(run.GasLimitPerCall),
		ApproxGasUsed:    int64(run.ApproxGasUsedPerSuccessCall),
		Failures:         data,
		Outcome:          string(run.Outcome),
		Error:            run.Error,
		StartedAt:        run.StartedAt,
		LatencyMs:        run.Latency.Milliseconds(),
	}, nil
}

func (r *runRow) toRun() (*storage.QuoteRun, error) {
	failures := map[string]int{}
	if len(r.Failures) > 0 {
		if err := json.Unmarshal(r.Failures, &failures); err != nil {
			return nil, fmt.Errorf("unmarshal failures: %w", err)
		}
	}
	return &storage.QuoteRun{
		ID:                          r.ID,
		ChainID:                     domain.ChainID(r.ChainID),
		TradeType:                   domain.TradeType(r.TradeType),
		Optimistic:                  r.Optimistic,
		Routes:                      r.Routes,
		Amounts:                     r.Amounts,
		BlockNumber:                 uint64(r.BlockNumber),
		RolledBack:                  r.RolledBack,
		Attempts:                    r.Attempts,
		Chunks:                      r.Chunks,
		ExpectedCalls:               r.ExpectedCalls,
		TotalCalls:                  r.TotalCalls,
		RetriedCalls:                r.RetriedCalls,
		MaxCallsPerChunk:            r.MaxCallsPerChunk,
		GasLimitPerCall:             uint64(r.GasLimitPerCall),
		ApproxGasUsedPerSuccessCall: uint64(r.ApproxGasUsed),
		Failures:                    failures,
		Outcome:                     quoter.Outcome(r.Outcome),
		Error:                       r.Error,
		StartedAt:                   r.StartedAt,
		Latency:                     time.Duration(r.LatencyMs) * time.Millisecond,
	}, nil
}

// RunRepo implements storage.QuoteRunRepository using PostgreSQL.
type RunRepo struct {
	db *DB
}

var _ storage.QuoteRunRepository = (*RunRepo)(nil)

// NewRunRepo creates a new PostgreSQL quote run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Save inserts a run. Saving the same id twice is a no-op.
func (r *RunRepo) Save(ctx context.Context, run *storage.QuoteRun) error {
	row, err := toRow(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO quote_runs (` + runColumns + `)
		VALUES (:id, :chain_id, :trade_type, :optimistic, :routes, :amounts, :block_number, :rolled_back,
			:attempts, :chunks, :expected_calls, :total_calls, :retried_calls, :max_calls_per_chunk,
			:gas_limit_per_call, :approx_gas_used_per_success_call, :failures, :outcome, :error,
			:started_at, :latency_ms)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		metrics.QuoteRunsPersisted.WithLabelValues(run.ChainID.String(), "error").Inc()
		return fmt.Errorf("failed to save quote run: %w", err)
	}
	metrics.QuoteRunsPersisted.WithLabelValues(run.ChainID.String(), "ok").Inc()
	return nil
}

// Get retrieves a run by id.
func (r *RunRepo) Get(ctx context.Context, id uuid.UUID) (*storage.QuoteRun, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `SELECT `+runColumns+` FROM quote_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote run: %w", err)
	}
	return row.toRun()
}

// List returns the newest runs matching filter.
func (r *RunRepo) List(ctx context.Context, filter storage.RunFilter) ([]*storage.QuoteRun, error) {
	query, args := listQuery(filter)

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list quote runs: %w", err)
	}

	runs := make([]*storage.QuoteRun, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func listQuery(filter storage.RunFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.ChainID != 0 {
		args = append(args, int64(filter.ChainID))
		where = append(where, fmt.Sprintf("chain_id = $%d", len(args)))
	}
	if filter.Outcome != "" {
		args = append(args, string(filter.Outcome))
		where = append(where, fmt.Sprintf("outcome = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + runColumns + " FROM quote_runs")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY started_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args
}

// CountByOutcome counts runs per outcome for chainID since the given time.
func (r *RunRepo) CountByOutcome(
	ctx context.Context,
	chainID domain.ChainID,
	since time.Time,
) (map[quoter.Outcome]int, error) {
	var rows []struct {
		Outcome string `db:"outcome"`
		Count   int    `db:"count"`
	}
	query := `
		SELECT outcome, COUNT(*) AS count
		FROM quote_runs
		WHERE chain_id = $1 AND started_at >= $2
		GROUP BY outcome
	`
	if err := r.db.SelectContext(ctx, &rows, query, int64(chainID), since); err != nil {
		return nil, fmt.Errorf("failed to count quote runs: %w", err)
	}

	counts := make(map[quoter.Outcome]int, len(rows))
	for _, row := range rows {
		counts[quoter.Outcome(row.Outcome)] = row.Count
	}
	return counts, nil
}

// DeleteRunsOlderThan removes runs started before the threshold.
func (r *RunRepo) DeleteRunsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quote_runs WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete quote runs: %w", err)
	}
	return res.RowsAffected()
}
