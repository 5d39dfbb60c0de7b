package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/storage"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

const maxBodyBytes = 4 << 20

// ErrUnknownChain is returned by a Quoter for chains it is not configured for.
var ErrUnknownChain = errors.New("unknown chain")

// QuoteRequest is the /quote request body. Amounts are decimal strings.
type QuoteRequest struct {
	ChainID     domain.ChainID `json:"chain_id"`
	TradeType   string         `json:"trade_type"`
	Amounts     []string       `json:"amounts"`
	Routes      []domain.Route `json:"routes"`
	BlockNumber uint64         `json:"block_number,omitempty"`
	Optimistic  bool           `json:"optimistic,omitempty"`
}

// ToDomain validates the body and converts it.
func (r QuoteRequest) ToDomain() (domain.QuoteRequest, error) {
	tradeType, err := domain.ParseTradeType(r.TradeType)
	if err != nil {
		return domain.QuoteRequest{}, err
	}
	if r.ChainID == 0 {
		return domain.QuoteRequest{}, errors.New("chain_id is required")
	}

	amounts := make([]*big.Int, len(r.Amounts))
	for i, s := range r.Amounts {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 {
			return domain.QuoteRequest{}, fmt.Errorf("amounts[%d]: invalid amount %q", i, s)
		}
		amounts[i] = v
	}
	for i, route := range r.Routes {
		if err := route.Validate(); err != nil {
			return domain.QuoteRequest{}, fmt.Errorf("routes[%d]: %w", i, err)
		}
	}

	return domain.QuoteRequest{
		ChainID:     r.ChainID,
		TradeType:   tradeType,
		Amounts:     amounts,
		Routes:      r.Routes,
		BlockNumber: r.BlockNumber,
		Optimistic:  r.Optimistic,
	}, nil
}

type errorResponse struct {
	Error    string   `json:"error"`
	Attempts int      `json:"attempts,omitempty"`
	Reasons  []string `json:"reasons,omitempty"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var body QuoteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	req, err := body.ToDomain()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx := r.Context()
	if s.cfg.QuoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QuoteTimeout)
		defer cancel()
	}

	res, err := s.quoter.Quote(ctx, req)
	if err != nil {
		status, resp := quoteError(err)
		if status >= http.StatusInternalServerError {
			s.log.Warn("Quote request failed", "chain", req.ChainID.Name(), "status", status, "error", err)
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func quoteError(err error) (int, errorResponse) {
	resp := errorResponse{Error: err.Error()}

	var failed *quoter.QuotesFailedError
	switch {
	case errors.Is(err, ErrUnknownChain):
		return http.StatusNotFound, resp
	case errors.As(err, &failed):
		resp.Attempts = failed.Attempts
		for _, kind := range failed.Reasons {
			resp.Reasons = append(resp.Reasons, kind.String())
		}
		return http.StatusBadGateway, resp
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp
	}
	return http.StatusInternalServerError, resp
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.RunFilter{Limit: 50, Outcome: quoter.Outcome(q.Get("outcome"))}

	if v := q.Get("chain_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid chain_id"})
			return
		}
		filter.ChainID = domain.ChainID(id)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		filter.Limit = n
	}

	runs, err := s.runs.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if runs == nil {
		runs = []*storage.QuoteRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
