package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/storage"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

type fakeQuoter struct {
	got domain.QuoteRequest
	res *domain.QuoteResult
	err error
}

func (f *fakeQuoter) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeRuns struct {
	filter storage.RunFilter
	runs   []*storage.QuoteRun
}

func (f *fakeRuns) List(ctx context.Context, filter storage.RunFilter) ([]*storage.QuoteRun, error) {
	f.filter = filter
	return f.runs, nil
}

const quoteBody = `{
	"chain_id": 1,
	"trade_type": "exact_out",
	"amounts": ["1000000000000000000000", "5"],
	"block_number": 100,
	"optimistic": true,
	"routes": [{
		"tokens": [{"address": "0x0000000000000000000000000000000000000001"}, {"address": "0x0000000000000000000000000000000000000002"}],
		"pools": [{
			"token0": {"address": "0x0000000000000000000000000000000000000001"},
			"token1": {"address": "0x0000000000000000000000000000000000000002"},
			"fee": 3000
		}]
	}]
}`

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader(body)))
	return rec
}

func TestQuote_Success(t *testing.T) {
	q := &fakeQuoter{res: &domain.QuoteResult{
		BlockNumber:      100,
		RoutesWithQuotes: []domain.RouteWithQuotes{{Quotes: []domain.AmountQuote{{Amount: big.NewInt(5), Quote: big.NewInt(7)}}}},
	}}
	s := NewServer(Config{}, q, nil, nil)

	rec := post(t, s, quoteBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, domain.ChainIDEthereum, q.got.ChainID)
	assert.Equal(t, domain.ExactOut, q.got.TradeType)
	assert.Equal(t, uint64(100), q.got.BlockNumber)
	assert.True(t, q.got.Optimistic)
	require.Len(t, q.got.Amounts, 2)
	assert.Equal(t, "1000000000000000000000", q.got.Amounts[0].String())
	require.Len(t, q.got.Routes, 1)
	assert.Equal(t, uint32(3000), q.got.Routes[0].Pools[0].Fee)

	var res domain.QuoteResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, uint64(100), res.BlockNumber)
	assert.Equal(t, int64(7), res.RoutesWithQuotes[0].Quotes[0].Quote.Int64())
}

func TestQuote_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"chain_id":`, "invalid request body"},
		{"unknown field", `{"chain_id":1,"foo":1}`, "unknown field"},
		{"missing chain", `{"amounts":["1"]}`, "chain_id is required"},
		{"bad trade type", `{"chain_id":1,"trade_type":"sideways"}`, "unknown trade type"},
		{"bad amount", `{"chain_id":1,"amounts":["1e18"]}`, "invalid amount"},
		{"negative amount", `{"chain_id":1,"amounts":["-1"]}`, "invalid amount"},
		{"broken route", `{"chain_id":1,"routes":[{"tokens":[],"pools":[]}]}`, "routes[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuoter{}
			rec := post(t, NewServer(Config{}, q, nil, nil), tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestQuote_ErrorMapping(t *testing.T) {
	failed := &quoter.QuotesFailedError{
		FailedChunks: 2,
		Attempts:     3,
		Reasons:      []quoter.FailureKind{quoter.KindOutOfGas, quoter.KindUnknown},
	}

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown chain", fmt.Errorf("chain 5: %w", ErrUnknownChain), http.StatusNotFound},
		{"quotes failed", failed, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", fmt.Errorf("get latest block: boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, NewServer(Config{}, &fakeQuoter{err: tt.err}, nil, nil), quoteBody)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := post(t, NewServer(Config{}, &fakeQuoter{err: failed}, nil, nil), quoteBody)
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []string{"OutOfGas", "Unknown"}, resp.Reasons)
}

func TestRuns(t *testing.T) {
	runs := &fakeRuns{runs: []*storage.QuoteRun{{ID: uuid.New(), Outcome: quoter.OutcomeSuccess}}}
	s := NewServer(Config{}, &fakeQuoter{}, runs, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?chain_id=137&outcome=failed&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storage.RunFilter{ChainID: domain.ChainIDPolygon, Outcome: quoter.OutcomeFailed, Limit: 10}, runs.filter)

	var got []storage.QuoteRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got, 1)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(Config{}, &fakeQuoter{}, nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
