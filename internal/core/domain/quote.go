package domain

import (
	"fmt"
	"math/big"
)

// TradeType selects which side of the swap the amount refers to.
type TradeType string

const (
	ExactIn  TradeType = "exact_in"
	ExactOut TradeType = "exact_out"
)

// ParseTradeType accepts the canonical names.
func ParseTradeType(s string) (TradeType, error) {
	switch TradeType(s) {
	case ExactIn, "":
		return ExactIn, nil
	case ExactOut:
		return ExactOut, nil
	}
	return "", fmt.Errorf("unknown trade type %q", s)
}

// QuoteValues are the decoded outputs of a single quoter call.
type QuoteValues struct {
	// Amount is amountOut for exact in, amountIn for exact out.
	Amount                      *big.Int
	SqrtPriceX96AfterList       []*big.Int
	InitializedTicksCrossedList []uint32
	GasEstimate                 *big.Int
}

// AmountQuote is the priced result of one (route, amount) pair.
// Quote and GasEstimate are nil when the simulated call failed.
type AmountQuote struct {
	Amount                      *big.Int   `json:"amount"`
	Quote                       *big.Int   `json:"quote"`
	SqrtPriceX96AfterList       []*big.Int `json:"sqrtPriceX96AfterList,omitempty"`
	InitializedTicksCrossedList []uint32   `json:"initializedTicksCrossedList,omitempty"`
	GasEstimate                 *big.Int   `json:"gasEstimate"`
	GasLimit                    uint64     `json:"gasLimit"`
}

// RouteWithQuotes pairs a route with one quote per requested amount, in amount order.
type RouteWithQuotes struct {
	Route  Route         `json:"route"`
	Quotes []AmountQuote `json:"quotes"`
}

// QuoteResult is the outcome of one quote invocation.
type QuoteResult struct {
	RoutesWithQuotes []RouteWithQuotes `json:"routesWithQuotes"`
	BlockNumber      uint64            `json:"blockNumber"`
}

// QuoteRequest is one pricing request against a chain.
type QuoteRequest struct {
	ChainID   ChainID
	TradeType TradeType
	Amounts   []*big.Int
	Routes    []Route

	// BlockNumber pins the quote to a block; zero follows the chain head.
	BlockNumber uint64

	// Optimistic marks routes served from a route cache.
	Optimistic bool
}
