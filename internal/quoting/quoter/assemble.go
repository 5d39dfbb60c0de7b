package quoter

import (
	"math/big"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/chain"
)

// assemble maps flat, route-major call results back onto the route x amount
// matrix. results[r*len(amounts)+a] belongs to routes[r] and amounts[a].
func assemble(
	routes []domain.Route,
	amounts []*big.Int,
	results []chain.CallResult,
	gasLimit uint64,
) []domain.RouteWithQuotes {
	out := make([]domain.RouteWithQuotes, len(routes))
	for r, route := range routes {
		quotes := make([]domain.AmountQuote, len(amounts))
		for a, amount := range amounts {
			quotes[a] = amountQuote(amount, results[r*len(amounts)+a], gasLimit)
		}
		out[r] = domain.RouteWithQuotes{Route: route, Quotes: quotes}
	}
	return out
}

func amountQuote(amount *big.Int, res chain.CallResult, gasLimit uint64) domain.AmountQuote {
	q := domain.AmountQuote{
		Amount:   amount,
		GasLimit: gasLimit,
	}
	if !res.Success || res.Values == nil {
		return q
	}

	q.Quote = res.Values.Amount
	q.SqrtPriceX96AfterList = res.Values.SqrtPriceX96AfterList
	q.InitializedTicksCrossedList = res.Values.InitializedTicksCrossedList
	q.GasEstimate = res.Values.GasEstimate
	return q
}
