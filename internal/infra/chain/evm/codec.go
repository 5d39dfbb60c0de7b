package evm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/vietddude/swapquote/internal/core/domain"
)

const (
	addressLength = 20
	feeLength     = 3
	maxFee        = 1<<24 - 1
)

var errShortQuote = errors.New("quoter returned fewer outputs than expected")

// QuoterCodec encodes Uniswap V3 QuoterV2 multi-hop calls and decodes their
// return data.
type QuoterCodec struct{}

// NewQuoterCodec returns a QuoterV2 codec.
func NewQuoterCodec() *QuoterCodec {
	return &QuoterCodec{}
}

// EncodePath packs a route as token(20) fee(3) token(20) ... For exact out
// the path runs from the output token back to the input token.
func EncodePath(route domain.Route, tradeType domain.TradeType) ([]byte, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}

	path := make([]byte, 0, len(route.Tokens)*addressLength+len(route.Pools)*feeLength)
	appendHop := func(token domain.Token, fee *uint32) {
		path = append(path, token.Address.Bytes()...)
		if fee != nil {
			path = append(path, byte(*fee>>16), byte(*fee>>8), byte(*fee))
		}
	}

	for _, p := range route.Pools {
		if p.Fee > maxFee {
			return nil, fmt.Errorf("fee %d does not fit in uint24", p.Fee)
		}
	}

	last := len(route.Pools) - 1
	switch tradeType {
	case domain.ExactIn:
		for i, p := range route.Pools {
			appendHop(route.Tokens[i], &p.Fee)
		}
		appendHop(route.Tokens[last+1], nil)
	case domain.ExactOut:
		for i := last; i >= 0; i-- {
			appendHop(route.Tokens[i+1], &route.Pools[i].Fee)
		}
		appendHop(route.Tokens[0], nil)
	default:
		return nil, fmt.Errorf("unsupported trade type %q", tradeType)
	}
	return path, nil
}

// EncodeQuoteCall returns calldata for quoteExactInput or quoteExactOutput.
func (c *QuoterCodec) EncodeQuoteCall(route domain.Route, tradeType domain.TradeType, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %v", amount)
	}

	path, err := EncodePath(route, tradeType)
	if err != nil {
		return nil, err
	}

	method, err := quoteMethod(tradeType)
	if err != nil {
		return nil, err
	}
	return quoterABI.Pack(method, path, amount)
}

// DecodeQuoteResult unpacks the return data of a quoter call.
func (c *QuoterCodec) DecodeQuoteResult(tradeType domain.TradeType, data []byte) (*domain.QuoteValues, error) {
	method, err := quoteMethod(tradeType)
	if err != nil {
		return nil, err
	}

	out, err := quoterABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) < 4 {
		return nil, errShortQuote
	}

	return &domain.QuoteValues{
		Amount:                      *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		SqrtPriceX96AfterList:       *abi.ConvertType(out[1], new([]*big.Int)).(*[]*big.Int),
		InitializedTicksCrossedList: *abi.ConvertType(out[2], new([]uint32)).(*[]uint32),
		GasEstimate:                 *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
	}, nil
}

func quoteMethod(tradeType domain.TradeType) (string, error) {
	switch tradeType {
	case domain.ExactIn:
		return methodQuoteExactInput, nil
	case domain.ExactOut:
		return methodQuoteExactOutput, nil
	default:
		return "", fmt.Errorf("unsupported trade type %q", tradeType)
	}
}
