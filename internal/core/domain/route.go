package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an ERC20 asset.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol,omitempty"`
	Decimals uint8          `json:"decimals,omitempty"`
}

// Pool is a concentrated liquidity pool identified by its token pair and fee tier.
type Pool struct {
	Address common.Address `json:"address,omitempty"`
	Token0  Token          `json:"token0"`
	Token1  Token          `json:"token1"`
	Fee     uint32         `json:"fee"` // hundredths of a bip, e.g. 3000 = 0.3%
}

// Involves reports whether t is one side of the pool.
func (p Pool) Involves(t common.Address) bool {
	return p.Token0.Address == t || p.Token1.Address == t
}

// Route is an ordered sequence of pools connecting Tokens[0] to Tokens[len-1].
// Tokens[i] and Tokens[i+1] are the two sides of Pools[i].
type Route struct {
	Tokens []Token `json:"tokens"`
	Pools  []Pool  `json:"pools"`
}

// Input returns the first token of the route.
func (r Route) Input() Token {
	if len(r.Tokens) == 0 {
		return Token{}
	}
	return r.Tokens[0]
}

// Output returns the last token of the route.
func (r Route) Output() Token {
	if len(r.Tokens) == 0 {
		return Token{}
	}
	return r.Tokens[len(r.Tokens)-1]
}

// Validate checks that the token path and pools line up.
func (r Route) Validate() error {
	if len(r.Pools) == 0 {
		return fmt.Errorf("route has no pools")
	}
	if len(r.Tokens) != len(r.Pools)+1 {
		return fmt.Errorf("route has %d tokens for %d pools", len(r.Tokens), len(r.Pools))
	}
	for i, p := range r.Pools {
		if !p.Involves(r.Tokens[i].Address) || !p.Involves(r.Tokens[i+1].Address) {
			return fmt.Errorf("pool %d does not connect %s and %s",
				i, r.Tokens[i].Address.Hex(), r.Tokens[i+1].Address.Hex())
		}
	}
	return nil
}

// String renders the route as "A -[3000]-> B -[500]-> C".
func (r Route) String() string {
	var sb strings.Builder
	for i, t := range r.Tokens {
		if i > 0 {
			fmt.Fprintf(&sb, " -[%d]-> ", r.Pools[i-1].Fee)
		}
		if t.Symbol != "" {
			sb.WriteString(t.Symbol)
		} else {
			sb.WriteString(t.Address.Hex())
		}
	}
	return sb.String()
}
