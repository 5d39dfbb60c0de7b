package redis

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/swapquote/internal/core/domain"
)

func sampleKey() QuoteKey {
	a := domain.Token{Address: common.HexToAddress("0x01")}
	b := domain.Token{Address: common.HexToAddress("0x02")}
	return QuoteKey{
		ChainID:   domain.ChainIDEthereum,
		TradeType: domain.ExactIn,
		Routes: []domain.Route{{
			Tokens: []domain.Token{a, b},
			Pools:  []domain.Pool{{Token0: a, Token1: b, Fee: 3000}},
		}},
		Amounts:     []*big.Int{big.NewInt(1000), big.NewInt(2000)},
		BlockNumber: 100,
	}
}

func TestQuoteKey_Hash(t *testing.T) {
	k := sampleKey()
	h1, err := k.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, _ := sampleKey().Hash()
	if h1 != h2 {
		t.Errorf("expected stable hash, got %s and %s", h1, h2)
	}

	other := sampleKey()
	other.BlockNumber = 101
	h3, _ := other.Hash()
	if h1 == h3 {
		t.Error("expected block number to change the hash")
	}

	other = sampleKey()
	other.Amounts[1] = big.NewInt(2001)
	h4, _ := other.Hash()
	if h1 == h4 {
		t.Error("expected amounts to change the hash")
	}
}

func TestQuoteCache_Key(t *testing.T) {
	c := &QuoteCache{prefix: defaultPrefix}
	key, err := c.key(sampleKey())
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	h, _ := sampleKey().Hash()
	if key != "swapquote:quote:1:"+h {
		t.Errorf("unexpected key %s", key)
	}
}

func TestQuoteCache_Live(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping live redis test. Set REDIS_URL to run.")
	}

	client, err := NewClient(context.Background(), Config{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	cache := NewQuoteCache(client, Config{QuoteTTL: time.Minute, Prefix: "swapquote_test"})
	ctx := context.Background()
	k := sampleKey()

	if _, ok, err := cache.Get(ctx, k); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	want := &domain.QuoteResult{
		BlockNumber: 100,
		RoutesWithQuotes: []domain.RouteWithQuotes{{
			Route:  k.Routes[0],
			Quotes: []domain.AmountQuote{{Amount: big.NewInt(1000), Quote: big.NewInt(1990), GasEstimate: big.NewInt(90000)}},
		}},
	}
	if err := cache.Set(ctx, k, want); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := cache.Get(ctx, k)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.BlockNumber != 100 || got.RoutesWithQuotes[0].Quotes[0].Quote.Int64() != 1990 {
		t.Errorf("unexpected cached result %+v", got)
	}

	n, err := cache.Invalidate(ctx, k.ChainID)
	if err != nil || n != 1 {
		t.Fatalf("invalidate removed %d, err=%v", n, err)
	}
}
