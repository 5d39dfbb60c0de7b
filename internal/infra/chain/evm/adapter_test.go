package evm

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/chain"
)

// MockClient implements rpc.RPCClient for testing
type MockClient struct {
	CallFunc func(ctx context.Context, method string, params []any) (any, error)
}

func (m *MockClient) Call(ctx context.Context, method string, params []any) (any, error) {
	if m.CallFunc != nil {
		return m.CallFunc(ctx, method, params)
	}
	return nil, nil
}

var (
	weth = domain.Token{Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Symbol: "WETH"}
	usdc = domain.Token{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC"}
	dai  = domain.Token{Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Symbol: "DAI"}
)

func twoHopRoute() domain.Route {
	return domain.Route{
		Tokens: []domain.Token{weth, usdc, dai},
		Pools: []domain.Pool{
			{Token0: usdc, Token1: weth, Fee: 500},
			{Token0: dai, Token1: usdc, Fee: 100},
		},
	}
}

func packQuoteOutput(t *testing.T, tradeType domain.TradeType, amount int64) []byte {
	t.Helper()
	method, _ := quoteMethod(tradeType)
	out, err := quoterABI.Methods[method].Outputs.Pack(
		big.NewInt(amount),
		[]*big.Int{big.NewInt(1 << 40), big.NewInt(1 << 41)},
		[]uint32{1, 3},
		big.NewInt(120_000),
	)
	if err != nil {
		t.Fatalf("pack quote output: %v", err)
	}
	return out
}

func TestEncodePath(t *testing.T) {
	route := twoHopRoute()

	in, err := EncodePath(route, domain.ExactIn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := append(append(append(append(
		weth.Address.Bytes(), 0x00, 0x01, 0xf4),
		usdc.Address.Bytes()...), 0x00, 0x00, 0x64),
		dai.Address.Bytes()...)
	if !bytes.Equal(in, want) {
		t.Errorf("exact in path = %x, want %x", in, want)
	}

	out, err := EncodePath(route, domain.ExactOut)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = append(append(append(append(
		dai.Address.Bytes(), 0x00, 0x00, 0x64),
		usdc.Address.Bytes()...), 0x00, 0x01, 0xf4),
		weth.Address.Bytes()...)
	if !bytes.Equal(out, want) {
		t.Errorf("exact out path = %x, want %x", out, want)
	}
}

func TestEncodePath_Invalid(t *testing.T) {
	bad := twoHopRoute()
	bad.Pools[0].Fee = 1 << 24
	if _, err := EncodePath(bad, domain.ExactIn); err == nil {
		t.Error("expected error for fee overflowing uint24")
	}

	broken := twoHopRoute()
	broken.Tokens = broken.Tokens[:2]
	if _, err := EncodePath(broken, domain.ExactIn); err == nil {
		t.Error("expected error for token/pool mismatch")
	}
}

func TestQuoterCodec_RoundTrip(t *testing.T) {
	codec := NewQuoterCodec()

	data, err := codec.EncodeQuoteCall(twoHopRoute(), domain.ExactIn, big.NewInt(1e18))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(data[:4], quoterABI.Methods[methodQuoteExactInput].ID) {
		t.Errorf("wrong selector %x", data[:4])
	}

	args, err := quoterABI.Methods[methodQuoteExactInput].Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack inputs: %v", err)
	}
	if amount := args[1].(*big.Int); amount.Cmp(big.NewInt(1e18)) != 0 {
		t.Errorf("amount = %v", amount)
	}

	values, err := codec.DecodeQuoteResult(domain.ExactOut, packQuoteOutput(t, domain.ExactOut, 4242))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if values.Amount.Int64() != 4242 || values.GasEstimate.Int64() != 120_000 {
		t.Errorf("unexpected values %+v", values)
	}
	if len(values.SqrtPriceX96AfterList) != 2 || len(values.InitializedTicksCrossedList) != 2 {
		t.Errorf("unexpected lists %+v", values)
	}

	if _, err := codec.DecodeQuoteResult(domain.ExactIn, []byte{0x01, 0x02}); err == nil {
		t.Error("expected error for short return data")
	}
}

func TestEVMAdapter_GetLatestBlock(t *testing.T) {
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method == "eth_blockNumber" {
				return "0x12d687", nil // 1234567 in hex
			}
			return nil, nil
		},
	}

	adapter := NewEVMAdapter(domain.ChainIDEthereum, mock, DefaultMulticallAddress)
	height, err := adapter.GetLatestBlock(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 1234567 {
		t.Errorf("expected height 1234567, got %d", height)
	}
}

func TestEVMAdapter_Execute(t *testing.T) {
	quoter := DefaultQuoterAddress
	good := packQuoteOutput(t, domain.ExactIn, 1000)

	var gotCalls []multicallCall
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method != "eth_call" {
				t.Errorf("unexpected method %s", method)
			}
			if params[1] != "0x64" {
				t.Errorf("expected block 0x64, got %v", params[1])
			}
			msg := params[0].(map[string]any)
			if !strings.EqualFold(msg["to"].(string), DefaultMulticallAddress.Hex()) {
				t.Errorf("call sent to %v", msg["to"])
			}

			input := hexutil.MustDecode(msg["data"].(string))
			args, err := multicallABI.Methods[methodMulticall].Inputs.Unpack(input[4:])
			if err != nil {
				t.Fatalf("unpack multicall input: %v", err)
			}
			gotCalls = *abi.ConvertType(args[0], new([]multicallCall)).(*[]multicallCall)

			out, err := multicallABI.Methods[methodMulticall].Outputs.Pack(big.NewInt(100), []multicallResult{
				{Success: true, GasUsed: big.NewInt(90_000), ReturnData: good},
				{Success: false, GasUsed: big.NewInt(30_000), ReturnData: nil},
				{Success: true, GasUsed: big.NewInt(95_000), ReturnData: good},
				{Success: true, GasUsed: big.NewInt(200_000), ReturnData: []byte{0xde, 0xad}},
			})
			if err != nil {
				t.Fatalf("pack multicall output: %v", err)
			}
			return hexutil.Encode(out), nil
		},
	}

	adapter := NewEVMAdapter(domain.ChainIDEthereum, mock, DefaultMulticallAddress)
	res, err := adapter.Execute(context.Background(), chain.BatchRequest{
		Target:          quoter,
		TradeType:       domain.ExactIn,
		Calldata:        [][]byte{{0x01}, {0x02}, {0x03}, {0x04}},
		GasLimitPerCall: 1_000_000,
		BlockNumber:     100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gotCalls) != 4 || gotCalls[0].Target != quoter || gotCalls[2].GasLimit.Uint64() != 1_000_000 {
		t.Errorf("unexpected encoded calls %+v", gotCalls)
	}
	if res.BlockNumber != 100 {
		t.Errorf("expected block 100, got %d", res.BlockNumber)
	}

	wantSuccess := []bool{true, false, true, false}
	for i, r := range res.Results {
		if r.Success != wantSuccess[i] {
			t.Errorf("result %d success = %v, want %v", i, r.Success, wantSuccess[i])
		}
		if r.Success && r.Values.Amount.Int64() != 1000 {
			t.Errorf("result %d amount = %v", i, r.Values.Amount)
		}
	}
	if res.ApproxGasUsedPerSuccessCall != 95_000 {
		t.Errorf("expected max successful gas 95000, got %d", res.ApproxGasUsedPerSuccessCall)
	}
}

func TestEVMAdapter_ExecuteTransportError(t *testing.T) {
	mock := &MockClient{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			return nil, errors.New("rpc error -32000: header not found")
		},
	}

	adapter := NewEVMAdapter(domain.ChainIDEthereum, mock, DefaultMulticallAddress)
	_, err := adapter.Execute(context.Background(), chain.BatchRequest{
		Target:    DefaultQuoterAddress,
		TradeType: domain.ExactIn,
		Calldata:  [][]byte{{0x01}},
	})
	if err == nil || !strings.Contains(err.Error(), "header not found") {
		t.Fatalf("expected transport error text preserved, got %v", err)
	}
}
