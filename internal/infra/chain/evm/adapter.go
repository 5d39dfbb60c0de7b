package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/chain"
	"github.com/vietddude/swapquote/internal/infra/rpc"
)

// Canonical deployments shared by most EVM chains.
var (
	DefaultMulticallAddress = common.HexToAddress("0x1F98415757620B543A52E61c46B32eB19261F984")
	DefaultQuoterAddress    = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
)

// multicallCall mirrors UniswapInterfaceMulticall.Call.
type multicallCall struct {
	Target   common.Address
	GasLimit *big.Int
	CallData []byte
}

// multicallResult mirrors UniswapInterfaceMulticall.Result.
type multicallResult struct {
	Success    bool
	GasUsed    *big.Int
	ReturnData []byte
}

type multicallOutput struct {
	BlockNumber *big.Int
	ReturnData  []multicallResult
}

// EVMAdapter runs quoter batches through UniswapInterfaceMulticall with
// eth_call against a pinned block.
type EVMAdapter struct {
	chainID   domain.ChainID
	client    rpc.RPCClient
	multicall common.Address
	codec     *QuoterCodec
	log       *slog.Logger
}

var _ chain.Adapter = (*EVMAdapter)(nil)

func NewEVMAdapter(chainID domain.ChainID, client rpc.RPCClient, multicall common.Address) *EVMAdapter {
	return &EVMAdapter{
		chainID:   chainID,
		client:    client,
		multicall: multicall,
		codec:     NewQuoterCodec(),
		log:       slog.Default().With("chain", chainID.Name()),
	}
}

func (a *EVMAdapter) GetChainID() domain.ChainID {
	return a.chainID
}

func (a *EVMAdapter) GetLatestBlock(ctx context.Context) (uint64, error) {
	result, err := a.client.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	blockHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid block number response")
	}
	return hexutil.DecodeUint64(blockHex)
}

// Execute sends every calldata in req to req.Target inside one multicall.
// Inner calls that revert or return undecodable data come back with
// Success false; only a failure of the outer eth_call is an error.
func (a *EVMAdapter) Execute(ctx context.Context, req chain.BatchRequest) (*chain.BatchResponse, error) {
	gasLimit := new(big.Int).SetUint64(req.GasLimitPerCall)
	calls := make([]multicallCall, len(req.Calldata))
	for i, data := range req.Calldata {
		calls[i] = multicallCall{Target: req.Target, GasLimit: gasLimit, CallData: data}
	}

	input, err := multicallABI.Pack(methodMulticall, calls)
	if err != nil {
		return nil, fmt.Errorf("pack multicall: %w", err)
	}

	msg := map[string]any{
		"to":   a.multicall.Hex(),
		"data": hexutil.Encode(input),
	}
	result, err := a.client.Call(ctx, "eth_call", []any{msg, hexutil.EncodeUint64(req.BlockNumber)})
	if err != nil {
		return nil, fmt.Errorf("eth_call multicall: %w", err)
	}

	raw, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("invalid eth_call response type %T", result)
	}
	output, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode eth_call response: %w", err)
	}

	var out multicallOutput
	if err := multicallABI.UnpackIntoInterface(&out, methodMulticall, output); err != nil {
		return nil, fmt.Errorf("unpack multicall: %w", err)
	}
	if out.BlockNumber == nil || !out.BlockNumber.IsUint64() {
		return nil, fmt.Errorf("multicall returned invalid block number")
	}

	return a.collect(req.TradeType, out), nil
}

func (a *EVMAdapter) collect(tradeType domain.TradeType, out multicallOutput) *chain.BatchResponse {
	res := &chain.BatchResponse{
		BlockNumber: out.BlockNumber.Uint64(),
		Results:     make([]chain.CallResult, len(out.ReturnData)),
	}

	for i, r := range out.ReturnData {
		var gasUsed uint64
		if r.GasUsed != nil && r.GasUsed.IsUint64() {
			gasUsed = r.GasUsed.Uint64()
		}
		res.Results[i] = chain.CallResult{GasUsed: gasUsed}

		if !r.Success {
			continue
		}
		values, err := a.codec.DecodeQuoteResult(tradeType, r.ReturnData)
		if err != nil {
			a.log.Debug("Undecodable quoter result", "index", i, "error", err)
			continue
		}

		res.Results[i].Success = true
		res.Results[i].Values = values
		res.ApproxGasUsedPerSuccessCall = max(res.ApproxGasUsedPerSuccessCall, gasUsed)
	}
	return res
}
