package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Uniswap V3 QuoterV2 ABI (multi-hop quote functions)
const quoterV2ABI = `[
	{
		"inputs": [
			{"internalType": "bytes", "name": "path", "type": "bytes"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"}
		],
		"name": "quoteExactInput",
		"outputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"internalType": "uint160[]", "name": "sqrtPriceX96AfterList", "type": "uint160[]"},
			{"internalType": "uint32[]", "name": "initializedTicksCrossedList", "type": "uint32[]"},
			{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes", "name": "path", "type": "bytes"},
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"}
		],
		"name": "quoteExactOutput",
		"outputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint160[]", "name": "sqrtPriceX96AfterList", "type": "uint160[]"},
			{"internalType": "uint32[]", "name": "initializedTicksCrossedList", "type": "uint32[]"},
			{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// UniswapInterfaceMulticall ABI (gas-limited aggregate call)
const interfaceMulticallABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "target", "type": "address"},
					{"internalType": "uint256", "name": "gasLimit", "type": "uint256"},
					{"internalType": "bytes", "name": "callData", "type": "bytes"}
				],
				"internalType": "struct UniswapInterfaceMulticall.Call[]",
				"name": "calls",
				"type": "tuple[]"
			}
		],
		"name": "multicall",
		"outputs": [
			{"internalType": "uint256", "name": "blockNumber", "type": "uint256"},
			{
				"components": [
					{"internalType": "bool", "name": "success", "type": "bool"},
					{"internalType": "uint256", "name": "gasUsed", "type": "uint256"},
					{"internalType": "bytes", "name": "returnData", "type": "bytes"}
				],
				"internalType": "struct UniswapInterfaceMulticall.Result[]",
				"name": "returnData",
				"type": "tuple[]"
			}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const (
	methodQuoteExactInput  = "quoteExactInput"
	methodQuoteExactOutput = "quoteExactOutput"
	methodMulticall        = "multicall"
)

var (
	quoterABI    = mustParseABI("quoterV2", quoterV2ABI)
	multicallABI = mustParseABI("multicall", interfaceMulticallABI)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse %s ABI: %v", name, err))
	}
	return parsed
}
