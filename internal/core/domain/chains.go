package domain

import "strconv"

// ChainID is the EIP-155 chain identifier.
type ChainID uint64
type ChainName string

const (
	// Chain IDs
	ChainIDEthereum    ChainID = 1
	ChainIDOptimism    ChainID = 10
	ChainIDPolygon     ChainID = 137
	ChainIDBase        ChainID = 8453
	ChainIDArbitrumOne ChainID = 42161

	// Chain Names (Internal Codes)
	ChainNameEthereum    ChainName = "ETHEREUM_MAINNET"
	ChainNameOptimism    ChainName = "OPTIMISM_MAINNET"
	ChainNamePolygon     ChainName = "POLYGON_MAINNET"
	ChainNameBase        ChainName = "BASE_MAINNET"
	ChainNameArbitrumOne ChainName = "ARBITRUM_ONE"
)

// ChainIDToName maps ChainID to its human-readable InternalCode/Name.
var ChainIDToName = map[ChainID]ChainName{
	ChainIDEthereum:    ChainNameEthereum,
	ChainIDOptimism:    ChainNameOptimism,
	ChainIDPolygon:     ChainNamePolygon,
	ChainIDBase:        ChainNameBase,
	ChainIDArbitrumOne: ChainNameArbitrumOne,
}

// ChainNameToID maps Chain Name to its ID.
var ChainNameToID = map[ChainName]ChainID{
	ChainNameEthereum:    ChainIDEthereum,
	ChainNameOptimism:    ChainIDOptimism,
	ChainNamePolygon:     ChainIDPolygon,
	ChainNameBase:        ChainIDBase,
	ChainNameArbitrumOne: ChainIDArbitrumOne,
}

// String returns the decimal form used in metric labels and cache keys.
func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// Name returns the internal code, or the decimal id for unknown chains.
func (c ChainID) Name() string {
	if name, ok := ChainIDToName[c]; ok {
		return string(name)
	}
	return c.String()
}
