package valuation

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/chain"
)

const erc20DecimalsABI = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	decimalsABI     abi.ABI
	decimalsABIOnce sync.Once
	decimalsABIErr  error
)

func decimalsABIInstance() (abi.ABI, error) {
	decimalsABIOnce.Do(func() {
		decimalsABI, decimalsABIErr = abi.JSON(strings.NewReader(erc20DecimalsABI))
	})
	return decimalsABI, decimalsABIErr
}

// TokenRegistry caches token decimals by address, with an optional on-chain
// ERC20 fallback for unseeded tokens.
type TokenRegistry struct {
	chainClient *chain.Client

	mu   sync.RWMutex
	data map[common.Address]uint8
}

// NewTokenRegistry creates a registry. chainClient may be nil, in which case
// only seeded tokens resolve.
func NewTokenRegistry(chainClient *chain.Client) *TokenRegistry {
	return &TokenRegistry{
		chainClient: chainClient,
		data:        make(map[common.Address]uint8),
	}
}

// Seed preloads known token decimals.
func (r *TokenRegistry) Seed(decimals map[common.Address]uint8) {
	r.mu.Lock()
	for token, d := range decimals {
		r.data[token] = d
	}
	r.mu.Unlock()
}

// Decimals returns the decimals of a token, fetching from chain on a cache
// miss when a client is available.
func (r *TokenRegistry) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	r.mu.RLock()
	decimals, ok := r.data[token]
	r.mu.RUnlock()
	if ok {
		return decimals, nil
	}

	if r.chainClient == nil {
		return 0, fmt.Errorf("unknown token decimals: %s", token.Hex())
	}

	decimals, err := fetchTokenDecimals(ctx, r.chainClient, token)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.data[token] = decimals
	r.mu.Unlock()

	return decimals, nil
}

func fetchTokenDecimals(ctx context.Context, chainClient *chain.Client, token common.Address) (uint8, error) {
	parsed, err := decimalsABIInstance()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}

	data, err := parsed.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := chainClient.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	values, err := parsed.Unpack("decimals", resp)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}

	switch v := values[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported decimals type %T", values[0])
	}
}
