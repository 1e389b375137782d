package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
)

// MetadataFile is the on-disk block metadata: prices as decimal strings,
// addresses as hex.
type MetadataFile struct {
	BlockNumber          uint64            `json:"block_number"`
	BlockHash            string            `json:"block_hash"`
	BuilderAddress       string            `json:"builder_address"`
	EthPriceUSD          string            `json:"eth_price_usd"`
	TokenPricesUSD       map[string]string `json:"token_prices_usd"`
	TokenDecimals        map[string]uint8  `json:"token_decimals"`
	ProposerFeeRecipient string            `json:"proposer_fee_recipient"`
	ProposerMevReward    string            `json:"proposer_mev_reward"`
}

// LoadMetadata reads and parses a block metadata file.
func LoadMetadata(path string) (*model.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var file MetadataFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	return file.Metadata()
}

// Metadata converts the file form into the in-memory metadata.
func (f MetadataFile) Metadata() (*model.Metadata, error) {
	ethPrice, err := parseRat(f.EthPriceUSD)
	if err != nil {
		return nil, fmt.Errorf("eth_price_usd: %w", err)
	}

	tokenPrices := make(map[common.Address]*big.Rat, len(f.TokenPricesUSD))
	for token, price := range f.TokenPricesUSD {
		if !common.IsHexAddress(token) {
			return nil, fmt.Errorf("invalid token address: %s", token)
		}
		parsed, err := parseRat(price)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", token, err)
		}
		tokenPrices[common.HexToAddress(token)] = parsed
	}

	proposerReward := new(big.Int)
	if f.ProposerMevReward != "" {
		var ok bool
		proposerReward, ok = new(big.Int).SetString(f.ProposerMevReward, 10)
		if !ok {
			return nil, fmt.Errorf("invalid proposer_mev_reward: %q", f.ProposerMevReward)
		}
	}

	decimals := make(map[common.Address]uint8, len(f.TokenDecimals))
	for token, d := range f.TokenDecimals {
		if !common.IsHexAddress(token) {
			return nil, fmt.Errorf("invalid token address: %s", token)
		}
		decimals[common.HexToAddress(token)] = d
	}

	return &model.Metadata{
		BlockNumber:          f.BlockNumber,
		BlockHash:            common.HexToHash(f.BlockHash),
		BuilderAddress:       common.HexToAddress(f.BuilderAddress),
		EthPriceUSD:          ethPrice,
		TokenPricesUSD:       tokenPrices,
		TokenDecimals:        decimals,
		ProposerFeeRecipient: common.HexToAddress(f.ProposerFeeRecipient),
		ProposerMevReward:    proposerReward,
	}, nil
}

func parseRat(s string) (*big.Rat, error) {
	if s == "" {
		return new(big.Rat), nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid decimal: %q", s)
	}
	return r, nil
}
