package model

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MevType classifies a detected MEV pattern. The set is closed; it doubles
// as the key into the composition dependency table.
type MevType uint8

const (
	MevUnknown MevType = iota
	MevBackrun
	MevCexDex
	MevSandwich
	MevJit
	MevJitSandwich
)

// AllMevTypes lists every known type in a fixed order. Used to drain bundle
// groups deterministically.
var AllMevTypes = []MevType{MevBackrun, MevCexDex, MevSandwich, MevJit, MevJitSandwich}

func (t MevType) String() string {
	switch t {
	case MevBackrun:
		return "backrun"
	case MevCexDex:
		return "cex_dex"
	case MevSandwich:
		return "sandwich"
	case MevJit:
		return "jit"
	case MevJitSandwich:
		return "jit_sandwich"
	default:
		return "unknown"
	}
}

// BundleHeader is the classification header shared by every bundle.
// Immutable once built.
type BundleHeader struct {
	BlockNumber     uint64
	TxHashes        []common.Hash
	EOA             common.Address
	MevContract     common.Address
	MevType         MevType
	ProfitUSD       float64
	GasPaid         *big.Int
	PriorityFeePaid *big.Int
	Bribe           *big.Int
}

// BundleData is the type-specific payload of a bundle. The set of
// implementations is closed; compose functions pattern-match on the
// concrete pair instead of downcasting.
type BundleData interface {
	TxHashes() []common.Hash
	isBundleData()
}

// AtomicArb is the payload of a Backrun bundle: one transaction whose swaps
// form a profitable cycle.
type AtomicArb struct {
	TxHash     common.Hash
	GasDetails GasDetails
	Swaps      []Swap
}

// CexDexArb is the payload of a CexDex bundle. Detection requires an
// off-chain price feed; the type exists so externally classified bundles
// participate in dependency resolution.
type CexDexArb struct {
	TxHash common.Hash
	Swaps  []Swap
}

// SandwichAttack is the payload of a Sandwich bundle.
type SandwichAttack struct {
	FrontTxs    []common.Hash
	VictimTxs   []common.Hash
	BackTxs     []common.Hash
	FrontSwaps  []Swap
	VictimSwaps []Swap
	BackSwaps   []Swap
}

// JitLiquidity is the payload of a Jit bundle: a mint/burn pair bracketing
// victim swaps on the same pool.
type JitLiquidity struct {
	MintTx    common.Hash
	BurnTx    common.Hash
	VictimTxs []common.Hash
	Mints     []Mint
	Burns     []Burn
}

// JitSandwich is the composed payload of a sandwich whose attacker also
// provided just-in-time liquidity.
type JitSandwich struct {
	Sandwich SandwichAttack
	Jit      JitLiquidity
}

func (AtomicArb) isBundleData()      {}
func (CexDexArb) isBundleData()      {}
func (SandwichAttack) isBundleData() {}
func (JitLiquidity) isBundleData()   {}
func (JitSandwich) isBundleData()    {}

func (a AtomicArb) TxHashes() []common.Hash { return []common.Hash{a.TxHash} }
func (c CexDexArb) TxHashes() []common.Hash { return []common.Hash{c.TxHash} }

func (s SandwichAttack) TxHashes() []common.Hash {
	hashes := make([]common.Hash, 0, len(s.FrontTxs)+len(s.VictimTxs)+len(s.BackTxs))
	hashes = append(hashes, s.FrontTxs...)
	hashes = append(hashes, s.VictimTxs...)
	hashes = append(hashes, s.BackTxs...)
	return hashes
}

func (j JitLiquidity) TxHashes() []common.Hash {
	hashes := make([]common.Hash, 0, len(j.VictimTxs)+2)
	hashes = append(hashes, j.MintTx)
	hashes = append(hashes, j.VictimTxs...)
	hashes = append(hashes, j.BurnTx)
	return hashes
}

func (js JitSandwich) TxHashes() []common.Hash {
	return unionHashes(js.Sandwich.TxHashes(), js.Jit.TxHashes())
}

// Bundle is one detected MEV event. Created by exactly one inspector or by
// composition, never mutated afterwards.
type Bundle struct {
	Header BundleHeader
	Data   BundleData
}

// TxHashes returns the transaction-hash set of the payload.
func (b Bundle) TxHashes() []common.Hash {
	if b.Data == nil {
		return b.Header.TxHashes
	}
	return b.Data.TxHashes()
}

// HashesEqual reports whether a and b contain exactly the same hashes in the
// same order.
func HashesEqual(a, b []common.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HashesIntersect reports whether any hash appears in both sets.
func HashesIntersect(a, b []common.Hash) bool {
	seen := make(map[common.Hash]struct{}, len(a))
	for _, h := range a {
		seen[h] = struct{}{}
	}
	for _, h := range b {
		if _, ok := seen[h]; ok {
			return true
		}
	}
	return false
}

func unionHashes(a, b []common.Hash) []common.Hash {
	out := make([]common.Hash, 0, len(a)+len(b))
	seen := make(map[common.Hash]struct{}, len(a)+len(b))
	for _, h := range a {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	for _, h := range b {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

// ComposeSandwichJit merges a Sandwich bundle and a Jit bundle into a single
// JitSandwich bundle. Returns false when either payload has an unexpected
// concrete type.
func ComposeSandwichJit(sandwich, jit Bundle) (Bundle, bool) {
	sd, ok := sandwich.Data.(SandwichAttack)
	if !ok {
		return Bundle{}, false
	}
	jd, ok := jit.Data.(JitLiquidity)
	if !ok {
		return Bundle{}, false
	}

	data := JitSandwich{Sandwich: sd, Jit: jd}
	header := BundleHeader{
		BlockNumber:     sandwich.Header.BlockNumber,
		TxHashes:        data.TxHashes(),
		EOA:             sandwich.Header.EOA,
		MevContract:     sandwich.Header.MevContract,
		MevType:         MevJitSandwich,
		ProfitUSD:       sandwich.Header.ProfitUSD + jit.Header.ProfitUSD,
		GasPaid:         addBig(sandwich.Header.GasPaid, jit.Header.GasPaid),
		PriorityFeePaid: addBig(sandwich.Header.PriorityFeePaid, jit.Header.PriorityFeePaid),
		Bribe:           addBig(sandwich.Header.Bribe, jit.Header.Bribe),
	}
	return Bundle{Header: header, Data: data}, true
}

func addBig(a, b *big.Int) *big.Int {
	sum := new(big.Int)
	if a != nil {
		sum.Add(sum, a)
	}
	if b != nil {
		sum.Add(sum, b)
	}
	return sum
}

type bundleJSON struct {
	BlockNumber     uint64   `json:"block_number"`
	TxHashes        []string `json:"tx_hashes"`
	EOA             string   `json:"eoa"`
	MevContract     string   `json:"mev_contract"`
	MevType         string   `json:"mev_type"`
	ProfitUSD       float64  `json:"profit_usd"`
	GasPaid         string   `json:"gas_paid"`
	PriorityFeePaid string   `json:"priority_fee_paid"`
	Bribe           string   `json:"bribe"`
}

// MarshalJSON encodes the bundle header with stable field names. The
// type-specific payload is summarized by its transaction hashes.
func (b Bundle) MarshalJSON() ([]byte, error) {
	hashes := b.TxHashes()
	encoded := bundleJSON{
		BlockNumber:     b.Header.BlockNumber,
		TxHashes:        make([]string, 0, len(hashes)),
		EOA:             b.Header.EOA.Hex(),
		MevContract:     b.Header.MevContract.Hex(),
		MevType:         b.Header.MevType.String(),
		ProfitUSD:       b.Header.ProfitUSD,
		GasPaid:         bigString(b.Header.GasPaid),
		PriorityFeePaid: bigString(b.Header.PriorityFeePaid),
		Bribe:           bigString(b.Header.Bribe),
	}
	for _, h := range hashes {
		encoded.TxHashes = append(encoded.TxHashes, h.Hex())
	}
	return json.Marshal(encoded)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
