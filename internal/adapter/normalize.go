package adapter

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChecksumAddress canonicalizes an EVM address to EIP-55 mixed-case
// checksum form, the stored form everywhere in this system. Accepts
// addresses with or without a 0x prefix and in any case.
func ChecksumAddress(addr string) string {
	if !common.IsHexAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}

// ScaleVotingPower converts a raw integer voting power (e.g. wei) into
// whole token units as f64, dividing by 10^decimals. decimals defaults to
// 18 when <= 0, matching the EVM convention.
func ScaleVotingPower(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	if decimals <= 0 {
		decimals = 18
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).SetInt(raw)
	result := new(big.Float).Quo(value, scale)
	f, _ := result.Float64()
	return f
}

// BinaryChoice maps a binary for/against source code to the canonical
// encoding: 0 = For, 1 = Against. Binary sources already use this encoding
// at the wire level, so this is an identity map kept explicit for clarity
// and so future binary-style sources have a documented home.
func BinaryChoice(sourceCode int) json.RawMessage {
	return rawInt(sourceCode)
}

// CompoundChoice remaps a Compound-style {Against=0, For=1, Abstain=2}
// source code to the canonical {For=0, Against=1, Abstain=2} encoding.
// Unknown codes map to Abstain per spec.md §8's boundary behavior.
func CompoundChoice(sourceCode int) json.RawMessage {
	switch sourceCode {
	case 0: // Against
		return rawInt(1)
	case 1: // For
		return rawInt(0)
	case 2: // Abstain
		return rawInt(2)
	default:
		return rawInt(2)
	}
}

// SnapshotChoice stores a Snapshot multi-choice vote verbatim as JSON: it
// may already be an integer, an array of integers (ranked choice), or a
// fractional weight map, and none of those need remapping.
func SnapshotChoice(raw json.RawMessage) json.RawMessage {
	return raw
}

// MakerBitPackedChoice decodes a Maker-style bit-packed choice integer into
// a big-endian byte sequence, stored as a JSON array of byte values.
func MakerBitPackedChoice(packed *big.Int) json.RawMessage {
	if packed == nil {
		return rawInt(0)
	}
	b := packed.Bytes() // already big-endian
	vals := make([]int, len(b))
	for i, x := range b {
		vals[i] = int(x)
	}
	out, _ := json.Marshal(vals)
	return out
}

func rawInt(v int) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
