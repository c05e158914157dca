package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bundleminer/bundleminer/pkg/solana"
)

const (
	// BusCount is the number of reward pools.
	BusCount = 8

	// EpochDuration is the time between epoch resets.
	EpochDuration = 60 * time.Second

	// TokenDecimals is the number of decimal places of the mined token.
	TokenDecimals = 9
)

// ChainState is the treasury snapshot captured at the start of a round. It is never patched;
// a new round captures a new one.
type ChainState struct {
	Difficulty    Hash
	RewardRate    uint64
	LastResetAt   time.Time
	EpochDuration time.Duration
}

// EpochDeadline is when the current epoch becomes due for reset.
func (cs *ChainState) EpochDeadline() time.Time {
	return cs.LastResetAt.Add(cs.EpochDuration)
}

// Bus is one of the shared reward pools.
type Bus struct {
	ID      uint64
	Rewards uint64
}

func (b *Bus) String() string {
	return fmt.Sprintf("bus %d (%s)", b.ID, FormatTokenAmount(b.Rewards))
}

// Proof is the per-wallet mining account.
type Proof struct {
	Authority        solana.PublicKey
	ClaimableRewards uint64
	Hash             Hash
	TotalHashes      uint64
	TotalRewards     uint64
}

// Solution is a nonce whose hash satisfies the round's difficulty for one wallet.
type Solution struct {
	Hash  Hash
	Nonce uint64
}

// FormatTokenAmount renders an amount in the smallest unit as a decimal token amount, e.g.
// 1500000000 -> "1.5".
func FormatTokenAmount(amount uint64) string {
	s := strconv.FormatUint(amount, 10)

	if len(s) <= TokenDecimals {
		s = strings.Repeat("0", TokenDecimals-len(s)+1) + s
	}

	whole := s[:len(s)-TokenDecimals]
	frac := strings.TrimRight(s[len(s)-TokenDecimals:], "0")

	if frac == "" {
		return whole
	}

	return whole + "." + frac
}
