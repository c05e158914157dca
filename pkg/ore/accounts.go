package ore

import (
	"encoding/binary"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/solana"
)

// Account discriminators occupy the first 8 bytes of every program account.
const (
	discriminatorBus      = 100
	discriminatorProof    = 101
	discriminatorTreasury = 102

	busSize      = 8 + 16
	proofSize    = 8 + 88
	treasurySize = 8 + 96
	clockSize    = 40
)

// Treasury holds the global mining parameters.
type Treasury struct {
	Admin        solana.PublicKey
	Bump         uint64
	Difficulty   model.Hash
	LastResetAt  int64
	RewardRate   uint64
	TotalClaimed uint64
}

// ChainState converts the treasury into the round snapshot.
func (t *Treasury) ChainState() *model.ChainState {
	return &model.ChainState{
		Difficulty:    t.Difficulty,
		RewardRate:    t.RewardRate,
		LastResetAt:   time.Unix(t.LastResetAt, 0),
		EpochDuration: model.EpochDuration,
	}
}

func checkAccount(name string, data []byte, size int, discriminator byte) error {
	if len(data) < size {
		return errors.NewInvalidResponseError("%s account is %d bytes, expected at least %d", name, len(data), size)
	}

	if data[0] != discriminator {
		return errors.NewInvalidResponseError("%s account has discriminator %d, expected %d", name, data[0], discriminator)
	}

	return nil
}

func DecodeTreasury(data []byte) (*Treasury, error) {
	if err := checkAccount("treasury", data, treasurySize, discriminatorTreasury); err != nil {
		return nil, err
	}

	t := &Treasury{
		Bump:         binary.LittleEndian.Uint64(data[40:48]),
		LastResetAt:  int64(binary.LittleEndian.Uint64(data[80:88])), //nolint:gosec // i64 on the wire
		RewardRate:   binary.LittleEndian.Uint64(data[88:96]),
		TotalClaimed: binary.LittleEndian.Uint64(data[96:104]),
	}

	copy(t.Admin[:], data[8:40])
	copy(t.Difficulty[:], data[48:80])

	return t, nil
}

func DecodeBus(data []byte) (*model.Bus, error) {
	if err := checkAccount("bus", data, busSize, discriminatorBus); err != nil {
		return nil, err
	}

	return &model.Bus{
		ID:      binary.LittleEndian.Uint64(data[8:16]),
		Rewards: binary.LittleEndian.Uint64(data[16:24]),
	}, nil
}

func DecodeProof(data []byte) (*model.Proof, error) {
	if err := checkAccount("proof", data, proofSize, discriminatorProof); err != nil {
		return nil, err
	}

	p := &model.Proof{
		ClaimableRewards: binary.LittleEndian.Uint64(data[40:48]),
		TotalHashes:      binary.LittleEndian.Uint64(data[80:88]),
		TotalRewards:     binary.LittleEndian.Uint64(data[88:96]),
	}

	copy(p.Authority[:], data[8:40])
	copy(p.Hash[:], data[48:80])

	return p, nil
}

// DecodeClock returns the unix timestamp from the clock sysvar.
func DecodeClock(data []byte) (time.Time, error) {
	if len(data) < clockSize {
		return time.Time{}, errors.NewInvalidResponseError("clock sysvar is %d bytes, expected %d", len(data), clockSize)
	}

	return time.Unix(int64(binary.LittleEndian.Uint64(data[32:40])), 0), nil //nolint:gosec // i64 on the wire
}
