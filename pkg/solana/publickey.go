// Package solana implements the parts of the ledger wire format the miner needs: addresses,
// program derived addresses, keypairs and legacy transaction encoding.
package solana

import (
	"bytes"
	"crypto/sha256"

	"filippo.io/edwards25519"
	"github.com/bundleminer/bundleminer/errors"
	"github.com/mr-tron/base58"
)

const (
	PublicKeyLength = 32

	// MaxSeeds and MaxSeedLength bound the seeds accepted by CreateProgramAddress.
	MaxSeeds      = 16
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

type PublicKey [PublicKeyLength]byte

var (
	SystemProgramID          = MustPublicKeyFromBase58("11111111111111111111111111111111")
	TokenProgramID           = MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	SysvarClockID            = MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	SysvarSlotHashesID       = MustPublicKeyFromBase58("SysvarS1otHashes111111111111111111111111111")
)

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey

	if len(b) != PublicKeyLength {
		return pk, errors.NewInvalidArgumentError("public key must be %d bytes, got %d", PublicKeyLength, len(b))
	}

	copy(pk[:], b)

	return pk, nil
}

func PublicKeyFromBase58(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, errors.NewInvalidArgumentError("invalid base58 public key %q", s, err)
	}

	return PublicKeyFromBytes(b)
}

// MustPublicKeyFromBase58 is for compile-time constants only.
func MustPublicKeyFromBase58(s string) PublicKey {
	pk, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}

	return pk
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

func (pk PublicKey) Equals(other PublicKey) bool {
	return pk == other
}

func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// IsOnCurve reports whether the key is a valid compressed ed25519 point. Program derived
// addresses are, by construction, never on the curve.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// CreateProgramAddress hashes the seeds with the program id and fails if the result lands on
// the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return PublicKey{}, errors.NewInvalidArgumentError("too many seeds: %d", len(seeds))
	}

	var buf bytes.Buffer

	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return PublicKey{}, errors.NewInvalidArgumentError("seed longer than %d bytes", MaxSeedLength)
		}

		buf.Write(seed)
	}

	buf.Write(programID[:])
	buf.WriteString(pdaMarker)

	hash := sha256.Sum256(buf.Bytes())
	pk := PublicKey(hash)

	if pk.IsOnCurve() {
		return PublicKey{}, errors.NewInvalidArgumentError("derived address is on the curve")
	}

	return pk, nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first off-curve address.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}

		pk, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return pk, uint8(bump), nil
		}
	}

	return PublicKey{}, 0, errors.NewNotFoundError("unable to find a viable program address bump seed")
}

// FindAssociatedTokenAddress derives the token account that holds mint for wallet.
func FindAssociatedTokenAddress(wallet, mint PublicKey) (PublicKey, error) {
	pk, _, err := FindProgramAddress([][]byte{wallet[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)

	return pk, err
}
