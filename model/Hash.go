package model

import (
	"bytes"
	"encoding/hex"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/holiman/uint256"
	"github.com/mr-tron/base58"
)

const HashSize = 32

// Hash is a 256-bit big-endian value: a proof challenge, a search result or a difficulty target.
type Hash [HashSize]byte

// MaxHash is the easiest possible difficulty; every hash satisfies it.
var MaxHash = Hash{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

func NewHashFromBytes(b []byte) (Hash, error) {
	var h Hash

	if len(b) != HashSize {
		return h, errors.NewInvalidArgumentError("hash must be %d bytes, got %d", HashSize, len(b))
	}

	copy(h[:], b)

	return h, nil
}

func NewHashFromString(s string) (Hash, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Hash{}, errors.NewInvalidArgumentError("invalid base58 hash %q", s, err)
	}

	return NewHashFromBytes(b)
}

// NewHashFromUint256 encodes v as 32 big-endian bytes.
func NewHashFromUint256(v *uint256.Int) Hash {
	return Hash(v.Bytes32())
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

// LessOrEqual compares the two hashes as unsigned 256-bit big-endian integers.
func (h Hash) LessOrEqual(other Hash) bool {
	return bytes.Compare(h[:], other[:]) <= 0
}

func (h Hash) Magnitude() *uint256.Int {
	return new(uint256.Int).SetBytes32(h[:])
}

// LeadingZeroBits is 256 for the zero hash.
func (h Hash) LeadingZeroBits() int {
	return 256 - h.Magnitude().BitLen()
}
