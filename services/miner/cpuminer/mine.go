// Package cpuminer searches the nonce space for a hash under the difficulty target using one
// goroutine per thread.
package cpuminer

import (
	"context"
	"encoding/binary"
	"hash"
	"math"
	"sync"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"go.uber.org/atomic"
	"golang.org/x/crypto/sha3"
)

// PollInterval is how many nonces a worker hashes between checks of the found flag and the context.
const PollInterval = 10_000

// NonceRange is an inclusive range of nonces searched by one worker.
type NonceRange struct {
	Start uint64
	End   uint64
}

// NonceRanges splits [0, MaxUint64] into threads contiguous ranges. Range i starts at
// i * (MaxUint64 / threads) and the last range ends at MaxUint64.
func NonceRanges(threads int) []NonceRange {
	if threads < 1 {
		return nil
	}

	step := math.MaxUint64 / uint64(threads)
	ranges := make([]NonceRange, threads)

	for i := range ranges {
		ranges[i].Start = uint64(i) * step

		if i > 0 {
			ranges[i-1].End = ranges[i].Start - 1
		}
	}

	ranges[threads-1].End = math.MaxUint64

	return ranges
}

type hasher struct {
	h     hash.Hash
	input [model.HashSize + solana.PublicKeyLength + 8]byte
	out   model.Hash
}

func newHasher(challenge model.Hash, authority solana.PublicKey) *hasher {
	hs := &hasher{h: sha3.NewLegacyKeccak256()}

	copy(hs.input[:model.HashSize], challenge[:])
	copy(hs.input[model.HashSize:], authority[:])

	return hs
}

func (hs *hasher) sum(nonce uint64) model.Hash {
	binary.LittleEndian.PutUint64(hs.input[model.HashSize+solana.PublicKeyLength:], nonce)

	hs.h.Reset()
	_, _ = hs.h.Write(hs.input[:])
	hs.h.Sum(hs.out[:0])

	return hs.out
}

// Hash is keccak256(challenge || authority || little-endian nonce).
func Hash(challenge model.Hash, authority solana.PublicKey, nonce uint64) model.Hash {
	return newHasher(challenge, authority).sum(nonce)
}

// Verify re-hashes the solution. A mismatch means the search produced a wrong answer, which is a bug.
func Verify(challenge model.Hash, authority solana.PublicKey, solution *model.Solution, difficulty model.Hash) error {
	if solution == nil {
		return errors.NewComputeInvariantError("[Verify][%s] nil solution", authority)
	}

	h := Hash(challenge, authority, solution.Nonce)

	if h != solution.Hash {
		return errors.NewComputeInvariantError("[Verify][%s] nonce %d hashes to %s, solution claims %s", authority, solution.Nonce, h, solution.Hash)
	}

	if !h.LessOrEqual(difficulty) {
		return errors.NewComputeInvariantError("[Verify][%s] hash %s is above difficulty %s", authority, h, difficulty)
	}

	return nil
}

// Searcher runs searches and counts every hash it computes.
type Searcher struct {
	hashes atomic.Uint64
}

func NewSearcher() *Searcher {
	return &Searcher{}
}

// Hashes is the number of hashes computed so far, updated at every poll point.
func (s *Searcher) Hashes() uint64 {
	return s.hashes.Load()
}

// Search returns a nonce whose hash is at or below difficulty. Workers stop at the next poll
// point after one of them succeeds; only the first successful worker's result is kept.
// The search has no deadline of its own and stops early only when ctx is done.
func (s *Searcher) Search(ctx context.Context, challenge model.Hash, authority solana.PublicKey, difficulty model.Hash, threads int) (*model.Solution, error) {
	if threads < 1 {
		return nil, errors.NewInvalidArgumentError("[Search] thread count must be at least 1, got %d", threads)
	}

	var (
		found    atomic.Bool
		solution *model.Solution
		wg       sync.WaitGroup
	)

	for _, r := range NonceRanges(threads) {
		wg.Add(1)

		go func(r NonceRange) {
			defer wg.Done()

			hs := newHasher(challenge, authority)

			var local uint64

			defer func() {
				s.hashes.Add(local)
			}()

			for nonce := r.Start; ; nonce++ {
				if nonce%PollInterval == 0 {
					if found.Load() || ctx.Err() != nil {
						return
					}

					s.hashes.Add(local)
					local = 0
				}

				h := hs.sum(nonce)
				local++

				if h.LessOrEqual(difficulty) {
					if found.CompareAndSwap(false, true) {
						solution = &model.Solution{Hash: h, Nonce: nonce}
					}

					return
				}

				if nonce == r.End {
					return
				}
			}
		}(r)
	}

	wg.Wait()

	if solution != nil {
		return solution, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewContextCanceledError("[Search][%s] search stopped", authority, err)
	}

	return nil, errors.NewExhaustedError("[Search][%s] nonce space exhausted", authority)
}
