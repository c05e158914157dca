// Package ledger reads mining state from the ledger's JSON-RPC API.
package ledger

import (
	"context"
	"time"

	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/ore"
	"github.com/bundleminer/bundleminer/pkg/solana"
)

// ClientI is the read side of the ledger used by the miner. Every call reads live state;
// nothing is cached between calls.
type ClientI interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// GetChainState returns a fresh treasury snapshot.
	GetChainState(ctx context.Context) (*model.ChainState, error)
	GetTreasury(ctx context.Context) (*ore.Treasury, error)

	// GetBus returns the current balance of one reward pool.
	GetBus(ctx context.Context, id uint64) (*model.Bus, error)
	GetBusses(ctx context.Context) ([]*model.Bus, error)

	// GetProof returns the proof account of a wallet, or a NOT_FOUND error if the wallet is
	// not registered.
	GetProof(ctx context.Context, authority solana.PublicKey) (*model.Proof, error)
	GetClock(ctx context.Context) (time.Time, error)
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	AccountExists(ctx context.Context, address solana.PublicKey) (bool, error)
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
}
