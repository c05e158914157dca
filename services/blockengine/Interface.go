// Package blockengine submits bundles of transactions to a block engine over authenticated gRPC
// and polls the engine's HTTP API for their status.
package blockengine

import (
	"context"

	"github.com/bundleminer/bundleminer/pkg/solana"
)

// ClientI submits bundles. SendBundle returns as soon as the engine accepts the bundle; it does
// not wait for the bundle to land.
type ClientI interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	SendBundle(ctx context.Context, txs []*solana.Transaction) (string, error)
}

// StatusClientI reports what happened to submitted bundles.
type StatusClientI interface {
	GetBundleStatuses(ctx context.Context, bundleIDs []string) ([]*BundleStatus, error)
}
