package blockengine

import (
	"context"

	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/stretchr/testify/mock"
)

// Mock implements ClientI and StatusClientI for tests.
type Mock struct {
	mock.Mock
}

func (m *Mock) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	args := m.Called(ctx, checkLiveness)
	return args.Int(0), args.String(1), args.Error(2)
}

func (m *Mock) SendBundle(ctx context.Context, txs []*solana.Transaction) (string, error) {
	args := m.Called(ctx, txs)
	return args.String(0), args.Error(1)
}

func (m *Mock) GetBundleStatuses(ctx context.Context, bundleIDs []string) ([]*BundleStatus, error) {
	args := m.Called(ctx, bundleIDs)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*BundleStatus), nil
}
