package ledger

import (
	"context"
	"time"

	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/ore"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/stretchr/testify/mock"
)

// Mock implements ClientI for tests.
type Mock struct {
	mock.Mock
}

func (m *Mock) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	args := m.Called(ctx, checkLiveness)
	return args.Int(0), args.String(1), args.Error(2)
}

func (m *Mock) GetChainState(ctx context.Context) (*model.ChainState, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.ChainState), nil
}

func (m *Mock) GetTreasury(ctx context.Context) (*ore.Treasury, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*ore.Treasury), nil
}

func (m *Mock) GetBus(ctx context.Context, id uint64) (*model.Bus, error) {
	args := m.Called(ctx, id)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.Bus), nil
}

func (m *Mock) GetBusses(ctx context.Context) ([]*model.Bus, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.Bus), nil
}

func (m *Mock) GetProof(ctx context.Context, authority solana.PublicKey) (*model.Proof, error) {
	args := m.Called(ctx, authority)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.Proof), nil
}

func (m *Mock) GetClock(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *Mock) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *Mock) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *Mock) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}
