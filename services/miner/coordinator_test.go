package miner

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBusReader struct {
	mu      sync.Mutex
	rewards map[uint64]uint64
	errs    map[uint64]error
	reads   []uint64
}

func (f *fakeBusReader) GetBus(_ context.Context, id uint64) (*model.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads = append(f.reads, id)

	if err := f.errs[id]; err != nil {
		return nil, err
	}

	return &model.Bus{ID: id, Rewards: f.rewards[id]}, nil
}

func sequence(values ...int) func(int) int {
	var i int

	return func(int) int {
		v := values[i%len(values)]
		i++

		return v
	}
}

func testCoordinator(reader BusReader, attempts int) *Coordinator {
	c := NewCoordinator(ulogger.TestLogger{}, reader, &settings.Settings{
		Miner: settings.MinerSettings{
			BusMaxAttempts:  attempts,
			BusBackoff:      time.Millisecond,
			MaxRoundBackoff: 2 * time.Millisecond,
		},
	})

	return c
}

func TestEpochDue(t *testing.T) {
	lastReset := time.Unix(1_700_000_000, 0)
	state := &model.ChainState{LastResetAt: lastReset, EpochDuration: model.EpochDuration}

	assert.False(t, EpochDue(state, lastReset))
	assert.False(t, EpochDue(state, lastReset.Add(59*time.Second)))
	assert.True(t, EpochDue(state, lastReset.Add(60*time.Second)))
	assert.True(t, EpochDue(state, lastReset.Add(time.Hour)))

	// saturates instead of wrapping around
	far := &model.ChainState{LastResetAt: time.Unix(math.MaxInt64-10, 0), EpochDuration: model.EpochDuration}
	assert.False(t, EpochDue(far, time.Unix(math.MaxInt64-1, 0)))
	assert.True(t, EpochDue(far, time.Unix(math.MaxInt64, 0)))
}

func TestShouldSubmitReset(t *testing.T) {
	c := testCoordinator(&fakeBusReader{}, 1)

	var bound int

	c.sample = func(n int) int {
		bound = n
		return 0
	}

	assert.True(t, c.ShouldSubmitReset())
	assert.Equal(t, ResetOdds, bound)

	c.sample = sequence(1, 19)
	assert.False(t, c.ShouldSubmitReset())
	assert.False(t, c.ShouldSubmitReset())
}

func TestResetRateConverges(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	c := testCoordinator(&fakeBusReader{}, 1)

	const draws = 200_000

	resets := 0

	for range draws {
		if c.ShouldSubmitReset() {
			resets++
		}
	}

	assert.InDelta(t, 1.0/ResetOdds, float64(resets)/draws, 0.005)
}

func TestBusEligible(t *testing.T) {
	assert.True(t, BusEligible(&model.Bus{Rewards: 401}, 100))
	assert.False(t, BusEligible(&model.Bus{Rewards: 400}, 100))
	assert.True(t, BusEligible(&model.Bus{Rewards: 1}, 0))
	assert.False(t, BusEligible(&model.Bus{Rewards: 0}, 0))

	// 4 x rate overflows and saturates, so no bus can qualify
	assert.False(t, BusEligible(&model.Bus{Rewards: math.MaxUint64}, math.MaxUint64/2))
}

func TestSelectBus(t *testing.T) {
	t.Run("first eligible sample wins", func(t *testing.T) {
		reader := &fakeBusReader{rewards: map[uint64]uint64{2: 100, 5: 1000}}
		c := testCoordinator(reader, 8)
		c.sample = sequence(2, 5)

		bus, err := c.SelectBus(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), bus.ID)
		assert.Equal(t, []uint64{2, 5}, reader.reads)
	})

	t.Run("every sample reads fresh", func(t *testing.T) {
		reader := &fakeBusReader{rewards: map[uint64]uint64{3: 1000}}
		c := testCoordinator(reader, 8)
		c.sample = sequence(3)

		for range 3 {
			_, err := c.SelectBus(context.Background(), 100)
			require.NoError(t, err)
		}

		assert.Len(t, reader.reads, 3)
	})

	t.Run("exhausted", func(t *testing.T) {
		reader := &fakeBusReader{rewards: map[uint64]uint64{}}
		c := testCoordinator(reader, 4)

		_, err := c.SelectBus(context.Background(), 100)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrExhausted))
		assert.Len(t, reader.reads, 4)
	})

	t.Run("read errors count as attempts", func(t *testing.T) {
		reader := &fakeBusReader{
			rewards: map[uint64]uint64{1: 1000},
			errs:    map[uint64]error{0: errors.NewNetworkError("rpc down")},
		}
		c := testCoordinator(reader, 3)
		c.sample = sequence(0, 0, 1)

		bus, err := c.SelectBus(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), bus.ID)
		assert.Len(t, reader.reads, 3)
	})

	t.Run("sample stays in range", func(t *testing.T) {
		reader := &fakeBusReader{rewards: map[uint64]uint64{}}
		c := testCoordinator(reader, 1)

		var bound int

		c.sample = func(n int) int {
			bound = n
			return n - 1
		}

		_, _ = c.SelectBus(context.Background(), 1)
		assert.Equal(t, model.BusCount, bound)
	})

	t.Run("cancelled", func(t *testing.T) {
		c := testCoordinator(&fakeBusReader{}, 10)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.SelectBus(ctx, 1)
		assert.True(t, errors.IsContextError(err))
	})
}
