package miner

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util/retry"
)

const (
	// ResetOdds is the inverse of the probability that this miner sends a due epoch reset.
	ResetOdds = 20

	// RewardHeadroom is how many reward payouts a bus must be able to cover to be targeted.
	RewardHeadroom = 4
)

// BusReader reads the live balance of a reward pool.
type BusReader interface {
	GetBus(ctx context.Context, id uint64) (*model.Bus, error)
}

// Coordinator decides whether the epoch needs a reset and which bus a round targets.
type Coordinator struct {
	logger      ulogger.Logger
	reader      BusReader
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	sample      func(n int) int
}

func NewCoordinator(logger ulogger.Logger, reader BusReader, tSettings *settings.Settings) *Coordinator {
	maxAttempts := tSettings.Miner.BusMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Coordinator{
		logger:      logger,
		reader:      reader,
		maxAttempts: maxAttempts,
		backoff:     tSettings.Miner.BusBackoff,
		maxBackoff:  tSettings.Miner.MaxRoundBackoff,
		sample:      rand.IntN, //nolint:gosec // bus choice and reset lottery need no crypto randomness
	}
}

// EpochDue reports whether the ledger clock has reached the end of the snapshot's epoch.
func EpochDue(state *model.ChainState, clock time.Time) bool {
	lastReset := state.LastResetAt.Unix()
	epoch := int64(state.EpochDuration / time.Second)

	threshold := int64(math.MaxInt64)
	if lastReset <= math.MaxInt64-epoch {
		threshold = lastReset + epoch
	}

	return clock.Unix() >= threshold
}

// ShouldSubmitReset is the reset lottery: true with probability 1/ResetOdds. Every miner sees the
// same due epoch, so only a few of them should pay for the reset transaction.
func (c *Coordinator) ShouldSubmitReset() bool {
	return c.sample(ResetOdds) == 0
}

// BusEligible reports whether the bus holds more than RewardHeadroom times the reward rate.
func BusEligible(bus *model.Bus, rewardRate uint64) bool {
	required := uint64(math.MaxUint64)
	if rewardRate <= math.MaxUint64/RewardHeadroom {
		required = rewardRate * RewardHeadroom
	}

	return bus.Rewards > required
}

// SelectBus samples buses uniformly until one is eligible for the reward rate. Every sample
// reads the bus fresh. It gives up with ERR_EXHAUSTED after the configured number of attempts;
// read errors count as attempts.
func (c *Coordinator) SelectBus(ctx context.Context, rewardRate uint64) (*model.Bus, error) {
	bus, err := retry.Retry(ctx, c.logger, func() (*model.Bus, error) {
		id := uint64(c.sample(model.BusCount)) //nolint:gosec // sample is in [0, BusCount)

		bus, err := c.reader.GetBus(ctx, id)
		if err != nil {
			return nil, err
		}

		if !BusEligible(bus, rewardRate) {
			return nil, errors.NewProcessingError("bus %d holds %s, needs more than %d x %s", bus.ID,
				model.FormatTokenAmount(bus.Rewards), RewardHeadroom, model.FormatTokenAmount(rewardRate))
		}

		return bus, nil
	},
		retry.WithRetryCount(c.maxAttempts),
		retry.WithExponentialBackoff(),
		retry.WithBackoffDurationType(c.backoff),
		retry.WithMaxBackoff(c.maxBackoff),
		retry.WithMessage("[SelectBus] bus not usable"),
		retry.WithRetryIf(func(err error) bool {
			return !errors.IsContextError(err) && !errors.IsFatalError(err)
		}),
	)
	if err != nil {
		if errors.IsContextError(err) || errors.IsFatalError(err) {
			return nil, err
		}

		return nil, errors.NewExhaustedError("[SelectBus] no bus above %d x reward rate after %d attempts", RewardHeadroom, c.maxAttempts, err)
	}

	return bus, nil
}
