package sql

import (
	"context"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
)

func (s *SQL) RecordSubmission(ctx context.Context, submission *model.Submission) (int64, error) {
	const query = `
		INSERT INTO submissions (round_id, kind, bundle_id, bus_id, bus_rewards, reward_rate, wallets, status, error, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	busRewards, err := safeconversion.Uint64ToInt64(submission.BusRewards)
	if err != nil {
		return 0, errors.NewInvalidArgumentError("bus rewards %d out of range", submission.BusRewards, err)
	}

	rewardRate, err := safeconversion.Uint64ToInt64(submission.RewardRate)
	if err != nil {
		return 0, errors.NewInvalidArgumentError("reward rate %d out of range", submission.RewardRate, err)
	}

	var id int64

	err = s.db.QueryRowContext(ctx, query,
		submission.RoundID,
		string(submission.Kind),
		submission.BundleID,
		submission.BusID,
		busRewards,
		rewardRate,
		submission.WalletList(),
		string(submission.Status),
		submission.Error,
		submission.SubmittedAt.UnixMilli(),
	).Scan(&id)
	if err != nil {
		return 0, errors.NewStorageError("failed to record submission for round %s", submission.RoundID, err)
	}

	submission.ID = id

	return id, nil
}
