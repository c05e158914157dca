package sql

import (
	"context"
	"database/sql"
	"time"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
)

const selectColumns = `id, round_id, kind, bundle_id, bus_id, bus_rewards, reward_rate, wallets, status, error, slot, submitted_at`

func (s *SQL) Pending(ctx context.Context, limit int) ([]*model.Submission, error) {
	const query = `SELECT ` + selectColumns + `
		FROM submissions
		WHERE status = $1 AND bundle_id <> ''
		ORDER BY id ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, string(model.SubmissionSubmitted), limit)
	if err != nil {
		return nil, errors.NewStorageError("failed to query pending submissions", err)
	}

	return scanSubmissions(rows)
}

func (s *SQL) Recent(ctx context.Context, limit int) ([]*model.Submission, error) {
	const query = `SELECT ` + selectColumns + `
		FROM submissions
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.NewStorageError("failed to query recent submissions", err)
	}

	return scanSubmissions(rows)
}

func scanSubmissions(rows *sql.Rows) ([]*model.Submission, error) {
	defer func() {
		_ = rows.Close()
	}()

	submissions := make([]*model.Submission, 0)

	for rows.Next() {
		var (
			submission  model.Submission
			kind        string
			status      string
			wallets     string
			busRewards  int64
			rewardRate  int64
			slot        int64
			submittedAt int64
		)

		if err := rows.Scan(
			&submission.ID,
			&submission.RoundID,
			&kind,
			&submission.BundleID,
			&submission.BusID,
			&busRewards,
			&rewardRate,
			&wallets,
			&status,
			&submission.Error,
			&slot,
			&submittedAt,
		); err != nil {
			return nil, errors.NewStorageError("failed to scan submission", err)
		}

		submission.Kind = model.SubmissionKind(kind)
		submission.Status = model.SubmissionStatus(status)
		submission.Wallets = model.ParseWalletList(wallets)
		var err error

		if submission.BusRewards, err = safeconversion.Int64ToUint64(busRewards); err != nil {
			return nil, errors.NewStorageError("negative bus rewards in submission %d", submission.ID, err)
		}

		if submission.RewardRate, err = safeconversion.Int64ToUint64(rewardRate); err != nil {
			return nil, errors.NewStorageError("negative reward rate in submission %d", submission.ID, err)
		}

		if submission.Slot, err = safeconversion.Int64ToUint64(slot); err != nil {
			return nil, errors.NewStorageError("negative slot in submission %d", submission.ID, err)
		}
		submission.SubmittedAt = time.UnixMilli(submittedAt)

		submissions = append(submissions, &submission)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read submissions", err)
	}

	return submissions, nil
}
