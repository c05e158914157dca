package sql

import (
	"context"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
)

func (s *SQL) UpdateStatus(ctx context.Context, bundleID string, status model.SubmissionStatus, slot uint64, errMsg string) error {
	if bundleID == "" {
		return errors.NewInvalidArgumentError("bundle id is required")
	}

	const query = `
		UPDATE submissions
		SET status = $1, slot = $2, error = $3, updated_at = CURRENT_TIMESTAMP
		WHERE bundle_id = $4
	`

	slotValue, err := safeconversion.Uint64ToInt64(slot)
	if err != nil {
		return errors.NewInvalidArgumentError("slot %d out of range", slot, err)
	}

	res, err := s.db.ExecContext(ctx, query, string(status), slotValue, errMsg, bundleID)
	if err != nil {
		return errors.NewStorageError("failed to update status of bundle %s", bundleID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.NewStorageError("failed to update status of bundle %s", bundleID, err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("bundle %s is not in the journal", bundleID)
	}

	return nil
}
