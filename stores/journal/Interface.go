// Package journal records every bundle the miner submits and what became of it.
package journal

import (
	"context"

	"github.com/bundleminer/bundleminer/model"
)

type Store interface {
	// RecordSubmission stores the submission and returns its id.
	RecordSubmission(ctx context.Context, submission *model.Submission) (int64, error)

	// UpdateStatus sets the outcome of the bundle with the given id.
	UpdateStatus(ctx context.Context, bundleID string, status model.SubmissionStatus, slot uint64, errMsg string) error

	// Pending returns the oldest submissions still waiting for confirmation.
	Pending(ctx context.Context, limit int) ([]*model.Submission, error)

	// Recent returns the newest submissions, newest first.
	Recent(ctx context.Context, limit int) ([]*model.Submission, error)

	Close() error
}
