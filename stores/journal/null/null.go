// Package null is a journal that keeps nothing.
package null

import (
	"context"

	"github.com/bundleminer/bundleminer/model"
)

type Null struct{}

func New() *Null {
	return &Null{}
}

func (n *Null) RecordSubmission(_ context.Context, _ *model.Submission) (int64, error) {
	return 0, nil
}

func (n *Null) UpdateStatus(_ context.Context, _ string, _ model.SubmissionStatus, _ uint64, _ string) error {
	return nil
}

func (n *Null) Pending(_ context.Context, _ int) ([]*model.Submission, error) {
	return nil, nil
}

func (n *Null) Recent(_ context.Context, _ int) ([]*model.Submission, error) {
	return nil, nil
}

func (n *Null) Close() error {
	return nil
}
