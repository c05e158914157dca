package miner

import (
	"context"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/services/blockengine"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/stores/journal"
	"github.com/bundleminer/bundleminer/ulogger"
)

const (
	confirmBatch = 50

	// DefaultExpireAfter is how long a bundle may stay unseen before it is marked expired. A
	// blockhash is only valid for about 150 slots, so a bundle not landed by then never will.
	DefaultExpireAfter = 2 * time.Minute
)

// Confirmer follows up on submitted bundles and records whether they landed.
type Confirmer struct {
	logger      ulogger.Logger
	status      blockengine.StatusClientI
	journal     journal.Store
	interval    time.Duration
	expireAfter time.Duration
	now         func() time.Time
}

func NewConfirmer(logger ulogger.Logger, tSettings *settings.Settings, status blockengine.StatusClientI, journalStore journal.Store) *Confirmer {
	interval := tSettings.Miner.ConfirmInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &Confirmer{
		logger:      logger,
		status:      status,
		journal:     journalStore,
		interval:    interval,
		expireAfter: DefaultExpireAfter,
		now:         time.Now,
	}
}

// Start polls until ctx is done.
func (c *Confirmer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.ConfirmPending(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warnf("[Confirmer] %v", err)
			}
		}
	}
}

// ConfirmPending checks the oldest pending submissions and returns how many were updated.
func (c *Confirmer) ConfirmPending(ctx context.Context) (int, error) {
	pending, err := c.journal.Pending(ctx, confirmBatch)
	if err != nil {
		return 0, errors.NewStorageError("[Confirmer] failed to read pending submissions", err)
	}

	updated := 0

	for start := 0; start < len(pending); start += blockengine.MaxStatusBatch {
		batch := pending[start:min(start+blockengine.MaxStatusBatch, len(pending))]

		ids := make([]string, len(batch))
		for i, s := range batch {
			ids[i] = s.BundleID
		}

		statuses, err := c.status.GetBundleStatuses(ctx, ids)
		if err != nil {
			return updated, errors.NewServiceError("[Confirmer] failed to get bundle statuses", err)
		}

		byID := make(map[string]*blockengine.BundleStatus, len(statuses))
		for _, st := range statuses {
			byID[st.BundleID] = st
		}

		for _, s := range batch {
			status, slot, errMsg, ok := c.outcome(s, byID[s.BundleID])
			if !ok {
				continue
			}

			if err = c.journal.UpdateStatus(ctx, s.BundleID, status, slot, errMsg); err != nil {
				return updated, errors.NewStorageError("[Confirmer] failed to update bundle %s", s.BundleID, err)
			}

			c.logger.Infof("[Confirmer] bundle %s %s", s.BundleID, status)

			updated++
		}
	}

	return updated, nil
}

func (c *Confirmer) outcome(s *model.Submission, st *blockengine.BundleStatus) (model.SubmissionStatus, uint64, string, bool) {
	if st == nil {
		if c.now().Sub(s.SubmittedAt) > c.expireAfter {
			return model.SubmissionExpired, 0, "", true
		}

		return "", 0, "", false
	}

	if st.Failed() {
		return model.SubmissionFailed, st.Slot, string(st.Err), true
	}

	switch st.ConfirmationStatus {
	case "confirmed", "finalized":
		return model.SubmissionLanded, st.Slot, "", true
	}

	return "", 0, "", false
}
