package miner

import (
	"context"
	"time"

	"github.com/bundleminer/bundleminer/model"
)

type WalletReport struct {
	Address   string
	Claimable uint64
}

// RoundReport describes one bundle submission of a round.
type RoundReport struct {
	RoundID     string
	Attempt     int
	Wallets     []WalletReport
	RewardRate  uint64
	BusID       uint64
	BusRewards  uint64
	TipLamports uint64
	BundleID    string
	Err         error
	SubmittedAt time.Time
}

func (m *Miner) report(ctx context.Context, bundleID string, err error) {
	r := m.round

	rep := &RoundReport{
		RoundID:     r.id,
		Attempt:     r.attempts,
		Wallets:     make([]WalletReport, len(m.identities.Miners)),
		RewardRate:  r.state.RewardRate,
		BusID:       r.bus.ID,
		BusRewards:  r.bus.Rewards,
		BundleID:    bundleID,
		Err:         err,
		SubmittedAt: m.now(),
	}

	if m.builder.Tipping() {
		rep.TipLamports = m.settings.Tip.Lamports
	}

	addresses := make([]string, len(m.identities.Miners))

	for i, kp := range m.identities.Miners {
		addresses[i] = kp.PublicKey().String()
		rep.Wallets[i] = WalletReport{Address: addresses[i], Claimable: r.proofs[i].ClaimableRewards}
	}

	m.lastReport.Store(rep)

	if rep.TipLamports > 0 {
		m.logger.Infof("[Miner][%s] tip %d lamports to %s", r.id, rep.TipLamports, m.settings.Tip.Account)
	}

	if err != nil {
		m.logger.Warnf("[Miner][%s] bundle on bus %d (%s) attempt %d failed: %v", r.id, rep.BusID,
			model.FormatTokenAmount(rep.BusRewards), rep.Attempt, err)
	} else {
		m.logger.Infof("[Miner][%s] bundle sent on bus %d (%s), reward rate %s, bundle id %s", r.id, rep.BusID,
			model.FormatTokenAmount(rep.BusRewards), model.FormatTokenAmount(rep.RewardRate), bundleID)
	}

	submission := &model.Submission{
		RoundID:     r.id,
		Kind:        model.SubmissionMine,
		BundleID:    bundleID,
		BusID:       int64(rep.BusID), //nolint:gosec // bus ids are below BusCount
		BusRewards:  rep.BusRewards,
		RewardRate:  rep.RewardRate,
		Wallets:     addresses,
		Status:      model.SubmissionSubmitted,
		SubmittedAt: rep.SubmittedAt,
	}

	if err != nil {
		submission.Status = model.SubmissionRejected
		submission.Error = err.Error()
	}

	m.record(ctx, submission)
}

// record writes a journal entry. Journal failures never affect mining.
func (m *Miner) record(ctx context.Context, submission *model.Submission) {
	if _, err := m.journal.RecordSubmission(context.WithoutCancel(ctx), submission); err != nil {
		m.logger.Warnf("[Miner] failed to journal %s submission: %v", submission.Kind, err)
	}
}
