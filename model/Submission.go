package model

import (
	"strings"
	"time"
)

// SubmissionStatus is the outcome of a submitted bundle as far as the miner knows it.
type SubmissionStatus string

const (
	// SubmissionSubmitted bundles were accepted by the block engine and have not been seen landing yet.
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionLanded    SubmissionStatus = "landed"
	// SubmissionFailed bundles landed but a transaction failed on the ledger.
	SubmissionFailed SubmissionStatus = "failed"
	// SubmissionRejected bundles never got a bundle id.
	SubmissionRejected SubmissionStatus = "rejected"
	// SubmissionExpired bundles were not seen landing within the confirmation window.
	SubmissionExpired SubmissionStatus = "expired"
)

type SubmissionKind string

const (
	SubmissionMine     SubmissionKind = "mine"
	SubmissionReset    SubmissionKind = "reset"
	SubmissionRegister SubmissionKind = "register"
)

// NoBus marks a submission that did not target a reward pool.
const NoBus int64 = -1

// Submission is one journal entry: a bundle the miner sent, or tried to send.
type Submission struct {
	ID          int64
	RoundID     string
	Kind        SubmissionKind
	BundleID    string
	BusID       int64
	BusRewards  uint64
	RewardRate  uint64
	Wallets     []string
	Status      SubmissionStatus
	Error       string
	Slot        uint64
	SubmittedAt time.Time
}

// WalletList is the stored form of Wallets.
func (s *Submission) WalletList() string {
	return strings.Join(s.Wallets, ",")
}

func ParseWalletList(list string) []string {
	if list == "" {
		return nil
	}

	return strings.Split(list, ",")
}
