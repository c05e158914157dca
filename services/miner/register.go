package miner

import (
	"context"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/ore"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/services/blockengine"
	"github.com/bundleminer/bundleminer/services/ledger"
	"github.com/bundleminer/bundleminer/services/miner/txbuilder"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/stores/journal"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util/retry"
	"golang.org/x/sync/errgroup"
)

const (
	registerConfirmPoll    = 2 * time.Second
	registerConfirmTimeout = 60 * time.Second
)

// Registrar creates the proof accounts of wallets that have never mined.
type Registrar struct {
	logger         ulogger.Logger
	ledger         ledger.ClientI
	engine         blockengine.ClientI
	builder        *txbuilder.Builder
	journal        journal.Store
	maxAttempts    int
	backoff        time.Duration
	confirmPoll    time.Duration
	confirmTimeout time.Duration
	now            func() time.Time
}

func NewRegistrar(logger ulogger.Logger, tSettings *settings.Settings, ledgerClient ledger.ClientI, engine blockengine.ClientI,
	builder *txbuilder.Builder, journalStore journal.Store) *Registrar {
	maxAttempts := tSettings.Miner.RegisterMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Registrar{
		logger:         logger,
		ledger:         ledgerClient,
		engine:         engine,
		builder:        builder,
		journal:        journalStore,
		maxAttempts:    maxAttempts,
		backoff:        tSettings.Miner.SubmitBackoff,
		confirmPoll:    registerConfirmPoll,
		confirmTimeout: registerConfirmTimeout,
		now:            time.Now,
	}
}

// Unregistered returns the wallets whose proof account does not exist yet, in input order.
func (r *Registrar) Unregistered(ctx context.Context, wallets []*solana.Keypair) ([]*solana.Keypair, error) {
	exists := make([]bool, len(wallets))

	g, gCtx := errgroup.WithContext(ctx)

	for i, kp := range wallets {
		g.Go(func() error {
			proof, _, err := ore.ProofAddress(kp.PublicKey())
			if err != nil {
				return errors.NewProcessingError("[Registrar] failed to derive proof address of %s", kp.PublicKey(), err)
			}

			ok, err := r.ledger.AccountExists(gCtx, proof)
			if err != nil {
				return err
			}

			exists[i] = ok

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	missing := make([]*solana.Keypair, 0, len(wallets))

	for i, kp := range wallets {
		if !exists[i] {
			missing = append(missing, kp)
		}
	}

	return missing, nil
}

// EnsureRegistered registers every wallet without a proof account in one bundle and waits until
// the accounts exist. It returns the wallets it registered; when all wallets are already
// registered it sends nothing.
func (r *Registrar) EnsureRegistered(ctx context.Context, wallets []*solana.Keypair) ([]solana.PublicKey, error) {
	missing, err := r.Unregistered(ctx, wallets)
	if err != nil {
		return nil, errors.NewServiceError("[Registrar] failed to check proof accounts", err)
	}

	if len(missing) == 0 {
		r.logger.Debugf("[Registrar] all %d wallets registered", len(wallets))
		return nil, nil
	}

	ixs := make([]solana.Instruction, len(missing))
	keys := make([]solana.PublicKey, len(missing))
	addresses := make([]string, len(missing))

	for i, kp := range missing {
		if ixs[i], err = ore.Register(kp.PublicKey()); err != nil {
			return nil, errors.NewProcessingError("[Registrar] failed to build register instruction for %s", kp.PublicKey(), err)
		}

		keys[i] = kp.PublicKey()
		addresses[i] = keys[i].String()
	}

	r.logger.Infof("[Registrar] registering %d wallets: %v", len(missing), addresses)

	bundleID, err := retry.Retry(ctx, r.logger, func() (string, error) {
		return r.registerOnce(ctx, ixs, missing)
	},
		retry.WithRetryCount(r.maxAttempts),
		retry.WithExponentialBackoff(),
		retry.WithBackoffDurationType(r.backoff),
		retry.WithMessage("[Registrar] registration failed"),
		retry.WithRetryIf(errors.IsRetryableError),
	)

	submission := &model.Submission{
		Kind:        model.SubmissionRegister,
		BundleID:    bundleID,
		BusID:       model.NoBus,
		Wallets:     addresses,
		Status:      model.SubmissionLanded,
		SubmittedAt: r.now(),
	}

	if err != nil {
		submission.Status = model.SubmissionRejected
		if bundleID != "" {
			submission.Status = model.SubmissionExpired
		}

		submission.Error = err.Error()
	}

	if _, jErr := r.journal.RecordSubmission(ctx, submission); jErr != nil {
		r.logger.Warnf("[Registrar] failed to journal registration: %v", jErr)
	}

	if err != nil {
		return nil, errors.NewServiceError("[Registrar] failed to register %d wallets", len(missing), err)
	}

	r.logger.Infof("[Registrar] registered %d wallets in bundle %s", len(missing), bundleID)

	return keys, nil
}

func (r *Registrar) registerOnce(ctx context.Context, ixs []solana.Instruction, signers []*solana.Keypair) (string, error) {
	blockhash, err := r.ledger.GetRecentBlockhash(ctx)
	if err != nil {
		return "", err
	}

	txs, err := r.builder.Bundle(ixs, signers, blockhash)
	if err != nil {
		return "", err
	}

	bundleID, err := r.engine.SendBundle(ctx, txs)
	if err != nil {
		return "", err
	}

	if err = r.waitForProofs(ctx, signers); err != nil {
		return bundleID, err
	}

	return bundleID, nil
}

func (r *Registrar) waitForProofs(ctx context.Context, wallets []*solana.Keypair) error {
	deadline := r.now().Add(r.confirmTimeout)

	ticker := time.NewTicker(r.confirmPoll)
	defer ticker.Stop()

	for {
		missing, err := r.Unregistered(ctx, wallets)
		if err != nil {
			r.logger.Debugf("[Registrar] proof check failed: %v", err)
		} else if len(missing) == 0 {
			return nil
		}

		if !r.now().Before(deadline) {
			return errors.NewSubmissionRejectedError("[Registrar] proof accounts not created within %s", r.confirmTimeout)
		}

		select {
		case <-ctx.Done():
			return errors.NewContextCanceledError("[Registrar] stopped waiting for registration", ctx.Err())
		case <-ticker.C:
		}
	}
}
