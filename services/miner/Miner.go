// Package miner runs the mining loop: it searches a solution for every wallet, picks a reward
// pool and submits the solutions as one bundle, round after round.
package miner

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/ore"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/services/blockengine"
	"github.com/bundleminer/bundleminer/services/ledger"
	"github.com/bundleminer/bundleminer/services/miner/cpuminer"
	"github.com/bundleminer/bundleminer/services/miner/txbuilder"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/stores/journal"
	"github.com/bundleminer/bundleminer/stores/journal/null"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util/health"
	"github.com/bundleminer/bundleminer/util/retry"
	"github.com/bundleminer/bundleminer/util/tracing"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"golang.org/x/sync/errgroup"
)

// round is everything captured for one pass of the loop. A new round starts from scratch.
type round struct {
	id        string
	startedAt time.Time
	state     *model.ChainState
	proofs    []*model.Proof
	solutions []*model.Solution
	bus       *model.Bus
	attempts  int
	backoff   time.Duration
}

type Option func(*Miner)

// WithStatusClient enables confirmation polling of submitted bundles when
// miner_confirm_bundles is set.
func WithStatusClient(status blockengine.StatusClientI) Option {
	return func(m *Miner) {
		m.status = status
	}
}

func WithJournal(store journal.Store) Option {
	return func(m *Miner) {
		if store != nil {
			m.journal = store
		}
	}
}

type Miner struct {
	logger      ulogger.Logger
	settings    *settings.Settings
	identities  *Identities
	ledger      ledger.ClientI
	engine      blockengine.ClientI
	status      blockengine.StatusClientI
	journal     journal.Store
	builder     *txbuilder.Builder
	coordinator *Coordinator
	registrar   *Registrar
	searcher    *cpuminer.Searcher
	fsm         *fsm.FSM
	tracer      *tracing.UTracer
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	threads      int
	round        *round
	roundBackoff time.Duration
	authFailures int
	hashesSeen   uint64
	lastReport   atomic.Pointer[RoundReport]
}

func NewMiner(logger ulogger.Logger, tSettings *settings.Settings, identities *Identities, ledgerClient ledger.ClientI,
	engine blockengine.ClientI, opts ...Option) (*Miner, error) {
	initPrometheusMetrics()

	if identities == nil {
		return nil, errors.NewConfigurationError("[Miner] identities are required")
	}

	builder, err := txbuilder.NewBuilder(identities.FeePayer, tSettings)
	if err != nil {
		return nil, err
	}

	m := &Miner{
		logger:       logger,
		settings:     tSettings,
		identities:   identities,
		ledger:       ledgerClient,
		engine:       engine,
		journal:      null.New(),
		builder:      builder,
		coordinator:  NewCoordinator(logger, ledgerClient, tSettings),
		searcher:     cpuminer.NewSearcher(),
		fsm:          NewFiniteStateMachine(),
		tracer:       tracing.Tracer("miner"),
		now:          time.Now,
		sleep:        sleepContext,
		roundBackoff: tSettings.Miner.RoundBackoff,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.registrar = NewRegistrar(logger, tSettings, ledgerClient, engine, builder, m.journal)

	return m, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Miner) State() string {
	return m.fsm.Current()
}

// LastReport is the report of the most recent submission, nil before the first one.
func (m *Miner) LastReport() *RoundReport {
	return m.lastReport.Load()
}

func (m *Miner) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "FSM", Check: m.checkFSM},
	}

	if m.ledger != nil {
		checks = append(checks, health.Check{Name: "Ledger", Check: m.ledger.Health})
	}

	if m.engine != nil {
		checks = append(checks, health.Check{Name: "BlockEngine", Check: m.engine.Health})
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (m *Miner) checkFSM(_ context.Context, _ bool) (int, string, error) {
	state := m.fsm.Current()
	if state == StateIdle {
		return http.StatusServiceUnavailable, state, nil
	}

	return http.StatusOK, state, nil
}

// Mine runs the mining loop with threads search workers per wallet until ctx is done, which
// returns nil, or until an error that retrying cannot fix, which is returned.
func (m *Miner) Mine(ctx context.Context, threads int) error {
	if threads < 1 {
		return errors.NewInvalidArgumentError("[Miner] threads must be at least 1, got %d", threads)
	}

	if m.fsm.Current() != StateIdle {
		return errors.NewProcessingError("[Miner] already mining")
	}

	if ctx.Err() != nil {
		return nil
	}

	m.threads = threads

	if m.settings.Miner.ConfirmBundles && m.status != nil {
		confirmer := NewConfirmer(m.logger, m.settings, m.status, m.journal)
		go confirmer.Start(ctx)
	}

	m.logger.Infof("[Miner] mining with %d wallets and %d threads each, fee payer %s", len(m.identities.Miners), threads, m.builder.FeePayer())

	if err := m.transition(ctx, EventRegister); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			m.stop(ctx)
			m.logger.Infof("[Miner] stopping miner as ctx is done")

			return nil
		}

		var err error

		switch state := m.fsm.Current(); state {
		case StateRegistering:
			err = m.register(ctx)
		case StateRoundStart:
			err = m.startRound(ctx)
		case StateSearching:
			err = m.search(ctx)
		case StateTargeting:
			err = m.target(ctx)
		case StateSubmitting:
			err = m.submit(ctx)
		default:
			return errors.NewProcessingError("[Miner] unexpected state %s", state)
		}

		if err == nil {
			continue
		}

		if errors.IsContextError(err) && ctx.Err() != nil {
			continue
		}

		var tErr *errors.Error
		if errors.As(err, &tErr) {
			tErr.SetData("state", m.fsm.Current())

			if m.round != nil {
				tErr.SetData("round", m.round.id)
			}
		}

		m.logger.Errorf("[Miner] stopping in state %s: %v", m.fsm.Current(), err)
		m.stop(ctx)

		return err
	}
}

// transition moves the state machine even when ctx is done; the loop checks ctx itself.
func (m *Miner) transition(ctx context.Context, event string) error {
	if err := m.fsm.Event(context.WithoutCancel(ctx), event); err != nil {
		return errors.NewProcessingError("[Miner] transition %s from %s failed", event, m.fsm.Current(), err)
	}

	return nil
}

func (m *Miner) stop(ctx context.Context) {
	if m.fsm.Current() == StateIdle {
		return
	}

	_ = m.transition(ctx, EventStop)
}

// abort reports whether err ends the mining loop: the miner's context is done or retrying
// cannot fix the error.
func abort(ctx context.Context, err error) bool {
	return errors.IsFatalError(err) || (ctx.Err() != nil && errors.IsContextError(err))
}

// pause waits before the next attempt, doubling the wait up to the configured maximum.
func (m *Miner) pause(ctx context.Context, backoff *time.Duration) error {
	wait := *backoff
	*backoff = retry.CappedExponentialBackoff(wait, 2, m.settings.Miner.MaxRoundBackoff)

	return m.sleep(ctx, wait)
}

func (m *Miner) register(ctx context.Context) error {
	ctx, _, endSpan := m.tracer.Start(ctx, "Miner:register")

	registered, err := m.registrar.EnsureRegistered(ctx, m.identities.Miners)
	endSpan(err)

	if err != nil {
		if abort(ctx, err) {
			return err
		}

		m.logger.Warnf("[Miner] registration failed, retrying in %s: %v", m.roundBackoff, err)

		return m.pause(ctx, &m.roundBackoff)
	}

	if len(registered) > 0 {
		m.logger.Infof("[Miner] registered %d wallets", len(registered))
	}

	m.roundBackoff = m.settings.Miner.RoundBackoff

	return m.transition(ctx, EventStartRound)
}

func (m *Miner) startRound(ctx context.Context) error {
	ctx, _, endSpan := m.tracer.Start(ctx, "Miner:startRound")

	state, proofs, err := m.readRoundState(ctx)
	endSpan(err)

	if err != nil {
		switch {
		case abort(ctx, err):
			return err
		case errors.Is(err, errors.ErrNotFound):
			m.logger.Warnf("[Miner] a proof account is missing, registering again: %v", err)
			return m.transition(ctx, EventRegister)
		}

		m.logger.Warnf("[Miner] failed to read round state, retrying in %s: %v", m.roundBackoff, err)

		return m.pause(ctx, &m.roundBackoff)
	}

	m.roundBackoff = m.settings.Miner.RoundBackoff

	m.round = &round{
		id:        uuid.NewString(),
		startedAt: m.now(),
		state:     state,
		proofs:    proofs,
		backoff:   m.settings.Miner.SubmitBackoff,
	}

	prometheusRoundsStarted.Inc()
	prometheusRewardRate.Set(float64(state.RewardRate))
	prometheusDifficultyZeros.Set(float64(state.Difficulty.LeadingZeroBits()))

	m.logger.Infof("[Miner][%s] round started, reward rate %s, difficulty %s", m.round.id,
		model.FormatTokenAmount(state.RewardRate), state.Difficulty)

	for i, kp := range m.identities.Miners {
		m.logger.Infof("[Miner][%s] wallet %s claimable %s", m.round.id, kp.PublicKey(), model.FormatTokenAmount(proofs[i].ClaimableRewards))
	}

	return m.transition(ctx, EventSearch)
}

// readRoundState reads the treasury snapshot and every proof concurrently.
func (m *Miner) readRoundState(ctx context.Context) (*model.ChainState, []*model.Proof, error) {
	var (
		state  *model.ChainState
		proofs = make([]*model.Proof, len(m.identities.Miners))
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		state, err = m.ledger.GetChainState(gCtx)

		return err
	})

	for i, kp := range m.identities.Miners {
		g.Go(func() error {
			proof, err := m.ledger.GetProof(gCtx, kp.PublicKey())
			if err != nil {
				return err
			}

			proofs[i] = proof

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return state, proofs, nil
}

func (m *Miner) search(ctx context.Context) error {
	r := m.round

	ctx, _, endSpan := m.tracer.Start(ctx, "Miner:search", tracing.WithHistogram(prometheusSearchDuration))

	stopProgress := m.reportProgress(ctx)

	solutions := make([]*model.Solution, len(m.identities.Miners))

	g, gCtx := errgroup.WithContext(ctx)

	for i, kp := range m.identities.Miners {
		g.Go(func() error {
			solution, err := m.searcher.Search(gCtx, r.proofs[i].Hash, kp.PublicKey(), r.state.Difficulty, m.threads)
			if err != nil {
				return err
			}

			if err = cpuminer.Verify(r.proofs[i].Hash, kp.PublicKey(), solution, r.state.Difficulty); err != nil {
				return err
			}

			m.logger.Debugf("[Miner][%s] wallet %s solution nonce %d hash %s", r.id, kp.PublicKey(), solution.Nonce, solution.Hash)

			solutions[i] = solution

			return nil
		})
	}

	err := g.Wait()

	stopProgress()
	m.flushHashes()
	endSpan(err)

	if err != nil {
		if errors.Is(err, errors.ErrExhausted) {
			m.logger.Warnf("[Miner][%s] %v, starting a new round", r.id, err)
			return m.transition(ctx, EventStartRound)
		}

		return err
	}

	prometheusSolutionsFound.Add(float64(len(solutions)))

	r.solutions = solutions

	m.logger.Infof("[Miner][%s] found %d solutions in %s", r.id, len(solutions), m.now().Sub(r.startedAt).Round(time.Millisecond))

	return m.transition(ctx, EventTarget)
}

// reportProgress logs the hash rate until the returned function is called.
func (m *Miner) reportProgress(ctx context.Context) func() {
	interval := m.settings.Miner.ProgressInterval
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := m.searcher.Hashes()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current := m.searcher.Hashes()
				m.logger.Infof("[Miner] searching, %.0f hashes/s", float64(current-last)/interval.Seconds())
				last = current
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (m *Miner) flushHashes() {
	current := m.searcher.Hashes()
	prometheusHashesComputed.Add(float64(current - m.hashesSeen))
	m.hashesSeen = current
}

func (m *Miner) target(ctx context.Context) error {
	r := m.round

	ctx, _, endSpan := m.tracer.Start(ctx, "Miner:target")

	clock, err := m.ledger.GetClock(ctx)
	if err != nil {
		endSpan(err)
		return m.retrySubmission(ctx, err)
	}

	if EpochDue(r.state, clock) {
		endSpan()

		m.logger.Infof("[Miner][%s] epoch ended at %s", r.id, r.state.EpochDeadline().UTC().Format(time.RFC3339))

		if m.coordinator.ShouldSubmitReset() {
			if err = m.sendReset(ctx); err != nil {
				if abort(ctx, err) {
					return err
				}

				m.logger.Warnf("[Miner][%s] epoch reset failed: %v", r.id, err)
			}
		}

		return m.transition(ctx, EventStartRound)
	}

	prometheusBusAttempts.Inc()

	bus, err := m.coordinator.SelectBus(ctx, r.state.RewardRate)
	endSpan(err)

	if err != nil {
		if abort(ctx, err) {
			return err
		}

		prometheusBusExhausted.Inc()
		m.logger.Warnf("[Miner][%s] %v, starting a new round in %s", r.id, err, m.roundBackoff)

		if err = m.pause(ctx, &m.roundBackoff); err != nil {
			return err
		}

		return m.transition(ctx, EventStartRound)
	}

	r.bus = bus

	m.logger.Infof("[Miner][%s] sending on %s", r.id, bus)

	return m.transition(ctx, EventSubmit)
}

func (m *Miner) sendReset(ctx context.Context) error {
	ctx, _, endSpan := m.tracer.Start(ctx, "Miner:sendReset")

	ixs := make([]solana.Instruction, len(m.identities.Miners))
	addresses := make([]string, len(m.identities.Miners))

	for i, kp := range m.identities.Miners {
		ixs[i] = ore.Reset(kp.PublicKey())
		addresses[i] = kp.PublicKey().String()
	}

	bundleID, err := m.sendBundle(ctx, ixs)
	endSpan(err)

	submission := &model.Submission{
		RoundID:     m.round.id,
		Kind:        model.SubmissionReset,
		BundleID:    bundleID,
		BusID:       model.NoBus,
		Wallets:     addresses,
		Status:      model.SubmissionSubmitted,
		SubmittedAt: m.now(),
	}

	if err != nil {
		submission.Status = model.SubmissionRejected
		submission.Error = err.Error()
	} else {
		prometheusResetsSent.Inc()
		m.logger.Infof("[Miner][%s] epoch reset sent in bundle %s", m.round.id, bundleID)
	}

	m.record(ctx, submission)

	return err
}

// sendBundle signs the instructions for the configured wallets and submits them.
func (m *Miner) sendBundle(ctx context.Context, ixs []solana.Instruction) (string, error) {
	blockhash, err := m.ledger.GetRecentBlockhash(ctx)
	if err != nil {
		return "", err
	}

	txs, err := m.builder.Bundle(ixs, m.identities.Miners, blockhash)
	if err != nil {
		return "", err
	}

	for _, tx := range txs {
		if size, sErr := tx.Size(); sErr == nil {
			prometheusChunkSize.Observe(float64(size))
		}
	}

	return m.engine.SendBundle(ctx, txs)
}

func (m *Miner) submit(ctx context.Context) error {
	r := m.round
	r.attempts++

	ctx, _, endSpan := m.tracer.Start(ctx, "Miner:submit", tracing.WithHistogram(prometheusSubmitDuration))

	busAddress := ore.BusAddress(r.bus.ID)
	ixs := make([]solana.Instruction, len(m.identities.Miners))

	for i, kp := range m.identities.Miners {
		ix, err := ore.Mine(kp.PublicKey(), busAddress, r.solutions[i].Hash, r.solutions[i].Nonce)
		if err != nil {
			endSpan(err)
			return errors.NewProcessingError("[Miner][%s] failed to build mine instruction for %s", r.id, kp.PublicKey(), err)
		}

		ixs[i] = ix
	}

	bundleID, err := m.sendBundle(ctx, ixs)
	endSpan(err)

	m.report(ctx, bundleID, err)

	if err == nil {
		m.authFailures = 0
		prometheusAuthFailureStreak.Set(0)
		prometheusBundlesSubmitted.Inc()
		prometheusRoundDuration.Observe(m.now().Sub(r.startedAt).Seconds())

		return m.transition(ctx, EventStartRound)
	}

	prometheusBundleFailures.WithLabelValues(errors.GetErrorCategory(err)).Inc()

	if abort(ctx, err) {
		return err
	}

	if errors.IsStaleStateError(err) {
		m.logger.Infof("[Miner][%s] solutions are stale, starting a new round", r.id)
		return m.transition(ctx, EventStartRound)
	}

	if errors.Is(err, errors.ErrAuthentication) {
		m.authFailures++
		prometheusAuthFailureStreak.Set(float64(m.authFailures))

		if m.settings.Miner.AuthFailureAlert > 0 && m.authFailures >= m.settings.Miner.AuthFailureAlert {
			m.logger.Errorf("[Miner][%s] block engine rejected authentication %d times in a row: %v", r.id, m.authFailures, err)
		}
	}

	return m.retrySubmission(ctx, err)
}

// retrySubmission returns to Targeting with the same solutions after a backoff, or starts a
// new round once the attempts are used up.
func (m *Miner) retrySubmission(ctx context.Context, cause error) error {
	r := m.round

	if abort(ctx, cause) {
		return cause
	}

	targeting := m.fsm.Current() == StateTargeting
	if targeting {
		r.attempts++
	}

	if r.attempts >= max(m.settings.Miner.SubmitMaxAttempts, 1) {
		m.logger.Warnf("[Miner][%s] giving up after %d attempts: %v", r.id, r.attempts, cause)
		return m.transition(ctx, EventStartRound)
	}

	m.logger.Warnf("[Miner][%s] attempt %d failed, retrying in %s: %v", r.id, r.attempts, r.backoff, cause)

	if err := m.pause(ctx, &r.backoff); err != nil {
		return err
	}

	if targeting {
		return nil
	}

	return m.transition(ctx, EventTarget)
}
