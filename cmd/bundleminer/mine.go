package bundleminer

import (
	"context"
	"time"

	"github.com/bundleminer/bundleminer/services/blockengine"
	"github.com/bundleminer/bundleminer/services/miner"
	"github.com/bundleminer/bundleminer/util/servicemanager"
	"github.com/bundleminer/bundleminer/util/tracing"
	"github.com/urfave/cli/v2"
)

// mine runs the metrics server (when metrics_listen_address is set) and the mining loop under
// one service manager. SIGINT and SIGTERM stop both.
func mine(c *cli.Context, version string) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	threads := s.settings.Miner.Threads
	if c.IsSet("threads") {
		threads = c.Int("threads")
	}

	if err = tracing.InitTracer(progname, version, s.settings); err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tracing.ShutdownTracer(shutdownCtx); err != nil {
			s.logger.Warnf("failed to shut down tracer: %v", err)
		}
	}()

	ids, err := s.Identities()
	if err != nil {
		return err
	}

	client, err := s.Ledger()
	if err != nil {
		return err
	}

	engine, err := s.Engine(c.Context)
	if err != nil {
		return err
	}

	store, err := s.Journal()
	if err != nil {
		return err
	}

	opts := []miner.Option{miner.WithJournal(store)}

	if s.settings.Miner.ConfirmBundles {
		status, err := blockengine.NewStatusClient(s.logger.New("bundles"), s.settings)
		if err != nil {
			return err
		}

		opts = append(opts, miner.WithStatusClient(status))
	}

	m, err := miner.NewMiner(s.logger.New("miner"), s.settings, ids, client, engine, opts...)
	if err != nil {
		return err
	}

	s.logger.Infof("mining with %d wallets and %d threads each, fee payer %s", len(ids.Miners), threads, ids.FeePayer.PublicKey())

	sm := servicemanager.NewServiceManager(c.Context, s.logger)

	if s.settings.MetricsListenAddress != "" {
		if err = sm.AddService("http", newHTTPService(s.logger.New("http"), s.settings.MetricsListenAddress, sm.HealthHandler,
			s.settings.ProfilerEnabled)); err != nil {
			sm.ForceShutdown()
			return err
		}
	}

	if err = sm.AddService("miner", miner.NewServer(m, threads)); err != nil {
		sm.ForceShutdown()
		_ = sm.Wait()

		return err
	}

	return sm.Wait()
}
