package bundleminer

import (
	"context"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/services/blockengine"
	"github.com/bundleminer/bundleminer/services/ledger"
	"github.com/bundleminer/bundleminer/services/miner"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/stores/journal"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/urfave/cli/v2"
)

// session holds the clients a command needs. Everything is created lazily so read-only
// commands never load keys or dial the block engine.
type session struct {
	settings   *settings.Settings
	logger     ulogger.Logger
	ledger     *ledger.Client
	identities *miner.Identities
	engine     *blockengine.Client
	journal    journal.Store
}

func newSession(c *cli.Context) (*session, error) {
	tSettings, err := loadSettings(c)
	if err != nil {
		return nil, err
	}

	return &session{
		settings: tSettings,
		logger:   newLogger(progname, tSettings),
	}, nil
}

func (s *session) Ledger() (*ledger.Client, error) {
	if s.ledger == nil {
		client, err := ledger.NewClient(s.logger.New("ledger"), s.settings)
		if err != nil {
			return nil, err
		}

		s.ledger = client
	}

	return s.ledger, nil
}

func (s *session) Identities() (*miner.Identities, error) {
	if s.identities == nil {
		ids, err := miner.LoadIdentities(s.settings)
		if err != nil {
			return nil, err
		}

		s.identities = ids
	}

	return s.identities, nil
}

// Engine dials the block engine, authenticating with the auth identity.
func (s *session) Engine(ctx context.Context) (*blockengine.Client, error) {
	if s.engine == nil {
		ids, err := s.Identities()
		if err != nil {
			return nil, err
		}

		logger := s.logger.New("blockengine")
		auth := blockengine.NewChallengeAuthProvider(logger, ids.Auth, s.settings.BlockEngine.AuthTokenMargin)

		client, err := blockengine.NewClient(ctx, logger, s.settings, auth)
		if err != nil {
			return nil, err
		}

		s.engine = client
	}

	return s.engine, nil
}

func (s *session) Journal() (journal.Store, error) {
	if s.journal == nil {
		store, err := journal.NewStore(s.logger.New("journal"), s.settings.JournalStore, s.settings.DataFolder)
		if err != nil {
			return nil, err
		}

		s.journal = store
	}

	return s.journal, nil
}

func (s *session) Close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warnf("failed to close journal: %v", err)
		}
	}

	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Warnf("failed to close block engine connection: %v", err)
		}
	}
}

func requireArgs(c *cli.Context, max int) error {
	if c.NArg() > max {
		return errors.NewInvalidArgumentError("%s takes at most %d argument(s), got %d", c.Command.Name, max, c.NArg())
	}

	return nil
}
