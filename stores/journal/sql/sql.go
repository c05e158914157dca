// Package sql is the journal on postgres or sqlite.
package sql

import (
	"context"
	"net/url"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util"
	"github.com/bundleminer/bundleminer/util/usql"
)

type SQL struct {
	db     *usql.DB
	engine util.SQLEngine
	logger ulogger.Logger
}

func New(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (*SQL, error) {
	logger = logger.New("journal")

	db, err := util.InitSQLDB(logger, storeURL, dataFolder)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	engine := util.SQLEngine(storeURL.Scheme)

	switch engine {
	case util.Postgres:
		err = createSchema(db, postgresSchema)
	case util.Sqlite, util.SqliteMemory:
		err = createSchema(db, sqliteSchema)
	default:
		err = errors.NewConfigurationError("unknown database engine: %s", storeURL.Scheme)
	}

	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQL{
		db:     db,
		engine: engine,
		logger: logger,
	}, nil
}

var postgresSchema = []string{`
	CREATE TABLE IF NOT EXISTS submissions (
	 id              BIGSERIAL PRIMARY KEY
	,round_id        VARCHAR(36) NOT NULL
	,kind            VARCHAR(16) NOT NULL
	,bundle_id       VARCHAR(128) NOT NULL DEFAULT ''
	,bus_id          BIGINT NOT NULL
	,bus_rewards     BIGINT NOT NULL
	,reward_rate     BIGINT NOT NULL
	,wallets         TEXT NOT NULL
	,status          VARCHAR(16) NOT NULL
	,error           TEXT NOT NULL DEFAULT ''
	,slot            BIGINT NOT NULL DEFAULT 0
	,submitted_at    BIGINT NOT NULL
	,updated_at      TIMESTAMPTZ NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions (status, id);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_bundle_id ON submissions (bundle_id);`,
}

var sqliteSchema = []string{`
	CREATE TABLE IF NOT EXISTS submissions (
	 id              INTEGER PRIMARY KEY AUTOINCREMENT
	,round_id        TEXT NOT NULL
	,kind            TEXT NOT NULL
	,bundle_id       TEXT NOT NULL DEFAULT ''
	,bus_id          BIGINT NOT NULL
	,bus_rewards     BIGINT NOT NULL
	,reward_rate     BIGINT NOT NULL
	,wallets         TEXT NOT NULL
	,status          TEXT NOT NULL
	,error           TEXT NOT NULL DEFAULT ''
	,slot            BIGINT NOT NULL DEFAULT 0
	,submitted_at    BIGINT NOT NULL
	,updated_at      TEXT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions (status, id);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_bundle_id ON submissions (bundle_id);`,
}

func createSchema(db *usql.DB, statements []string) error {
	for _, statement := range statements {
		if _, err := db.ExecContext(context.Background(), statement); err != nil {
			return errors.NewStorageError("could not create journal schema", err)
		}
	}

	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
