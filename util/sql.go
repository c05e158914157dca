package util

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util/usql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

type SQLEngine string

const (
	Postgres     SQLEngine = "postgres"
	Sqlite       SQLEngine = "sqlite"
	SqliteMemory SQLEngine = "sqlitememory"
)

// InitSQLDB opens the database named by storeURL. Supported schemes are postgres://,
// sqlite:///<name> (a file in dataFolder) and sqlitememory:///<name>.
func InitSQLDB(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (*usql.DB, error) {
	switch SQLEngine(storeURL.Scheme) {
	case Postgres:
		return InitPostgresDB(logger, storeURL)
	case Sqlite, SqliteMemory:
		return InitSQLiteDB(logger, storeURL, dataFolder)
	}

	return nil, errors.NewConfigurationError("db: unknown scheme: %s", storeURL.Scheme)
}

func InitPostgresDB(logger ulogger.Logger, storeURL *url.URL) (*usql.DB, error) {
	dbHost := storeURL.Hostname()
	dbPort, _ := strconv.Atoi(storeURL.Port())
	dbName := storeURL.Path[1:]
	dbUser := ""
	dbPassword := ""

	if storeURL.User != nil {
		dbUser = storeURL.User.Username()
		dbPassword, _ = storeURL.User.Password()
	}

	sslMode := "disable"
	if val := storeURL.Query().Get("sslmode"); val != "" {
		sslMode = val
	}

	dbInfo := fmt.Sprintf("user=%s password=%s dbname=%s sslmode=%s host=%s port=%d", dbUser, dbPassword, dbName, sslMode, dbHost, dbPort)

	db, err := usql.Open(string(Postgres), dbInfo)
	if err != nil {
		return nil, errors.NewStorageError("failed to open postgres DB", err)
	}

	logger.Infof("Using postgres DB: %s@%s:%d/%s", dbUser, dbHost, dbPort, dbName)

	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)

	return db, nil
}

func InitSQLiteDB(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (*usql.DB, error) {
	var (
		filename string
		err      error
	)

	if SQLEngine(storeURL.Scheme) == SqliteMemory {
		filename = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if err = os.MkdirAll(dataFolder, 0o755); err != nil {
			return nil, errors.NewStorageError("failed to create data folder %s", dataFolder, err)
		}

		dbName := path.Base(storeURL.Path)
		if dbName == "/" || dbName == "." {
			dbName = "journal"
		}

		filename, err = filepath.Abs(path.Join(dataFolder, fmt.Sprintf("%s.db", dbName)))
		if err != nil {
			return nil, errors.NewStorageError("failed to get absolute path for sqlite DB", err)
		}

		filename = fmt.Sprintf("%s?cache=shared&_pragma=busy_timeout=5000&_pragma=journal_mode=WAL", filename)
	}

	logger.Infof("Using sqlite DB: %s", filename)

	db, err := usql.Open(string(Sqlite), filename)
	if err != nil {
		return nil, errors.NewStorageError("failed to open sqlite DB", err)
	}

	// a shared in-memory database disappears when its last connection closes
	db.SetMaxOpenConns(1)

	return db, nil
}
