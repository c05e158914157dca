// Package usql wraps database/sql so that every statement is timed into gocore stats and a
// Prometheus histogram.
package usql

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stat = gocore.NewStat("SQL")

	prometheusSQLDuration *prometheus.HistogramVec
	prometheusMetricsOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusSQLDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bundleminer",
			Subsystem: "sql",
			Name:      "statement_duration_seconds",
			Help:      "Duration of SQL statements by operation",
			Buckets:   []float64{1e-4, 5e-4, 1e-3, 5e-3, 1e-2, 5e-2, 1e-1, 5e-1, 1},
		},
		[]string{"operation"},
	)
}

type DB struct {
	*sql.DB
}

func Open(driverName, dataSourceName string) (*DB, error) {
	prometheusMetricsOnce.Do(initPrometheusMetrics)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func observe(operation, query string, start time.Time) {
	prometheusMetricsOnce.Do(initPrometheusMetrics)

	stat.NewStat(query).AddTime(start)
	prometheusSQLDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	defer observe("query", query, gocore.CurrentTime())

	return db.DB.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	defer observe("query_row", query, gocore.CurrentTime())

	return db.DB.QueryRowContext(ctx, query, args...)
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer observe("exec", query, gocore.CurrentTime())

	return db.DB.ExecContext(ctx, query, args...)
}
