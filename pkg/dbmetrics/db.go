package dbmetrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/wsb-platform/booking-service/pkg/metrics"
)

// DB обертка над *sql.DB, записывающая метрики выполнения запросов
// и статистику connection pool. Удовлетворяет txmanager.DBExecutor
// и txmanager.TxBeginner, поэтому подставляется вместо *sql.DB прозрачно.
type DB struct {
	inner *sql.DB
	m     *metrics.Metrics
}

// Wrap оборачивает *sql.DB сбором метрик
func Wrap(db *sql.DB, m *metrics.Metrics) *DB {
	return &DB{inner: db, m: m}
}

// WrapWithDefault оборачивает *sql.DB и запускает периодический сбор
// статистики пула (раз в 10 секунд) до закрытия stopCh
func WrapWithDefault(db *sql.DB, m *metrics.Metrics, stopCh <-chan struct{}) *DB {
	wrapped := Wrap(db, m)
	go wrapped.collectPoolStats(10*time.Second, stopCh)
	return wrapped
}

// ExecContext выполняет запрос с записью метрик
func (d *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := d.inner.ExecContext(ctx, query, args...)
	d.observe("exec", start, err)
	return res, err
}

// QueryContext выполняет запрос с записью метрик
func (d *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.inner.QueryContext(ctx, query, args...)
	d.observe("query", start, err)
	return rows, err
}

// QueryRowContext выполняет запрос с записью метрик.
// Ошибка здесь откладывается до Scan, поэтому фиксируем только длительность.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := time.Now()
	row := d.inner.QueryRowContext(ctx, query, args...)
	d.observe("query_row", start, nil)
	return row
}

// BeginTx открывает транзакцию на нижележащем пуле
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return d.inner.BeginTx(ctx, opts)
}

func (d *DB) observe(operation string, start time.Time, err error) {
	d.m.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		d.m.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

func (d *DB) collectPoolStats(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			stats := d.inner.Stats()
			d.m.DBPoolOpenConns.Set(float64(stats.OpenConnections))
			d.m.DBPoolInUse.Set(float64(stats.InUse))
			d.m.DBPoolIdle.Set(float64(stats.Idle))
		}
	}
}
