package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"traffic-sensor-stream/models"
)

const (
	defaultReadingsTable = "sensor_readings"
	// insertLockKey serialises inserts so id order and recorded_at order agree.
	insertLockKey int64 = 0x5e05_0001
)

// PostgresStore persists readings through database/sql with the pgx driver.
type PostgresStore struct {
	db     *sql.DB
	table  string
	now    Clock
	ownsDB bool
}

type PostgresOption func(*PostgresStore)

// WithTable overrides the default table name.
func WithTable(table string) PostgresOption {
	return func(s *PostgresStore) {
		if table != "" {
			s.table = table
		}
	}
}

func WithPostgresClock(now Clock) PostgresOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, table: defaultReadingsTable, now: systemClock}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenPostgres connects, pings and creates the schema. The returned store
// closes the connection pool on Close.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := NewPostgresStore(db, opts...)
	s.ownsDB = true
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	sensor1 DOUBLE PRECISION NOT NULL,
	sensor2 DOUBLE PRECISION NOT NULL,
	sensor3 DOUBLE PRECISION NOT NULL,
	sensor4 DOUBLE PRECISION NOT NULL,
	device_ts BIGINT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`, s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_recorded_at_idx ON %[1]s (recorded_at, id)", s.table),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return models.WrapStorage("schema", err)
		}
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, r models.Reading) (models.StoredReading, error) {
	if s == nil || s.db == nil {
		return models.StoredReading{}, models.WrapStorage("insert", errors.New("nil db"))
	}
	if err := r.Validate(); err != nil {
		return models.StoredReading{}, err
	}

	query := fmt.Sprintf(`
INSERT INTO %[1]s (sensor1, sensor2, sensor3, sensor4, device_ts, recorded_at)
SELECT $1, $2, $3, $4, $5, GREATEST($6::timestamptz, COALESCE(MAX(recorded_at), $6::timestamptz))
FROM %[1]s
RETURNING id, recorded_at`, s.table)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.StoredReading{}, models.WrapStorage("insert", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", insertLockKey); err != nil {
		_ = tx.Rollback()
		return models.StoredReading{}, models.WrapStorage("insert", err)
	}

	stored := models.StoredReading{Reading: r}
	err = tx.QueryRowContext(ctx, query,
		r.Sensor1, r.Sensor2, r.Sensor3, r.Sensor4, r.Timestamp, recordTime(s.now),
	).Scan(&stored.ID, &stored.RecordedAt)
	if err != nil {
		_ = tx.Rollback()
		return models.StoredReading{}, models.WrapStorage("insert", err)
	}
	if err := tx.Commit(); err != nil {
		return models.StoredReading{}, models.WrapStorage("insert", err)
	}
	stored.RecordedAt = stored.RecordedAt.UTC()
	return stored, nil
}

func (s *PostgresStore) Latest(ctx context.Context) (models.StoredReading, error) {
	readings, err := s.Recent(ctx, 1)
	if err != nil {
		return models.StoredReading{}, err
	}
	if len(readings) == 0 {
		return models.StoredReading{}, models.ErrNotFound
	}
	return readings[0], nil
}

func (s *PostgresStore) RangeQuery(ctx context.Context, from, to time.Time) ([]models.StoredReading, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT id, sensor1, sensor2, sensor3, sensor4, device_ts, recorded_at
FROM %s
WHERE recorded_at >= $1 AND recorded_at <= $2
ORDER BY recorded_at ASC, id ASC`, s.table)
	return s.query(ctx, "range", query, time.UnixMicro(ceilMicro(from)).UTC(), to)
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]models.StoredReading, error) {
	if limit <= 0 {
		return []models.StoredReading{}, nil
	}
	query := fmt.Sprintf(`
SELECT id, sensor1, sensor2, sensor3, sensor4, device_ts, recorded_at
FROM %s
ORDER BY recorded_at DESC, id DESC
LIMIT $1`, s.table)
	return s.query(ctx, "recent", query, limit)
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE recorded_at < $1", s.table),
		time.UnixMicro(ceilMicro(cutoff)).UTC())
	if err != nil {
		return 0, models.WrapStorage("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, models.WrapStorage("delete", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, op, query string, args ...any) ([]models.StoredReading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.WrapStorage(op, err)
	}
	defer rows.Close()

	out := make([]models.StoredReading, 0)
	for rows.Next() {
		var r models.StoredReading
		if err := rows.Scan(&r.ID, &r.Sensor1, &r.Sensor2, &r.Sensor3, &r.Sensor4, &r.Timestamp, &r.RecordedAt); err != nil {
			return nil, models.WrapStorage(op, err)
		}
		r.RecordedAt = r.RecordedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapStorage(op, err)
	}
	return out, nil
}
