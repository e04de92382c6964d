package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL through lib/pq.
type PostgresStore struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresStore wraps db. DATE columns are returned as midnight in loc.
func NewPostgresStore(db *sql.DB, loc *time.Location) *PostgresStore {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresStore{db: db, loc: loc}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// purgeOrder deletes dependents before the sessions they reference.
var purgeOrder = []struct {
	target PurgeTarget
	table  string
}{
	{PurgeReadings, "readings"},
	{PurgeAlerts, "safety_alerts"},
	{PurgeSummaries, "cumulative_summary"},
	{PurgeAttendance, "attendance"},
	{PurgeSessions, "exposure_sessions"},
}

// Purge deletes every row of the target table(s) in one transaction.
func (s *PostgresStore) Purge(ctx context.Context, target PurgeTarget) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin purge: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, p := range purgeOrder {
		if target != PurgeAll && target != p.target {
			continue
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM "+p.table)
		if err != nil {
			return 0, fmt.Errorf("failed to purge %s: %w", p.table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) localDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *PostgresStore) nullDate(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	d := s.localDate(nt.Time)
	return &d
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullFloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func nullIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func dateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
