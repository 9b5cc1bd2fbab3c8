// Package storage provides the embedded SQLite persistence layer for check
// results and alert history.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/verimem/sentinel/internal/checks"
)

// timestampFormat keeps the fractional second fixed-width so lexicographic
// TEXT comparison matches chronological order. RFC3339Nano trims trailing
// zeros, which misorders whole-second instants against sub-second ones.
// All reads and writes go through this constant.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

// AlertEvent is one alert_history row.
type AlertEvent struct {
	ID         int64      `json:"id"`
	CheckID    string     `json:"check_id"`
	AlertType  string     `json:"alert_type"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Config holds storage tunables.
type Config struct {
	Path             string
	Retention        time.Duration // prune results older than this; 0 disables
	RetentionSweep   time.Duration // how often the pruner runs
	ExtraAllowedDirs []string      // additional allow-listed parents (tests)
}

// DefaultConfig returns the standard retention policy for a db path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		Retention:      30 * 24 * time.Hour,
		RetentionSweep: time.Hour,
	}
}

// Store persists results and alert events in a single SQLite file.
// SQLite works best with a single writer, so the pool is pinned to one
// connection; reads ride the same connection behind WAL.
type Store struct {
	db   *sql.DB
	path string

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New opens (or creates) the store. The path must resolve under an
// allow-listed parent directory; anything else is a startup failure.
func New(cfg Config) (*Store, error) {
	resolved, err := validatePath(cfg.Path, cfg.ExtraAllowedDirs)
	if err != nil {
		return nil, fmt.Errorf("db path rejected: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", resolved+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		path:   resolved,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	go s.retentionWorker(cfg)

	log.Info().Str("path", resolved).Msg("Result store initialized")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS check_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			check_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			status TEXT NOT NULL,
			latency_ms REAL NOT NULL,
			message TEXT NOT NULL,
			details TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		);

		CREATE INDEX IF NOT EXISTS idx_results_timestamp ON check_results(timestamp);
		CREATE INDEX IF NOT EXISTS idx_results_check_id ON check_results(check_id);

		CREATE TABLE IF NOT EXISTS alert_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			check_id TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			resolved_at TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alert_history(timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// StoreResult inserts one result row. Results outside the closed status set
// or with negative latency are rejected, not normalized.
func (s *Store) StoreResult(r checks.Result) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("reject result: %w", err)
	}

	var details any
	if r.Details != nil {
		encoded, err := json.Marshal(r.Details)
		if err != nil {
			return fmt.Errorf("encode details for %s: %w", r.CheckID, err)
		}
		details = string(encoded)
	}

	_, err := s.db.Exec(`
		INSERT INTO check_results (check_id, timestamp, status, latency_ms, message, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.CheckID, r.Timestamp.UTC().Format(timestampFormat), string(r.Status), r.LatencyMS, r.Message, details)
	if err != nil {
		return fmt.Errorf("insert result for %s: %w", r.CheckID, err)
	}
	return nil
}

// CountRecentFailures returns the number of fail rows for checkID newer than
// now - window.
func (s *Store) CountRecentFailures(checkID string, window time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-window).Format(timestampFormat)
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM check_results
		WHERE check_id = ? AND status = 'fail' AND timestamp > ?
	`, checkID, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent failures for %s: %w", checkID, err)
	}
	return count, nil
}

// QueryHistory returns the limit most recent results for a check, newest first.
func (s *Store) QueryHistory(checkID string, limit int) ([]checks.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT check_id, timestamp, status, latency_ms, message, details
		FROM check_results
		WHERE check_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", checkID, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// QueryWindow returns all results newer than start, oldest first.
func (s *Store) QueryWindow(start time.Time) ([]checks.Result, error) {
	rows, err := s.db.Query(`
		SELECT check_id, timestamp, status, latency_ms, message, details
		FROM check_results
		WHERE timestamp > ?
		ORDER BY timestamp ASC
	`, start.UTC().Format(timestampFormat))
	if err != nil {
		return nil, fmt.Errorf("query window since %s: %w", start, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]checks.Result, error) {
	var results []checks.Result
	for rows.Next() {
		var (
			r       checks.Result
			ts      string
			status  string
			details sql.NullString
		)
		if err := rows.Scan(&r.CheckID, &ts, &status, &r.LatencyMS, &r.Message, &details); err != nil {
			log.Warn().Err(err).Msg("Failed to scan result row")
			continue
		}
		parsed, err := time.Parse(timestampFormat, ts)
		if err != nil {
			log.Warn().Err(err).Str("timestamp", ts).Msg("Failed to parse result timestamp")
			continue
		}
		r.Timestamp = parsed
		r.Status = checks.Status(status)
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &r.Details); err != nil {
				log.Warn().Err(err).Str("check", r.CheckID).Msg("Failed to decode result details")
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// StoreAlertEvent inserts an alert_history row at alert creation time.
func (s *Store) StoreAlertEvent(checkID, alertType, message string, ts time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO alert_history (check_id, alert_type, message, timestamp)
		VALUES (?, ?, ?, ?)
	`, checkID, alertType, message, ts.UTC().Format(timestampFormat))
	if err != nil {
		return fmt.Errorf("insert alert event for %s: %w", checkID, err)
	}
	return nil
}

// HasOpenAlert reports whether the check has an alert row without resolved_at.
func (s *Store) HasOpenAlert(checkID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM alert_history
		WHERE check_id = ? AND resolved_at IS NULL
	`, checkID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count open alerts for %s: %w", checkID, err)
	}
	return count > 0, nil
}

// ResolveAlertEvent stamps resolved_at on the newest open alert row for the
// check. Reports whether a row was resolved.
func (s *Store) ResolveAlertEvent(checkID string, at time.Time) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE alert_history SET resolved_at = ?
		WHERE id = (
			SELECT id FROM alert_history
			WHERE check_id = ? AND resolved_at IS NULL
			ORDER BY timestamp DESC LIMIT 1
		)
	`, at.UTC().Format(timestampFormat), checkID)
	if err != nil {
		return false, fmt.Errorf("resolve alert for %s: %w", checkID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AlertHistory returns the limit most recent alert events, newest first.
func (s *Store) AlertHistory(limit int) ([]AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, check_id, alert_type, message, timestamp, resolved_at
		FROM alert_history
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var events []AlertEvent
	for rows.Next() {
		var (
			ev       AlertEvent
			ts       string
			resolved sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.CheckID, &ev.AlertType, &ev.Message, &ts, &resolved); err != nil {
			log.Warn().Err(err).Msg("Failed to scan alert row")
			continue
		}
		parsed, err := time.Parse(timestampFormat, ts)
		if err != nil {
			continue
		}
		ev.Timestamp = parsed
		if resolved.Valid {
			if t, err := time.Parse(timestampFormat, resolved.String); err == nil {
				ev.ResolvedAt = &t
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// retentionWorker prunes rows past the retention horizon.
func (s *Store) retentionWorker(cfg Config) {
	defer close(s.doneCh)
	if cfg.Retention <= 0 {
		<-s.stopCh
		return
	}
	sweep := cfg.RetentionSweep
	if sweep <= 0 {
		sweep = time.Hour
	}
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.prune(cfg.Retention)
		}
	}
}

func (s *Store) prune(retention time.Duration) {
	cutoff := time.Now().UTC().Add(-retention).Format(timestampFormat)
	var deleted int64
	for _, table := range []string{"check_results", "alert_history"} {
		res, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE timestamp < ?`, table), cutoff)
		if err != nil {
			log.Warn().Err(err).Str("table", table).Msg("Retention prune failed")
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted += n
		}
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Pruned rows past retention horizon")
	}
}

// Path returns the resolved database path.
func (s *Store) Path() string {
	return s.path
}

// Close stops the retention worker and closes the database.
func (s *Store) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Store shutdown timed out waiting for retention worker")
	}
	return s.db.Close()
}
