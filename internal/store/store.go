// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/pronounce/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Keys of the key-value slots.
const (
	KeySession = "last_session"
	KeyPlan    = "practice_plan"
)

// ErrNotFound is returned when a slot has never been written.
var ErrNotFound = errors.New("not found")

// Store wraps SQLite access for drill data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS drills (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			total_words INTEGER NOT NULL,
			perfect_words INTEGER NOT NULL,
			success_rate REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS drill_words (
			drill_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			word TEXT NOT NULL,
			sound TEXT NOT NULL,
			attempts_needed INTEGER NOT NULL,
			spoken INTEGER NOT NULL,
			PRIMARY KEY (drill_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drills_ended_at ON drills(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_drill_words_sound ON drill_words(sound);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession overwrites the last-session slot.
func (s *Store) SaveSession(ctx context.Context, snap model.SessionSnapshot) error {
	return s.put(ctx, KeySession, snap)
}

// LoadSession reads the last-session slot.
func (s *Store) LoadSession(ctx context.Context) (model.SessionSnapshot, error) {
	var snap model.SessionSnapshot
	err := s.get(ctx, KeySession, &snap)
	return snap, err
}

// SavePlan overwrites the practice-plan slot.
func (s *Store) SavePlan(ctx context.Context, p model.StoredPlan) error {
	return s.put(ctx, KeyPlan, p)
}

// CurrentPlan reads the practice-plan slot.
func (s *Store) CurrentPlan(ctx context.Context) (model.StoredPlan, error) {
	var p model.StoredPlan
	err := s.get(ctx, KeyPlan, &p)
	return p, err
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// InsertDrill stores a completed drill and its per-word results.
func (s *Store) InsertDrill(ctx context.Context, stats model.DrillStats, results []model.AttemptResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO drills (session_id, started_at, ended_at, total_words, perfect_words, success_rate)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		stats.SessionID,
		stats.StartedAt.Format(time.RFC3339Nano),
		stats.EndedAt.Format(time.RFC3339Nano),
		stats.TotalWords,
		stats.PerfectWords,
		stats.SuccessRate,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(results) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO drill_words (drill_id, position, word, sound, attempts_needed, spoken)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, r := range results {
			if _, err = stmt.ExecContext(ctx, id, i, r.Word, r.Sound, r.AttemptsNeeded, r.Spoken); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetWeakSounds aggregates per-sound results over the most recent drills.
func (s *Store) GetWeakSounds(ctx context.Context, window int) ([]model.SoundAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_drills AS (
		SELECT id FROM drills
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT dw.sound, COUNT(*) AS words,
		SUM(CASE WHEN dw.attempts_needed = 1 AND dw.spoken = 1 THEN 1 ELSE 0 END) AS perfect,
		SUM(dw.attempts_needed) AS attempts,
		SUM(CASE WHEN dw.spoken = 0 THEN 1 ELSE 0 END) AS unspoken
	FROM drill_words dw
	JOIN recent_drills r ON r.id = dw.drill_id
	GROUP BY dw.sound`

	rows, err := s.db.QueryContext(ctx, query, window)
	if err != nil {
		return nil, err
	}
	return scanSoundAggregates(rows)
}

// ListDrills returns drill aggregates filtered by stats config, oldest first.
func (s *Store) ListDrills(ctx context.Context, cfg model.StatsConfig) ([]model.DrillAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, total_words, perfect_words, success_rate
		FROM drills
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var drills []model.DrillAggregate
	for rows.Next() {
		var agg model.DrillAggregate
		var endedAt string
		if err := rows.Scan(&agg.DrillID, &endedAt, &agg.TotalWords, &agg.PerfectWords, &agg.SuccessRate); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		drills = append(drills, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drills, nil
}

// ListSoundAggregatesForDrills aggregates per-sound results across drills.
func (s *Store) ListSoundAggregatesForDrills(ctx context.Context, drillIDs []int64) ([]model.SoundAggregate, error) {
	if len(drillIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(drillIDs))
	args := make([]any, len(drillIDs))
	for i, id := range drillIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT sound, COUNT(*) AS words,
		SUM(CASE WHEN attempts_needed = 1 AND spoken = 1 THEN 1 ELSE 0 END) AS perfect,
		SUM(attempts_needed) AS attempts,
		SUM(CASE WHEN spoken = 0 THEN 1 ELSE 0 END) AS unspoken
		FROM drill_words
		WHERE drill_id IN (%s)
		GROUP BY sound`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanSoundAggregates(rows)
}

func scanSoundAggregates(rows *sql.Rows) ([]model.SoundAggregate, error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.SoundAggregate
	for rows.Next() {
		var agg model.SoundAggregate
		if err := rows.Scan(&agg.Sound, &agg.Words, &agg.Perfect, &agg.Attempts, &agg.Unspoken); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
