package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amtspost/amtspost/internal/urgency"
)

// ErrNotFound is returned when no analysis has the requested id.
var ErrNotFound = errors.New("analysis not found")

// Record is the persisted projection of one analysis. The letter text and
// match contexts are never stored.
type Record struct {
	ID            string           `json:"id"`
	Source        string           `json:"source"`
	Tier          urgency.Tier     `json:"urgency_tier"`
	Score         int              `json:"score"`
	Category      urgency.Category `json:"category"`
	CategoryLabel string           `json:"category_label"`
	Summary       string           `json:"summary"`
	DeadlineDays  *int             `json:"deadline_days,omitempty"`
	AnalyzedAt    time.Time        `json:"analyzed_at"`
	CreatedAt     time.Time        `json:"created_at"`
	Matches       []Match          `json:"matches,omitempty"`
}

// Match is one evaluated keyword of a stored analysis.
type Match struct {
	Keyword         string           `json:"keyword"`
	Category        urgency.Category `json:"category"`
	Tier            urgency.Tier     `json:"tier"`
	Weight          int              `json:"weight"`
	EffectiveWeight int              `json:"effective_weight"`
	Neutralized     bool             `json:"is_neutralized"`
	Reason          string           `json:"reason"`
	FromSubject     bool             `json:"from_subject,omitempty"`
}

// Stats counts stored analyses per tier.
type Stats struct {
	Total  int `json:"total"`
	Red    int `json:"red"`
	Yellow int `json:"yellow"`
	Green  int `json:"green"`
}

type Store struct {
	db *sql.DB
}

// scanRecord handles nullable columns when scanning a row
func scanRecord(scanner interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var analyzedAt, createdAt sql.NullTime
	var deadline sql.NullInt64
	var label, summary sql.NullString

	err := scanner.Scan(&r.ID, &r.Source, &r.Tier, &r.Score, &r.Category,
		&label, &summary, &deadline, &analyzedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	r.CategoryLabel = label.String
	r.Summary = summary.String
	if deadline.Valid {
		d := int(deadline.Int64)
		r.DeadlineDays = &d
	}
	r.AnalyzedAt = analyzedAt.Time
	r.CreatedAt = createdAt.Time
	return &r, nil
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		tier TEXT NOT NULL,
		score INTEGER NOT NULL,
		category TEXT NOT NULL,
		category_label TEXT,
		summary TEXT,
		deadline_days INTEGER,
		analyzed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_tier ON analyses(tier);
	CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses(analyzed_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_source ON analyses(source);

	CREATE TABLE IF NOT EXISTS analysis_matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		keyword TEXT NOT NULL,
		category TEXT NOT NULL,
		tier TEXT NOT NULL,
		weight INTEGER NOT NULL,
		effective_weight INTEGER NOT NULL,
		neutralized INTEGER DEFAULT 0,
		from_subject INTEGER DEFAULT 0,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_am_analysis_id ON analysis_matches(analysis_id);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Add stores an analysis and its matches in one transaction.
func (s *Store) Add(record *Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var deadline sql.NullInt64
	if record.DeadlineDays != nil {
		deadline = sql.NullInt64{Int64: int64(*record.DeadlineDays), Valid: true}
	}
	record.CreatedAt = time.Now().UTC()

	_, err = tx.Exec(`
	INSERT INTO analyses (id, source, tier, score, category, category_label, summary, deadline_days, analyzed_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Source, string(record.Tier), record.Score, string(record.Category),
		record.CategoryLabel, record.Summary, deadline, record.AnalyzedAt, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	for _, m := range record.Matches {
		_, err := tx.Exec(`
		INSERT INTO analysis_matches (analysis_id, keyword, category, tier, weight, effective_weight, neutralized, from_subject, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID, m.Keyword, string(m.Category), string(m.Tier), m.Weight, m.EffectiveWeight,
			boolToInt(m.Neutralized), boolToInt(m.FromSubject), m.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	return nil
}

const recordColumns = `id, source, tier, score, category, category_label, summary, deadline_days, analyzed_at, created_at`

// Get returns one analysis with its matches.
func (s *Store) Get(id string) (*Record, error) {
	record, err := scanRecord(s.db.QueryRow(`SELECT `+recordColumns+` FROM analyses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	record.Matches, err = s.matches(id)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Store) matches(analysisID string) ([]Match, error) {
	rows, err := s.db.Query(`
	SELECT keyword, category, tier, weight, effective_weight, neutralized, from_subject, reason
	FROM analysis_matches WHERE analysis_id = ? ORDER BY id`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var neutralized, fromSubject int
		var reason sql.NullString
		if err := rows.Scan(&m.Keyword, &m.Category, &m.Tier, &m.Weight, &m.EffectiveWeight,
			&neutralized, &fromSubject, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Neutralized = neutralized == 1
		m.FromSubject = fromSubject == 1
		m.Reason = reason.String
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Recent lists the newest analyses without their matches.
func (s *Store) Recent(limit int) ([]Record, error) {
	rows, err := s.db.Query(`SELECT `+recordColumns+` FROM analyses ORDER BY analyzed_at DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// HasSource reports whether an analysis from source was already stored. The
// inbox monitor uses it to skip letters it has seen.
func (s *Store) HasSource(source string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM analyses WHERE source = ?`, source).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query source: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Stats() (Stats, error) {
	query := `SELECT COUNT(*),
		SUM(CASE WHEN tier='red' THEN 1 ELSE 0 END),
		SUM(CASE WHEN tier='yellow' THEN 1 ELSE 0 END),
		SUM(CASE WHEN tier='green' THEN 1 ELSE 0 END) FROM analyses`

	var st Stats
	var red, yellow, green sql.NullInt64
	if err := s.db.QueryRow(query).Scan(&st.Total, &red, &yellow, &green); err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	st.Red, st.Yellow, st.Green = int(red.Int64), int(yellow.Int64), int(green.Int64)
	return st, nil
}

// Delete removes one analysis and its matches.
func (s *Store) Delete(id string) error {
	n, err := s.deleteWhere(`id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByTier deletes all analyses with the given tier
func (s *Store) DeleteByTier(tier urgency.Tier) (int64, error) {
	return s.deleteWhere(`tier = ?`, string(tier))
}

// deleteWhere removes matching analyses and their matches. Foreign keys are
// off by default in sqlite, so matches are removed explicitly.
func (s *Store) deleteWhere(cond string, arg any) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM analysis_matches WHERE analysis_id IN (SELECT id FROM analyses WHERE `+cond+`)`, arg); err != nil {
		return 0, fmt.Errorf("failed to delete matches: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM analyses WHERE `+cond, arg)
	if err != nil {
		return 0, fmt.Errorf("failed to delete analyses: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete analyses: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
