// Package archive keeps a local record of completed analyses in SQLite.
// The service owns the authoritative history; the archive is the offline
// view `repopulse history` reads.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/repopulse/repopulse/pkg/api"
)

// Archive manages the SQLite connection and schema.
type Archive struct {
	db *sql.DB
}

// Entry is one archived session as listed by History.
type Entry struct {
	AnalysisID  string
	RepoName    string
	RepoURL     string
	Overall     int
	LetterGrade string
	Critical    int
	Total       int
	Duration    int
	ArchivedAt  time.Time
}

// Open initializes the archive database, creating the schema if needed.
// WAL mode keeps a concurrent history read from blocking a save.
func Open(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return a, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// migrate creates the sessions table if it doesn't exist.
// The queryable envelope fields are columns; the full payloads are JSON blobs.
func (a *Archive) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		analysis_id TEXT PRIMARY KEY,
		repo_name TEXT NOT NULL,
		repo_url TEXT NOT NULL,
		status TEXT NOT NULL,
		overall_score INTEGER,
		letter_grade TEXT,
		critical_count INTEGER NOT NULL DEFAULT 0,
		total_findings INTEGER NOT NULL DEFAULT 0,
		duration_seconds INTEGER,
		archived_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

		-- Full payloads
		result JSON NOT NULL,
		findings JSON,
		fixes JSON,
		chains JSON
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_archived_at ON sessions(archived_at);
	`

	if _, err := a.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	return nil
}

// Save upserts one completed session. Re-archiving the same analysis id
// replaces the previous record.
func (a *Archive) Save(ctx context.Context, result api.AnalysisResult, findings []api.Finding, fixes api.FixesResponse, chains []api.VulnerabilityChain) error {
	if result.AnalysisID == "" {
		return fmt.Errorf("cannot archive a session without an analysis id")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("failed to marshal findings: %w", err)
	}
	fixesJSON, err := json.Marshal(fixes)
	if err != nil {
		return fmt.Errorf("failed to marshal fixes: %w", err)
	}
	chainsJSON, err := json.Marshal(chains)
	if err != nil {
		return fmt.Errorf("failed to marshal chains: %w", err)
	}

	var overall int
	var grade string
	if result.HealthScore != nil {
		overall = result.HealthScore.Overall
		grade = result.HealthScore.LetterGrade
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO sessions (
			analysis_id, repo_name, repo_url, status,
			overall_score, letter_grade, critical_count, total_findings,
			duration_seconds, archived_at, result, findings, fixes, chains
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?, ?, ?, ?)
		ON CONFLICT(analysis_id) DO UPDATE SET
			status = excluded.status,
			overall_score = excluded.overall_score,
			letter_grade = excluded.letter_grade,
			critical_count = excluded.critical_count,
			total_findings = excluded.total_findings,
			duration_seconds = excluded.duration_seconds,
			archived_at = CURRENT_TIMESTAMP,
			result = excluded.result,
			findings = excluded.findings,
			fixes = excluded.fixes,
			chains = excluded.chains
	`,
		result.AnalysisID, result.RepoName, result.RepoURL, string(result.Status),
		overall, grade, result.Findings.Critical, result.Findings.Total,
		result.Timestamps.Duration, string(resultJSON), string(findingsJSON), string(fixesJSON), string(chainsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// History lists the most recently archived sessions, newest first.
func (a *Archive) History(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT analysis_id, repo_name, repo_url,
		       COALESCE(overall_score, 0), COALESCE(letter_grade, ''),
		       critical_count, total_findings, COALESCE(duration_seconds, 0),
		       archived_at
		FROM sessions
		ORDER BY archived_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.AnalysisID, &e.RepoName, &e.RepoURL,
			&e.Overall, &e.LetterGrade,
			&e.Critical, &e.Total, &e.Duration,
			&e.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Get loads the archived result and lists for one analysis id.
func (a *Archive) Get(ctx context.Context, analysisID string) (api.AnalysisResult, []api.Finding, error) {
	var resultJSON, findingsJSON string
	err := a.db.QueryRowContext(ctx,
		`SELECT result, COALESCE(findings, '[]') FROM sessions WHERE analysis_id = ?`,
		analysisID,
	).Scan(&resultJSON, &findingsJSON)
	if err == sql.ErrNoRows {
		return api.AnalysisResult{}, nil, fmt.Errorf("session %s not archived", analysisID)
	}
	if err != nil {
		return api.AnalysisResult{}, nil, fmt.Errorf("failed to load session: %w", err)
	}

	var result api.AnalysisResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return api.AnalysisResult{}, nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	var findings []api.Finding
	if err := json.Unmarshal([]byte(findingsJSON), &findings); err != nil {
		return api.AnalysisResult{}, nil, fmt.Errorf("failed to unmarshal findings: %w", err)
	}

	return result, findings, nil
}
