package attemptlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusrag/advisor/internal/db"
)

// Store provides persistence for attempt and feedback records.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// LogAttempt inserts a new attempt record. If a.ID is empty a UUID is
// generated.
func (s *Store) LogAttempt(ctx context.Context, a Attempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Details == nil {
		a.Details = map[string]any{}
	}

	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("marshalling attempt details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, query, filters, stage, status, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Query, a.Filters, string(a.Stage), string(a.Status), string(details),
	)
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// LogFeedback inserts a new feedback record. If f.ID is empty a UUID is
// generated.
func (s *Store) LogFeedback(ctx context.Context, f Feedback) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	ids, err := json.Marshal(emptyIfNil(f.ContextIDs))
	if err != nil {
		return fmt.Errorf("marshalling context ids: %w", err)
	}
	codes, err := json.Marshal(emptyIfNil(f.ContextCodes))
	if err != nil {
		return fmt.Errorf("marshalling context codes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, query, filters, context_ids, context_codes, response, rating, error_category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Query, f.Filters, string(ids), string(codes), f.Response, f.Rating, f.ErrorCategory,
	)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// AttemptFilter controls which attempt records Attempts returns.
type AttemptFilter struct {
	Status Status
	Stage  Stage
	Since  *time.Time
	Limit  int
}

// Attempts returns attempt records matching the filter, newest first.
func (s *Store) Attempts(ctx context.Context, filter AttemptFilter) ([]Attempt, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Stage != "" {
		clauses = append(clauses, "stage = ?")
		args = append(args, string(filter.Stage))
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}

	query := "SELECT id, timestamp, query, filters, stage, status, details FROM attempts"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a           Attempt
			ts          string
			stage       string
			status      string
			detailsJSON string
		)
		if err := rows.Scan(&a.ID, &ts, &a.Query, &a.Filters, &stage, &status, &detailsJSON); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Stage = Stage(stage)
		a.Status = Status(status)
		a.Timestamp = parseTimestamp(ts)
		if err := json.Unmarshal([]byte(detailsJSON), &a.Details); err != nil {
			a.Details = nil
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// FeedbackEntries returns all feedback records, newest first.
func (s *Store) FeedbackEntries(ctx context.Context, limit int) ([]Feedback, error) {
	query := "SELECT id, timestamp, query, filters, context_ids, context_codes, response, rating, error_category FROM feedback ORDER BY timestamp DESC, id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var entries []Feedback
	for rows.Next() {
		var (
			f         Feedback
			ts        string
			idsJSON   string
			codesJSON string
		)
		if err := rows.Scan(&f.ID, &ts, &f.Query, &f.Filters, &idsJSON, &codesJSON, &f.Response, &f.Rating, &f.ErrorCategory); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		f.Timestamp = parseTimestamp(ts)
		if err := json.Unmarshal([]byte(idsJSON), &f.ContextIDs); err != nil {
			f.ContextIDs = nil
		}
		if err := json.Unmarshal([]byte(codesJSON), &f.ContextCodes); err != nil {
			f.ContextCodes = nil
		}
		entries = append(entries, f)
	}
	return entries, rows.Err()
}

// CountByStage returns the number of attempts with the given status grouped
// by stage.
func (s *Store) CountByStage(ctx context.Context, status Status) (map[Stage]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT stage, COUNT(*) FROM attempts WHERE status = ? GROUP BY stage", string(status))
	if err != nil {
		return nil, fmt.Errorf("counting attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Stage]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		counts[Stage(stage)] = n
	}
	return counts, rows.Err()
}

// CountAttempts returns the total number of attempt records.
func (s *Store) CountAttempts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attempts").Scan(&n)
	return n, err
}

func parseTimestamp(ts string) time.Time {
	if t, err := time.Parse(time.DateTime, ts); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", ts); err == nil {
		return t
	}
	return time.Time{}
}
