package attemptlog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ExportAttemptsCSV writes all attempt records to w in the original log
// column layout consumed by downstream tooling.
func (s *Store) ExportAttemptsCSV(ctx context.Context, w io.Writer) error {
	attempts, err := s.Attempts(ctx, AttemptFilter{})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Time", "Query", "Filters", "Stage", "Status", "DetailsJSON"}); err != nil {
		return fmt.Errorf("writing attempts header: %w", err)
	}
	for _, a := range attempts {
		details, err := json.Marshal(a.Details)
		if err != nil {
			return fmt.Errorf("marshalling details for %s: %w", a.ID, err)
		}
		row := []string{
			a.Timestamp.Format(time.DateTime),
			a.Query,
			a.Filters,
			string(a.Stage),
			string(a.Status),
			string(details),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing attempt row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFeedbackCSV writes all feedback records to w.
func (s *Store) ExportFeedbackCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.FeedbackEntries(ctx, 0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Time", "Query", "Filters", "ContextIDs", "ContextCodes", "Response", "Rating", "ErrorCategory"}); err != nil {
		return fmt.Errorf("writing feedback header: %w", err)
	}
	for _, f := range entries {
		row := []string{
			f.Timestamp.Format(time.DateTime),
			f.Query,
			f.Filters,
			strings.Join(f.ContextIDs, ";"),
			strings.Join(f.ContextCodes, ";"),
			f.Response,
			f.Rating,
			f.ErrorCategory,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing feedback row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
