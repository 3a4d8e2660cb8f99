// Package report aggregates the attempt log into failure-analysis artifacts:
// per-stage failure counts, the raw failed attempts, and a rendered summary
// in markdown and HTML.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/campusrag/advisor/internal/attemptlog"
)

// Output file names inside the report directory.
const (
	FailuresByStageFile = "failures_by_stage.csv"
	FailedAttemptsFile  = "failed_attempts.csv"
	AllAttemptsFile     = "all_attempts.csv"
	FeedbackFile        = "feedback.csv"
	MarkdownFile        = "report.md"
	HTMLFile            = "report.html"
)

// stageOrder fixes the pipeline order for tables; counts for unknown stages
// are appended alphabetically after these.
var stageOrder = []attemptlog.Stage{
	attemptlog.StageMetaFilter,
	attemptlog.StageVectorSearch,
	attemptlog.StageLLMGenerate,
}

// Summary is the aggregated view of the attempt log.
type Summary struct {
	Generated       time.Time
	TotalAttempts   int
	OKCount         int
	BadCount        int
	FailuresByStage map[attemptlog.Stage]int
	FailedAttempts  []attemptlog.Attempt
	Feedback        []attemptlog.Feedback
	RatingCounts    map[string]int
}

// FailureRate returns the share of attempts that failed, in [0, 1].
func (s *Summary) FailureRate() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.BadCount) / float64(s.TotalAttempts)
}

// Generator reads the attempt log and writes the report artifacts.
type Generator struct {
	store  *attemptlog.Store
	outDir string
}

// NewGenerator creates a Generator writing into outDir.
func NewGenerator(store *attemptlog.Store, outDir string) *Generator {
	return &Generator{store: store, outDir: outDir}
}

// Build aggregates the attempt log without writing anything.
func (g *Generator) Build(ctx context.Context) (*Summary, error) {
	attempts, err := g.store.Attempts(ctx, attemptlog.AttemptFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading attempts: %w", err)
	}
	feedback, err := g.store.FeedbackEntries(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("loading feedback: %w", err)
	}

	failuresByStage, err := g.store.CountByStage(ctx, attemptlog.StatusBad)
	if err != nil {
		return nil, fmt.Errorf("counting failures by stage: %w", err)
	}

	s := &Summary{
		Generated:       time.Now(),
		TotalAttempts:   len(attempts),
		FailuresByStage: failuresByStage,
		Feedback:        feedback,
		RatingCounts:    make(map[string]int),
	}
	for _, a := range attempts {
		if a.Status == attemptlog.StatusOK {
			s.OKCount++
			continue
		}
		s.BadCount++
		s.FailedAttempts = append(s.FailedAttempts, a)
	}
	for _, f := range feedback {
		s.RatingCounts[f.Rating]++
	}
	return s, nil
}

// Write builds the summary and writes every artifact, returning the paths
// written.
func (g *Generator) Write(ctx context.Context) ([]string, error) {
	summary, err := g.Build(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report dir: %w", err)
	}

	var written []string
	write := func(name string, fn func(f *os.File) error) error {
		path := filepath.Join(g.outDir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		defer f.Close()
		if err := fn(f); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write(FailuresByStageFile, func(f *os.File) error {
		return writeFailuresByStage(f, summary)
	}); err != nil {
		return nil, err
	}
	if err := write(FailedAttemptsFile, func(f *os.File) error {
		return writeFailedAttempts(f, summary)
	}); err != nil {
		return nil, err
	}
	if err := write(AllAttemptsFile, func(f *os.File) error {
		return g.store.ExportAttemptsCSV(ctx, f)
	}); err != nil {
		return nil, err
	}
	if err := write(FeedbackFile, func(f *os.File) error {
		return g.store.ExportFeedbackCSV(ctx, f)
	}); err != nil {
		return nil, err
	}

	md := RenderMarkdown(summary)
	if err := write(MarkdownFile, func(f *os.File) error {
		_, err := f.WriteString(md)
		return err
	}); err != nil {
		return nil, err
	}
	if err := write(HTMLFile, func(f *os.File) error {
		return RenderHTML(f, md)
	}); err != nil {
		return nil, err
	}

	return written, nil
}

func writeFailuresByStage(f *os.File, s *Summary) error {
	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"Stage", "Failures"}); err != nil {
		return err
	}
	for _, stage := range orderedStages(s.FailuresByStage) {
		if err := cw.Write([]string{string(stage), fmt.Sprint(s.FailuresByStage[stage])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFailedAttempts(f *os.File, s *Summary) error {
	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"Time", "Query", "Filters", "Stage", "Reason"}); err != nil {
		return err
	}
	for _, a := range s.FailedAttempts {
		if err := cw.Write([]string{
			a.Timestamp.Format(time.DateTime),
			a.Query,
			a.Filters,
			string(a.Stage),
			failureReason(a),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// failureReason extracts the human-readable cause from the detail payload.
func failureReason(a attemptlog.Attempt) string {
	for _, key := range []string{"reason", "exception"} {
		if v, ok := a.Details[key]; ok {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// orderedStages returns the stages present in counts, pipeline stages first.
func orderedStages(counts map[attemptlog.Stage]int) []attemptlog.Stage {
	var out []attemptlog.Stage
	seen := make(map[attemptlog.Stage]bool)
	for _, stage := range stageOrder {
		if _, ok := counts[stage]; ok {
			out = append(out, stage)
			seen[stage] = true
		}
	}
	var rest []attemptlog.Stage
	for stage := range counts {
		if !seen[stage] {
			rest = append(rest, stage)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}
