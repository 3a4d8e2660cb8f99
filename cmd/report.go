package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/campusrag/advisor/internal/attemptlog"
	"github.com/campusrag/advisor/internal/db"
	"github.com/campusrag/advisor/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate failure and feedback reports from the attempt log",
	Long: `Aggregates the logged pipeline attempts and user feedback into CSV
exports plus a Markdown and HTML summary. Only the local database is
read; no API keys are required.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("out", "", "output directory (defaults to <data_dir>/report)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = filepath.Join(cfg.DataDir, "report")
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "advisor.db"))
	if err != nil {
		return err
	}
	defer database.Close()

	store := attemptlog.NewStore(database)
	files, err := report.NewGenerator(store, outDir).Write(ctx)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Printf("Wrote %d report files to %s:\n", len(files), outDir)
	for _, f := range files {
		fmt.Printf("  %s\n", filepath.Base(f))
	}
	return nil
}
