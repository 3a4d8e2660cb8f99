package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusrag/advisor/internal/cleaner"
)

var cleanCmd = &cobra.Command{
	Use:   "clean <raw-export.csv>",
	Short: "Clean a raw course export into catalog CSVs",
	Long: `Turns a raw course export into the metadata and documents CSVs the
assistant consumes: drops non-day-study, overly long and cancelled
courses, flattens JSON-valued columns, strips internal columns and
assembles the per-course document text. A cleaning report with drop
counts and text length statistics is written alongside the outputs.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().String("rules", "cleaning_rules.json", "cleaning rules JSON file")
	cleanCmd.Flags().String("lang", "et", "document text language (et, en, both)")
	cleanCmd.Flags().String("outdir", "out", "output directory")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	rulesPath, _ := cmd.Flags().GetString("rules")
	lang, _ := cmd.Flags().GetString("lang")
	outDir, _ := cmd.Flags().GetString("outdir")

	cfg, err := cleaner.LoadConfig(rulesPath)
	if err != nil {
		return fmt.Errorf("loading cleaning rules: %w", err)
	}

	rep, err := cleaner.Run(args[0], cfg, lang, outDir)
	if err != nil {
		return fmt.Errorf("cleaning: %w", err)
	}

	fmt.Printf("Cleaned %d rows down to %d (lang=%s)\n", rep.InputRows, rep.KeptRows, rep.Lang)
	for reason, n := range rep.Dropped {
		fmt.Printf("  dropped %d: %s\n", n, reason)
	}
	if rep.DocumentTextStats.Count > 0 {
		s := rep.DocumentTextStats
		fmt.Printf("Document text length: mean %.0f, min %d, median %d, max %d (%d empty)\n",
			s.Mean, s.Min, s.Median, s.Max, s.Empty)
	}
	fmt.Printf("Outputs written to %s\n", outDir)
	return nil
}
