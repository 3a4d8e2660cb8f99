package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/embcache"
	"github.com/campusrag/advisor/internal/progress"
	"github.com/campusrag/advisor/internal/retriever"
	"github.com/campusrag/advisor/internal/testgen"
)

var testgenCmd = &cobra.Command{
	Use:   "testgen",
	Short: "Generate a randomized evaluation sheet from the catalog",
	Long: `Samples courses from the catalog and writes a CSV of synthetic
Estonian queries with filter combinations. With --fill-expected the
retrieval pipeline is run for each case and the expected top course
codes are recorded, turning the sheet into a regression baseline.`,
	RunE: runTestgen,
}

func init() {
	testgenCmd.Flags().Int("n", 30, "number of test cases to generate")
	testgenCmd.Flags().Int64("seed", 1, "random seed (same seed, same sheet)")
	testgenCmd.Flags().String("out", "random_testcases.csv", "output CSV path")
	testgenCmd.Flags().String("in", "", "fill an existing sheet instead of generating")
	testgenCmd.Flags().Bool("fill-expected", false, "run retrieval to fill the expected column")
	testgenCmd.Flags().Int("k", 0, "retrieval depth for expected codes (0 uses the configured top_k)")
	rootCmd.AddCommand(testgenCmd)
}

func runTestgen(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	meta, err := catalog.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return fmt.Errorf("loading course metadata: %w", err)
	}

	inPath, _ := cmd.Flags().GetString("in")
	fill, _ := cmd.Flags().GetBool("fill-expected")

	var cases []testgen.Case
	if inPath != "" {
		f, err := os.Open(inPath)
		if err != nil {
			return fmt.Errorf("opening test sheet: %w", err)
		}
		cases, err = testgen.ReadCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("reading test sheet: %w", err)
		}
		// Filling is the only reason to reprocess an existing sheet.
		fill = true
	} else {
		n, _ := cmd.Flags().GetInt("n")
		seed, _ := cmd.Flags().GetInt64("seed")
		cases, err = testgen.Generate(meta, n, seed)
		if err != nil {
			return fmt.Errorf("generating test cases: %w", err)
		}
	}

	if fill {
		corpus, err := catalog.LoadDocuments(cfg.DocumentsPath)
		if err != nil {
			return fmt.Errorf("loading course documents: %w", err)
		}
		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return err
		}
		cache, err := embcache.Ensure(ctx, cfg.CacheDir, corpus, embedder, progress.NewReporter())
		if err != nil {
			return fmt.Errorf("ensuring embedding cache: %w", err)
		}
		defer cache.Close()

		k, _ := cmd.Flags().GetInt("k")
		if k <= 0 {
			k = cfg.TopK
		}
		r := retriever.New(corpus, cache, embedder, cfg.ScoreChunk)
		if err := testgen.FillExpected(ctx, meta, r, cases, k); err != nil {
			return fmt.Errorf("filling expected codes: %w", err)
		}
	}

	outPath, _ := cmd.Flags().GetString("out")
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()
	if err := testgen.WriteCSV(f, cases); err != nil {
		return fmt.Errorf("writing test sheet: %w", err)
	}

	fmt.Printf("Wrote %d test cases to %s\n", len(cases), outPath)
	return nil
}
