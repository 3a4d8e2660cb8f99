package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/embcache"
	"github.com/campusrag/advisor/internal/progress"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the course embedding cache",
	Long: `Embeds every course document and writes the vectors to the on-disk
cache. The cache is keyed by the documents file and embedding model, so
reruns after an unchanged catalog are no-ops unless --force is given.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().Bool("force", false, "rebuild the cache even if it is up to date")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	corpus, err := catalog.LoadDocuments(cfg.DocumentsPath)
	if err != nil {
		return fmt.Errorf("loading course documents: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	reporter := progress.NewReporter()

	if force {
		if err := embcache.Rebuild(ctx, cfg.CacheDir, corpus, embedder, reporter); err != nil {
			return fmt.Errorf("rebuilding embedding cache: %w", err)
		}
	} else {
		cache, err := embcache.Ensure(ctx, cfg.CacheDir, corpus, embedder, reporter)
		if err != nil {
			return fmt.Errorf("ensuring embedding cache: %w", err)
		}
		cache.Close()
	}

	fmt.Printf("Embedding cache ready: %d documents in %s\n", corpus.Len(), cfg.CacheDir)
	return nil
}
