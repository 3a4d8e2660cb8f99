package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/embcache"
	"github.com/campusrag/advisor/internal/progress"
	"github.com/campusrag/advisor/internal/retriever"
	"github.com/campusrag/advisor/internal/session"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the course catalog without the chat layer",
	Long: `Runs one retrieval pass: applies the filter flags, embeds the query
and prints the top-k matching courses with their similarity scores. No
LLM call is made, so only the embeddings API key is required.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Int("k", 0, "number of results (0 uses the configured top_k)")
	queryCmd.Flags().String("credits", "", "filter courses by EAP credits")
	queryCmd.Flags().String("semester", "", "filter by semester (autumn, spring)")
	queryCmd.Flags().String("language", "", "filter by teaching language (et, en)")
	queryCmd.Flags().String("level", "", "filter by study level (bachelor, master, doctoral)")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	meta, err := catalog.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return fmt.Errorf("loading course metadata: %w", err)
	}
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
	preds := predicatesFromFlags(cmd)

	text := session.SanitizeUserText(args[0])
	if text == "" {
		return fmt.Errorf("query text is empty")
	}

	allowIDs := preds.Apply(meta)
	r := retriever.New(corpus, cache, embedder, cfg.ScoreChunk)
	matches, err := r.Retrieve(ctx, text, allowIDs, k)
	if err != nil {
		if errors.Is(err, retriever.ErrNoResults) {
			fmt.Printf("No courses match the filters (%s).\n", preds)
			return nil
		}
		return fmt.Errorf("retrieving: %w", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	fmt.Printf("Top %d of %d filtered courses for %q:\n\n", len(matches), len(allowIDs), text)
	for i, m := range matches {
		label := m.Doc.Code
		if label == "" {
			label = m.Doc.ID
		}
		fmt.Printf("%d. %s (score %.4f)\n", i+1, label, m.Score)
		if c := meta.Get(m.Doc.ID); c != nil && c.Title != "" {
			fmt.Printf("   %s\n", c.Title)
		}
	}
	return nil
}
