package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/campusrag/advisor/internal/filter"
	"github.com/campusrag/advisor/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the course assistant in the terminal",
	Long: `Starts an interactive chat session. Each message is answered with
course recommendations grounded in the catalog. Filters can be set up
front with flags or changed mid-session with /filters; changing them
clears the conversation history.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("credits", "", "filter courses by EAP credits")
	chatCmd.Flags().String("semester", "", "filter by semester (autumn, spring)")
	chatCmd.Flags().String("language", "", "filter by teaching language (et, en)")
	chatCmd.Flags().String("level", "", "filter by study level (bachelor, master, doctoral)")
	chatCmd.Flags().Bool("feedback", false, "ask for a rating after each answer")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	preds := predicatesFromFlags(cmd)
	askFeedback, _ := cmd.Flags().GetBool("feedback")

	fmt.Printf("Chatting over %d courses. Type /filters to adjust filters, /exit to quit.\n", p.meta.Len())
	if !preds.IsZero() {
		fmt.Printf("Active filters: %s\n", preds)
	}

	sess := session.New()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil
		case line == "/filters":
			fmt.Printf("Active filters: %s\n", preds)
			fmt.Println("Change with: /filters credits=6,semester=autumn,language=et,level=bachelor")
			continue
		case strings.HasPrefix(line, "/filters "):
			preds = filter.Parse(strings.TrimPrefix(line, "/filters "))
			fmt.Printf("Filters set: %s (history clears on the next message)\n", preds)
			continue
		}

		fmt.Print("\nadvisor> ")
		result, err := p.engine.HandleMessage(ctx, sess, line, preds, func(fragment string) {
			fmt.Print(fragment)
		})
		fmt.Println()
		if err != nil {
			if errors.Is(err, session.ErrNoCoursesMatch) {
				fmt.Println("No courses match the active filters. Loosen them and try again.")
				continue
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		if result.HistoryCleared {
			fmt.Println("(filters changed, conversation history was cleared)")
		}
		if verbose {
			fmt.Printf("(context: %s; tokens in=%d out=%d", strings.Join(codesOf(result), ", "),
				result.Usage.InputTokens, result.Usage.OutputTokens)
			if result.Cost > 0 {
				fmt.Printf("; cost=$%.4f", result.Cost)
			}
			fmt.Println(")")
		}
		sess.Rendered()

		if askFeedback {
			collectFeedback(ctx, p, line, preds, result)
		}
	}
}

// collectFeedback asks for a rating and, for negative ratings, an error
// category. Recording failures are reported but never abort the session.
func collectFeedback(ctx context.Context, p *pipeline, query string, preds filter.Predicates, result *session.TurnResult) {
	ratingPrompt := promptui.Select{
		Label: "Was this answer helpful?",
		Items: []string{"good", "bad", "skip"},
	}
	_, rating, err := ratingPrompt.Run()
	if err != nil || rating == "skip" {
		return
	}

	var category string
	if rating == "bad" {
		categoryPrompt := promptui.Select{
			Label: "What went wrong?",
			Items: []string{"irrelevant courses", "wrong filters applied", "made-up information", "other"},
		}
		if _, category, err = categoryPrompt.Run(); err != nil {
			category = ""
		}
	}

	if err := p.engine.RecordFeedback(ctx, query, preds, result, rating, category); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not record feedback: %v\n", err)
	}
}

func codesOf(result *session.TurnResult) []string {
	codes := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		if m.Doc.Code != "" {
			codes = append(codes, m.Doc.Code)
		} else {
			codes = append(codes, m.Doc.ID)
		}
	}
	return codes
}

// predicatesFromFlags builds the filter set from the shared filter flags.
func predicatesFromFlags(cmd *cobra.Command) filter.Predicates {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	return filter.Predicates{
		Credits:  get("credits"),
		Semester: get("semester"),
		Language: get("language"),
		Level:    get("level"),
	}
}
