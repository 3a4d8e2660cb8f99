package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/campusrag/advisor/internal/attemptlog"
	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/config"
	"github.com/campusrag/advisor/internal/filter"
	"github.com/campusrag/advisor/internal/llm"
	"github.com/campusrag/advisor/internal/prompt"
	"github.com/campusrag/advisor/internal/retriever"
)

// ErrNoCoursesMatch is the designed terminal outcome when the active filters
// leave no courses to recommend. No LLM call is made.
var ErrNoCoursesMatch = errors.New("no courses match the active filters")

// ErrEmptyMessage is returned when the sanitized user input is empty.
var ErrEmptyMessage = errors.New("empty message")

// Sink receives streamed response fragments as they arrive.
type Sink func(fragment string)

// TurnResult summarizes one completed chat turn for the caller's UI layer.
type TurnResult struct {
	Response       string
	Matches        []retriever.Match
	FilteredCount  int
	ScoredCount    int
	SystemPrompt   string
	Usage          llm.Usage
	UsageEstimated bool
	Cost           float64
	HistoryCleared bool
}

// Engine wires the pipeline components behind a single per-message handler.
type Engine struct {
	meta      *catalog.Metadata
	retriever *retriever.Retriever
	provider  llm.Provider
	store     *attemptlog.Store

	topK        int
	maxTokens   int
	temperature float64
	timeout     time.Duration
	prices      config.Pricing
}

// Options configures an Engine. TopK <= 0 selects the retriever default;
// Timeout <= 0 disables the per-request deadline.
type Options struct {
	TopK        int
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Prices      config.Pricing
}

// NewEngine creates an Engine over loaded catalog data, a ready retriever,
// a chat provider and an attempt log store.
func NewEngine(meta *catalog.Metadata, r *retriever.Retriever, provider llm.Provider, store *attemptlog.Store, opts Options) *Engine {
	topK := opts.TopK
	if topK <= 0 {
		topK = retriever.DefaultTopK
	}
	return &Engine{
		meta:        meta,
		retriever:   r,
		provider:    provider,
		store:       store,
		topK:        topK,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		prices:      opts.Prices,
	}
}

// TopK returns the configured result count.
func (e *Engine) TopK() int { return e.topK }

// FilterCourses applies the predicate set to the metadata store.
func (e *Engine) FilterCourses(preds filter.Predicates) []string {
	return preds.Apply(e.meta)
}

// Retrieve runs filtering plus retrieval without a chat turn. Used by the
// one-shot query paths (CLI query command, HTTP search, MCP tool).
func (e *Engine) Retrieve(ctx context.Context, query string, preds filter.Predicates, k int) ([]retriever.Match, error) {
	query = SanitizeUserText(query)
	if query == "" {
		return nil, ErrEmptyMessage
	}
	if k <= 0 {
		k = e.topK
	}

	allowIDs := preds.Apply(e.meta)
	if len(allowIDs) == 0 {
		return nil, ErrNoCoursesMatch
	}

	matches, err := e.retriever.Retrieve(ctx, query, allowIDs, k)
	if errors.Is(err, retriever.ErrNoResults) {
		return nil, ErrNoCoursesMatch
	}
	return matches, err
}

// HandleMessage runs one chat turn: sanitize, filter, retrieve, assemble the
// system prompt, stream the completion into sink, and append the reply. On
// failure the user's message is kept, no assistant entry is appended, and a
// BAD attempt is logged with the stage reached.
func (e *Engine) HandleMessage(ctx context.Context, sess *Session, rawText string, preds filter.Predicates, sink Sink) (*TurnResult, error) {
	text := SanitizeUserText(rawText)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	filtersStr := preds.String()
	cleared := sess.beginTurn(text, preds)

	// Stage 1: metadata filter.
	allowIDs := preds.Apply(e.meta)
	if len(allowIDs) == 0 {
		sess.failTurn()
		e.logAttempt(ctx, text, filtersStr, attemptlog.StageMetaFilter, attemptlog.StatusBad,
			map[string]any{"reason": "0 courses after filters"})
		return nil, ErrNoCoursesMatch
	}

	// Stage 2: vector search over the allow-set.
	matches, err := e.retriever.Retrieve(ctx, text, allowIDs, e.topK)
	if err != nil {
		sess.failTurn()
		if errors.Is(err, retriever.ErrNoResults) {
			e.logAttempt(ctx, text, filtersStr, attemptlog.StageVectorSearch, attemptlog.StatusBad,
				map[string]any{"reason": "0 docs after applying allow-set"})
			return nil, ErrNoCoursesMatch
		}
		e.logAttempt(ctx, text, filtersStr, attemptlog.StageVectorSearch, attemptlog.StatusBad,
			map[string]any{"exception": err.Error()})
		return nil, fmt.Errorf("vector search: %w", err)
	}

	// Stage 3: generation. The system prompt is rebuilt every turn and
	// prepended to the history; it is never stored in the session.
	systemPrompt := prompt.BuildSystem(matches, preds, e.topK)
	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}, sess.Messages()...)

	genCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	response, usage, err := e.generate(genCtx, messages, sink)
	if err != nil {
		sess.failTurn()
		e.logAttempt(ctx, text, filtersStr, attemptlog.StageLLMGenerate, attemptlog.StatusBad,
			map[string]any{"exception": err.Error()})
		return nil, fmt.Errorf("llm generate: %w", err)
	}

	result := &TurnResult{
		Response:       response,
		Matches:        matches,
		FilteredCount:  len(allowIDs),
		ScoredCount:    e.retriever.CacheHits(allowIDs),
		SystemPrompt:   systemPrompt,
		HistoryCleared: cleared,
	}

	if usage != nil {
		result.Usage = *usage
	} else {
		// Provider sent no usage summary; fall back to the rough estimate.
		var input strings.Builder
		for _, m := range messages {
			input.WriteString(m.Content)
			input.WriteString("\n")
		}
		result.Usage = llm.Usage{
			InputTokens:  prompt.EstimateTokens(input.String()),
			OutputTokens: prompt.EstimateTokens(response),
		}
		result.UsageEstimated = true
	}
	result.Cost = prompt.EstimateCost(result.Usage.InputTokens, result.Usage.OutputTokens, e.prices)

	sess.finishTurn(response)

	e.logAttempt(ctx, text, filtersStr, attemptlog.StageLLMGenerate, attemptlog.StatusOK, map[string]any{
		"filtered_count": len(allowIDs),
		"docs_scored":    result.ScoredCount,
		"top_k":          len(matches),
		"top_codes":      matchCodes(matches),
	})

	return result, nil
}

// generate streams the completion, forwarding fragments to sink and
// accumulating the full response.
func (e *Engine) generate(ctx context.Context, messages []llm.Message, sink Sink) (string, *llm.Usage, error) {
	stream, err := e.provider.Stream(ctx, llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}
		b.WriteString(frag)
		if sink != nil {
			sink(frag)
		}
	}
	return b.String(), stream.Usage(), nil
}

// RecordFeedback persists an explicit user rating of a completed turn.
func (e *Engine) RecordFeedback(ctx context.Context, query string, preds filter.Predicates, result *TurnResult, rating, errorCategory string) error {
	fb := attemptlog.Feedback{
		Query:         query,
		Filters:       preds.String(),
		Response:      result.Response,
		Rating:        rating,
		ErrorCategory: errorCategory,
	}
	for _, m := range result.Matches {
		fb.ContextIDs = append(fb.ContextIDs, m.Doc.ID)
		fb.ContextCodes = append(fb.ContextCodes, m.Doc.Code)
	}
	return e.store.LogFeedback(ctx, fb)
}

func (e *Engine) logAttempt(ctx context.Context, query, filters string, stage attemptlog.Stage, status attemptlog.Status, details map[string]any) {
	if e.store == nil {
		return
	}
	if err := e.store.LogAttempt(ctx, attemptlog.Attempt{
		Query:   query,
		Filters: filters,
		Stage:   stage,
		Status:  status,
		Details: details,
	}); err != nil {
		// The attempt log must never take the pipeline down with it.
		log.Printf("attempt log write failed: %v", err)
	}
}

func matchCodes(matches []retriever.Match) []string {
	codes := make([]string, 0, len(matches))
	for _, m := range matches {
		codes = append(codes, m.Doc.Code)
	}
	return codes
}
