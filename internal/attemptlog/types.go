package attemptlog

import "time"

// Stage identifies the pipeline stage an attempt reached.
type Stage string

const (
	StageMetaFilter   Stage = "meta_filter"
	StageVectorSearch Stage = "rag_vector_search"
	StageLLMGenerate  Stage = "llm_generate"
)

// Status is the outcome of an attempt.
type Status string

const (
	StatusOK  Status = "OK"
	StatusBad Status = "BAD"
)

// Attempt is one record per user turn: what was asked, under which filters,
// how far the pipeline got, and a stage-specific detail payload.
type Attempt struct {
	ID        string
	Timestamp time.Time
	Query     string
	Filters   string
	Stage     Stage
	Status    Status
	Details   map[string]any
}

// Feedback is one record per explicit user rating of an assistant response.
type Feedback struct {
	ID            string
	Timestamp     time.Time
	Query         string
	Filters       string
	ContextIDs    []string
	ContextCodes  []string
	Response      string
	Rating        string
	ErrorCategory string
}
