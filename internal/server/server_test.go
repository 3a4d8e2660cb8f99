package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/campusrag/advisor/internal/attemptlog"
	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/db"
	"github.com/campusrag/advisor/internal/embcache"
	"github.com/campusrag/advisor/internal/llm"
	"github.com/campusrag/advisor/internal/retriever"
	"github.com/campusrag/advisor/internal/session"
)

// axisEmbedder maps each fixture text to a fixed axis.
type axisEmbedder struct {
	dims int
	axes map[string]int
}

func (e *axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		axis, ok := e.axes[text]
		if !ok {
			return nil, fmt.Errorf("no fixture axis for %q", text)
		}
		vec := make([]float32, e.dims)
		vec[axis] = 1
		out[i] = vec
	}
	return out, nil
}

func (e *axisEmbedder) Dimensions() int { return e.dims }
func (e *axisEmbedder) Name() string    { return "axis" }

// stubStream yields fixed fragments.
type stubStream struct {
	fragments []string
	pos       int
}

func (s *stubStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	frag := s.fragments[s.pos]
	s.pos++
	return frag, nil
}

func (s *stubStream) Usage() *llm.Usage { return &llm.Usage{InputTokens: 50, OutputTokens: 4} }
func (s *stubStream) Close() error      { return nil }

type stubProvider struct{ fragments []string }

func (p *stubProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: strings.Join(p.fragments, "")}, nil
}

func (p *stubProvider) Stream(_ context.Context, _ llm.CompletionRequest) (llm.Stream, error) {
	return &stubStream{fragments: p.fragments}, nil
}

func (p *stubProvider) Name() string { return "stub" }

func newTestServer(t *testing.T) (*Server, *attemptlog.Store) {
	t.Helper()
	dir := t.TempDir()

	metaCSV := "course_uuid,code,credits,semester,language,study_levels__codes\n" +
		"A,LTAT.01,6,autumn,et,bachelor\n" +
		"B,LTAT.02,6,autumn,en,master\n"
	metaPath := filepath.Join(dir, "meta.csv")
	if err := os.WriteFile(metaPath, []byte(metaCSV), 0644); err != nil {
		t.Fatalf("writing metadata: %v", err)
	}

	docsCSV := "course_uuid,code,document_text\n" +
		"A,LTAT.01,programmeerimine\n" +
		"B,LTAT.02,masinõpe\n"
	docsPath := filepath.Join(dir, "docs.csv")
	if err := os.WriteFile(docsPath, []byte(docsCSV), 0644); err != nil {
		t.Fatalf("writing documents: %v", err)
	}

	meta, err := catalog.LoadMetadata(metaPath)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	corpus, err := catalog.LoadDocuments(docsPath)
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}

	emb := &axisEmbedder{dims: 4, axes: map[string]int{
		"programmeerimine": 0,
		"masinõpe":         1,
		"otsi masinõpet":   1,
	}}
	cache, err := embcache.Ensure(context.Background(), filepath.Join(dir, "cache"), corpus, emb, nil)
	if err != nil {
		t.Fatalf("Ensure cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := attemptlog.NewStore(database)

	engine := session.NewEngine(meta, retriever.New(corpus, cache, emb, 0),
		&stubProvider{fragments: []string{"Soovitan ", "masinõpet."}}, store, session.Options{TopK: 2})

	return New(Config{Port: 0}, engine, meta, store), store
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.cfg.AllowAll = true
	srv.router = srv.buildRouter()

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestFiltersEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/filters", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var values catalog.FilterValues
	if err := json.Unmarshal(w.Body.Bytes(), &values); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(values.Semesters) != 1 || values.Semesters[0] != "autumn" {
		t.Errorf("semesters = %v", values.Semesters)
	}
	if len(values.Languages) != 2 {
		t.Errorf("languages = %v", values.Languages)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(searchRequest{Query: "otsi masinõpet", K: 1})
	req := httptest.NewRequest("POST", "/api/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].Code != "LTAT.02" {
		t.Errorf("matches = %+v", resp.Matches)
	}
}

func TestSearchEndpointNoMatches(t *testing.T) {
	srv, _ := newTestServer(t)

	body := []byte(`{"query":"otsi masinõpet","filters":{"credits":"99"}}`)
	req := httptest.NewRequest("POST", "/api/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Matches) != 0 {
		t.Errorf("matches = %+v", resp.Matches)
	}
}

func TestSearchEndpointMissingQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/search", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	body := []byte(`{"query":"q","rating":"good","context_codes":["LTAT.02"]}`)
	req := httptest.NewRequest("POST", "/api/feedback", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	entries, err := store.FeedbackEntries(context.Background(), 0)
	if err != nil {
		t.Fatalf("FeedbackEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Rating != "good" {
		t.Errorf("entries = %+v", entries)
	}

	// Missing rating is rejected.
	req = httptest.NewRequest("POST", "/api/feedback", strings.NewReader(`{"query":"q"}`))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	if err := store.LogAttempt(ctx, attemptlog.Attempt{
		Query: "q", Stage: attemptlog.StageMetaFilter, Status: attemptlog.StatusBad,
		Details: map[string]any{"reason": "0 courses after filters"},
	}); err != nil {
		t.Fatalf("LogAttempt: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/report", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var summary struct {
		TotalAttempts   int            `json:"TotalAttempts"`
		BadCount        int            `json:"BadCount"`
		FailuresByStage map[string]int `json:"FailuresByStage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if summary.TotalAttempts != 1 || summary.BadCount != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.FailuresByStage["meta_filter"] != 1 {
		t.Errorf("failures = %v", summary.FailuresByStage)
	}
}
