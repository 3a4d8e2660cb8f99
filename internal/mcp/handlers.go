package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/filter"
	"github.com/campusrag/advisor/internal/retriever"
	"github.com/campusrag/advisor/internal/session"
)

// handleSearchCourses runs filtered retrieval over the course corpus.
func (s *Server) handleSearchCourses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	k := request.GetInt("k", 0)
	preds := filter.Predicates{
		Credits:  request.GetString("credits", ""),
		Semester: request.GetString("semester", ""),
		Language: request.GetString("language", ""),
		Level:    request.GetString("level", ""),
	}

	matches, err := s.engine.Retrieve(ctx, query, preds, k)
	if errors.Is(err, session.ErrNoCoursesMatch) {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No courses match the filters (%s). Relax a constraint and search again.", preds)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatMatches(matches, s.meta)), nil
}

// handleListFilterValues enumerates the filterable attribute values.
func (s *Server) handleListFilterValues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	values := s.meta.DistinctFilterValues()

	var sb strings.Builder
	sb.WriteString("Available filter values:\n")
	fmt.Fprintf(&sb, "- credits: %s\n", strings.Join(values.Credits, ", "))
	fmt.Fprintf(&sb, "- semesters: %s\n", strings.Join(values.Semesters, ", "))
	fmt.Fprintf(&sb, "- languages: %s\n", strings.Join(values.Languages, ", "))
	fmt.Fprintf(&sb, "- levels: %s\n", strings.Join(values.Levels, ", "))
	return mcp.NewToolResultText(sb.String()), nil
}

// handleGetCourse returns one course's document text plus metadata.
func (s *Server) handleGetCourse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	code := request.GetString("code", "")
	if id == "" && code == "" {
		return mcp.NewToolResultError("either id or code is required"), nil
	}

	var doc *catalog.Document
	if id != "" {
		doc = s.corpus.Get(id)
	} else {
		doc = s.corpus.GetByCode(code)
	}
	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no course found for %q", id+code)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Course %s (%s)\n", doc.Code, doc.ID)
	if course := s.meta.Get(doc.ID); course != nil {
		fmt.Fprintf(&sb, "Credits: %s | Semester: %s | Language: %s | Levels: %s\n",
			orDash(course.Credits), orDash(course.Semester), orDash(course.Language), orDash(course.Levels))
	}
	sb.WriteString("\n")
	sb.WriteString(doc.Text)
	return mcp.NewToolResultText(sb.String()), nil
}

// formatMatches renders retrieval results for agent consumption.
func formatMatches(matches []retriever.Match, meta *catalog.Metadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d course(s):\n", len(matches))

	for i, m := range matches {
		fmt.Fprintf(&sb, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&sb, "Code: %s\n", orDash(m.Doc.Code))
		fmt.Fprintf(&sb, "ID: %s\n", m.Doc.ID)
		fmt.Fprintf(&sb, "Score: %.4f\n", m.Score)
		if course := meta.Get(m.Doc.ID); course != nil {
			fmt.Fprintf(&sb, "Credits: %s | Semester: %s | Language: %s\n",
				orDash(course.Credits), orDash(course.Semester), orDash(course.Language))
		}

		text := m.Doc.Text
		if len([]rune(text)) > 600 {
			text = string([]rune(text)[:600]) + "…"
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
