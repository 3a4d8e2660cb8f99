package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/campusrag/advisor/internal/filter"
	"github.com/campusrag/advisor/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type    string            `json:"type"` // "message"
	Content string            `json:"content"`
	Filters filter.Predicates `json:"filters"`
}

// chatResponse is the outgoing WebSocket message format. "chunk" carries one
// streamed fragment; "done" closes the turn with the match list and usage;
// "error" reports a failed turn.
type chatResponse struct {
	Type           string        `json:"type"` // "chunk", "done" or "error"
	Content        string        `json:"content,omitempty"`
	Matches        []searchMatch `json:"matches,omitempty"`
	HistoryCleared bool          `json:"history_cleared,omitempty"`
	InputTokens    int           `json:"input_tokens,omitempty"`
	OutputTokens   int           `json:"output_tokens,omitempty"`
	UsageEstimated bool          `json:"usage_estimated,omitempty"`
	Cost           float64       `json:"cost,omitempty"`
}

// handleChat runs one chat session per WebSocket connection. Turns are
// processed sequentially in the order messages arrive.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sess := session.New()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(conn, "invalid message format")
			continue
		}
		if req.Type != "message" {
			s.sendError(conn, "unknown message type: "+req.Type)
			continue
		}
		if req.Content == "" {
			s.sendError(conn, "content is required")
			continue
		}

		s.handleChatTurn(conn, r, sess, req)
		sess.Rendered()
	}
}

func (s *Server) handleChatTurn(conn *websocket.Conn, r *http.Request, sess *session.Session, req chatRequest) {
	result, err := s.engine.HandleMessage(r.Context(), sess, req.Content, req.Filters, func(fragment string) {
		s.send(conn, chatResponse{Type: "chunk", Content: fragment})
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoCoursesMatch):
			s.sendError(conn, "no courses match the active filters")
		case errors.Is(err, session.ErrEmptyMessage):
			s.sendError(conn, "content is required")
		default:
			log.Printf("server: chat turn: %v", err)
			s.sendError(conn, "processing failed")
		}
		return
	}

	done := chatResponse{
		Type:           "done",
		Content:        result.Response,
		Matches:        make([]searchMatch, 0, len(result.Matches)),
		HistoryCleared: result.HistoryCleared,
		InputTokens:    result.Usage.InputTokens,
		OutputTokens:   result.Usage.OutputTokens,
		UsageEstimated: result.UsageEstimated,
		Cost:           result.Cost,
	}
	for _, m := range result.Matches {
		done.Matches = append(done.Matches, searchMatch{
			ID:    m.Doc.ID,
			Code:  m.Doc.Code,
			Score: m.Score,
		})
	}
	s.send(conn, done)
}

func (s *Server) send(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	s.send(conn, chatResponse{Type: "error", Content: message})
}
