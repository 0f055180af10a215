// Package server exposes the conversation service over HTTP. Replies
// stream as server-sent events; a websocket endpoint carries the same
// traffic for clients that prefer a single connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/parchmentlabs/recall/pkg/chat"
	"github.com/parchmentlabs/recall/pkg/logging"
	"github.com/parchmentlabs/recall/pkg/store"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("server")
	if err != nil {
		debugLog.Warnf("file logging unavailable, using stderr: %v", err)
	}
}

// Server routes HTTP traffic to the conversation service.
type Server struct {
	service  *chat.Service
	upgrader websocket.Upgrader
}

// New creates a server over the given service.
func New(service *chat.Service) *Server {
	return &Server{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /chats", s.handleList)
	mux.HandleFunc("POST /chats/new", s.handleCreate)
	mux.HandleFunc("GET /chats/{id}", s.handleGet)
	mux.HandleFunc("DELETE /chats/{id}", s.handleDelete)
	mux.HandleFunc("POST /chats/send", s.handleSend)
	mux.HandleFunc("POST /chats/set_context", s.handleSetContext)
	mux.HandleFunc("POST /chats/{id}/fork", s.handleFork)
	mux.HandleFunc("GET /chats/ws", s.handleWebsocket)

	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "recall",
		"status":  "ok",
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.List())
}

type createRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid request body")
		return
	}
	conv := s.service.Create(r.Context(), req.Content)
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := s.service.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type forkRequest struct {
	MessageID string `json:"message_id"`
}

func (s *Server) handleFork(w http.ResponseWriter, r *http.Request) {
	var req forkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.MessageID == "" {
		writeBadRequest(w, "message_id is required")
		return
	}

	fork, err := s.service.Fork(r.PathValue("id"), req.MessageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fork)
}

type setContextRequest struct {
	ChatID string `json:"chat_id"`
	Query  string `json:"query"`

	// SourceChatIDs optionally names the conversations to consolidate;
	// when empty the query drives selection.
	SourceChatIDs []string `json:"source_chat_ids"`
}

func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	var req setContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ChatID == "" || req.Query == "" {
		writeBadRequest(w, "chat_id and query are required")
		return
	}

	mem, err := s.service.SetContext(r.Context(), req.ChatID, req.Query, req.SourceChatIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debugLog.Errorf("encoding response failed: %v", err)
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps service errors onto HTTP statuses: unknown ids are 404,
// invariant violations are 409, everything else is 500.
func writeError(w http.ResponseWriter, err error) {
	var invErr *chat.InvariantError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, chat.ErrMessageNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &invErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		debugLog.Errorf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
