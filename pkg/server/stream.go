package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/parchmentlabs/recall/pkg/llm"
)

type sendRequest struct {
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// streamFrame is one unit of a streamed reply, shared by the SSE and
// websocket transports. Exactly one field is set per frame.
type streamFrame struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

func frameFor(chunk *llm.StreamChunk) *streamFrame {
	switch {
	case chunk.IsError():
		return &streamFrame{Error: chunk.Error.Error()}
	case chunk.Finished:
		return &streamFrame{Done: true}
	case chunk.Content != "":
		return &streamFrame{Content: chunk.Content}
	default:
		return nil
	}
}

// handleSend streams a reply as server-sent events. Each event's data is a
// JSON frame; the final frame is {"done":true}.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ChatID == "" || req.Content == "" {
		writeBadRequest(w, "chat_id and content are required")
		return
	}

	stream, err := s.service.SendMessage(r.Context(), req.ChatID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for chunk := range stream {
		frame := frameFor(chunk)
		if frame == nil {
			continue
		}
		data, err := json.Marshal(frame)
		if err != nil {
			debugLog.Errorf("encoding stream frame failed: %v", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// handleWebsocket carries send requests and reply frames over one
// connection. The client writes sendRequest messages; each one is answered
// with a sequence of frames ending in {"done":true} or {"error":...}.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debugLog.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req sendRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debugLog.Warnf("websocket read failed: %v", err)
			}
			return
		}
		if req.ChatID == "" || req.Content == "" {
			if err := conn.WriteJSON(&streamFrame{Error: "chat_id and content are required"}); err != nil {
				return
			}
			continue
		}

		stream, err := s.service.SendMessage(r.Context(), req.ChatID, req.Content)
		if err != nil {
			if writeErr := conn.WriteJSON(&streamFrame{Error: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		for chunk := range stream {
			frame := frameFor(chunk)
			if frame == nil {
				continue
			}
			if err := conn.WriteJSON(frame); err != nil {
				debugLog.Warnf("websocket write failed: %v", err)
				for range stream {
					// drain so the turn still completes in the store
				}
				return
			}
		}
	}
}
