package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
)

const messagesPath = "/messages/"

// handleSSE opens a legacy SSE session. The first event tells the client where
// to POST its messages; replies to those messages arrive on this stream.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	s.sessions.Store(id, ctx)
	s.streams.CreateStream(id)
	defer func() {
		cancel()
		s.sessions.Delete(id)
		s.streams.RemoveStream(id)
	}()

	logger := s.logger.With(zap.String("sessionID", id))
	logger.Info("SSE session opened")
	defer logger.Info("SSE session closed")

	q := r.URL.Query()
	q.Set("stream", id)
	r.URL.RawQuery = q.Encode()
	s.streams.ServeHTTP(w, r)
}

// sendEndpoint runs once the subscriber is attached to its stream, so the
// endpoint event reaches it without keeping an event log.
func (s *Server) sendEndpoint(id string, _ *sse.Subscriber) {
	s.streams.Publish(id, &sse.Event{
		Event: []byte("endpoint"),
		Data:  []byte(messagesPath + "?session_id=" + id),
	})
}

// handleMessage accepts a JSON-RPC message for an SSE session, replies 202 and
// publishes the response on the session's stream once the call finishes.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	v, ok := s.sessions.Load(id)
	if id == "" || !ok || !s.streams.StreamExists(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	sessionCtx := v.(context.Context)
	s.inflight.Go(func() {
		ctx, cancel := context.WithTimeout(sessionCtx, s.cfg.RequestTimeout)
		defer cancel()
		s.reply(ctx, id, &req)
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) reply(ctx context.Context, id string, req *rpcRequest) {
	resp := s.dispatchRPC(ctx, req)
	if resp == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to encode response", zap.String("sessionID", id), zap.Error(err))
		return
	}
	s.streams.Publish(id, &sse.Event{Event: []byte("message"), Data: data})
}
