package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"egl-chat-backend/internal/relay"
	"egl-chat-backend/internal/types"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.RootResponse{Message: "Engineer Growth Lab API"})
}

// handleChatOptions answers a bare OPTIONS /chat. Browser preflights carrying
// Access-Control-Request-Method are handled by the CORS layer before this.
func (s *Server) handleChatOptions(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req types.ChatRequest
	if err := decodeBody(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusBadRequest, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	model, err := relay.ParseModel(req.Model)
	if err != nil {
		s.writeRelayError(w, err)
		return
	}

	reply, err := s.dispatcher.Dispatch(r.Context(), relay.Request{Message: req.Message, Model: model})
	if err != nil {
		s.logger.Warn("chat failed",
			zap.String("model", model.String()),
			zap.Stringer("kind", relay.KindOf(err)),
			zap.Error(err))
		s.writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ChatResponse{Response: reply})
}

// decodeBody reads exactly one JSON value; anything after it but whitespace is rejected.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
