package server

import (
	"context"
	"net/http"
	"time"

	"egl-chat-backend/internal/relay"
	"egl-chat-backend/internal/types"
)

const probeTimeout = 3 * time.Second

// handleHealth always answers 200; "degraded" means at least one backend
// would fail a chat request right now.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status: "ok",
		Local:  s.localHealth(r.Context()),
		Hosted: types.HostedHealth{
			Configured: s.cfg.AnthropicAPIKey != "",
			Model:      s.cfg.AnthropicModel,
		},
	}
	if !resp.Local.Reachable || !resp.Local.ModelInstalled || !resp.Hosted.Configured {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) localHealth(ctx context.Context) types.LocalHealth {
	h := types.LocalHealth{Model: relay.LocalModelID}
	if s.probe == nil {
		h.Error = "local backend probe not configured"
		return h
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	ok, err := s.probe.HasModel(ctx, relay.LocalModelID)
	if err != nil {
		_, h.Error = relay.Translate(err)
		return h
	}
	h.Reachable = true
	h.ModelInstalled = ok
	return h
}
