package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/types"
)

type feedHealthResponse struct {
	display.FeedHealth
	LastSuccessAgo string `json:"lastSuccessAgo,omitempty"`
}

type dashboardResponse struct {
	display.Snapshot
	Feeds map[types.Feed]feedHealthResponse `json:"feeds"`
	// LastSample is the newest rounded power reading, unset before the first
	// successful realtime poll.
	LastSample *float64 `json:"lastSample"`
}

func (s *Server) buildDashboard(now time.Time) dashboardResponse {
	snap := s.dashboard.Snapshot()
	resp := dashboardResponse{
		Snapshot: snap,
		Feeds:    make(map[types.Feed]feedHealthResponse, len(snap.Feeds)),
	}
	for feed, h := range snap.Feeds {
		fh := feedHealthResponse{FeedHealth: h}
		if !h.LastSuccess.IsZero() {
			fh.LastSuccessAgo = humanize.RelTime(h.LastSuccess, now, "ago", "from now")
		}
		resp.Feeds[feed] = fh
	}
	if power, ok := s.polling.LastSample(); ok {
		resp.LastSample = &power
	}
	return resp
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.buildDashboard(s.now()))
}

type pollingResponse struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleGetPolling(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, pollingResponse{Enabled: s.polling.Enabled()})
}

func (s *Server) handleSetPolling(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Enabled == nil {
		writeJSONError(w, "enabled is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log.Ctx(ctx).InfoContext(ctx, "toggling polling", slog.Bool("enabled", *req.Enabled), slog.String("email", getEmail(r)))
	s.polling.SetEnabled(*req.Enabled)
	writeJSON(w, pollingResponse{Enabled: s.polling.Enabled()})
}
