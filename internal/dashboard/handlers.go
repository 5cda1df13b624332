// ABOUTME: Read-only dashboard handlers over shared state and the request log
// ABOUTME: Storage read faults degrade to empty results instead of failing the response

package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/fanout-gateway/internal/store"
)

// StatusRunning is the only status the dashboard reports; a stopped gateway
// does not answer at all.
const StatusRunning = "Running"

// NoWinner replaces an empty winner in /logs.
const NoWinner = "none"

const readyTimeout = 2 * time.Second

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Status                 string    `json:"status"`
	ActiveModels           []string  `json:"active_models"`
	TotalRequestsProcessed uint64    `json:"total_requests_processed"`
	Uptime                 string    `json:"uptime"`
	StartedAt              time.Time `json:"started_at"`
}

// LeaderboardEntry is one row of GET /leaderboard.
type LeaderboardEntry struct {
	Winner   string `json:"winner"`
	WinCount int64  `json:"win_count"`
}

// LeaderboardResponse is the body of GET /leaderboard.
type LeaderboardResponse struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// LogEntry is one row of GET /logs. Latency is in milliseconds.
type LogEntry struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Winner    string    `json:"winner"`
	Response  string    `json:"response"`
	Latency   int64     `json:"latency"`
	CreatedAt time.Time `json:"created_at"`
}

// LogsResponse is the body of GET /logs.
type LogsResponse struct {
	Logs []LogEntry `json:"logs"`
}

// SummaryResponse is the body of GET /summary: everything the dashboard
// renders, with the leaderboard and logs taken from one consistent read.
type SummaryResponse struct {
	Stats       StatsResponse      `json:"stats"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Logs        []LogEntry         `json:"logs"`
}

func (s *server) stats() StatsResponse {
	models := s.state.ActiveModels()
	if models == nil {
		models = []string{}
	}
	return StatsResponse{
		Status:                 StatusRunning,
		ActiveModels:           models,
		TotalRequestsProcessed: s.state.TotalRequests(),
		Uptime:                 s.state.Uptime().Round(time.Second).String(),
		StartedAt:              s.state.StartedAt().UTC(),
	}
}

// handleStats never touches storage.
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats())
}

func (s *server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.state.Store().Leaderboard(r.Context())
	if err != nil {
		s.logger.Warn("leaderboard read failed, serving empty result", "error", err)
		entries = nil
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Leaderboard: toLeaderboard(entries)})
}

func (s *server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.state.Store().RecentRequestLogs(r.Context(), s.recentLimit)
	if err != nil {
		s.logger.Warn("recent logs read failed, serving empty result", "error", err)
		logs = nil
	}
	writeJSON(w, http.StatusOK, LogsResponse{Logs: toLogEntries(logs)})
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	resp := SummaryResponse{
		Stats:       s.stats(),
		Leaderboard: []LeaderboardEntry{},
		Logs:        []LogEntry{},
	}

	agg, err := s.state.Store().ReadAggregates(r.Context(), s.recentLimit)
	if err != nil {
		s.logger.Warn("aggregate read failed, serving empty result", "error", err)
	} else {
		resp.Leaderboard = toLeaderboard(agg.Leaderboard)
		resp.Logs = toLogEntries(agg.Recent)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth returns 200 OK if the server is alive.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 once storage answers and a chat backend is registered.
func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	models := s.state.ActiveModels()
	if len(models) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no chat backends configured"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.state.Store().Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("storage unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d backends)", len(models))
}

func toLeaderboard(entries []store.LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntry{Winner: e.Winner, WinCount: e.WinCount}
	}
	return out
}

func toLogEntries(logs []*store.RequestLog) []LogEntry {
	out := make([]LogEntry, len(logs))
	for i, l := range logs {
		winner := l.Winner
		if winner == "" {
			winner = NoWinner
		}
		out[i] = LogEntry{
			ID:        l.ID,
			Prompt:    l.Prompt,
			Winner:    winner,
			Response:  l.ResponseText,
			Latency:   l.DurationMS,
			CreatedAt: l.CreatedAt.UTC(),
		}
	}
	return out
}

// writeJSON writes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
