package handler

import (
	"net/http"
	"time"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/service"
	"halaqa-points-api/pkg/response"
)

// LeaderboardHandler serves the lifetime-points ranking.
type LeaderboardHandler struct {
	board *service.Leaderboard
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(board *service.Leaderboard) *LeaderboardHandler {
	return &LeaderboardHandler{board: board}
}

// Top handles GET /leaderboard
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	entries, err := h.board.Top(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, entries)
}

// Stream handles GET /leaderboard/stream
func (h *LeaderboardHandler) Stream(w http.ResponseWriter, r *http.Request) {
	stream, ok := openEventStream(w)
	if !ok {
		return
	}

	updates, push := latest[[]model.LeaderboardEntry]()
	failed := make(chan error, 1)
	stop := h.board.Watch(push, func(err error) { failed <- err })
	defer stop()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case entries := <-updates:
			if err := stream.send("leaderboard", entries); err != nil {
				return
			}
		case <-failed:
			_ = stream.send("error", map[string]string{"message": "live updates stopped, reconnect to resume"})
			return
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
