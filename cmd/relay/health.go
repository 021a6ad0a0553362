package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/solstat/webhook-relay/internal/gateway"
	"github.com/solstat/webhook-relay/internal/version"
)

// statsSource is satisfied by *gateway.Manager.
type statsSource interface {
	Stats() gateway.Stats
}

type healthResponse struct {
	Status           string       `json:"status"`
	State            string       `json:"state"`
	SessionID        string       `json:"session_id,omitempty"`
	Attempts         int64        `json:"attempts"`
	Backoff          string       `json:"backoff"`
	LastCloseCode    int          `json:"last_close_code,omitempty"`
	LastCloseReason  string       `json:"last_close_reason,omitempty"`
	ConnectedSince   *time.Time   `json:"connected_since,omitempty"`
	Frames           int64        `json:"frames"`
	InvalidFrames    int64        `json:"invalid_frames"`
	DeliveryFailures int64        `json:"delivery_failures"`
	Version          version.Info `json:"version"`
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(src statsSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := src.Stats()

		health := healthResponse{
			Status:           healthStatus(stats.State),
			State:            stats.State.String(),
			SessionID:        stats.SessionID,
			Attempts:         stats.Attempts,
			Backoff:          stats.Backoff.String(),
			LastCloseCode:    stats.LastCloseCode,
			LastCloseReason:  stats.LastCloseReason,
			Frames:           stats.Frames,
			InvalidFrames:    stats.InvalidFrames,
			DeliveryFailures: stats.DeliveryFailures,
			Version:          version.Get(),
		}
		if !stats.ConnectedSince.IsZero() {
			since := stats.ConnectedSince.UTC()
			health.ConnectedSince = &since
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}

func healthStatus(s gateway.State) string {
	switch s {
	case gateway.StateOpen:
		return "healthy"
	case gateway.StateConnecting, gateway.StateClosing:
		return "degraded"
	default:
		return "unhealthy"
	}
}
