package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/desertthunder/plsd/internal/protocol"
)

// HealthPath is where [Health] is mounted.
const HealthPath = "/healthz"

const healthTimeout = 2 * time.Second

// Lister is the part of the playlist service the health check calls.
type Lister interface {
	ListPlaylists(ctx context.Context, ids []uint32) ([]protocol.PlaylistInfo, error)
}

// Health answers 200 while the playlist service responds and 503 otherwise.
type Health struct {
	svc Lister
}

// NewHealth returns a [Health] probing svc.
func NewHealth(svc Lister) *Health {
	return &Health{svc: svc}
}

type healthReport struct {
	Status    string `json:"status"`
	Playlists int    `json:"playlists"`
	Error     string `json:"error,omitempty"`
}

func (h *Health) Routes() []string { return []string{HealthPath} }

func (h *Health) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
	defer cancel()

	report := healthReport{Status: "ok"}
	status := http.StatusOK
	infos, err := h.svc.ListPlaylists(ctx, nil)
	if err != nil {
		report.Status, report.Error = "unavailable", err.Error()
		status = http.StatusServiceUnavailable
	}
	report.Playlists = len(infos)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(report)
}
