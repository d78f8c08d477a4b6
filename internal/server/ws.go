package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sitegen/internal/progress"
)

const (
	progressWSWriteWait = 10 * time.Second
	progressWSPongWait  = 60 * time.Second
	progressWSPingEvery = (progressWSPongWait * 9) / 10
)

var progressWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type progressWSOutbound struct {
	Type     string             `json:"type"`
	RunID    string             `json:"runId"`
	Progress *progress.Progress `json:"progress,omitempty"`
}

// StreamGeneration pushes every progress change of a run over a websocket
// and closes the connection once the run reaches a terminal state.
func (h *Handler) StreamGeneration(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("runID"))
	updates, stop, ok := h.runs.Subscribe(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	defer stop()

	conn, err := progressWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(progressWSPongWait)); err != nil {
		h.log.Warn("progress ws set read deadline failed", "run_id", runID, "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(progressWSPongWait))
	})

	// The reader only drains control frames and notices a closed peer.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressWSPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(progressWSWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(progressWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(progressWSOutbound{Type: "progress", RunID: runID, Progress: &p}); err != nil {
				h.log.Debug("progress ws write failed", "run_id", runID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(progressWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
