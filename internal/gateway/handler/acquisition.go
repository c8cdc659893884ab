package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"deckshot/internal/gateway/service/progress"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ProgressSource exposes tracked acquisitions.
type ProgressSource interface {
	Get(id string) (progress.Snapshot, bool)
	Subscribe(ctx context.Context, id string) (progress.Snapshot, <-chan progress.Event, error)
}

type AcquisitionHandler struct {
	source ProgressSource
	logger *zap.Logger
}

func NewAcquisitionHandler(source ProgressSource, logger *zap.Logger) *AcquisitionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcquisitionHandler{source: source, logger: logger.Named("acquisition_handler")}
}

const (
	watchWriteWait = 10 * time.Second
	watchPongWait  = 60 * time.Second
	watchPingEvery = (watchPongWait * 9) / 10
)

// Origins are already enforced by middleware.CORS.
var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchOutbound struct {
	Type     string             `json:"type"`
	Snapshot *progress.Snapshot `json:"snapshot,omitempty"`
	Event    *progress.Event    `json:"event,omitempty"`
}

// HandleGet serves GET /acquisitions/{id}.
func (h *AcquisitionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.source.Get(strings.TrimSpace(r.PathValue("id")))
	if !ok {
		writeMessage(w, h.logger, http.StatusNotFound, "Acquisition not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snap)
}

// HandleWatch streams step events over a websocket: one "snapshot" message,
// then an "event" message per step, then a normal close once the
// acquisition is terminal.
func (h *AcquisitionHandler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snap, events, err := h.source.Subscribe(ctx, id)
	if errors.Is(err, progress.ErrUnknownAcquisition) {
		writeMessage(w, h.logger, http.StatusNotFound, "Acquisition not found")
		return
	}
	if err != nil {
		writeMessage(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(watchPongWait)); err != nil {
		h.logger.Warn("watch set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})

	// Inbound frames are ignored; reading keeps pongs and close frames flowing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(out watchOutbound) error {
		if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(out)
	}

	if err := write(watchOutbound{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}

	ticker := time.NewTicker(watchPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "acquisition finished"),
					time.Now().Add(watchWriteWait))
				return
			}
			if err := write(watchOutbound{Type: "event", Event: &ev}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
