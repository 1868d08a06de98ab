package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/division-console/internal/models"
	"github.com/noah-isme/division-console/pkg/websocket"
)

type snapshotSource interface {
	Snapshot() models.AppStateSnapshot
}

// StreamHandler upgrades console connections and subscribes them to deletion updates.
type StreamHandler struct {
	hub      *websocket.Hub
	state    snapshotSource
	upgrader gorilla.Upgrader
	logger   *zap.Logger
}

// NewStreamHandler constructs the handler. An empty origin list accepts any origin.
func NewStreamHandler(hub *websocket.Hub, state snapshotSource, allowedOrigins []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}
	return &StreamHandler{
		hub:    hub,
		state:  state,
		logger: logger,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[strings.ToLower(strings.TrimRight(origin, "/"))]
				return ok
			},
		},
	}
}

// Deletions godoc
// @Summary Live deletion progress
// @Description WebSocket stream. The first message is the app.state snapshot, followed by deletion.progress and division.refresh messages.
// @Tags Deletions
// @Param token query string false "Bearer token when the Authorization header cannot be set"
// @Success 101
// @Router /ws/deletions [get]
func (h *StreamHandler) Deletions(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(h.hub, conn)
	if message, err := websocket.Encode(websocket.TypeAppState, h.state.Snapshot()); err == nil {
		client.Queue(message)
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
