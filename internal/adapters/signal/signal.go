// Package signal is the WebSocket transport adapter: it upgrades
// connections, runs the read/write pumps, and feeds decoded frames to the
// coordinator.
package signal

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avolkov/peergate/internal/app"
	"github.com/avolkov/peergate/internal/config"
	"github.com/avolkov/peergate/internal/core"
	"github.com/avolkov/peergate/internal/domain"
)

type Controller struct {
	Coord *app.Coordinator
	cfg   *config.Config
}

func NewController(coord *app.Coordinator, cfg *config.Config) *Controller {
	return &Controller{Coord: coord, cfg: cfg}
}

// wsConn is the per-connection transport endpoint. Outbound frames go
// through a bounded queue; the write pump drains it and finishes with the
// recorded close frame, so an error message enqueued before shutdown still
// reaches the peer ahead of the close.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string
}

func newWSConn(conn *websocket.Conn, buffer int) *wsConn {
	return &wsConn{conn: conn, send: make(chan core.Frame, buffer)}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrPeerUnreachable
	}
	select {
	case c.send <- f:
		return nil
	default:
		return domain.ErrBackpressure
	}
}

// shutdown stops accepting frames and lets the write pump drain what is
// already queued before it emits the close frame. Idempotent.
func (c *wsConn) shutdown(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

func (c *wsConn) closeFrame() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// Close implements core.SignalConnection; used by the coordinator when it
// kicks a slow peer or tears a session down.
func (c *wsConn) Close() {
	c.shutdown(websocket.CloseNormalClosure, "session closed")
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades one signaling connection on the endpoint for topology
// and runs it until close.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context, topology domain.Topology) {
	token := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWSConn(ws, ctl.cfg.SendBuffer)
	peer := ctl.Coord.Connect(conn)
	log.Info().Str("module", "signal").Str("topology", string(topology)).
		Uint64("peer", uint64(peer)).Str("token", token).Msg("new WS connection")

	ws.SetReadLimit(ctl.cfg.ReadLimit)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, peer, topology, conn)
}
