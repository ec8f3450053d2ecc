package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avolkov/peergate/internal/domain"
	"github.com/avolkov/peergate/internal/protocol"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				// Queue drained after shutdown: finish with the close frame.
				code, reason := c.closeFrame()
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, peer domain.PeerID, topology domain.Topology, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Uint64("peer", uint64(peer)).Msg("readPump closing")
		ctl.Coord.Disconnect(peer)
		c.Close()
		cancel()
	}()

	resetDeadline := func() { _ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.IdleTimeout)) }
	resetDeadline()
	c.conn.SetPongHandler(func(string) error { resetDeadline(); return nil })

	joined := false
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Uint64("peer", uint64(peer)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Uint64("peer", uint64(peer)).Msg("readPump read error")
				return
			}
			resetDeadline()
			if !ctl.handleFrame(peer, topology, c, data, &joined) {
				return
			}
		}
	}
}

// handleFrame dispatches one decoded inbound message. Returns false when
// the connection must stop (protocol violation or join rejection).
func (ctl *Controller) handleFrame(peer domain.PeerID, topology domain.Topology, c *wsConn, data []byte, joined *bool) bool {
	msg, err := protocol.Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Uint64("peer", uint64(peer)).Msg("bad frame")
		ctl.fatal(c, protocol.CodeProtocolError, websocket.CloseUnsupportedData, err.Error())
		return false
	}

	switch msg.Type {
	case protocol.TypeJoin:
		return ctl.handleJoin(peer, topology, c, msg, joined)
	case protocol.TypeSignal:
		if !*joined {
			ctl.fatal(c, protocol.CodeProtocolError, websocket.ClosePolicyViolation, "first message must be join")
			return false
		}
		ctl.Coord.Relay(peer, msg.To, msg.Payload)
		return true
	default:
		ctl.fatal(c, protocol.CodeProtocolError, websocket.CloseUnsupportedData, "unexpected message type")
		return false
	}
}

func (ctl *Controller) handleJoin(peer domain.PeerID, topology domain.Topology, c *wsConn, msg protocol.Message, joined *bool) bool {
	if *joined {
		ctl.fatal(c, protocol.CodeAlreadyJoined, websocket.ClosePolicyViolation, "already joined")
		return false
	}
	if len(msg.SessionID) > ctl.cfg.MaxSessionIDBytes {
		ctl.fatal(c, protocol.CodeSessionIDTooLong, websocket.ClosePolicyViolation, "session id too long")
		return false
	}

	_, err := ctl.Coord.Join(peer, topology, domain.SessionID(msg.SessionID))
	if err == nil {
		*joined = true
		return true
	}

	log.Warn().Err(err).Str("module", "signal").Uint64("peer", uint64(peer)).
		Str("session", msg.SessionID).Msg("join rejected")
	switch {
	case errors.Is(err, domain.ErrSessionFull):
		ctl.fatal(c, protocol.CodeSessionFull, websocket.ClosePolicyViolation, "session full")
	case errors.Is(err, domain.ErrTopologyMismatch):
		ctl.fatal(c, protocol.CodeTopologyMismatch, websocket.ClosePolicyViolation, "session exists with a different topology")
	case errors.Is(err, domain.ErrAlreadyJoined):
		ctl.fatal(c, protocol.CodeAlreadyJoined, websocket.ClosePolicyViolation, "already joined")
	default:
		ctl.fatal(c, protocol.CodeProtocolError, websocket.CloseInternalServerErr, "join failed")
	}
	return false
}

// fatal reports a connection-fatal error and starts shutdown. The error
// message rides the send queue, so it is flushed before the close frame.
func (ctl *Controller) fatal(c *wsConn, code string, closeCode int, reason string) {
	if frame, err := protocol.Encode(protocol.ErrorMessage(code, reason)); err == nil {
		_ = c.TrySend(frame)
	}
	c.shutdown(closeCode, reason)
}
