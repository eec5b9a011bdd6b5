package routes

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/middleware"
	"github.com/vibbin/vibbin/internal/relay"
	"github.com/vibbin/vibbin/internal/signaling"
	"golang.org/x/net/websocket"
)

// wsConn is one client's signaling websocket. Writes come from the read loop of this connection
// and from the relay acting on other users' frames, so they are serialized.
type wsConn struct {
	ws     *websocket.Conn
	userId string

	writeMu sync.Mutex
}

func (c *wsConn) Send(msg signaling.ServerMessage) error {
	frame, err := signaling.EncodeServer(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return websocket.Message.Send(c.ws, string(frame))
}

// SignalWS binds the authenticated user to the websocket and feeds its frames to the relay until
// the client goes away.
func (h *RouteHandler) SignalWS(ws *websocket.Conn) {
	user := middleware.GetUserWS(ws)
	if user == nil {
		ws.Close()
		return
	}

	// the server's read timeout would otherwise survive the hijack and kill idle connections
	if err := ws.SetDeadline(time.Time{}); err != nil {
		logrus.Warnf("error clearing ws deadline: %v", err)
	}

	userId := user.Id.String()
	conn := &wsConn{ws: ws, userId: userId}
	log := logrus.WithFields(logrus.Fields{"user": userId, "username": user.Username, "remote": ws.Request().RemoteAddr})
	ctx := context.WithoutCancel(ws.Request().Context())

	if first := h.presence.Register(userId, conn); first {
		log.Info("user online")
		h.broadcastStatus(ctx, userId, true)
	} else {
		log.Debug("additional connection")
	}

	defer func() {
		if cErr := ws.Close(); cErr != nil {
			log.Debugf("error closing ws during defer: %v", cErr)
		}
		if last := h.presence.Unregister(userId, conn); last {
			ended := h.relay.Disconnect(ctx, userId)
			if err := h.store.TouchLastSeen(ctx, userId, time.Now()); err != nil {
				log.Error(err)
			}
			h.broadcastStatus(ctx, userId, false)
			log.WithField("calls_ended", ended).Info("user offline")
		}
	}()

	h.readForever(ctx, ws, relay.Peer{UserID: userId, Conn: conn}, log)
}

// readForever decodes frames until the websocket is closed or fails, handing each to the relay in
// arrival order.
func (h *RouteHandler) readForever(ctx context.Context, ws *websocket.Conn, from relay.Peer, log *logrus.Entry) {
	for {
		var frame []byte
		if err := websocket.Message.Receive(ws, &frame); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("error reading from ws: %v", err)
			}
			return
		}

		msg, err := signaling.DecodeClient(frame)
		if err != nil {
			log.Warnf("dropping frame: %v", err)
			continue
		}

		err = h.relay.Handle(ctx, from, msg)
		switch {
		case err == nil:
		case errors.Is(err, relay.ErrStaleAction):
			log.WithField("event", msg.ClientEvent()).Debug("stale call action ignored")
		default:
			log.WithField("event", msg.ClientEvent()).Infof("call action failed: %v", err)
		}
	}
}

// broadcastStatus tells the user's online friends about a presence change
func (h *RouteHandler) broadcastStatus(ctx context.Context, userId string, online bool) {
	friendIds, err := h.store.FriendIds(ctx, userId)
	if err != nil {
		logrus.Errorf("error getting friends for status update: %v", err)
		return
	}
	status := signaling.UserStatus{UserID: userId, IsOnline: online}
	if !online {
		now := time.Now().UTC()
		status.LastSeen = &now
	}
	for _, id := range friendIds {
		h.presence.Deliver(id, status)
	}
}
