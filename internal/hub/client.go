package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"Chatline/internal/apperror"
	"Chatline/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ClientList map[*Client]bool

// Session states
const (
	StateConnecting    = "connecting"
	StateAuthenticated = "authenticated"
	StateActive        = "active"
	StateClosed        = "closed"
)

type Client struct {
	ID          string
	userID      string
	conn        *websocket.Conn
	hub         *Hub
	egress      chan event.WsEvent
	connectedAt time.Time
	logger      *zap.Logger

	state   string
	stateMu sync.RWMutex

	rooms   map[string]struct{}
	roomsMu sync.Mutex

	// cancel stops the writer; egress itself is never closed
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

var (
	// tuning parameters
	writeWait      = 10 * time.Second    // time allowed to write a message to the peer
	pongWait       = 60 * time.Second    // time allowed to read the next pong message from the peer
	pingInterval   = (pongWait * 9) / 10 // send pings to peer with this period
	maxMessageSize = 64 * 1024           // max inbound message size (64KB)
	sendBufSize    = 256                 // per-connection outbound buffer size
	sendTimeout    = 2 * time.Second     // timeout for enqueuing outbound messages
	kickOnFull     = true                // when true, disconnect client when egress is full
)

var errClientClosed = errors.New("client closed")

func newClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(h.ctx)
	id := uuid.New().String()

	return &Client{
		ID:          id,
		userID:      userID,
		conn:        conn,
		hub:         h,
		egress:      make(chan event.WsEvent, sendBufSize),
		connectedAt: time.Now().UTC(),
		logger:      h.logger.With(zap.String("client_id", id), zap.String("user_id", userID)),
		state:       StateConnecting,
		rooms:       make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *Client) UserID() string { return c.userID }

func (c *Client) State() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) setState(state string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = state
}

func (c *Client) readMessages() {
	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Debug("client disconnected")
				return
			}

			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseInternalServerErr,
				websocket.CloseProtocolError,
			) {
				c.logger.Warn("unexpected close", zap.Error(err))
				return
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.logger.Info("client timed out - closing connection")
				return
			}

			c.logger.Debug("read loop ended", zap.Error(err))
			return
		}

		var ev event.WsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.EmitError(apperror.Wrap(apperror.KindValidation, err, "Malformed event."))
			continue
		}

		// Events from one connection are handled in arrival order.
		c.hub.dispatch(c, ev)
	}
}

func (c *Client) writeMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
		c.logger.Debug("writer exiting")
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Send enqueues ev for the writer. It reports false when the client is closed
// or its buffer stayed full for sendTimeout; a saturated client is closed.
func (c *Client) Send(ev event.WsEvent) bool {
	if c.ctx.Err() != nil {
		return false
	}

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case c.egress <- ev:
		return true
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		c.logger.Warn("egress full, dropping event", zap.String("event", ev.Event))
		if kickOnFull {
			c.CloseWith(websocket.CloseTryAgainLater, "too slow")
		}
		return false
	}
}

// Emit marshals payload into an envelope named name and sends it.
func (c *Client) Emit(name string, payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to marshal event", zap.String("event", name), zap.Error(err))
		return false
	}
	return c.Send(event.WsEvent{Event: name, Payload: raw})
}

// EmitError reports err to this connection as an error event.
func (c *Client) EmitError(err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		c.logger.Error("event failed", zap.Error(err))
	} else {
		c.logger.Debug("event rejected", zap.Error(err))
	}
	c.Emit(event.EventError, event.NewErrorPayload(err))
}

// CloseWith sends a close frame with code and reason, then closes the client.
func (c *Client) CloseWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("close frame not sent", zap.Error(err))
	}
	c.Close()
}

// Close stops the writer, which closes the socket and so ends the reader.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		c.stateMu.Lock()
		c.state = StateClosed
		c.stateMu.Unlock()
	})
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	return c.ctx.Err() != nil
}

func (c *Client) addRoom(groupID string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	c.rooms[groupID] = struct{}{}
}

func (c *Client) removeRoom(groupID string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	delete(c.rooms, groupID)
}

func (c *Client) roomIDs() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}
