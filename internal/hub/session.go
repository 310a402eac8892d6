package hub

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"Chatline/internal/event"
	"Chatline/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const closeReasonReplaced = "session replaced by a newer connection"

// ServeWS upgrades the request, authenticates it from the token query
// parameter and hands the connection to its own session goroutine.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	userID, err := h.verifier.VerifyIdentity(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.logger.Info("rejecting unauthenticated socket",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	c := newClient(userID, conn, h)
	c.setState(StateAuthenticated)
	h.track(c)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writeMessages()
	}()
	go func() {
		defer h.wg.Done()
		h.runSession(c)
	}()
}

func (h *Hub) runSession(c *Client) {
	defer h.disconnect(c)

	if err := h.activate(c); err != nil {
		return
	}
	c.readMessages()
}

// activate moves an authenticated client to Active. The steps run in this
// order: room joins, presence registration, pending replay. Rooms come
// first so a group message can never mark the user delivered before this
// connection is in the room. Only a failed room join aborts the session.
func (h *Hub) activate(c *Client) error {
	groups, err := h.chats.ListUserGroups(h.ctx, c.userID)
	if err != nil {
		c.logger.Error("failed to load groups", zap.Error(err))
		c.CloseWith(websocket.CloseInternalServerErr, "internal server error")
		return err
	}
	for i := range groups {
		h.joinRoom(groups[i].ID.Hex(), c)
	}

	// one connection per user: the newest wins and the old one is closed
	if prev := h.presence.Register(c.userID, c); prev != nil && prev != c {
		c.logger.Info("user reconnected, closing previous connection",
			zap.String("previous_client_id", prev.ID),
		)
		prev.CloseWith(websocket.CloseNormalClosure, closeReasonReplaced)
	}

	if err := h.replayPending(c); err != nil {
		if errors.Is(err, errClientClosed) {
			return err
		}
		c.EmitError(err)
	}

	c.setState(StateActive)
	c.logger.Info("client active", zap.Int("rooms", len(groups)))
	return nil
}

// replayPending sends everything not yet delivered to c's user, oldest first,
// marking each message delivered after it is queued.
func (h *Hub) replayPending(c *Client) error {
	cur, err := h.chats.FindPendingMessages(h.ctx, c.userID)
	if err != nil {
		return err
	}
	defer cur.Close(h.ctx)

	senders := make(map[string]model.Profile)
	replayed := 0
	for cur.Next(h.ctx) {
		pm := cur.Current()

		sender, ok := senders[pm.SenderID]
		if !ok {
			sender = h.chats.Profile(h.ctx, pm.SenderID)
			senders[pm.SenderID] = sender
		}

		name := event.EventSendDirectMessage
		if pm.Chat.IsGroup {
			name = event.EventSendGroupMessage
		}
		if !c.Emit(name, event.NewMessagePayload(&pm.Message, pm.Chat, sender)) {
			return errClientClosed
		}

		messageID := pm.ID.Hex()
		if err := h.chats.MarkDelivered(h.ctx, c.userID, messageID); err != nil {
			return fmt.Errorf("mark %s delivered: %w", messageID, err)
		}
		if sc, ok := h.presence.Lookup(pm.SenderID); ok {
			sc.Emit(event.EventMessageDelivered, event.ReceiptPayload{MessageID: messageID, RecipientID: c.userID})
		}
		replayed++
	}
	if err := cur.Err(); err != nil {
		return err
	}

	if replayed > 0 {
		c.logger.Info("pending messages replayed", zap.Int("count", replayed))
	}
	return nil
}

// disconnect tears a session down: presence (only if still ours), rooms,
// writer.
func (h *Hub) disconnect(c *Client) {
	removed := h.presence.Remove(c.userID, c)
	for _, groupID := range c.roomIDs() {
		h.leaveRoom(groupID, c)
	}
	c.Close()
	h.untrack(c)

	c.logger.Info("client disconnected", zap.Bool("presence_removed", removed))
}
