package hub

import (
	"context"
	"fmt"

	"Chatline/internal/event"
	"Chatline/internal/model"

	"go.uber.org/zap"
)

// dispatch decodes ev and runs its handler. Any failure becomes a single
// error event on the originating connection.
func (h *Hub) dispatch(c *Client, ev event.WsEvent) {
	payload, err := event.Decode(ev)
	if err != nil {
		c.EmitError(err)
		return
	}

	ctx := h.ctx
	switch p := payload.(type) {
	case *event.SendDirectMessage:
		err = h.handleSendDirect(ctx, c, p)
	case *event.SendGroupMessage:
		err = h.handleSendGroup(ctx, c, p)
	case *event.MessageSeen:
		err = h.handleMessageSeen(ctx, c, p)
	case *event.AddParticipants:
		err = h.handleAddParticipants(ctx, c, p)
	case *event.RemoveUser:
		err = h.handleRemoveUser(ctx, c, p)
	case *event.MakeAdmin:
		err = h.handleMakeAdmin(ctx, c, p)
	case *event.RemoveAdmin:
		err = h.handleRemoveAdmin(ctx, c, p)
	}

	if err != nil {
		c.EmitError(err)
	}
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

func (h *Hub) handleSendDirect(ctx context.Context, c *Client, p *event.SendDirectMessage) error {
	res, err := h.chats.SendDirect(ctx, c.userID, p.RecipientID, p.Content, p.ContentType)
	if err != nil {
		return err
	}

	payload := event.NewMessagePayload(res.Message, res.Chat.Ref(), res.Sender)
	c.Emit(event.EventSendDirectMessage, payload)
	if rc, ok := h.presence.Lookup(p.RecipientID); ok {
		rc.Emit(event.EventSendDirectMessage, payload)
	}

	if model.Contains(res.Message.DeliveredTo, p.RecipientID) {
		c.Emit(event.EventMessageDelivered, event.ReceiptPayload{
			MessageID:   res.Message.ID.Hex(),
			RecipientID: p.RecipientID,
		})
	}
	return nil
}

func (h *Hub) handleSendGroup(ctx context.Context, c *Client, p *event.SendGroupMessage) error {
	res, err := h.chats.SendGroup(ctx, c.userID, p.GroupID, p.Content, p.ContentType)
	if err != nil {
		return err
	}

	groupID := res.Chat.ID.Hex()
	payload := event.NewMessagePayload(res.Message, res.Chat.Ref(), res.Sender)
	sent := h.publishToRoom(groupID, event.EventSendGroupMessage, payload)

	messageID := res.Message.ID.Hex()
	for _, id := range res.Message.DeliveredTo {
		if id == c.userID {
			continue
		}
		c.Emit(event.EventMessageDelivered, event.ReceiptPayload{MessageID: messageID, RecipientID: id})
	}

	c.logger.Debug("group message published",
		zap.String("group_id", groupID),
		zap.String("message_id", messageID),
		zap.Int("connections", sent),
	)
	return nil
}

func (h *Hub) handleMessageSeen(ctx context.Context, c *Client, p *event.MessageSeen) error {
	msg, changed, err := h.chats.MarkSeen(ctx, c.userID, p.MessageID)
	if err != nil {
		return err
	}
	if !changed || msg.SenderID == c.userID {
		return nil
	}

	if sc, ok := h.presence.Lookup(msg.SenderID); ok {
		sc.Emit(event.EventMessageSeen, event.ReceiptPayload{MessageID: msg.ID.Hex(), RecipientID: c.userID})
	}
	return nil
}

// -----------------------------------------------------------------------------
// Group administration
// -----------------------------------------------------------------------------

func (h *Hub) handleAddParticipants(ctx context.Context, c *Client, p *event.AddParticipants) error {
	res, err := h.chats.AddParticipants(ctx, c.userID, p.GroupID, p.ParticipantIDs)
	if err != nil {
		return err
	}

	h.ParticipantsAdded(res.Chat, res.Added, h.actorName(ctx, c.userID))

	c.logger.Info("participants added",
		zap.String("group_id", res.Chat.ID.Hex()),
		zap.Strings("added", res.Added),
		zap.Strings("existing", res.Existing),
	)
	return nil
}

func (h *Hub) handleRemoveUser(ctx context.Context, c *Client, p *event.RemoveUser) error {
	chat, err := h.chats.RemoveParticipant(ctx, c.userID, p.GroupID, p.TargetUserID)
	if err != nil {
		return err
	}

	h.ParticipantRemoved(chat, p.TargetUserID, h.actorName(ctx, c.userID))
	return nil
}

func (h *Hub) handleMakeAdmin(ctx context.Context, c *Client, p *event.MakeAdmin) error {
	chat, err := h.chats.PromoteAdmin(ctx, c.userID, p.GroupID, p.TargetUserID)
	if err != nil {
		return err
	}
	h.AdminPromoted(chat, p.TargetUserID)
	return nil
}

func (h *Hub) handleRemoveAdmin(ctx context.Context, c *Client, p *event.RemoveAdmin) error {
	chat, err := h.chats.DemoteAdmin(ctx, c.userID, p.GroupID, p.TargetUserID)
	if err != nil {
		return err
	}
	h.AdminDemoted(chat, p.TargetUserID)
	return nil
}

// -----------------------------------------------------------------------------
// Room and notification updates, shared with the REST handlers. Room keys
// always come from the stored chat id, never from client input.
// -----------------------------------------------------------------------------

// ParticipantsAdded joins the live connections of added users to the room and
// tells them who added them.
func (h *Hub) ParticipantsAdded(chat *model.Chat, added []string, actorName string) {
	groupID := chat.ID.Hex()
	text := fmt.Sprintf(event.NotifyUserAdded, chat.Name, actorName)
	for _, id := range added {
		if tc, ok := h.presence.Lookup(id); ok {
			h.joinRoom(groupID, tc)
			tc.Emit(event.EventUserAdded, event.NotificationPayload{GroupID: groupID, Message: text})
		}
	}
}

// ParticipantRemoved takes every connection of userID out of the room.
func (h *Hub) ParticipantRemoved(chat *model.Chat, userID, actorName string) {
	groupID := chat.ID.Hex()
	h.leaveRoomUser(groupID, userID)
	h.notify(userID, event.EventUserRemoved, groupID, fmt.Sprintf(event.NotifyUserRemoved, chat.Name, actorName))
}

func (h *Hub) AdminPromoted(chat *model.Chat, userID string) {
	h.notify(userID, event.EventMadeAdmin, chat.ID.Hex(), fmt.Sprintf(event.NotifyMadeAdmin, chat.Name))
}

func (h *Hub) AdminDemoted(chat *model.Chat, userID string) {
	h.notify(userID, event.EventAdminRemoved, chat.ID.Hex(), fmt.Sprintf(event.NotifyAdminRemoved, chat.Name))
}

func (h *Hub) notify(userID, name, groupID, text string) {
	if tc, ok := h.presence.Lookup(userID); ok {
		tc.Emit(name, event.NotificationPayload{GroupID: groupID, Message: text})
	}
}

func (h *Hub) actorName(ctx context.Context, userID string) string {
	return h.chats.DisplayName(ctx, userID)
}
