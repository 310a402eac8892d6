package service

import (
	"context"

	"Chatline/internal/model"
	"Chatline/internal/repo"
)

// PresenceChecker reports whether a user currently holds a live connection.
type PresenceChecker interface {
	IsOnline(userID string) bool
}

// DeliveryTracker owns the sent → delivered → seen progression of messages.
type DeliveryTracker struct {
	store    repo.ChatStore
	presence PresenceChecker
}

func NewDeliveryTracker(store repo.ChatStore, presence PresenceChecker) *DeliveryTracker {
	return &DeliveryTracker{store: store, presence: presence}
}

// InitialDeliveredTo is the sender plus every recipient online right now.
// A recipient that connects a moment later is picked up by pending replay.
func (t *DeliveryTracker) InitialDeliveredTo(senderID string, recipients []string) []string {
	delivered := []string{senderID}
	for _, id := range recipients {
		if id != senderID && t.presence.IsOnline(id) {
			delivered = append(delivered, id)
		}
	}
	return model.UniqueIDs(delivered...)
}

func (t *DeliveryTracker) MarkDelivered(ctx context.Context, messageID, userID string) error {
	return t.store.MarkDelivered(ctx, messageID, userID)
}

// MarkSeen records userID in both seen_by and delivered_to. changed is false
// when userID had already seen the message.
func (t *DeliveryTracker) MarkSeen(ctx context.Context, messageID, userID string) (msg *model.Message, changed bool, err error) {
	return t.store.MarkSeen(ctx, messageID, userID)
}
