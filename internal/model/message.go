package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
	ContentFile  ContentType = "file"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentImage, ContentVideo, ContentFile:
		return true
	}
	return false
}

// Message is a chat message in the messages collection.
// DeliveredTo and SeenBy only ever grow; SeenBy is a subset of DeliveredTo.
type Message struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ChatID      primitive.ObjectID `json:"chatId" bson:"chat_id"`
	SenderID    string             `json:"senderId" bson:"sender_id"`
	Content     string             `json:"content" bson:"content"`
	ContentType ContentType        `json:"contentType" bson:"content_type"`
	DeliveredTo []string           `json:"deliveredTo" bson:"delivered_to"`
	SeenBy      []string           `json:"seenBy" bson:"seen_by"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
}

// RedactFor hides receipt state from everybody except the sender.
func (m Message) RedactFor(viewerID string) Message {
	if m.SenderID == viewerID {
		return m
	}
	m.DeliveredTo = []string{}
	m.SeenBy = []string{}
	return m
}

// PendingMessage is a message not yet delivered to some user, together with
// the chat it belongs to.
type PendingMessage struct {
	Message
	Chat ChatRef `json:"chat" bson:"-"`
}
