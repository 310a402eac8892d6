package event

import (
	"encoding/json"
	"strings"
	"time"

	"Chatline/internal/apperror"
	"Chatline/internal/model"
)

// WsEvent is the envelope used in both directions on the socket.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// -----------------------------------------------------------------------------
// Inbound payloads
// -----------------------------------------------------------------------------

type SendDirectMessage struct {
	RecipientID string            `json:"recipientId"`
	Content     string            `json:"content"`
	ContentType model.ContentType `json:"contentType"`
}

func (p *SendDirectMessage) Validate() error {
	if p.RecipientID == "" {
		return apperror.Validation("recipientId is required.")
	}
	return validateContent(p.Content, p.ContentType)
}

type SendGroupMessage struct {
	GroupID     string            `json:"groupId"`
	Content     string            `json:"content"`
	ContentType model.ContentType `json:"contentType"`
}

func (p *SendGroupMessage) Validate() error {
	if p.GroupID == "" {
		return apperror.Validation("groupId is required.")
	}
	return validateContent(p.Content, p.ContentType)
}

type MessageSeen struct {
	MessageID string `json:"messageId"`
}

func (p *MessageSeen) Validate() error {
	if p.MessageID == "" {
		return apperror.Validation("messageId is required.")
	}
	return nil
}

type AddParticipants struct {
	GroupID        string   `json:"groupId"`
	ParticipantIDs []string `json:"participantIds"`
}

func (p *AddParticipants) Validate() error {
	if p.GroupID == "" {
		return apperror.Validation("groupId is required.")
	}
	if len(model.UniqueIDs(p.ParticipantIDs...)) == 0 {
		return apperror.Validation("participantIds is required.")
	}
	return nil
}

// GroupTarget is the payload of remove-user, make-admin and remove-admin.
type GroupTarget struct {
	GroupID      string `json:"groupId"`
	TargetUserID string `json:"targetUserId"`
}

func (p *GroupTarget) Validate() error {
	if p.GroupID == "" || p.TargetUserID == "" {
		return apperror.Validation("groupId and targetUserId are required.")
	}
	return nil
}

// RemoveUser, MakeAdmin and RemoveAdmin share a shape but stay distinct types
// so a decoded event can be switched on.
type (
	RemoveUser  struct{ GroupTarget }
	MakeAdmin   struct{ GroupTarget }
	RemoveAdmin struct{ GroupTarget }
)

type validator interface {
	Validate() error
}

// Decode turns an envelope into one of the typed inbound payloads above.
// Unknown events and malformed or incomplete payloads are validation errors.
func Decode(ev WsEvent) (any, error) {
	var payload validator
	switch ev.Event {
	case EventSendDirectMessage:
		payload = &SendDirectMessage{}
	case EventSendGroupMessage:
		payload = &SendGroupMessage{}
	case EventMessageSeen:
		payload = &MessageSeen{}
	case EventAddParticipants:
		payload = &AddParticipants{}
	case EventRemoveUser:
		payload = &RemoveUser{}
	case EventMakeAdmin:
		payload = &MakeAdmin{}
	case EventRemoveAdmin:
		payload = &RemoveAdmin{}
	default:
		return nil, apperror.Validation("Unknown event: " + ev.Event)
	}

	if len(ev.Payload) == 0 {
		return nil, apperror.Validation("Payload is required.")
	}
	if err := json.Unmarshal(ev.Payload, payload); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, "Malformed payload.")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return payload, nil
}

func validateContent(content string, contentType model.ContentType) error {
	if strings.TrimSpace(content) == "" {
		return apperror.Validation("content is required.")
	}
	if contentType != "" && !contentType.Valid() {
		return apperror.Validation("Unsupported content type.")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Outbound payloads
// -----------------------------------------------------------------------------

// MessagePayload is what recipients receive for a new or replayed message.
// DeliveredTo is always null on the wire; receipt state reaches the sender
// through message-delivered and message-seen events instead.
type MessagePayload struct {
	ID          string            `json:"id"`
	ChatID      string            `json:"chatId"`
	Chat        model.ChatRef     `json:"chat"`
	Sender      model.Profile     `json:"sender"`
	Content     string            `json:"content"`
	ContentType model.ContentType `json:"contentType"`
	CreatedAt   time.Time         `json:"createdAt"`
	DeliveredTo []string          `json:"deliveredTo"`
}

func NewMessagePayload(msg *model.Message, chat model.ChatRef, sender model.Profile) MessagePayload {
	return MessagePayload{
		ID:          msg.ID.Hex(),
		ChatID:      msg.ChatID.Hex(),
		Chat:        chat,
		Sender:      sender,
		Content:     msg.Content,
		ContentType: msg.ContentType,
		CreatedAt:   msg.CreatedAt,
	}
}

// ReceiptPayload backs message-delivered and message-seen.
type ReceiptPayload struct {
	MessageID   string `json:"messageId"`
	RecipientID string `json:"recipientId"`
}

// NotificationPayload backs the group membership notifications.
type NotificationPayload struct {
	GroupID string `json:"groupId"`
	Message string `json:"message"`
}

type ErrorPayload struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// NewErrorPayload maps err onto the status and text a client may see.
func NewErrorPayload(err error) ErrorPayload {
	return ErrorPayload{
		Status:  apperror.KindOf(err).Status(),
		Message: apperror.PublicMessage(err),
	}
}

// Encode wraps payload in the envelope.
func Encode(name string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WsEvent{Event: name, Payload: raw})
}
