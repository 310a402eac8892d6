package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"Chatline/internal/apperror"
	"Chatline/internal/db"
	"Chatline/internal/group"
	"Chatline/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a ChatStore kept entirely in process memory. It backs the
// "memory" store driver and the service and hub tests.
type MemoryStore struct {
	mu       sync.Mutex
	chats    map[primitive.ObjectID]*model.Chat
	pairs    map[string]primitive.ObjectID
	messages map[primitive.ObjectID]*model.Message
	order    []primitive.ObjectID // messages in insertion order
	last     time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[primitive.ObjectID]*model.Chat),
		pairs:    make(map[string]primitive.ObjectID),
		messages: make(map[primitive.ObjectID]*model.Message),
	}
}

// now never goes backwards and never repeats, so insertion order and
// created_at order agree.
func (s *MemoryStore) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *MemoryStore) FindOrCreateDirectChat(_ context.Context, userA, userB string) (*model.Chat, error) {
	if err := validatePair(userA, userB); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.PairKey(userA, userB)
	if id, ok := s.pairs[key]; ok {
		return s.chats[id].Clone(), nil
	}

	now := s.now()
	chat := &model.Chat{
		ID:           primitive.NewObjectID(),
		Participants: []string{userA, userB},
		Admins:       []string{},
		PairKey:      key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.chats[chat.ID] = chat
	s.pairs[key] = chat.ID
	return chat.Clone(), nil
}

func (s *MemoryStore) CreateGroup(_ context.Context, admin, name string, participants []string) (*model.Chat, error) {
	if err := validateGroupInput(admin, name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	chat := &model.Chat{
		ID:           primitive.NewObjectID(),
		IsGroup:      true,
		Name:         name,
		Participants: model.UniqueIDs(append([]string{admin}, participants...)...),
		Admins:       []string{admin},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.chats[chat.ID] = chat
	return chat.Clone(), nil
}

func (s *MemoryStore) FindChat(_ context.Context, chatID string) (*model.Chat, error) {
	oid, err := db.ParseID(chatID)
	if err != nil {
		return nil, apperror.Validation("Invalid chat id.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[oid]
	if !ok {
		return nil, apperror.NotFound("Chat not found.")
	}
	return chat.Clone(), nil
}

func (s *MemoryStore) ListUserGroups(_ context.Context, userID string) ([]model.Chat, error) {
	return s.listChats(func(c *model.Chat) bool {
		return c.IsGroup && model.Contains(c.Participants, userID)
	}), nil
}

func (s *MemoryStore) ListUserChats(_ context.Context, userID string) ([]model.Chat, error) {
	return s.listChats(func(c *model.Chat) bool {
		return model.Contains(c.Participants, userID)
	}), nil
}

func (s *MemoryStore) listChats(match func(*model.Chat) bool) []model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Chat{}
	for _, c := range s.chats {
		if match(c) {
			out = append(out, *c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (s *MemoryStore) ApplyGroupChange(_ context.Context, chatID string, change group.Change) (*model.Chat, error) {
	oid, err := db.ParseID(chatID)
	if err != nil {
		return nil, apperror.Validation("Invalid chat id.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.chats[oid]
	if !ok {
		return nil, ErrConflict
	}
	if err := group.Authorize(current, change); err != nil {
		return nil, ErrConflict
	}

	if change.Op == group.OpDelete {
		delete(s.chats, oid)
		return current.Clone(), nil
	}

	next := group.Apply(current, change)
	next.UpdatedAt = s.now()
	s.chats[oid] = next
	return next.Clone(), nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, chatID, senderID, content string, contentType model.ContentType, deliveredTo []string) (*model.Message, error) {
	oid, err := db.ParseID(chatID)
	if err != nil {
		return nil, apperror.Validation("Invalid chat id.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &model.Message{
		ID:          primitive.NewObjectID(),
		ChatID:      oid,
		SenderID:    senderID,
		Content:     content,
		ContentType: contentType,
		DeliveredTo: model.UniqueIDs(append([]string{senderID}, deliveredTo...)...),
		SeenBy:      []string{senderID},
		CreatedAt:   s.now(),
	}
	s.messages[msg.ID] = msg
	s.order = append(s.order, msg.ID)

	if chat, ok := s.chats[oid]; ok {
		id := msg.ID
		chat.LastMessageID = &id
		chat.UpdatedAt = msg.CreatedAt
	}
	return copyMessage(msg), nil
}

func (s *MemoryStore) FindMessage(_ context.Context, messageID string) (*model.Message, error) {
	oid, err := db.ParseID(messageID)
	if err != nil {
		return nil, apperror.Validation("Invalid message id.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[oid]
	if !ok {
		return nil, apperror.NotFound("Message not found.")
	}
	return copyMessage(msg), nil
}

// FindPendingMessages snapshots the pending set at call time.
func (s *MemoryStore) FindPendingMessages(_ context.Context, userID string) (PendingCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []model.PendingMessage
	for _, id := range s.order {
		msg := s.messages[id]
		chat, ok := s.chats[msg.ChatID]
		if !ok || !model.Contains(chat.Participants, userID) || model.Contains(msg.DeliveredTo, userID) {
			continue
		}
		pending = append(pending, model.PendingMessage{Message: *copyMessage(msg), Chat: chat.Ref()})
	}
	return &slicePendingCursor{items: pending}, nil
}

func (s *MemoryStore) History(_ context.Context, chatID string, page int64) (*db.PaginatedResult[model.Message], error) {
	oid, err := db.ParseID(chatID)
	if err != nil {
		return nil, apperror.Validation("Invalid chat id.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var all []model.Message
	for _, id := range s.order {
		if msg := s.messages[id]; msg.ChatID == oid {
			all = append(all, *copyMessage(msg))
		}
	}

	params := db.PaginationParams{Page: page, PageSize: historyPageSize}.Normalize()
	start := (params.Page - 1) * params.PageSize
	end := start + params.PageSize
	total := int64(len(all))
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return db.NewPaginatedResult(all[start:end], total, params), nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, messageID, userID string) error {
	oid, err := db.ParseID(messageID)
	if err != nil {
		return apperror.Validation("Invalid message id.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[oid]
	if !ok {
		return apperror.NotFound("Message not found.")
	}
	msg.DeliveredTo = model.UniqueIDs(append(msg.DeliveredTo, userID)...)
	return nil
}

func (s *MemoryStore) MarkSeen(_ context.Context, messageID, userID string) (*model.Message, bool, error) {
	oid, err := db.ParseID(messageID)
	if err != nil {
		return nil, false, apperror.Validation("Invalid message id.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[oid]
	if !ok {
		return nil, false, apperror.NotFound("Message not found.")
	}
	changed := !model.Contains(msg.SeenBy, userID)
	msg.DeliveredTo = model.UniqueIDs(append(msg.DeliveredTo, userID)...)
	msg.SeenBy = model.UniqueIDs(append(msg.SeenBy, userID)...)
	return copyMessage(msg), changed, nil
}

func copyMessage(m *model.Message) *model.Message {
	cp := *m
	cp.DeliveredTo = append([]string(nil), m.DeliveredTo...)
	cp.SeenBy = append([]string(nil), m.SeenBy...)
	return &cp
}

// slicePendingCursor walks a precomputed list of pending messages.
type slicePendingCursor struct {
	items []model.PendingMessage
	pos   int
	cur   *model.PendingMessage
}

func (c *slicePendingCursor) Next(ctx context.Context) bool {
	if ctx.Err() != nil || c.pos >= len(c.items) {
		return false
	}
	c.cur = &c.items[c.pos]
	c.pos++
	return true
}

func (c *slicePendingCursor) Current() *model.PendingMessage { return c.cur }

func (c *slicePendingCursor) Err() error { return nil }

func (c *slicePendingCursor) Close(context.Context) error { return nil }
