package model

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat is a direct or group conversation stored in the chats collection.
type Chat struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	IsGroup       bool                `json:"isGroup" bson:"is_group"`
	Name          string              `json:"name,omitempty" bson:"name,omitempty"`
	Participants  []string            `json:"participants" bson:"participants"`
	Admins        []string            `json:"admins" bson:"admins"`
	PairKey       string              `json:"-" bson:"pair_key,omitempty"` // direct chats only, unique
	LastMessageID *primitive.ObjectID `json:"lastMessageId,omitempty" bson:"last_message_id,omitempty"`
	CreatedAt     time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time           `json:"updatedAt" bson:"updated_at"`
}

// ChatRef is the chat summary attached to outbound and pending messages.
type ChatRef struct {
	ID      primitive.ObjectID `json:"id" bson:"_id"`
	IsGroup bool               `json:"isGroup" bson:"is_group"`
	Name    string             `json:"name,omitempty" bson:"name,omitempty"`
}

func (c *Chat) Ref() ChatRef {
	return ChatRef{ID: c.ID, IsGroup: c.IsGroup, Name: c.Name}
}

// Clone returns a deep copy so callers can mutate slices freely.
func (c *Chat) Clone() *Chat {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.Admins = append([]string(nil), c.Admins...)
	if c.LastMessageID != nil {
		id := *c.LastMessageID
		cp.LastMessageID = &id
	}
	return &cp
}

// PairKey identifies the direct chat between two users regardless of order.
func PairKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// UniqueIDs drops empty and repeated ids while keeping first-seen order.
func UniqueIDs(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Contains reports whether id is present in set.
func Contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
