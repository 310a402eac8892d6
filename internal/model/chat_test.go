package model

import (
	"reflect"
	"testing"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	if PairKey("b", "a") != PairKey("a", "b") {
		t.Fatal("pair key must not depend on argument order")
	}
	if got := PairKey("u2", "u1"); got != "u1:u2" {
		t.Errorf("PairKey = %q", got)
	}
}

func TestUniqueIDs(t *testing.T) {
	got := UniqueIDs("a", "", "b", "a", "c", "b")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueIDs = %v, want %v", got, want)
	}
}

func TestRedactFor(t *testing.T) {
	msg := Message{
		SenderID:    "alice",
		DeliveredTo: []string{"alice", "bob"},
		SeenBy:      []string{"alice"},
	}

	own := msg.RedactFor("alice")
	if len(own.DeliveredTo) != 2 || len(own.SeenBy) != 1 {
		t.Errorf("sender must see receipts, got %+v", own)
	}

	other := msg.RedactFor("bob")
	if len(other.DeliveredTo) != 0 || len(other.SeenBy) != 0 {
		t.Errorf("non-sender must not see receipts, got %+v", other)
	}
	if len(msg.DeliveredTo) != 2 {
		t.Error("redaction must not mutate the original message")
	}
}

func TestChatCloneIsDeep(t *testing.T) {
	c := &Chat{Participants: []string{"a", "b"}, Admins: []string{"a"}}
	cp := c.Clone()
	cp.Participants[0] = "z"
	cp.Admins = append(cp.Admins, "b")
	if c.Participants[0] != "a" || len(c.Admins) != 1 {
		t.Errorf("clone shares state with original: %+v", c)
	}
}
