package service

import (
	"context"
	"sync"
	"testing"

	"Chatline/internal/apperror"
	"Chatline/internal/group"
	"Chatline/internal/model"
	"Chatline/internal/repo"

	"go.uber.org/zap"
)

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresence(ids ...string) *fakePresence {
	p := &fakePresence{online: make(map[string]bool)}
	for _, id := range ids {
		p.online[id] = true
	}
	return p
}

func (p *fakePresence) IsOnline(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[id]
}

func (p *fakePresence) set(id string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[id] = on
}

// conflictStore fails the first n group changes with ErrConflict.
type conflictStore struct {
	*repo.MemoryStore
	mu        sync.Mutex
	conflicts int
}

func (s *conflictStore) ApplyGroupChange(ctx context.Context, chatID string, change group.Change) (*model.Chat, error) {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return nil, repo.ErrConflict
	}
	s.mu.Unlock()
	return s.MemoryStore.ApplyGroupChange(ctx, chatID, change)
}

func newTestService(store repo.ChatStore, presence *fakePresence) *ChatService {
	directory := repo.NewStaticDirectory([]model.User{
		{UserID: "ann", Name: "Ann", Email: "ann@example.com"},
		{UserID: "bob", Name: "Bob", ContactNumber: "555-0101"},
	})
	return NewChatService(store, directory, NewDeliveryTracker(store, presence), zap.NewNop())
}

func pendingFor(t *testing.T, svc *ChatService, userID string) []model.PendingMessage {
	t.Helper()
	ctx := context.Background()
	cur, err := svc.FindPendingMessages(ctx, userID)
	if err != nil {
		t.Fatalf("FindPendingMessages: %v", err)
	}
	defer cur.Close(ctx)

	var out []model.PendingMessage
	for cur.Next(ctx) {
		out = append(out, *cur.Current())
	}
	return out
}

func TestSendDirectToOfflineRecipient(t *testing.T) {
	presence := newFakePresence("ann")
	svc := newTestService(repo.NewMemoryStore(), presence)
	ctx := context.Background()

	res, err := svc.SendDirect(ctx, "ann", "bob", "hi", "")
	if err != nil {
		t.Fatalf("SendDirect: %v", err)
	}
	if res.Message.ContentType != model.ContentText {
		t.Errorf("content type = %q, want text", res.Message.ContentType)
	}
	if len(res.Message.DeliveredTo) != 1 || res.Message.DeliveredTo[0] != "ann" {
		t.Errorf("DeliveredTo = %v, want [ann]", res.Message.DeliveredTo)
	}
	if res.Sender.Name != "Ann" || res.Sender.Contact != "ann@example.com" {
		t.Errorf("sender profile = %+v", res.Sender)
	}
	if got := res.Recipients(); len(got) != 1 || got[0] != "bob" {
		t.Errorf("Recipients = %v", got)
	}

	pending := pendingFor(t, svc, "bob")
	if len(pending) != 1 || pending[0].ID != res.Message.ID {
		t.Fatalf("pending for bob = %+v", pending)
	}
	if err := svc.MarkDelivered(ctx, "bob", res.Message.ID.Hex()); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if left := pendingFor(t, svc, "bob"); len(left) != 0 {
		t.Errorf("pending after delivery = %d", len(left))
	}
}

func TestSendDirectValidation(t *testing.T) {
	svc := newTestService(repo.NewMemoryStore(), newFakePresence())
	ctx := context.Background()

	tests := []struct {
		name        string
		recipient   string
		content     string
		contentType model.ContentType
	}{
		{"empty content", "bob", "  ", model.ContentText},
		{"no recipient", "", "hi", model.ContentText},
		{"self", "ann", "hi", model.ContentText},
		{"bad type", "bob", "hi", "sticker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendDirect(ctx, "ann", tt.recipient, tt.content, tt.contentType)
			if !apperror.Is(err, apperror.KindValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestConcurrentFirstContactSharesOneChat(t *testing.T) {
	svc := newTestService(repo.NewMemoryStore(), newFakePresence("ann", "bob"))
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*SendResult, 2)
	for i, pair := range [][2]string{{"ann", "bob"}, {"bob", "ann"}} {
		wg.Add(1)
		go func(i int, from, to string) {
			defer wg.Done()
			res, err := svc.SendDirect(ctx, from, to, "hello", model.ContentText)
			if err != nil {
				t.Errorf("SendDirect: %v", err)
				return
			}
			results[i] = res
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	if results[0] == nil || results[1] == nil {
		t.FailNow()
	}
	if results[0].Chat.ID != results[1].Chat.ID {
		t.Errorf("two direct chats created: %s, %s", results[0].Chat.ID.Hex(), results[1].Chat.ID.Hex())
	}
}

func TestSendGroupWithPartialPresence(t *testing.T) {
	store := repo.NewMemoryStore()
	presence := newFakePresence("ann", "bob", "cid")
	svc := newTestService(store, presence)
	ctx := context.Background()

	grp, err := svc.CreateGroup(ctx, "ann", " team ", []string{"bob", "cid", "dan", "eve"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if grp.Name != "team" {
		t.Errorf("name = %q", grp.Name)
	}

	res, err := svc.SendGroup(ctx, "ann", grp.ID.Hex(), "standup", model.ContentText)
	if err != nil {
		t.Fatalf("SendGroup: %v", err)
	}
	want := map[string]bool{"ann": true, "bob": true, "cid": true}
	if len(res.Message.DeliveredTo) != len(want) {
		t.Fatalf("DeliveredTo = %v", res.Message.DeliveredTo)
	}
	for _, id := range res.Message.DeliveredTo {
		if !want[id] {
			t.Errorf("unexpected %s in DeliveredTo", id)
		}
	}

	for _, id := range []string{"dan", "eve"} {
		if got := pendingFor(t, svc, id); len(got) != 1 {
			t.Errorf("pending for %s = %d, want 1", id, len(got))
		}
	}
	if got := pendingFor(t, svc, "bob"); len(got) != 0 {
		t.Errorf("pending for online bob = %d", len(got))
	}

	if _, err := svc.SendGroup(ctx, "zed", grp.ID.Hex(), "let me in", model.ContentText); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Errorf("outsider send err = %v", err)
	}
	if _, err := svc.SendGroup(ctx, "ann", "64b7f0c2a1b2c3d4e5f60718", "x", model.ContentText); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("unknown group err = %v", err)
	}
}

func TestMarkSeenKeepsSeenWithinDelivered(t *testing.T) {
	svc := newTestService(repo.NewMemoryStore(), newFakePresence("ann"))
	ctx := context.Background()

	res, _ := svc.SendDirect(ctx, "ann", "bob", "hi", model.ContentText)
	id := res.Message.ID.Hex()

	var msg *model.Message
	for i := 0; i < 3; i++ {
		var changed bool
		var err error
		msg, changed, err = svc.MarkSeen(ctx, "bob", id)
		if err != nil {
			t.Fatalf("MarkSeen: %v", err)
		}
		if changed != (i == 0) {
			t.Errorf("attempt %d changed = %v", i, changed)
		}
	}
	if len(msg.SeenBy) != 2 || len(msg.DeliveredTo) != 2 {
		t.Errorf("receipts after repeated seen = %v / %v", msg.SeenBy, msg.DeliveredTo)
	}
	for _, s := range msg.SeenBy {
		if !model.Contains(msg.DeliveredTo, s) {
			t.Errorf("%s seen but not delivered", s)
		}
	}

	if _, _, err := svc.MarkSeen(ctx, "cid", id); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Errorf("outsider MarkSeen err = %v", err)
	}
	if _, _, err := svc.MarkSeen(ctx, "bob", "64b7f0c2a1b2c3d4e5f60718"); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("unknown message err = %v", err)
	}
}

func TestGroupAdministration(t *testing.T) {
	svc := newTestService(repo.NewMemoryStore(), newFakePresence())
	ctx := context.Background()

	grp, _ := svc.CreateGroup(ctx, "ann", "team", []string{"bob", "cid"})
	id := grp.ID.Hex()

	if _, err := svc.RemoveParticipant(ctx, "bob", id, "cid"); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Errorf("non-admin remove err = %v", err)
	}

	added, err := svc.AddParticipants(ctx, "ann", id, []string{"bob", "dan", "dan"})
	if err != nil {
		t.Fatalf("AddParticipants: %v", err)
	}
	if len(added.Added) != 1 || added.Added[0] != "dan" || len(added.Existing) != 1 {
		t.Errorf("add result = %+v", added)
	}

	if _, err := svc.PromoteAdmin(ctx, "ann", id, "bob"); err != nil {
		t.Fatalf("PromoteAdmin: %v", err)
	}
	chat, err := svc.DemoteAdmin(ctx, "bob", id, "ann")
	if err != nil {
		t.Fatalf("DemoteAdmin: %v", err)
	}
	if len(chat.Admins) != 1 || chat.Admins[0] != "bob" {
		t.Errorf("admins = %v", chat.Admins)
	}
	if _, err := svc.DemoteAdmin(ctx, "ann", id, "bob"); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Errorf("demoted admin acting err = %v", err)
	}
	if _, err := svc.DemoteAdmin(ctx, "bob", id, "bob"); !apperror.Is(err, apperror.KindInvariantViolation) {
		t.Errorf("last admin demote err = %v", err)
	}
	if _, err := svc.RemoveParticipant(ctx, "bob", id, "zed"); !apperror.Is(err, apperror.KindInvalidTarget) {
		t.Errorf("remove stranger err = %v", err)
	}

	renamed, err := svc.RenameGroup(ctx, "bob", id, "  crew ")
	if err != nil || renamed.Name != "crew" {
		t.Fatalf("RenameGroup = %+v, %v", renamed, err)
	}

	deleted, err := svc.DeleteGroup(ctx, "bob", id)
	if err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if deleted.Name != "crew" {
		t.Errorf("deleted snapshot name = %q", deleted.Name)
	}
	if _, err := svc.GroupDetails(ctx, "bob", id); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("details after delete err = %v", err)
	}
}

func TestGroupChangeRetriesOnConflict(t *testing.T) {
	store := &conflictStore{MemoryStore: repo.NewMemoryStore(), conflicts: maxChangeAttempts - 1}
	svc := newTestService(store, newFakePresence())
	ctx := context.Background()

	grp, _ := svc.CreateGroup(ctx, "ann", "team", []string{"bob"})
	if _, err := svc.PromoteAdmin(ctx, "ann", grp.ID.Hex(), "bob"); err != nil {
		t.Fatalf("PromoteAdmin after conflicts: %v", err)
	}

	store.conflicts = maxChangeAttempts
	if _, err := svc.RenameGroup(ctx, "ann", grp.ID.Hex(), "x"); !apperror.Is(err, apperror.KindInternal) {
		t.Errorf("exhausted retries err = %v, want internal", err)
	}
}

func TestHistoryIsRedactedForOthers(t *testing.T) {
	svc := newTestService(repo.NewMemoryStore(), newFakePresence("ann", "bob"))
	ctx := context.Background()

	res, _ := svc.SendDirect(ctx, "ann", "bob", "hi", model.ContentText)
	chatID := res.Chat.ID.Hex()

	own, err := svc.History(ctx, "ann", chatID, 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(own.Data) != 1 || len(own.Data[0].DeliveredTo) != 2 {
		t.Errorf("sender view = %+v", own.Data)
	}

	other, _ := svc.History(ctx, "bob", chatID, 1)
	if len(other.Data[0].DeliveredTo) != 0 || len(other.Data[0].SeenBy) != 0 {
		t.Errorf("recipient view not redacted: %+v", other.Data[0])
	}

	if _, err := svc.History(ctx, "cid", chatID, 1); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Errorf("outsider history err = %v", err)
	}
}

func TestGroupDetailsResolvesProfiles(t *testing.T) {
	svc := newTestService(repo.NewMemoryStore(), newFakePresence())
	ctx := context.Background()

	grp, _ := svc.CreateGroup(ctx, "ann", "team", []string{"bob", "ghost"})
	details, err := svc.GroupDetails(ctx, "bob", grp.ID.Hex())
	if err != nil {
		t.Fatalf("GroupDetails: %v", err)
	}
	if len(details.Participants) != 3 {
		t.Fatalf("participants = %+v", details.Participants)
	}
	if details.Participants[1].Contact != "555-0101" {
		t.Errorf("bob contact = %q", details.Participants[1].Contact)
	}
	if details.Participants[2].UserID != "ghost" || details.Participants[2].Name != "" {
		t.Errorf("unknown user profile = %+v", details.Participants[2])
	}
}

func TestInitialDeliveredToSnapshot(t *testing.T) {
	presence := newFakePresence("bob")
	tracker := NewDeliveryTracker(repo.NewMemoryStore(), presence)

	got := tracker.InitialDeliveredTo("ann", []string{"bob", "cid", "ann"})
	if len(got) != 2 || got[0] != "ann" || got[1] != "bob" {
		t.Errorf("InitialDeliveredTo = %v", got)
	}

	presence.set("cid", true)
	if got := tracker.InitialDeliveredTo("ann", []string{"cid"}); len(got) != 2 {
		t.Errorf("after cid connects = %v", got)
	}
}
