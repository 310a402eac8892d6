package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Chatline/internal/auth"
	"Chatline/internal/model"
	"Chatline/internal/repo"
	"Chatline/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeRooms struct {
	joined    []string
	added     []string
	removed   []string
	promoted  []string
	demoted   []string
	actors    []string
	dissolved []string
}

func (r *fakeRooms) JoinOnline(chat *model.Chat) { r.joined = append(r.joined, chat.ID.Hex()) }
func (r *fakeRooms) Dissolve(groupID string)     { r.dissolved = append(r.dissolved, groupID) }

func (r *fakeRooms) ParticipantsAdded(chat *model.Chat, added []string, actorName string) {
	r.added = append(r.added, added...)
	r.actors = append(r.actors, actorName)
}

func (r *fakeRooms) ParticipantRemoved(chat *model.Chat, userID, actorName string) {
	r.removed = append(r.removed, userID)
	r.actors = append(r.actors, actorName)
}

func (r *fakeRooms) AdminPromoted(chat *model.Chat, userID string) {
	r.promoted = append(r.promoted, userID)
}

func (r *fakeRooms) AdminDemoted(chat *model.Chat, userID string) {
	r.demoted = append(r.demoted, userID)
}

type nobodyOnline struct{}

func (nobodyOnline) IsOnline(string) bool { return false }

type envelope struct {
	HttpStatusCode int
	ResponseBody   json.RawMessage
	IsSuccess      bool
	Message        string
}

type testServer struct {
	router *gin.Engine
	chats  *service.ChatService
	rooms  *fakeRooms
	tokens *auth.JWT
}

func newTestServer(t *testing.T, limit uint) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repo.NewMemoryStore()
	directory := repo.NewStaticDirectory([]model.User{{UserID: "ann", Name: "Ann"}, {UserID: "bob", Name: "Bob"}})
	chats := service.NewChatService(store, directory, service.NewDeliveryTracker(store, nobodyOnline{}), zap.NewNop())
	rooms := &fakeRooms{}
	tokens := auth.NewJWT("test-secret", time.Hour)

	h := NewChatHandler(chats, rooms, zap.NewNop())
	router := gin.New()
	api := router.Group("/chat/api", Authenticate(tokens), RateLimit(limit))
	{
		api.POST("/create-group", h.CreateGroup)
		api.GET("/chats", h.GetChats)
		api.GET("/group-details/:groupId", h.GetGroupDetails)
		api.PUT("/update-group-name", h.UpdateGroupName)
		api.POST("/add-participants", h.AddParticipants)
		api.DELETE("/remove-participant", h.RemoveParticipant)
		api.PATCH("/make-admin", h.MakeAdmin)
		api.DELETE("/remove-admin", h.RemoveAdmin)
		api.DELETE("/delete-group/:groupId", h.DeleteGroup)
		api.GET("/messages/:chatId", h.GetMessages)
	}

	return &testServer{router: router, chats: chats, rooms: rooms, tokens: tokens}
}

func (s *testServer) do(t *testing.T, userID, method, path string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := s.tokens.GenerateToken(userID)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestRequiresBearerToken(t *testing.T) {
	s := newTestServer(t, 100)

	code, env := s.do(t, "", http.MethodGet, "/chat/api/chats", nil)
	if code != http.StatusUnauthorized || env.IsSuccess || env.Message != "Token is required!" {
		t.Errorf("got %d %+v", code, env)
	}
}

func TestGroupLifecycleOverREST(t *testing.T) {
	s := newTestServer(t, 100)

	code, env := s.do(t, "ann", http.MethodPost, "/chat/api/create-group", createGroupRequest{Name: "team", Participants: []string{"bob"}})
	if code != http.StatusCreated || !env.IsSuccess {
		t.Fatalf("create = %d %+v", code, env)
	}
	var chat model.Chat
	json.Unmarshal(env.ResponseBody, &chat)
	groupID := chat.ID.Hex()
	if len(s.rooms.joined) != 1 || s.rooms.joined[0] != groupID {
		t.Errorf("rooms joined = %v", s.rooms.joined)
	}

	code, env = s.do(t, "bob", http.MethodGet, "/chat/api/group-details/"+groupID, nil)
	if code != http.StatusOK {
		t.Fatalf("details = %d %+v", code, env)
	}
	var details service.GroupDetails
	json.Unmarshal(env.ResponseBody, &details)
	if len(details.Participants) != 2 || details.Participants[0].Name != "Ann" {
		t.Errorf("details = %+v", details)
	}

	code, env = s.do(t, "bob", http.MethodPut, "/chat/api/update-group-name", updateGroupNameRequest{GroupID: groupID, Name: "mine"})
	if code != http.StatusUnauthorized || env.Message != "You are not an admin of group." {
		t.Errorf("non-admin rename = %d %+v", code, env)
	}

	code, _ = s.do(t, "ann", http.MethodPut, "/chat/api/update-group-name", updateGroupNameRequest{GroupID: groupID, Name: "crew"})
	if code != http.StatusOK {
		t.Errorf("rename = %d", code)
	}

	code, env = s.do(t, "ann", http.MethodGet, "/chat/api/chats", nil)
	var chats []model.Chat
	json.Unmarshal(env.ResponseBody, &chats)
	if code != http.StatusOK || len(chats) != 1 || chats[0].Name != "crew" {
		t.Errorf("chats = %d %+v", code, chats)
	}

	code, _ = s.do(t, "ann", http.MethodDelete, "/chat/api/delete-group/"+groupID, nil)
	if code != http.StatusOK || len(s.rooms.dissolved) != 1 {
		t.Errorf("delete = %d, dissolved %v", code, s.rooms.dissolved)
	}

	code, env = s.do(t, "ann", http.MethodGet, "/chat/api/group-details/"+groupID, nil)
	if code != http.StatusNotFound || env.Message != "Group not found!" {
		t.Errorf("details after delete = %d %+v", code, env)
	}
}

func TestGroupAdministrationOverREST(t *testing.T) {
	s := newTestServer(t, 100)

	_, env := s.do(t, "ann", http.MethodPost, "/chat/api/create-group", createGroupRequest{Name: "team", Participants: []string{"bob"}})
	var chat model.Chat
	json.Unmarshal(env.ResponseBody, &chat)
	groupID := chat.ID.Hex()

	code, env := s.do(t, "ann", http.MethodPost, "/chat/api/add-participants", addParticipantsRequest{GroupID: groupID, Participants: []string{"bob", "cid"}})
	if code != http.StatusOK || env.Message != "New participants have been added to team group." {
		t.Fatalf("add = %d %+v", code, env)
	}
	var added service.AddResult
	json.Unmarshal(env.ResponseBody, &added)
	if len(added.Added) != 1 || added.Added[0] != "cid" || len(added.Existing) != 1 {
		t.Errorf("add result = %+v", added)
	}
	if len(s.rooms.added) != 1 || s.rooms.added[0] != "cid" || s.rooms.actors[0] != "Ann" {
		t.Errorf("rooms after add = %+v", s.rooms)
	}

	code, env = s.do(t, "bob", http.MethodPatch, "/chat/api/make-admin", adminRequest{GroupID: groupID, AdminID: "bob"})
	if code != http.StatusUnauthorized || env.Message != "You are not an admin of group." {
		t.Errorf("non-admin promote = %d %+v", code, env)
	}

	code, _ = s.do(t, "ann", http.MethodPatch, "/chat/api/make-admin", adminRequest{GroupID: groupID, AdminID: "cid"})
	if code != http.StatusCreated || len(s.rooms.promoted) != 1 {
		t.Errorf("promote = %d, promoted %v", code, s.rooms.promoted)
	}

	code, _ = s.do(t, "ann", http.MethodDelete, "/chat/api/remove-admin", adminRequest{GroupID: groupID, AdminID: "cid"})
	if code != http.StatusOK || len(s.rooms.demoted) != 1 {
		t.Errorf("demote = %d, demoted %v", code, s.rooms.demoted)
	}

	code, _ = s.do(t, "ann", http.MethodDelete, "/chat/api/remove-admin", adminRequest{GroupID: groupID, AdminID: "ann"})
	if code != http.StatusConflict {
		t.Errorf("demoting the last admin = %d", code)
	}

	code, _ = s.do(t, "ann", http.MethodDelete, "/chat/api/remove-participant", removeParticipantRequest{GroupID: groupID})
	if code != http.StatusBadRequest {
		t.Errorf("remove without user = %d", code)
	}

	code, env = s.do(t, "ann", http.MethodDelete, "/chat/api/remove-participant", removeParticipantRequest{GroupID: groupID, UserID: "cid"})
	if code != http.StatusOK || len(s.rooms.removed) != 1 || s.rooms.removed[0] != "cid" {
		t.Errorf("remove = %d %+v, removed %v", code, env, s.rooms.removed)
	}
	details, _ := s.chats.GroupDetails(context.Background(), "ann", groupID)
	if len(details.Participants) != 2 {
		t.Errorf("participants after remove = %+v", details.Participants)
	}
}

func TestDeleteGroupDissolvesCanonicalRoom(t *testing.T) {
	s := newTestServer(t, 100)
	chat, err := s.chats.CreateGroup(context.Background(), "ann", "team", []string{"bob"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	code, _ := s.do(t, "ann", http.MethodDelete, "/chat/api/delete-group/"+strings.ToUpper(chat.ID.Hex()), nil)
	if code != http.StatusOK || len(s.rooms.dissolved) != 1 || s.rooms.dissolved[0] != chat.ID.Hex() {
		t.Errorf("delete = %d, dissolved %v", code, s.rooms.dissolved)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	s := newTestServer(t, 100)

	code, env := s.do(t, "ann", http.MethodPost, "/chat/api/create-group", createGroupRequest{Name: "  "})
	if code != http.StatusBadRequest || env.Message != "Admin and group name is required!" {
		t.Errorf("got %d %+v", code, env)
	}
}

func TestGetMessagesRedactsAndPaginates(t *testing.T) {
	s := newTestServer(t, 100)
	res, err := s.chats.SendDirect(context.Background(), "ann", "bob", "hi", model.ContentText)
	if err != nil {
		t.Fatalf("SendDirect: %v", err)
	}
	path := "/chat/api/messages/" + res.Chat.ID.Hex()

	code, env := s.do(t, "bob", http.MethodGet, path+"?page=1", nil)
	if code != http.StatusOK {
		t.Fatalf("history = %d %+v", code, env)
	}
	var page struct {
		Data  []model.Message
		Total int64
	}
	json.Unmarshal(env.ResponseBody, &page)
	if page.Total != 1 || len(page.Data[0].DeliveredTo) != 0 {
		t.Errorf("bob's page = %+v", page)
	}

	if code, _ := s.do(t, "bob", http.MethodGet, path+"?page=zero", nil); code != http.StatusBadRequest {
		t.Errorf("bad page = %d", code)
	}
	if code, _ := s.do(t, "zed", http.MethodGet, path, nil); code != http.StatusUnauthorized {
		t.Errorf("outsider = %d", code)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		if code, _ := s.do(t, "ann", http.MethodGet, "/chat/api/chats", nil); code != http.StatusOK {
			t.Fatalf("request %d = %d", i, code)
		}
	}
	code, env := s.do(t, "ann", http.MethodGet, "/chat/api/chats", nil)
	if code != http.StatusTooManyRequests || env.IsSuccess {
		t.Errorf("third request = %d %+v", code, env)
	}

	if code, _ := s.do(t, "bob", http.MethodGet, "/chat/api/chats", nil); code != http.StatusOK {
		t.Errorf("other user limited too: %d", code)
	}
}
