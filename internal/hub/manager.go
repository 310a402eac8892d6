package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"net/http"
	"sync"

	"Chatline/internal/auth"
	"Chatline/internal/model"
	"Chatline/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// roomBucket holds the group rooms of one shard: group id → client id → client.
type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client
}

type Hub struct {
	shards   [shardCount]*roomBucket
	presence *Presence
	chats    *service.ChatService
	verifier auth.Verifier
	upgrader websocket.Upgrader
	logger   *zap.Logger

	// every live connection, including ones displaced from presence
	conns   ClientList
	connsMu sync.Mutex

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(chats *service.ChatService, presence *Presence, verifier auth.Verifier, allowedOrigins []string, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		presence: presence,
		chats:    chats,
		verifier: verifier,
		logger:   logger,
		conns:    make(ClientList),
		ctx:      ctx,
		cancel:   cancel,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &roomBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}

	return h
}

func (h *Hub) Presence() *Presence { return h.presence }

func getShard(key string) uint32 {
	if key == "" {
		return 0
	}

	sum := sha1.Sum([]byte(key))
	return binary.BigEndian.Uint32(sum[:4]) % shardCount
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from one of origins. An empty list or "*"
// accepts everything.
func checkOrigin(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || allowed["*"] {
			return true
		}
		return allowed[origin]
	}
}

// -----------------------------------------------------------------------------
// Rooms
// -----------------------------------------------------------------------------

func (h *Hub) joinRoom(groupID string, c *Client) {
	b := h.shards[getShard(groupID)]
	b.Lock()
	room, ok := b.rooms[groupID]
	if !ok {
		room = make(map[string]*Client)
		b.rooms[groupID] = room
	}
	room[c.ID] = c
	b.Unlock()

	c.addRoom(groupID)
}

func (h *Hub) leaveRoom(groupID string, c *Client) {
	b := h.shards[getShard(groupID)]
	b.Lock()
	if room, ok := b.rooms[groupID]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(b.rooms, groupID)
		}
	}
	b.Unlock()

	c.removeRoom(groupID)
}

// leaveRoomUser removes every connection of userID from the room.
func (h *Hub) leaveRoomUser(groupID, userID string) {
	for _, c := range h.roomMembers(groupID) {
		if c.userID == userID {
			h.leaveRoom(groupID, c)
		}
	}
}

func (h *Hub) roomMembers(groupID string) []*Client {
	b := h.shards[getShard(groupID)]
	b.RLock()
	defer b.RUnlock()

	room := b.rooms[groupID]
	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	return clients
}

// publishToRoom emits to every connection in the group room. Clients are
// collected under the read lock and written to without it.
func (h *Hub) publishToRoom(groupID, name string, payload any) int {
	sent := 0
	for _, c := range h.roomMembers(groupID) {
		if c.Emit(name, payload) {
			sent++
		}
	}
	return sent
}

// JoinOnline adds the live connections of chat's participants to its room.
func (h *Hub) JoinOnline(chat *model.Chat) {
	groupID := chat.ID.Hex()
	for _, id := range chat.Participants {
		if c, ok := h.presence.Lookup(id); ok {
			h.joinRoom(groupID, c)
		}
	}
}

// Dissolve drops the room of a deleted group.
func (h *Hub) Dissolve(groupID string) {
	b := h.shards[getShard(groupID)]
	b.Lock()
	room := b.rooms[groupID]
	delete(b.rooms, groupID)
	b.Unlock()

	for _, c := range room {
		c.removeRoom(groupID)
	}
	h.logger.Info("room dissolved", zap.String("group_id", groupID), zap.Int("members", len(room)))
}

// -----------------------------------------------------------------------------
// Connections
// -----------------------------------------------------------------------------

func (h *Hub) track(c *Client) {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	h.conns[c] = true
}

func (h *Hub) untrack(c *Client) {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	delete(h.conns, c)
}

func (h *Hub) connections() []*Client {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	out := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

// Stop closes every connection and waits for their sessions to finish.
func (h *Hub) Stop() {
	for _, c := range h.connections() {
		c.CloseWith(websocket.CloseGoingAway, "server shutting down")
	}
	h.wg.Wait()
	h.cancel()
	h.logger.Info("hub stopped")
}
