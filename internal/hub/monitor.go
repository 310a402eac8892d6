package hub

import (
	"time"

	"Chatline/internal/model"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	clients := ms.hub.connections()

	connectionStats := model.ConnectionStats{
		TotalConnections: len(clients),
		TotalOnline:      ms.hub.presence.Len(),
	}

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnections == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Rooms:       ms.getRoomStats(),
		Clients:     ms.getClientList(clients),
		StateCount:  ms.getStateCount(clients),
	}
}

// getRoomStats returns group room statistics
func (ms *MonitorService) getRoomStats() model.RoomStats {
	stats := model.RoomStats{
		RoomDetails: make([]model.RoomInfo, 0),
	}

	for _, bucket := range ms.hub.shards {
		bucket.RLock()
		for groupID, room := range bucket.rooms {
			seen := make(map[string]bool, len(room))
			memberIDs := make([]string, 0, len(room))
			for _, c := range room {
				if !seen[c.userID] {
					seen[c.userID] = true
					memberIDs = append(memberIDs, c.userID)
				}
			}

			online := 0
			for _, id := range memberIDs {
				if ms.hub.presence.IsOnline(id) {
					online++
				}
			}

			stats.RoomDetails = append(stats.RoomDetails, model.RoomInfo{
				GroupID:       groupID,
				OnlineMembers: online,
				MemberIDs:     memberIDs,
			})
			stats.TotalRooms++
			if online > 0 {
				stats.ActiveRooms++
			}
		}
		bucket.RUnlock()
	}

	return stats
}

// getClientList returns list of all connected clients
func (ms *MonitorService) getClientList(clients []*Client) []model.ClientInfo {
	out := make([]model.ClientInfo, 0, len(clients))
	for _, c := range clients {
		out = append(out, model.ClientInfo{
			ClientID:    c.ID,
			UserID:      c.userID,
			State:       c.State(),
			RoomCount:   len(c.roomIDs()),
			ConnectedAt: c.connectedAt.Format(time.RFC3339),
		})
	}
	return out
}

// getStateCount returns count of clients by session state
func (ms *MonitorService) getStateCount(clients []*Client) map[string]int {
	stateCount := map[string]int{
		StateConnecting:    0,
		StateAuthenticated: 0,
		StateActive:        0,
	}

	for _, c := range clients {
		stateCount[c.State()]++
	}

	return stateCount
}
