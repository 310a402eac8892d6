package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"`      // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"` // Client connection stats
	Rooms       RoomStats       `json:"rooms"`       // Group room stats
	Clients     []ClientInfo    `json:"clients"`     // List of connected clients
	StateCount  map[string]int  `json:"stateCount"`  // Count by session state
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnections int `json:"totalConnections"` // Live sockets, including displaced ones
	TotalOnline      int `json:"totalOnline"`      // Users present in the registry
}

// RoomStats holds room statistics
type RoomStats struct {
	TotalRooms  int        `json:"totalRooms"`
	ActiveRooms int        `json:"activeRooms"` // Rooms with at least one online member
	RoomDetails []RoomInfo `json:"roomDetails"`
}

// RoomInfo contains information about a single group room
type RoomInfo struct {
	GroupID       string   `json:"groupId"`
	OnlineMembers int      `json:"onlineMembers"`
	MemberIDs     []string `json:"memberIds"`
}

// ClientInfo contains information about a connected client
type ClientInfo struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	State       string `json:"state"`
	RoomCount   int    `json:"roomCount"`
	ConnectedAt string `json:"connectedAt"`
}
