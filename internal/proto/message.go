package proto

import "encoding/json"

// WebSocket close codes. These are part of the wire contract and must stay
// stable across releases; clients key their reconnect logic on them.
const (
	CloseDomainRejected  = 4001 // e.g. duplicate username on connect
	CloseMissedHeartbeat = 4002 // previous ping was never answered
	CloseUnauthenticated = 4003 // still unauthenticated at sweep time
	CloseInvalidToken    = 4004 // token verification failed
)

// InboundKind tags the decoded variant of a client message.
type InboundKind int

const (
	// InboundUnknown marks a syntactically valid message with no recognized field.
	InboundUnknown InboundKind = iota
	// InboundToken authenticates the connection. Only message accepted pre-auth.
	InboundToken
	// InboundRequestEstimate asks the room to open a new estimate round.
	InboundRequestEstimate
	// InboundEstimate submits a vote for the active round.
	InboundEstimate
)

// Inbound is a client message decoded once at the boundary into a tagged
// variant, so domain code never touches raw JSON.
type Inbound struct {
	Kind     InboundKind
	Token    string
	TaskID   string
	Estimate float64
}

// rawInbound mirrors the client wire format: a JSON object carrying one of the
// three recognized fields.
type rawInbound struct {
	Token           *string  `json:"token"`
	RequestEstimate *string  `json:"request_estimate"`
	Estimate        *float64 `json:"estimate"`
}

// ParseInbound decodes a client message. Malformed JSON returns an error;
// a valid object with no recognized field decodes to InboundUnknown.
// Token takes precedence when several fields are present.
func ParseInbound(data []byte) (Inbound, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return Inbound{}, err
	}

	switch {
	case raw.Token != nil:
		return Inbound{Kind: InboundToken, Token: *raw.Token}, nil
	case raw.RequestEstimate != nil:
		return Inbound{Kind: InboundRequestEstimate, TaskID: *raw.RequestEstimate}, nil
	case raw.Estimate != nil:
		return Inbound{Kind: InboundEstimate, Estimate: *raw.Estimate}, nil
	default:
		return Inbound{Kind: InboundUnknown}, nil
	}
}

// ServerMessage is a sealed set of payloads the server pushes to clients.
type ServerMessage interface{ serverMessage() }

// LobbyStatus lists the rooms visible from the lobby. Sent only to users not
// currently in a room.
type LobbyStatus struct {
	LobbyStatus LobbyStatusContent `json:"lobby_status"`
}

func (LobbyStatus) serverMessage() {}

// LobbyStatusContent carries the room directory plus the reason the recipient
// last left a room, if any. The reason is delivered exactly once.
type LobbyStatusContent struct {
	Rooms          []string `json:"rooms"`
	LeftRoomReason string   `json:"left_room_reason"`
}

// RoomStatus describes a room's membership and the active estimate round.
type RoomStatus struct {
	RoomStatus RoomStatusContent `json:"room_status"`
}

func (RoomStatus) serverMessage() {}

// RoomStatusContent is the body of a room-status broadcast.
type RoomStatusContent struct {
	Users RoomStatusUsers `json:"users"`
	Task  RoomStatusTask  `json:"task"`
}

// RoomStatusUsers groups member names by role.
type RoomStatusUsers struct {
	Admins     []string `json:"admins"`
	Estimators []string `json:"estimators"`
	Spectators []string `json:"spectators"`
}

// RoomStatusTask is the active estimate round; the zero value means no round
// is in progress.
type RoomStatusTask struct {
	ID        string         `json:"id"`
	Estimates []TaskEstimate `json:"estimates"`
}

// TaskEstimate is one submitted vote.
type TaskEstimate struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
}
