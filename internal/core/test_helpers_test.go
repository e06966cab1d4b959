package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/proto"
)

func testLobby(t *testing.T, opts Options) *Lobby {
	t.Helper()

	logger := zerolog.Nop()
	l := NewLobby(&logger, opts)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)

	return l
}

// connect registers a user and returns their outbox with the initial lobby
// status already drained.
func connect(t *testing.T, l *Lobby, connID, username string) <-chan proto.ServerMessage {
	t.Helper()

	out, err := l.OnNewConnection(connID, username)
	if err != nil {
		t.Fatalf("connect %s: %v", username, err)
	}
	mustLobbyStatus(t, out)
	return out
}

// mustRoomStatus drains ch until a room status arrives.
func mustRoomStatus(t *testing.T, ch <-chan proto.ServerMessage) proto.RoomStatus {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for room status")
			}
			if rs, isRoom := msg.(proto.RoomStatus); isRoom {
				return rs
			}
		case <-deadline:
			t.Fatalf("room status not received")
		}
	}
}

// mustLobbyStatus drains ch until a lobby status arrives.
func mustLobbyStatus(t *testing.T, ch <-chan proto.ServerMessage) proto.LobbyStatus {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for lobby status")
			}
			if ls, isLobby := msg.(proto.LobbyStatus); isLobby {
				return ls
			}
		case <-deadline:
			t.Fatalf("lobby status not received")
		}
	}
}

// lastRoomStatus drains every queued message and returns the most recent room
// status, failing if none was queued.
func lastRoomStatus(t *testing.T, ch <-chan proto.ServerMessage) proto.RoomStatus {
	t.Helper()

	var last *proto.RoomStatus
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while draining")
			}
			if rs, isRoom := msg.(proto.RoomStatus); isRoom {
				last = &rs
			}
		default:
			if last == nil {
				t.Fatalf("no room status queued")
			}
			return *last
		}
	}
}

func drain(ch <-chan proto.ServerMessage) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
