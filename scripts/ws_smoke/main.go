package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lawfx/ScrumPokerServer/internal/proto"
)

// Smoke test against a running server: guest login, authenticate the socket,
// create a room, open a round, vote, print what comes back.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	wsAddr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "smoke-tester", "guest username")
	room := flag.String("room", "smoke-room", "room name to create")
	task := flag.String("task", "SMOKE-1", "estimate request id")
	estimate := flag.Float64("estimate", 5, "estimate value to submit")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := guestLogin(ctx, *base, *user)
	if err != nil {
		return fmt.Errorf("guest login: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, *wsAddr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, map[string]string{"token": token}); err != nil {
		return fmt.Errorf("send token: %w", err)
	}

	statuses := make(chan error, 1)
	go func() { statuses <- printLoop(ctx, conn, *task) }()

	if err := restCall(ctx, http.MethodPut, *base+"/api/rooms/create", token, map[string]string{"roomname": *room}); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	if err := wsjson.Write(ctx, conn, map[string]string{"request_estimate": *task}); err != nil {
		return fmt.Errorf("request estimate: %w", err)
	}
	if err := wsjson.Write(ctx, conn, map[string]float64{"estimate": *estimate}); err != nil {
		return fmt.Errorf("send estimate: %w", err)
	}

	return <-statuses
}

// printLoop prints server pushes until the round opened for taskID clears,
// which is the success condition of the smoke test.
func printLoop(ctx context.Context, conn *websocket.Conn, taskID string) error {
	sawTask := false
	for {
		var env struct {
			LobbyStatus *proto.LobbyStatusContent `json:"lobby_status"`
			RoomStatus  *proto.RoomStatusContent  `json:"room_status"`
		}
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch {
		case env.LobbyStatus != nil:
			fmt.Printf("lobby: rooms=%v reason=%q\n", env.LobbyStatus.Rooms, env.LobbyStatus.LeftRoomReason)
		case env.RoomStatus != nil:
			fmt.Printf("room: admins=%v estimators=%v task=%q estimates=%d\n",
				env.RoomStatus.Users.Admins, env.RoomStatus.Users.Estimators,
				env.RoomStatus.Task.ID, len(env.RoomStatus.Task.Estimates))
			if env.RoomStatus.Task.ID == taskID {
				sawTask = true
			}
			if sawTask && env.RoomStatus.Task.ID == "" {
				fmt.Println("round completed")
				return nil
			}
		}
	}
}

func guestLogin(ctx context.Context, base, username string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/auth/login/guest", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func restCall(ctx context.Context, method, url, token string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
