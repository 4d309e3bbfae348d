package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type frame struct {
	ID    string          `json:"id,omitempty"`
	OK    bool            `json:"ok,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

type request struct {
	ID   string `json:"id"`
	Op   string `json:"op"`
	Data any    `json:"data,omitempty"`
}

func main() {
	baseURL := strings.TrimRight(os.Getenv("ARENA_BASE_URL"), "/")
	playerID := os.Getenv("ARENA_PLAYER_ID")
	if baseURL == "" {
		log.Fatal("ARENA_BASE_URL is required")
	}
	if playerID == "" {
		playerID = "arenacheck"
	}

	status, body, err := fasthttp.GetTimeout(nil, baseURL+"/healthz", 5*time.Second)
	if err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	log.Printf("/healthz status=%d", status)
	if _, body, err = fasthttp.GetTimeout(nil, baseURL+"/lobbies", 5*time.Second); err == nil {
		log.Printf("/lobbies %s", strings.TrimSpace(string(body)))
	}

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("ws connect error: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	calls := []request{
		{ID: "1", Op: "hello", Data: map[string]any{"player": map[string]string{"id": playerID, "displayName": playerID}}},
		{ID: "2", Op: "listLobbies"},
		{ID: "3", Op: "invites"},
	}
	for _, req := range calls {
		if err := wsjson.Write(ctx, conn, req); err != nil {
			log.Fatalf("ws write %s: %v", req.Op, err)
		}
	}

	// observe replies and pushed events for a short window
	watch, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	for {
		var f frame
		if err := wsjson.Read(watch, conn, &f); err != nil {
			return
		}
		if f.Event != "" {
			fmt.Printf("event %s %s\n", f.Event, f.Data)
			continue
		}
		if f.OK {
			fmt.Printf("reply %s ok %s\n", f.ID, f.Data)
		} else {
			fmt.Printf("reply %s error %s\n", f.ID, f.Error)
		}
	}
}
