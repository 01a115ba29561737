package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/auth"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/config"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/core"
)

func testServerConfig() *config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.PublicURL = "ws://example.test/ws"
	cfg.JWTSecret = "test-secret"
	return &cfg
}

func startTestServer(t *testing.T) (*httptest.Server, *core.Hub, *auth.Service) {
	t.Helper()

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(&disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := testServerConfig()
	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	server := NewServer(hub, authService, cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, hub, authService
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendJoin(t *testing.T, ctx context.Context, conn *websocket.Conn, room, userID, name string) {
	t.Helper()

	payload, _ := json.Marshal(map[string]any{
		"roomId":   room,
		"userId":   userID,
		"metadata": map[string]string{"name": name},
	})
	if err := wsjson.Write(ctx, conn, map[string]any{
		"type": "join-room",
		"data": json.RawMessage(payload),
	}); err != nil {
		t.Fatalf("send join-room: %v", err)
	}
}

type outboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readFrame reads outbound frames until one of the wanted type arrives.
func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read frame (waiting for %q): %v", wantType, err)
		}
		if frame.Type == wantType {
			return frame
		}
	}
}

func contextWithTestTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// waitRoomSize polls hub state until a room reaches the wanted size.
func waitRoomSize(t *testing.T, hub *core.Hub, room string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(hub.RoomMembers(room)) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %q never reached size %d", room, want)
}
