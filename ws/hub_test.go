package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campora/enrollment-engine/enrollment"
	"github.com/campora/enrollment-engine/ws"
)

func dialHub(t *testing.T, hub *ws.Hub, channel string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, channel)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Give the hub time to register the connection.
	time.Sleep(100 * time.Millisecond)
	return conn
}

func TestHub_StageChanged_ReachesSubscriber(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub, "req-1")

	hub.StageChanged(enrollment.Progress{
		RequestID: "req-1",
		Stage:     enrollment.StageGeneratingInstallments,
		Sequence:  2,
		Of:        4,
	})

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received ws.Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	if received.Type != "enrollment_progress" {
		t.Errorf("Expected type 'enrollment_progress', got %q", received.Type)
	}
	if received.Channel != "req-1" {
		t.Errorf("Expected channel 'req-1', got %q", received.Channel)
	}

	data, ok := received.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object payload, got %T", received.Data)
	}
	if data["stage"] != string(enrollment.StageGeneratingInstallments) {
		t.Errorf("Expected stage generating_installments, got %v", data["stage"])
	}
}

func TestHub_Broadcast_OtherChannelIgnored(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub, "req-1")

	// A message on another channel must not arrive here.
	hub.StageChanged(enrollment.Progress{RequestID: "req-2", Stage: enrollment.StageCompleted})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var received ws.Message
	if err := conn.ReadJSON(&received); err == nil {
		t.Errorf("Expected no message, got %+v", received)
	}
}

func TestHub_NotifyExportComplete(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub, "admin")

	hub.NotifyExportComplete("admin", "exports:abc", "https://example.test/file.xlsx", "schedules.xlsx")

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received ws.Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if received.Type != "export_complete" {
		t.Errorf("Expected type 'export_complete', got %q", received.Type)
	}

	data := received.Data.(map[string]interface{})
	if data["file_name"] != "schedules.xlsx" {
		t.Errorf("Expected file name in payload, got %v", data["file_name"])
	}
}

func TestHub_EmptyRequestID_Dropped(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Must not panic or block; events without a request ID have no channel.
	hub.StageChanged(enrollment.Progress{Stage: enrollment.StageValidating})
}
