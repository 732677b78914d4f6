package wsbroadcast

import (
	"testing"
	"time"

	"spreadmonitor/pkg/utils"
)

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{})
}

func TestOriginChecker_Check(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
		allowAll: false,
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://example.com", true},
		{"http://evil.com", false},
		{"http://localhost:8080", false},
	}

	for _, tt := range tests {
		if got := checker.Check(tt.origin); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	checker := &OriginChecker{allowAll: true}

	for _, origin := range []string{"http://localhost:3000", "https://evil.com", "http://anything.example.org"} {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub(nil, 10, time.Hour, testLogger())

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Hub.Run() did not exit after Stop()")
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := NewHub(nil, 10, time.Hour, testLogger())

	client := &Client{send: make(chan []byte, 4)}
	hub.clients[client] = struct{}{}

	for i := 0; i < 10; i++ {
		hub.BroadcastRaw([]byte("frame"))
	}

	if hub.DroppedMessages() == 0 {
		t.Error("expected some frames to be dropped once the client's send buffer filled up")
	}
}

func TestHub_BroadcastRawDeliversToEveryRegisteredClient(t *testing.T) {
	hub := NewHub(nil, 10, time.Hour, testLogger())

	var clients []*Client
	for i := 0; i < 3; i++ {
		c := &Client{send: make(chan []byte, 1)}
		hub.clients[c] = struct{}{}
		clients = append(clients, c)
	}

	hub.BroadcastRaw([]byte("snapshot"))

	for i, c := range clients {
		select {
		case got := <-c.send:
			if string(got) != "snapshot" {
				t.Errorf("client %d: got %q, want %q", i, got, "snapshot")
			}
		default:
			t.Errorf("client %d: expected a delivered frame, send buffer empty", i)
		}
	}
}
