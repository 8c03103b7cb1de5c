package control

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcastellin/distkv/internal/address"
)

func TestHubBroadcastsNodeAddToConnectedClients(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	self := address.New(1, 0)
	added := address.New(2, 0)
	hub.LogNodeAdd(self, added)

	var frame EventFrame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	if frame.Kind != "nodeAdd" || frame.Self != self.String() || frame.Peer != added.String() {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestHubDropsSlowClientsWithoutBlockingBroadcast(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	self := address.New(1, 0)
	// Flood past the per-client buffer without ever reading; broadcast
	// must not block the caller even once the slow client's channel fills.
	for i := 0; i < 128; i++ {
		hub.LogNodeRemove(self, address.New(uint32(i+2), 0))
	}
}
