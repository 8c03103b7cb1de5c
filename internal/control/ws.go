package control

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/eventlog"
)

// EventFrame is the JSON shape streamed to /events subscribers.
type EventFrame struct {
	Kind    string `json:"kind"`
	Self    string `json:"self"`
	Peer    string `json:"peer,omitempty"`
	TransID int32  `json:"transId,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
	Success bool   `json:"success"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out event-log records to connected WebSocket clients. It
// implements eventlog.Logger itself so a Host can register it as one of
// several sinks alongside the production ZapLogger.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan EventFrame
}

var _ eventlog.Logger = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: map[*websocket.Conn]chan EventFrame{}}
}

// ServeWS upgrades the request to a WebSocket and streams every
// subsequent event until the connection closes or the client falls too
// far behind.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ch := make(chan EventFrame, 64)

	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	// Subscribers never send data frames; this read unblocks on close or
	// error and tears the subscription down so the write loop below ends.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()

	for frame := range ch {
		if err := conn.WriteJSON(frame); err != nil {
			h.drop(conn)
		}
	}
}

// drop unregisters conn and closes its channel exactly once, ending the
// subscriber's write loop. Safe to call from any goroutine, repeatedly.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	if ok {
		conn.Close()
	}
}

func (h *Hub) broadcast(f EventFrame) {
	h.mu.Lock()
	var slow []*websocket.Conn
	for conn, ch := range h.clients {
		select {
		case ch <- f:
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range slow {
		h.drop(conn)
	}
}

func (h *Hub) LogNodeAdd(self, added address.Address) {
	h.broadcast(EventFrame{Kind: "nodeAdd", Self: self.String(), Peer: added.String(), Success: true})
}

func (h *Hub) LogNodeRemove(self, removed address.Address) {
	h.broadcast(EventFrame{Kind: "nodeRemove", Self: self.String(), Peer: removed.String()})
}

func (h *Hub) LogCreateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	h.broadcast(EventFrame{Kind: "createSuccess", Self: self.String(), TransID: transID, Key: key, Value: value, Success: true})
}
func (h *Hub) LogCreateFail(self address.Address, isCoordinator bool, transID int32, key, value string) {
	h.broadcast(EventFrame{Kind: "createFail", Self: self.String(), TransID: transID, Key: key, Value: value})
}
func (h *Hub) LogReadSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	h.broadcast(EventFrame{Kind: "readSuccess", Self: self.String(), TransID: transID, Key: key, Value: value, Success: true})
}
func (h *Hub) LogReadFail(self address.Address, isCoordinator bool, transID int32, key string) {
	h.broadcast(EventFrame{Kind: "readFail", Self: self.String(), TransID: transID, Key: key})
}
func (h *Hub) LogUpdateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	h.broadcast(EventFrame{Kind: "updateSuccess", Self: self.String(), TransID: transID, Key: key, Value: value, Success: true})
}
func (h *Hub) LogUpdateFail(self address.Address, isCoordinator bool, transID int32, key, value string) {
	h.broadcast(EventFrame{Kind: "updateFail", Self: self.String(), TransID: transID, Key: key, Value: value})
}
func (h *Hub) LogDeleteSuccess(self address.Address, isCoordinator bool, transID int32, key string) {
	h.broadcast(EventFrame{Kind: "deleteSuccess", Self: self.String(), TransID: transID, Key: key, Success: true})
}
func (h *Hub) LogDeleteFail(self address.Address, isCoordinator bool, transID int32, key string) {
	h.broadcast(EventFrame{Kind: "deleteFail", Self: self.String(), TransID: transID, Key: key})
}
