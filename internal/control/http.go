// Package control implements the read-only HTTP/WS control plane around
// the simulated cluster: GET /peers, /ring/{peer} and
// /transactions/{peer} for point-in-time inspection, and GET /events
// for a streaming feed of the structured event log. It observes peer
// state, never mutates it.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcastellin/distkv/internal/address"
)

// ClusterView is the read-only snapshot source the HTTP handlers query.
// A single Host implementation backs every method.
type ClusterView interface {
	Peers() []PeerView
	RingView(self address.Address) []RingNodeView
	Transactions(self address.Address) []TransactionView
}

// PeerView describes one simulated peer for the /peers endpoint.
// Instance is the peer's incarnation token, distinguishing a revived
// peer from its pre-crash self.
type PeerView struct {
	Addr     address.Address `json:"addr"`
	InGroup  bool            `json:"inGroup"`
	Known    int             `json:"known"`
	Instance string          `json:"instance"`
}

// RingNodeView describes one ring position for the /ring endpoint.
type RingNodeView struct {
	Addr address.Address `json:"addr"`
	Hash uint64          `json:"hash"`
}

// TransactionView describes one coordinator transaction for the
// /transactions endpoint.
type TransactionView struct {
	ID        int32  `json:"id"`
	Kind      string `json:"kind"`
	Key       string `json:"key"`
	Replies   uint8  `json:"replies"`
	Successes uint8  `json:"successes"`
	Logged    bool   `json:"logged"`
	Trace     string `json:"trace"`
}

// Server is the control-plane HTTP server.
type Server struct {
	addr string
	view ClusterView
	hub  *Hub
	srv  *http.Server
}

// NewServer builds a Server bound to addr, serving routes against view
// and streaming events from hub.
func NewServer(addr string, view ClusterView, hub *Hub) *Server {
	s := &Server{addr: addr, view: view, hub: hub}

	r := mux.NewRouter()
	r.HandleFunc("/peers", s.handlePeers).Methods(http.MethodGet)
	r.HandleFunc("/ring/{peer}", s.handleRing).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{peer}", s.handleTransactions).Methods(http.MethodGet)
	r.HandleFunc("/events", hub.ServeWS).Methods(http.MethodGet)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Handler returns the server's routed http.Handler, for tests that want
// to exercise routes via httptest without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.srv.Shutdown(context.Background())
	}()
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.view.Peers())
}

func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	peer, err := address.Parse(mux.Vars(r)["peer"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.view.RingView(peer))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	peer, err := address.Parse(mux.Vars(r)["peer"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.view.Transactions(peer))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
