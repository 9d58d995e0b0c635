// Package httpapi implements the node's HTTP collaborator contract:
// POST /api/mine to submit a card-swipe record, GET /api/status for a
// point-in-time snapshot of the chain and peer table.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/minnehack/checkchain/internal/log"
)

// maxMineBodyLen matches the cards package's packed-buffer ceiling.
const maxMineBodyLen = 256

// Orchestrator is the subset of *node.Node the HTTP collaborator needs.
// Kept as an interface so this package never imports internal/node,
// matching the orchestrator's own snapshot-closure collaborator contract.
type Orchestrator interface {
	Mine(data []byte) MinedBlock
	Status() Snapshot
}

// MinedBlock is the minimal view of a freshly mined block this package cares about.
type MinedBlock struct {
	Index uint64
	Data  []byte
}

// PeerView is one row of the peer table as reported to /api/status.
type PeerView struct {
	Addr     string `json:"addr"`
	State    string `json:"state"`
	Karma    int    `json:"karma"`
	TipIndex uint64 `json:"tip_index"`
}

// Snapshot is the JSON body returned by GET /api/status.
type Snapshot struct {
	Data     [][]byte   `json:"data"`
	TipIndex uint64     `json:"tip_index"`
	Peers    []PeerView `json:"peers"`
}

// Server is the thin net/http adapter over Orchestrator.
type Server struct {
	orch   Orchestrator
	server *http.Server
	logger zerolog.Logger
	ln     net.Listener
}

// New builds a Server bound to addr but not yet listening.
func New(addr string, orch Orchestrator) *Server {
	s := &Server{orch: orch, logger: log.HTTPAPI}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/mine", s.handleMine)
	mux.HandleFunc("/api/status", s.handleStatus)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("http collaborator server error")
		}
	}()
	return nil
}

// Addr returns the bound address, useful when Addr was ":0".
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.server.Addr
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
