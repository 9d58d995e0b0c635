package main

import (
	"github.com/minnehack/checkchain/internal/httpapi"
	"github.com/minnehack/checkchain/internal/node"
	"github.com/minnehack/checkchain/internal/peerset"
	"github.com/minnehack/checkchain/pkg/chain"
)

// httpOrchestrator adapts *node.Node to httpapi.Orchestrator, translating
// between the orchestrator's own types and the HTTP collaborator's
// wire-facing ones. It exists so internal/httpapi never has to import
// internal/node.
type httpOrchestrator struct {
	n *node.Node
}

func (h httpOrchestrator) Mine(data []byte) httpapi.MinedBlock {
	b := h.n.Mine(data)
	return httpapi.MinedBlock{Index: b.Index, Data: b.Data}
}

func (h httpOrchestrator) Status() httpapi.Snapshot {
	var snap httpapi.Snapshot
	h.n.WithChain(func(c *chain.Chain) {
		for _, b := range c.All() {
			snap.Data = append(snap.Data, b.Data)
		}
		snap.TipIndex = c.Len() - 1
	})
	h.n.WithPeers(func(peers []peerset.Peer) {
		for _, p := range peers {
			snap.Peers = append(snap.Peers, httpapi.PeerView{
				Addr:     p.Addr.String(),
				State:    p.State.String(),
				Karma:    p.Karma,
				TipIndex: p.TipIndex,
			})
		}
	})
	return snap
}
