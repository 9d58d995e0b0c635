// Command checkchaind runs a single checkchain node: it binds the UDP
// transport, wires the chain and peer table into the orchestrator, and
// serves the optional HTTP collaborator contract until SIGINT.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/minnehack/checkchain/config"
	"github.com/minnehack/checkchain/internal/httpapi"
	"github.com/minnehack/checkchain/internal/log"
	"github.com/minnehack/checkchain/internal/node"
	"github.com/minnehack/checkchain/internal/transport"
)

func main() {
	cfg := config.Load()

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		log.Error().Err(err).Msg("failed to initialize logging, continuing with defaults")
	}

	tr, err := transport.Bind(cfg.Port)
	if err != nil {
		log.Fatal().Err(err).Int("port", cfg.Port).Msg("failed to bind UDP transport")
		os.Exit(1)
	}
	defer tr.Close()

	n := node.New(cfg, tr)

	var httpServer *httpapi.Server
	if cfg.HTTPAddr != "" {
		httpServer = httpapi.New(cfg.HTTPAddr, httpOrchestrator{n})
		if err := httpServer.Start(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.HTTPAddr).Msg("failed to start HTTP collaborator")
			os.Exit(1)
		}
		defer httpServer.Stop()
		log.Node.Info().Str("addr", httpServer.Addr()).Msg("http collaborator listening")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Node.Info().
		Int("port", tr.Port()).
		Int("seed_peers", len(cfg.Peers)).
		Msg("checkchaind started")

	err = n.Run(ctx, nil)
	if err != nil && ctx.Err() == nil {
		log.Node.Error().Err(err).Msg("orchestrator exited with error")
		os.Exit(1)
	}

	log.Node.Info().Msg("shutting down")
	os.Exit(130)
}
