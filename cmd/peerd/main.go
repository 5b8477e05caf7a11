package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/tensorwire/internal/channel"
	"github.com/danmuck/tensorwire/internal/config"
	"github.com/danmuck/tensorwire/internal/observability"
	"github.com/danmuck/tensorwire/internal/peer"
	"github.com/danmuck/tensorwire/internal/transfer"
	"github.com/danmuck/tensorwire/internal/wire"
	"github.com/rs/zerolog"
)

func main() {
	cfgPath := flag.String("config", "peer.toml", "peer config file")
	localPath := flag.String("local", "", "optional local override file")
	flag.Parse()

	cfg, err := config.LoadPeerConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "peerd: %v\n", err)
		os.Exit(1)
	}
	if *localPath != "" {
		cfg, err = applyLocalOverrides(cfg, *localPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "peerd: %v\n", err)
			os.Exit(1)
		}
	}

	logger := observability.InitLogger(cfg.Name, wire.Rank(cfg.Rank))

	ch, err := channel.ListenTCP(channel.TCPConfig{
		Rank:     wire.Rank(cfg.Rank),
		Listen:   cfg.Listen,
		Peers:    cfg.PeerTable(),
		Security: cfg.Security.ToChannel(),
		Log:      logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "peerd: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	p := peer.New(cfg.Name, wire.Rank(cfg.Rank), ch, logger)
	registerHandlers(p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AdminAddr != "" {
		go func() {
			if err := p.AdminRouter(cfg.CorsOrigins).Run(cfg.AdminAddr); err != nil {
				logger.Error().Err(err).Str("addr", cfg.AdminAddr).Msg("admin server failed")
			}
		}()
	}

	logger.Info().Str("listen", ch.Addr()).Msg("peer up")
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("receive loop failed")
		os.Exit(1)
	}
	logger.Info().Msg("peer down")
}

func registerHandlers(p *peer.Peer, logger zerolog.Logger) {
	logContent := func(res transfer.Result) {
		elements := 0
		for _, buf := range res.Content {
			elements += len(buf)
		}
		logger.Info().
			Int32("src", int32(res.Sender)).
			Str("code", res.Code.Name()).
			Int("buffers", len(res.Content)).
			Int("elements", elements).
			Msg("package received")
	}

	for _, code := range []wire.MessageCode{
		wire.CodeParameterUpdate,
		wire.CodeParameterRequest,
		wire.CodeEvaluateParams,
	} {
		if err := p.Handle(code, func(_ context.Context, res transfer.Result) error {
			logContent(res)
			return nil
		}); err != nil {
			logger.Error().Err(err).Msg("handler registration failed")
		}
	}
	if err := p.Handle(wire.CodeExit, func(context.Context, transfer.Result) error {
		return peer.ErrStop
	}); err != nil {
		logger.Error().Err(err).Msg("handler registration failed")
	}
}
