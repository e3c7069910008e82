package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/chat-relay/config"
	"github.com/adwski/chat-relay/registry"
	"github.com/adwski/chat-relay/router"
	httpServer "github.com/adwski/chat-relay/server/http"
	websocketServer "github.com/adwski/chat-relay/server/websocket"
	store "github.com/adwski/chat-relay/storage/memory"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err == nil {
		logger.Debug().Msg("loaded .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", cfg.APIListenAddr, "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", cfg.WSListenAddr, "websocket relay listen address")
		logLevel      = fs.StringP("log-level", "l", cfg.LogLevel, "log level")
		defaultRoom   = fs.StringP("default-room", "r", cfg.DefaultRoom, "room joined when none is specified")
	)
	if err = fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	memStore := store.NewStore()
	rt := router.NewRouter(router.Config{
		Logger:      &logger,
		Members:     memStore,
		SendTimeout: cfg.SendTimeout,
	})
	reg := registry.NewRegistry(registry.Config{
		Store:       memStore,
		Router:      rt,
		Logger:      &logger,
		DefaultRoom: *defaultRoom,
		SendTimeout: cfg.SendTimeout,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:     &logger,
		RoomLister: memStore,
		ListenAddr: *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:     &logger,
		Relay:      reg,
		ListenAddr: *wsListenAddr,
		SendBuffer: cfg.SendBuffer,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
