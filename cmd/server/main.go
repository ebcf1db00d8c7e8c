package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"secure-chat/contract"
	"secure-chat/infrastructure/grpc"
	"secure-chat/infrastructure/server"
	"secure-chat/internal"
	"secure-chat/moderation"
	"secure-chat/repositories"
	"secure-chat/runtime"
	"secure-chat/runtime/workers"
	"secure-chat/services"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

// Exit codes for the service manager
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until SIGINT or SIGTERM. Returning
// instead of exiting lets the deferred cleanups (user store) run.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig(".env")
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	tlsConfig, err := config.ServerTLSConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("TLS setup failed: %w", err)
	}
	if config.TLSSelfSigned {
		log.Warn("Serving a self-signed certificate, clients cannot verify this server")
	}

	// 2. User store, only needed when passwords are checked
	var userRepository repositories.IUserRepository
	if config.RequireCredentials {
		db, err := repositories.OpenBadger(config.BadgerFilepath)
		if err != nil {
			return exitRuntime, fmt.Errorf("user store opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		userRepository = repositories.NewUserRepository(db)
	}
	authService := services.NewAuthService(log, userRepository,
		[]byte(config.AuthTokenSecret), config.AuthTokenDuration,
		config.RequireCredentials, config.AutoRegister)

	// 3. Moderation
	var censor contract.ICensor
	if config.ModerationEnabled {
		charReplacement, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return exitConfig, err
		}
		data, err := moderation.LoadEmbedded()
		if err != nil {
			return exitRuntime, fmt.Errorf("loading censored words failed: %w", err)
		}
		moderator, err := moderation.NewModerator(data.Words, charReplacement, log)
		if err != nil {
			return exitRuntime, fmt.Errorf("building moderator failed: %w", err)
		}
		log.Info("Moderation enabled", "words", len(data.Words), "languages", data.Languages)
		censor = moderator
	}

	// 4. Relay state
	registry := runtime.NewRegistry()
	directory := runtime.NewDirectory()
	directory.EnsureRoom(config.DefaultRoom)
	dispatcher := runtime.NewDispatcher(log, registry, directory, authService, censor, config.DefaultRoom)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Auxiliary workers are restarted by the supervisor, the relay itself is not
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewTelemetryWorker(log, config.MetricInterval, registry, directory))
	if config.HealthPort > 0 {
		sup.Add(grpc.NewHealthWorker(log, config.HealthAddress()))
	}

	relay := server.NewServer(log, config.Address(), tlsConfig, dispatcher,
		config.HandshakeTimeout, config.OutboundQueueSize)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sup.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		return relay.Run(gCtx)
	})
	g.Go(func() error {
		select {
		case <-relay.Ready():
			log.Info("Relay ready", "address", relay.Addr().String(), "default_room", config.DefaultRoom)
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, fmt.Errorf("relay stopped: %w", err)
	}
	log.Info("Shutdown complete")
	return exitOK, nil
}
