package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/auth"
	"github.com/lawfx/ScrumPokerServer/internal/config"
	"github.com/lawfx/ScrumPokerServer/internal/core"
	"github.com/lawfx/ScrumPokerServer/internal/store"
	"github.com/lawfx/ScrumPokerServer/internal/store/sqlite"
	transporthttp "github.com/lawfx/ScrumPokerServer/internal/transport/http"
)

// App wires together the store, auth, lobby and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	lobby           *core.Lobby
	sessions        *transporthttp.SessionServer
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		TTL:      cfg.TokenTTL,
		GuestTTL: cfg.GuestTokenTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	lobby := core.NewLobby(logger, core.Options{GracePeriod: cfg.RoomGracePeriod})
	sessions := transporthttp.NewSessionServer(lobby, authService, cfg.HeartbeatInterval, logger)
	server := transporthttp.NewServer(lobby, sessions, authService, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		lobby:           lobby,
		sessions:        sessions,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.lobby.Run(ctx)
	go a.sessions.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
