// ABOUTME: Hub orchestrator that wires the registry, websocket hub, table store,
// ABOUTME: command pipeline, and HTTP API, and manages their lifecycle.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/minefleet/fleet-hub/internal/api"
	"github.com/minefleet/fleet-hub/internal/assets"
	"github.com/minefleet/fleet-hub/internal/auth"
	"github.com/minefleet/fleet-hub/internal/command"
	"github.com/minefleet/fleet-hub/internal/config"
	"github.com/minefleet/fleet-hub/internal/dedupe"
	"github.com/minefleet/fleet-hub/internal/eventlog"
	"github.com/minefleet/fleet-hub/internal/hub"
	"github.com/minefleet/fleet-hub/internal/prompter"
	"github.com/minefleet/fleet-hub/internal/registry"
	"github.com/minefleet/fleet-hub/internal/status"
	"github.com/minefleet/fleet-hub/internal/tables"
	"github.com/minefleet/fleet-hub/internal/tasks"
	"github.com/minefleet/fleet-hub/internal/transcribe"
)

// Server owns every hub component and their lifecycle.
type Server struct {
	config     *config.Config
	registry   *registry.Registry
	hub        *hub.Hub
	tables     *tables.Store
	status     *status.Service
	catalog    *command.Catalog
	dispatcher *command.Dispatcher
	actionLog  *eventlog.Log
	statusLog  *eventlog.Log
	replay     *dedupe.Cache
	httpServer *http.Server
	logger     *slog.Logger

	shutdownCh chan struct{}
}

// New wires all components from the configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.New(cfg.Fleet.MaxAgents, logger)
	actionLog := eventlog.New(hub.EventActionLog, cfg.Fleet.ActionLogCap)
	statusLog := eventlog.New(hub.EventStatusLog, cfg.Fleet.StatusLogCap)

	h := hub.New(reg, actionLog, statusLog, logger)
	actionLog.SetNotifier(h)
	statusLog.SetNotifier(h)

	store, err := tables.New(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing table store: %w", err)
	}
	store.SetNotifier(h)

	statusSvc := status.New(reg, h, statusLog, cfg.Fleet.StatusTimeout, logger)
	h.SetStatusHandler(statusSvc)

	catalog := command.NewCatalog()
	if err := command.RegisterBuiltins(catalog, h); err != nil {
		store.Close()
		return nil, fmt.Errorf("registering commands: %w", err)
	}
	dispatcher := command.NewDispatcher(catalog, actionLog, cfg.Fleet.TaskQueueLimit, logger)

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	} else {
		logger.Warn("auth.jwt_secret not set, API endpoints are unauthenticated")
	}

	var p prompter.Prompter = prompter.NewOpenAI(
		cfg.Prompter.BaseURL, cfg.Prompter.APIKey, cfg.Prompter.Model, catalog, logger,
	)
	var t transcribe.Transcriber = transcribe.NewHTTP(
		cfg.Transcribe.BaseURL, cfg.Transcribe.APIKey, cfg.Transcribe.Model,
		cfg.Transcribe.MaxAudioBytes, logger,
	)

	replay := dedupe.New(5*time.Minute, 10000)
	taskQueue := tasks.New(cfg.Fleet.TaskQueueLimit, logger)

	apiServer := api.New(api.Options{
		Registry:    reg,
		Fleet:       h,
		Status:      statusSvc,
		Tables:      store,
		Dispatcher:  dispatcher,
		Prompter:    p,
		Transcriber: t,
		ActionLog:   actionLog,
		StatusLog:   statusLog,
		Tasks:       taskQueue,
		Verifier:    verifier,
		Replay:      replay,
		MaxAudio:    cfg.Transcribe.MaxAudioBytes,
		Logger:      logger,
	})

	apiHandler := apiServer.Handler()

	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.Handle("/api/", apiHandler)
	mux.Handle("/health", apiHandler)
	mux.Handle("/health/", apiHandler)
	mux.Handle("/", assets.FileServer())

	s := &Server{
		config:     cfg,
		registry:   reg,
		hub:        h,
		tables:     store,
		status:     statusSvc,
		catalog:    catalog,
		dispatcher: dispatcher,
		actionLog:  actionLog,
		statusLog:  statusLog,
		replay:     replay,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:     logger.With("component", "server"),
		shutdownCh: make(chan struct{}),
	}
	h.SetShutdownFunc(s.requestShutdown)
	return s, nil
}

// Registry exposes the agent registry, used by CLI subcommands.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

func (s *Server) requestShutdown() {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}
}

// Run serves until the context is cancelled, a shutdown event arrives, or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("hub listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go s.heartbeatLoop(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	case <-s.shutdownCh:
		s.logger.Info("shutdown event received")
	case serveErr = <-errCh:
		s.logger.Error("server failed", "error", serveErr)
	}

	shutdownErr := s.Shutdown()
	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

// heartbeatLoop sweeps the registry on the configured interval, demoting
// agents that missed three heartbeats in a row to offline.
func (s *Server) heartbeatLoop(ctx context.Context) {
	interval := s.config.Fleet.HeartbeatInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			if stale := s.registry.MarkStale(3 * interval); len(stale) > 0 {
				s.hub.BroadcastAgents()
			}
		}
	}
}

// Shutdown stops the HTTP server, closes every websocket connection, waits
// for in-flight actions, and closes the table store.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down hub")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	s.hub.Close()
	s.dispatcher.Wait()
	s.replay.Close()

	if err := s.tables.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
