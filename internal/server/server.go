// ABOUTME: Server orchestrator that coordinates the HTTP API and gRPC health servers
// ABOUTME: Owns the prefs service and its store for the lifetime of the process

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/keepalive"

	"github.com/2389/statekeeper/internal/auth"
	"github.com/2389/statekeeper/internal/commands"
	"github.com/2389/statekeeper/internal/config"
	"github.com/2389/statekeeper/internal/kvstore"
	"github.com/2389/statekeeper/internal/prefs"
)

// Server runs the statekeeper API.
type Server struct {
	config     *config.Config
	store      kvstore.Store
	prefs      *prefs.Service
	commands   *commands.Commands
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	logger     *slog.Logger
}

// New opens the configured store and builds the servers.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := OpenStore(cfg.Storage, logger.With("component", "store"))
	if err != nil {
		return nil, err
	}

	srv, err := newWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

// newWithStore builds a Server around an already-open store.
func newWithStore(cfg *config.Config, s kvstore.Store, logger *slog.Logger) (*Server, error) {
	svc := prefs.NewService(s, prefs.Options{
		HistoryCap:   cfg.Limits.HistoryCap,
		ScanCacheCap: cfg.Limits.ScanCacheCap,
		Logger:       logger,
	})

	srv := &Server{
		config: cfg,
		store:  s,
		prefs:  svc,
		commands: commands.New(svc, commands.Options{
			DefaultLimit: cfg.Limits.HistoryDefaultLimit,
			Logger:       logger,
		}),
		logger: logger.With("component", "server"),
	}

	srv.grpcServer, srv.health = createGRPCServer()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	if err := srv.registerHTTPAPIRoutes(mux, logger); err != nil {
		return nil, err
	}

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           requestLogger(srv.logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// createGRPCServer creates the gRPC server and registers the health service.
func createGRPCServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	hs := health.NewServer()
	registerHealth(server, hs)
	return server, hs
}

func (s *Server) registerHTTPAPIRoutes(mux *http.ServeMux, logger *slog.Logger) error {
	api := http.NewServeMux()
	api.HandleFunc("/api/settings", s.handleSettings)
	api.HandleFunc("/api/history", s.handleHistory)
	api.HandleFunc("/api/scans", s.handleScans)
	api.HandleFunc("/api/scans/", s.handleScan)
	api.HandleFunc("/api/status", s.handleStatus)

	if s.config.Auth.JWTSecret == "" {
		mux.Handle("/api/", api)
		logger.Warn("HTTP auth disabled - no jwt_secret configured")
		return nil
	}

	verifier, err := auth.NewJWTVerifier([]byte(s.config.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating HTTP JWT verifier: %w", err)
	}
	mux.Handle("/api/", auth.HTTPAuthMiddleware(verifier, logger.With("component", "auth"))(api))
	logger.Info("HTTP auth middleware enabled")
	return nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupListeners creates TCP listeners. grpcLn is nil when gRPC is disabled.
func (s *Server) setupListeners() (grpcLn, httpLn net.Listener, err error) {
	s.logger.Info("starting statekeeper",
		"http_addr", s.config.Server.HTTPAddr,
		"grpc_addr", s.config.Server.GRPCAddr,
	)

	httpLn, err = net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if s.config.Server.GRPCAddr == "" {
		return nil, httpLn, nil
	}

	grpcLn, err = net.Listen("tcp", s.config.Server.GRPCAddr)
	if err != nil {
		_ = httpLn.Close()
		return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
	}
	return grpcLn, httpLn, nil
}

// startServers starts the servers in goroutines, returning an error channel.
func (s *Server) startServers(grpcLn, httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	if grpcLn != nil {
		go func() {
			s.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := s.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	go func() {
		s.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := s.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		s.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (s *Server) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		s.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the servers and blocks until ctx is canceled or a server fails.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	grpcListener, httpListener, err := s.setupListeners()
	if err != nil {
		return err
	}

	s.refreshHealth(ctx)

	errCh := s.startServers(grpcListener, httpListener)
	serverErr := s.waitForShutdownSignal(ctx, errCh)

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context bounded by the configured timeout.
func (s *Server) gracefulShutdown() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (s *Server) shutdownGRPCServer(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the servers, waits for in-flight mutations and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down statekeeper")

	s.health.Shutdown()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	s.shutdownGRPCServer(ctx)

	errs = appendCloseError(errs, "store close", s.prefs.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
