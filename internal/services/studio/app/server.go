// Package app wires the studio runtime and HTTP lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	eventservice "github.com/lumenfoto/backstage/internal/eventconfig/service"
	"github.com/lumenfoto/backstage/internal/platform/config"
	"github.com/lumenfoto/backstage/internal/platform/timeouts"
	"github.com/lumenfoto/backstage/internal/services/shared/httpx"
	"github.com/lumenfoto/backstage/internal/services/studio/api"
	bboltstore "github.com/lumenfoto/backstage/internal/storage/bbolt"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type serverEnv struct {
	ConfigDBPath string `env:"BACKSTAGE_CONFIG_DB_PATH"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.ConfigDBPath) == "" {
		cfg.ConfigDBPath = filepath.Join("data", "eventconfig.db")
	}
	return cfg
}

// Server hosts the studio HTTP API and storage lifecycle.
type Server struct {
	httpServer  *http.Server
	configStore *bboltstore.Store
	addr        string
}

// New creates a configured studio server for the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured studio server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	env := loadServerEnv()
	configStore, err := openConfigStore(env.ConfigDBPath)
	if err != nil {
		return nil, err
	}

	ledger := eventservice.NewLedger(configStore)

	mux := http.NewServeMux()
	handlers := api.NewHandlers(ledger)
	handlers.Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	handler := httpx.Chain(mux, httpx.RequestID(), httpx.RecoverPanic())
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(handler, "studio"),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		httpServer:  httpServer,
		configStore: configStore,
		addr:        addr,
	}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Run creates and serves a studio server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	defer server.Close()
	return server.ListenAndServe(ctx)
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("studio server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.addr = listener.Addr().String()

	serveErr := make(chan error, 1)
	log.Printf("studio listening on %s", s.addr)
	go func() {
		serveErr <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases studio server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.configStore != nil {
		if err := s.configStore.Close(); err != nil {
			log.Printf("close config store: %v", err)
		}
	}
}

func openConfigStore(path string) (*bboltstore.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := bboltstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event config store: %w", err)
	}
	return store, nil
}
