package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/entrysim/internal/config"
	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/logging"
	"github.com/nvandessel/entrysim/internal/ratelimit"
	"github.com/nvandessel/entrysim/internal/store"
)

// Server wraps the MCP SDK server and provides entrysim tools.
type Server struct {
	server       *sdk.Server
	settings     *config.Config
	engine       *engine.Engine
	store        *store.SQLiteStore
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "entrysim")
	Version string // Server version

	// Settings supplies the model parameters and default seed. Nil means
	// config.Default().
	Settings *config.Config

	// DataDir holds the run store and the audit log. Empty disables both,
	// and the store-backed tools report an error.
	DataDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with entrysim tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		settings:     settings,
		engine:       engine.New(engine.Options{Logger: logger}),
		toolLimiters: ratelimit.NewToolLimiters(ratelimit.DefaultLimits),
		logger:       logger,
	}

	if cfg.DataDir != "" {
		runStore, err := store.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		s.store = runStore

		audit, err := NewAuditLogger(cfg.DataDir)
		if err != nil {
			logger.Warn("audit log disabled", "error", err)
		}
		s.auditLogger = audit
	}

	s.server = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the run store and the audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.store != nil {
		firstErr = s.store.Close()
		s.store = nil
	}
	if err := s.auditLogger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
