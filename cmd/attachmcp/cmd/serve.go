package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/attachmcp/attachmcp/internal/chunk"
	"github.com/attachmcp/attachmcp/internal/config"
	"github.com/attachmcp/attachmcp/internal/contentstore"
	"github.com/attachmcp/attachmcp/internal/index"
	"github.com/attachmcp/attachmcp/internal/logging"
	"github.com/attachmcp/attachmcp/internal/mcp"
	"github.com/attachmcp/attachmcp/internal/store"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe wires the service stack and runs the MCP server until the
// context is canceled or the client disconnects.
func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.Default()
	if !debugMode {
		// Without --debug, keep stdout clean and stderr quiet unless
		// something is worth reporting.
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logging.LevelFromString(cfg.Logging.Level),
		}))
		slog.SetDefault(logger)
	}

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	}
	repo, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store at %s: %w", dbPath, err)
	}
	defer repo.Close()

	indexes, err := index.NewManager(repo,
		index.Config{K1: cfg.Index.K1, B: cfg.Index.B},
		cfg.Index.CacheCapacity, logger)
	if err != nil {
		return err
	}

	chunker := chunk.New(chunk.Options{
		ChunkSize:    cfg.Chunker.ChunkSize,
		MinChunkSize: cfg.Chunker.MinChunkSize,
		OverlapSize:  cfg.Chunker.OverlapSize,
	})

	service := contentstore.NewService(repo, indexes, chunker,
		contentstore.FileFetcher{MaxBytes: cfg.Limits.MaxFetchBytes},
		contentstore.PlainTextDecoder{},
		contentstore.Limits{
			MaxContentBytes:  cfg.Limits.MaxContentBytes,
			ListDefaultLimit: cfg.Limits.ListDefaultLimit,
			ListMaxLimit:     cfg.Limits.ListMaxLimit,
		}, logger)

	server, err := mcp.NewServer(service, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, cfg.Server.Transport)
}
