package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/mcp"
	"github.com/ekaya-inc/ekaya-discovery/pkg/middleware"
	"github.com/ekaya-inc/ekaya-discovery/pkg/mcp/tools"
)

// MCPOptions holds options for the mcp command.
type MCPOptions struct {
	HTTPAddr     string
	MaxBodyBytes int64
}

// NewMCPCommand creates the mcp command.
func NewMCPCommand() *cobra.Command {
	opts := &MCPOptions{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the discovery tools to MCP clients",
		Long: `Start a Model Context Protocol server exposing health,
generate_relationship_suggestions, classify_column and parse_sql_lineage.

The server speaks JSON-RPC over stdin/stdout unless --http is given, in which
case it serves the streamable HTTP transport at /mcp.

When rules.path is configured the rule file is watched and reloaded on save.`,
		Example: `  # stdio, for a client that launches the binary
  ekaya-discovery mcp --config discovery.yaml

  # HTTP
  ekaya-discovery mcp --http 127.0.0.1:3443`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.HTTPAddr, "http", "", "Serve over HTTP on this address instead of stdio")
	cmd.Flags().Int64Var(&opts.MaxBodyBytes, "max-body-bytes", middleware.DefaultMaxBodyBytes, "Largest accepted HTTP request body")

	return cmd
}

// NewMCPServer builds an MCP server with every discovery tool registered.
func NewMCPServer(app *App, version string) *mcp.Server {
	s := mcp.NewServer("ekaya-discovery", version, app.Logger)

	tools.RegisterHealthTool(s.MCP(), version, app.Catalog)
	tools.RegisterRelationshipTools(s.MCP(), &tools.RelationshipToolDeps{
		Suggestions:         app.Suggestions,
		DefaultDatasourceID: app.DefaultDatasourceID,
		Logger:              app.Logger,
	})
	tools.RegisterClassificationTools(s.MCP(), &tools.ClassificationToolDeps{
		Classification:      app.Classification,
		DefaultDatasourceID: app.DefaultDatasourceID,
		Logger:              app.Logger,
	})
	tools.RegisterLineageTools(s.MCP(), &tools.LineageToolDeps{
		Lineage: app.Lineage,
		Logger:  app.Logger,
	})
	return s
}

// MCPHandler wraps the streamable HTTP transport with body limits and
// request logging.
func MCPHandler(s *mcp.Server, logger *zap.Logger, maxBodyBytes int64) http.Handler {
	return middleware.Chain(s.NewStreamableHTTPServer(),
		middleware.LimitBody(maxBodyBytes),
		middleware.RequestLogger(logger.Named("http")),
	)
}

func runMCP(cmd *cobra.Command, opts *MCPOptions) error {
	app := appFrom(cmd.Context())
	s := NewMCPServer(app, cmd.Root().Version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if path := app.Config.Rules.Path; path != "" {
		go func() {
			if err := app.Rules.Watch(ctx, path); err != nil {
				app.Logger.Warn("Rules file will only refresh on TTL", zap.Error(err))
			}
		}()
	}

	if opts.HTTPAddr == "" {
		err := s.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", MCPHandler(s, app.Logger, opts.MaxBodyBytes))
	srv := &http.Server{
		Addr:              opts.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("Serving MCP over HTTP", zap.String("addr", opts.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("Shutting down MCP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
