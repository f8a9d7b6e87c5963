package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
)

const serverName = "hashtag-scraper"

// Searcher answers per-term searches. *aggregate.SearchAggregator satisfies it.
type Searcher interface {
	Search(ctx context.Context, term string) (*models.SearchTagResult, error)
}

// BulkProvider serves and refreshes the bulk listings. *aggregate.BulkService satisfies it.
type BulkProvider interface {
	NewTags(ctx context.Context) ([]models.TagRecord, error)
	BestTags(ctx context.Context) ([]models.TagRecord, error)
	ForceRefresh(ctx context.Context) (*models.BulkCacheEntry, error)
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Search    Searcher
	Bulk      BulkProvider
	Transport string // "stdio" or "sse"
	Port      int
	Version   string
	Logger    *logrus.Logger
}

// Server exposes the hashtag service as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Search == nil || cfg.Bulk == nil {
		return nil, fmt.Errorf("search and bulk providers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		mcpServer:  server.NewMCPServer(serverName, cfg.Version, server.WithLogging()),
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	searchTool := mcp.NewTool("search_tags",
		mcp.WithDescription("Get hashtags related to a search term, grouped into best, top, recommended, exact, popular and related"),
		mcp.WithString("term",
			mcp.Required(),
			mcp.Description("Search term, matched exactly and case-sensitively"),
		),
		mcp.WithString("category",
			mcp.Description("Return only one category (best, top, recommended, exact, popular, related)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchTags)

	newTagsTool := mcp.NewTool("get_new_tags",
		mcp.WithDescription("List newly trending hashtags from the bulk cache (refreshed when older than a day)"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of tags to return (default: all)"),
		),
	)
	s.mcpServer.AddTool(newTagsTool, s.handleGetNewTags)

	bestTagsTool := mcp.NewTool("get_best_tags",
		mcp.WithDescription("List the best hashtags from the bulk cache (refreshed when older than a day)"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of tags to return (default: all)"),
		),
	)
	s.mcpServer.AddTool(bestTagsTool, s.handleGetBestTags)

	refreshTool := mcp.NewTool("refresh_bulk_tags",
		mcp.WithDescription("Start a background refresh of the bulk listings. Returns immediately with a job ID."),
	)
	s.mcpServer.AddTool(refreshTool, s.handleRefreshBulkTags)

	jobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a refresh job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by refresh_bulk_tags"),
		),
	)
	s.mcpServer.AddTool(jobStatusTool, s.handleGetJobStatus)

	s.log.Infof("Registered %d MCP tools", 5)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		return server.NewSSEServer(s.mcpServer).Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(_ context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
