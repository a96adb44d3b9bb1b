package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/config"
	"github.com/Epistemic-Technology/rfp-mcp/internal/filter"
	"github.com/Epistemic-Technology/rfp-mcp/internal/llm"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/operations"
	"github.com/Epistemic-Technology/rfp-mcp/internal/search"
	"github.com/Epistemic-Technology/rfp-mcp/internal/storage"
	"github.com/Epistemic-Technology/rfp-mcp/resources"
	"github.com/Epistemic-Technology/rfp-mcp/tools"
)

func CreateServer(cfg config.Config, log logger.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "rfp-mcp", Version: "v0.1.0"}, nil)

	store, err := initializeStorage(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize storage: %v", err)
	}

	deps, err := buildDeps(cfg, store, log)
	if err != nil {
		log.Fatal("Failed to configure pipeline: %v", err)
	}

	proposalResourceHandler := resources.NewProposalResourceHandler(store)

	// Register tools with their dependencies
	mcp.AddTool(server, tools.RFPFilterTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.RFPFilterQuery) (*mcp.CallToolResult, *tools.RFPFilterResponse, error) {
		return tools.RFPFilterToolHandler(ctx, req, query, deps.Filter, log)
	})

	mcp.AddTool(server, tools.RFPExtractTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.RFPExtractQuery) (*mcp.CallToolResult, *tools.RFPExtractResponse, error) {
		return tools.RFPExtractToolHandler(ctx, req, query, deps, log)
	})

	mcp.AddTool(server, tools.ExcelImportTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ExcelImportQuery) (*mcp.CallToolResult, *tools.ExcelImportResponse, error) {
		return tools.ExcelImportToolHandler(ctx, req, query, deps, log)
	})

	mcp.AddTool(server, tools.ScreenGapsTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ScreenGapsQuery) (*mcp.CallToolResult, *tools.ScreenGapsResponse, error) {
		return tools.ScreenGapsToolHandler(ctx, req, query, deps, log)
	})

	mcp.AddTool(server, tools.ProposalExportTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ProposalExportQuery) (*mcp.CallToolResult, *tools.ProposalExportResponse, error) {
		return tools.ProposalExportToolHandler(ctx, req, query, deps, log)
	})

	mcp.AddTool(server, tools.ProposalListTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ProposalListQuery) (*mcp.CallToolResult, *tools.ProposalListResponse, error) {
		return tools.ProposalListToolHandler(ctx, req, query, store, log)
	})

	mcp.AddTool(server, tools.ProposalDeleteTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ProposalDeleteQuery) (*mcp.CallToolResult, *tools.ProposalDeleteResponse, error) {
		return tools.ProposalDeleteToolHandler(ctx, req, query, store, log)
	})

	templates := []*mcp.ResourceTemplate{
		{
			URITemplate: "proposal://{proposalId}",
			Name:        "proposal",
			Description: "Stored proposal summary with totals and available resources",
			MIMEType:    "application/json",
		},
		{
			URITemplate: "proposal://{proposalId}/screens",
			Name:        "proposal-screens",
			Description: "All screens in the proposal",
			MIMEType:    "application/json",
		},
		{
			URITemplate: "proposal://{proposalId}/screens/{screenIndex}",
			Name:        "proposal-screen",
			Description: "A specific screen from the proposal (0-indexed)",
			MIMEType:    "application/json",
		},
		{
			URITemplate: "proposal://{proposalId}/audit",
			Name:        "proposal-audit",
			Description: "Per-screen cost audit and project totals",
			MIMEType:    "application/json",
		},
	}
	for _, t := range templates {
		server.AddResourceTemplate(t, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return proposalResourceHandler.ReadResource(ctx, req.Params.URI)
		})
	}

	return server
}

// buildDeps wires the optional model and search clients into the pipeline.
// Missing credentials switch a step off rather than failing startup.
func buildDeps(cfg config.Config, store storage.Store, log logger.Logger) (operations.Deps, error) {
	priority, err := cfg.MergePriority()
	if err != nil {
		return operations.Deps{}, err
	}

	deps := operations.Deps{
		Filter:           filter.New(cfg.Filter, log.With("filter")),
		Store:            store,
		Rates:            cfg.Pricing,
		Priority:         priority,
		InstallLookahead: cfg.Extraction.InstallLookahead,
		RenderDPI:        cfg.Extraction.RenderDPI,
		MaxWorkers:       cfg.LLM.MaxWorkers,
		Log:              log,
	}

	if cfg.LLM.Enabled() {
		completer, err := llm.NewOpenAICompleter(cfg.LLM, log.With("llm"))
		if err != nil {
			return operations.Deps{}, fmt.Errorf("failed to create LLM client: %w", err)
		}
		deps.LLM = completer
		if completer.HasVision() {
			deps.Vision = completer
		}
		log.Info("LLM extraction enabled (model %s)", cfg.LLM.Model)
	} else {
		log.Info("LLM not configured; extraction will use regex and search only")
	}

	if cfg.Search.APIKey != "" {
		deps.Search = search.NewSerperClient(cfg.Search.APIKey, cfg.Search.Endpoint, nil)
		log.Info("Web search fallback enabled")
	}
	return deps, nil
}

// initializeStorage creates and initializes the storage backend
func initializeStorage(cfg config.StorageConfig, log logger.Logger) (storage.Store, error) {
	if cfg.Driver == config.DriverPostgres {
		log.Info("Connecting to PostgreSQL proposal store")
		store, err := storage.NewPostgresStore(context.Background(), cfg.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		return store, nil
	}

	dbPath, err := cfg.SQLitePath()
	if err != nil {
		return nil, err
	}

	log.Info("Initializing SQLite database at: %s", dbPath)

	store, err := storage.NewSQLiteStore(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite store: %w", err)
	}

	return store, nil
}
