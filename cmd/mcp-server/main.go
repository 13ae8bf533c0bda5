package main

import (
	"context"
	"log"
	"os"

	"github.com/fundiconnect/fundi-go/internal/config"
	"github.com/fundiconnect/fundi-go/internal/logging"
	"github.com/fundiconnect/fundi-go/pkg/fundi"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	// Same config file as the CLI, so a `fundi login` session is reused
	cfg, err := config.LoadOrDefault(os.Getenv("FUNDI_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// stdout carries the MCP protocol
	logger := logging.NewSimpleLoggerWithWriter("fundi-mcp", logging.ParseLevel(cfg.Logging.Level), os.Stderr)

	client, err := fundi.NewClient(&fundi.ClientOptions{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.TimeoutDuration(),
		StoreConfig: &cfg.Store,
		Logger:      logger,
		RetryConfig: cfg.API.Retry,
		SentryDSN:   cfg.Sentry.DSN,
		LoginRoute:  cfg.Navigation.LoginRoute,
	})
	if err != nil {
		log.Fatalf("failed to initialize Fundi client: %v", err)
	}
	defer client.Close()

	if !client.Status().Authenticated {
		logger.Warn("No stored session, only list_categories and session_status will work. Run `fundi login` first.")
	}

	impl := &mcp.Implementation{
		Name:    "fundi",
		Version: "1.0.0",
	}

	server := mcp.NewServer(impl, nil)
	registerTools(server, client)

	// Run server over stdio transport (for Claude Desktop)
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Error("server error", "error", err)
	}
}

func registerTools(server *mcp.Server, client *fundi.Client) {
	tools := &fundiTools{client: client}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List open jobs on the Fundi marketplace with optional category, search and status filters. Returns one page of jobs with title, location, budget and status, plus pagination.",
	}, tools.ListJobs)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_job",
		Description: "Get a single job by ID, including its category, description and number of applications.",
	}, tools.GetJob)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_categories",
		Description: "Get all trade categories (plumbing, electrical, ...) with the number of jobs in each.",
	}, tools.ListCategories)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_notifications",
		Description: "List the logged in user's notifications, newest first, with the unread count.",
	}, tools.ListNotifications)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_status",
		Description: "Report whether a login session is stored, whether it is still valid, when it expires and who is logged in.",
	}, tools.SessionStatus)
}
