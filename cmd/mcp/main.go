// Command mcp serves the bot's read-only status API as MCP tools over stdio.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tazhate/dombot/internal/logger"
)

func main() {
	// stdout carries the protocol; logs go to stderr.
	log := logger.NewWithWriter(os.Stderr, "dombot-mcp", os.Getenv("LOG_LEVEL"))

	apiURL := os.Getenv("DOMBOT_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	api := NewAPIClient(APIClientConfig{
		URL:      apiURL,
		Username: os.Getenv("DOMBOT_API_USERNAME"),
		Password: os.Getenv("DOMBOT_API_PASSWORD"),
		Timeout:  15 * time.Second,
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewServer(api).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server stopped")
	}
}
