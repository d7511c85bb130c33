package main

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "dombot-mcp"
	serverVersion = "1.0.0"
)

// NoInput is the argument type of tools that take no arguments.
type NoInput struct{}

type HealthResult struct {
	Status       string `json:"status" jsonschema:"ok when the bot is serving"`
	Users        int    `json:"users" jsonschema:"number of known users"`
	PendingFlush bool   `json:"pending_flush" jsonschema:"true when changes wait for the next store flush"`
	RateTracked  int    `json:"rate_tracked" jsonschema:"actors currently tracked by the rate governor"`
}

type RankInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of entries, defaults to the bot's rank limit"`
}

type RankEntry struct {
	Position int    `json:"position" jsonschema:"1-based rank"`
	ID       string `json:"id" jsonschema:"WhatsApp JID"`
	Coins    int64  `json:"coins" jsonschema:"balance"`
}

type RankResult struct {
	Entries []RankEntry `json:"entries" jsonschema:"richest first"`
}

type UserInput struct {
	ID string `json:"id" jsonschema:"phone number or WhatsApp JID"`
}

type UserResult struct {
	ID             string `json:"id" jsonschema:"WhatsApp JID"`
	Coins          int64  `json:"coins" jsonschema:"balance"`
	MessageCount   int64  `json:"message_count" jsonschema:"messages counted by the ledger"`
	LastDailyClaim string `json:"last_daily_claim,omitempty" jsonschema:"RFC3339 time of the last daily bonus, empty if never"`
	JoinedAt       string `json:"joined_at" jsonschema:"RFC3339 time the user was first seen"`
	Role           string `json:"role" jsonschema:"stored role: owner, admin or member"`
}

type RolesResult struct {
	Owners []string `json:"owners" jsonschema:"bot owner JIDs"`
	Admins []string `json:"admins" jsonschema:"bot admin JIDs"`
}

type ShopItem struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type ShopResult struct {
	Items []ShopItem `json:"items" jsonschema:"catalog in display order"`
}

// NewServer builds the MCP server with one tool per status API route.
func NewServer(api *APIClient) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dombot_health",
		Description: "Bot status: known users, pending store flush, rate-limited actors tracked.",
	}, healthHandler(api))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dombot_rank",
		Description: "Coin ranking, richest first.",
	}, rankHandler(api))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dombot_user",
		Description: "One user's economy record and stored role.",
	}, userHandler(api))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dombot_roles",
		Description: "Bot owners and admins.",
	}, rolesHandler(api))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dombot_shop",
		Description: "Shop catalog.",
	}, shopHandler(api))

	return server
}

func healthHandler(api *APIClient) mcp.ToolHandlerFor[NoInput, HealthResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, HealthResult, error) {
		var out HealthResult
		if err := api.Get(ctx, "/health", &out); err != nil {
			return nil, HealthResult{}, err
		}
		return nil, out, nil
	}
}

func rankHandler(api *APIClient) mcp.ToolHandlerFor[RankInput, RankResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RankInput) (*mcp.CallToolResult, RankResult, error) {
		if input.Limit < 0 {
			return nil, RankResult{}, errors.New("limit must be positive")
		}
		path := "/api/rank"
		if input.Limit > 0 {
			path += "?limit=" + strconv.Itoa(input.Limit)
		}
		var entries []RankEntry
		if err := api.Get(ctx, path, &entries); err != nil {
			return nil, RankResult{}, err
		}
		if entries == nil {
			entries = []RankEntry{}
		}
		return nil, RankResult{Entries: entries}, nil
	}
}

func userHandler(api *APIClient) mcp.ToolHandlerFor[UserInput, UserResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input UserInput) (*mcp.CallToolResult, UserResult, error) {
		id := strings.TrimSpace(input.ID)
		if id == "" {
			return nil, UserResult{}, errors.New("id is required")
		}
		var out UserResult
		if err := api.Get(ctx, "/api/user/"+url.PathEscape(id), &out); err != nil {
			return nil, UserResult{}, err
		}
		return nil, out, nil
	}
}

func rolesHandler(api *APIClient) mcp.ToolHandlerFor[NoInput, RolesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, RolesResult, error) {
		var out RolesResult
		if err := api.Get(ctx, "/api/roles", &out); err != nil {
			return nil, RolesResult{}, err
		}
		if out.Owners == nil {
			out.Owners = []string{}
		}
		if out.Admins == nil {
			out.Admins = []string{}
		}
		return nil, out, nil
	}
}

func shopHandler(api *APIClient) mcp.ToolHandlerFor[NoInput, ShopResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, ShopResult, error) {
		var items []ShopItem
		if err := api.Get(ctx, "/api/shop", &items); err != nil {
			return nil, ShopResult{}, err
		}
		if items == nil {
			items = []ShopItem{}
		}
		return nil, ShopResult{Items: items}, nil
	}
}
