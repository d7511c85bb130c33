package bot

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/dombot/config"
	"github.com/tazhate/dombot/internal/domain"
)

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type RankResponse struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Coins    int64  `json:"coins"`
}

type UserResponse struct {
	ID             string  `json:"id"`
	Coins          int64   `json:"coins"`
	MessageCount   int64   `json:"message_count"`
	LastDailyClaim *string `json:"last_daily_claim,omitempty"`
	JoinedAt       string  `json:"joined_at"`
	Role           string  `json:"role"`
}

type RolesResponse struct {
	Owners []string `json:"owners"`
	Admins []string `json:"admins"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	Users        int    `json:"users"`
	PendingFlush bool   `json:"pending_flush"`
	RateTracked  int    `json:"rate_tracked"`
}

// StartAPI serves the read-only status API when credentials are configured.
func (b *Bot) StartAPI() {
	if !b.cfg.APIEnabled() {
		b.log.Info().Msg("Status API disabled (no API_USERNAME/API_PASSWORD)")
		return
	}

	b.server = &http.Server{
		Addr:              ":" + b.cfg.API.Port,
		Handler:           b.APIHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		b.log.Info().Str("addr", b.server.Addr).Msg("Starting status API")
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.log.Error().Err(err).Msg("HTTP server error")
		}
	}()
}

// APIHandler registers API routes with Basic Auth. /health is public.
func (b *Bot) APIHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", b.apiHealth)

	mux.HandleFunc("/api/rank", b.basicAuth(b.apiRank))
	mux.HandleFunc("/api/user/", b.basicAuth(b.apiUser))
	mux.HandleFunc("/api/roles", b.basicAuth(b.apiRoles))
	mux.HandleFunc("/api/shop", b.basicAuth(b.apiShop))

	return mux
}

// basicAuth middleware
func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !credentialsMatch(b.cfg.API, username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="DomBot API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func credentialsMatch(api config.APIConfig, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(api.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(api.Password)) == 1
	return userOK && passOK
}

func (b *Bot) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// GET /health
func (b *Bot) apiHealth(w http.ResponseWriter, r *http.Request) {
	var users int
	b.store.View(func(doc *domain.Document) {
		users = doc.Users.Len()
	})
	b.jsonResponse(w, HealthResponse{
		Status:       "ok",
		Users:        users,
		PendingFlush: b.store.Dirty(),
		RateTracked:  b.governor.Tracked(),
	})
}

// GET /api/rank?limit=N
func (b *Bot) apiRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			b.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	top := b.ledger.Rankings(limit)
	resp := make([]RankResponse, 0, len(top))
	for i, r := range top {
		resp = append(resp, RankResponse{Position: i + 1, ID: r.ID, Coins: r.Coins})
	}
	b.jsonResponse(w, resp)
}

// GET /api/user/{id}
func (b *Bot) apiUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := config.NormalizeActorID(strings.TrimPrefix(r.URL.Path, "/api/user/"))
	if id == "" {
		b.jsonError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	u, ok := b.ledger.User(id)
	if !ok {
		b.jsonError(w, "User not found", http.StatusNotFound)
		return
	}

	resp := UserResponse{
		ID:           id,
		Coins:        u.Coins,
		MessageCount: u.MessageCount,
		JoinedAt:     time.UnixMilli(u.JoinedAt).UTC().Format(time.RFC3339),
		Role:         b.auth.StoredRole(id).String(),
	}
	if u.LastDailyClaim != 0 {
		s := time.UnixMilli(u.LastDailyClaim).UTC().Format(time.RFC3339)
		resp.LastDailyClaim = &s
	}
	b.jsonResponse(w, resp)
}

// GET /api/roles
func (b *Bot) apiRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b.jsonResponse(w, RolesResponse{
		Owners: b.admins.Owners(),
		Admins: b.admins.Admins(),
	})
}

// GET /api/shop
func (b *Bot) apiShop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b.jsonResponse(w, b.ledger.Shop())
}
