package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const userServer = "s.whatsapp.net"

type Config struct {
	BotName      string `env:"BOT_NAME" envDefault:"Dom Bot V1"`
	Prefix       string `env:"COMMAND_PREFIX" envDefault:"/"`
	SupremeOwner string `env:"SUPREME_OWNER,required"`
	AuthSecret   string `env:"AUTH_SECRET"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	SessionPath    string        `env:"SESSION_PATH" envDefault:"./data/session.db"`
	PairPhone      string        `env:"PAIR_PHONE"`
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" envDefault:"5s"`
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT" envDefault:"20s"`

	// Accepted for compatibility with deployments that still export it; nothing reads it.
	OpenAIKey string `env:"OPENAI_API_KEY"`

	Store    StoreConfig    `envPrefix:"STORE_"`
	Economy  EconomyConfig  `envPrefix:"ECONOMY_"`
	Limits   LimitsConfig   `envPrefix:"LIMIT_"`
	Telegram TelegramConfig `envPrefix:"TELEGRAM_"`
	API      APIConfig      `envPrefix:"API_"`
}

type StoreConfig struct {
	Driver        string        `env:"DRIVER" envDefault:"json"`
	Path          string        `env:"PATH" envDefault:"./data/database.json"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string        `env:"REDIS_PREFIX" envDefault:"dombot"`
	WriteThrough  bool          `env:"WRITE_THROUGH" envDefault:"true"`
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"30s"`
}

type EconomyConfig struct {
	InitialBalance int64         `env:"INITIAL_BALANCE" envDefault:"0"`
	MessageReward  int64         `env:"MESSAGE_REWARD" envDefault:"1"`
	DailyBonus     int64         `env:"DAILY_BONUS" envDefault:"50"`
	DailyInterval  time.Duration `env:"DAILY_INTERVAL" envDefault:"24h"`
	StealMax       int64         `env:"STEAL_MAX" envDefault:"30"`
	GiftAmount     int64         `env:"GIFT_AMOUNT" envDefault:"100"`
	RankLimit      int           `env:"RANK_LIMIT" envDefault:"15"`
}

type LimitsConfig struct {
	Cooldown      time.Duration `env:"COOLDOWN" envDefault:"3s"`
	FloodWindow   time.Duration `env:"FLOOD_WINDOW" envDefault:"60s"`
	FloodWarn     int           `env:"FLOOD_WARN" envDefault:"30"`
	FloodBlock    int           `env:"FLOOD_BLOCK" envDefault:"70"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
}

type TelegramConfig struct {
	Token     string `env:"BOT_TOKEN"`
	OpsChatID int64  `env:"OPS_CHAT_ID"`
}

type APIConfig struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env is optional; production sets variables directly.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.SupremeOwner = NormalizeActorID(c.SupremeOwner)
	if c.SupremeOwner == "" {
		return fmt.Errorf("SUPREME_OWNER is required")
	}
	if c.Prefix == "" {
		return fmt.Errorf("COMMAND_PREFIX must not be empty")
	}

	switch c.Store.Driver {
	case "json", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q (json, sqlite, redis, memory)", c.Store.Driver)
	}

	if c.Limits.FloodBlock <= c.Limits.FloodWarn {
		return fmt.Errorf("LIMIT_FLOOD_BLOCK (%d) must exceed LIMIT_FLOOD_WARN (%d)", c.Limits.FloodBlock, c.Limits.FloodWarn)
	}
	if c.Economy.StealMax < 1 {
		return fmt.Errorf("ECONOMY_STEAL_MAX must be at least 1")
	}
	if c.Economy.RankLimit < 1 {
		c.Economy.RankLimit = 15
	}
	return nil
}

func (c *Config) IsSupremeOwner(actorID string) bool {
	return actorID == c.SupremeOwner
}

func (c *Config) APIEnabled() bool {
	return c.API.Username != "" && c.API.Password != ""
}

// NormalizeActorID accepts a bare phone number ("+55 31 97327-2146") or a full
// JID and returns the user JID form.
func NormalizeActorID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "@") {
		return id
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, id)
	if digits == "" {
		return ""
	}
	return digits + "@" + userServer
}
