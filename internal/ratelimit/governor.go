// Package ratelimit holds the per-actor anti-abuse state: a command cooldown
// and a fixed-window flood counter. State is process-local and lost on
// restart.
package ratelimit

import (
	"sync"
	"time"
)

type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelBlocked
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelBlocked:
		return "blocked"
	default:
		return "ok"
	}
}

type Config struct {
	Cooldown    time.Duration
	FloodWindow time.Duration
	// Messages beyond FloodWarn inside one window warn; beyond FloodBlock
	// they are dropped.
	FloodWarn  int
	FloodBlock int
}

func DefaultConfig() Config {
	return Config{
		Cooldown:    3 * time.Second,
		FloodWindow: time.Minute,
		FloodWarn:   30,
		FloodBlock:  70,
	}
}

type window struct {
	start time.Time
	count int
}

type Governor struct {
	mu          sync.Mutex
	cfg         Config
	now         func() time.Time
	lastCommand map[string]time.Time
	windows     map[string]*window
}

func New(cfg Config, now func() time.Time) *Governor {
	if now == nil {
		now = time.Now
	}
	return &Governor{
		cfg:         cfg,
		now:         now,
		lastCommand: make(map[string]time.Time),
		windows:     make(map[string]*window),
	}
}

// AllowCommand accepts a command if the actor's previous accepted command is
// at least Cooldown old. Only accepted commands reset the timer.
func (g *Governor) AllowCommand(actorID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.lastCommand[actorID]; ok && now.Sub(last) < g.cfg.Cooldown {
		return false
	}
	g.lastCommand[actorID] = now
	return true
}

// Observe counts one message from actorID and classifies the actor's rate in
// the current window.
func (g *Governor) Observe(actorID string) Level {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	w, ok := g.windows[actorID]
	if !ok || now.Sub(w.start) >= g.cfg.FloodWindow {
		w = &window{start: now}
		g.windows[actorID] = w
	}
	w.count++

	switch {
	case w.count > g.cfg.FloodBlock:
		return LevelBlocked
	case w.count > g.cfg.FloodWarn:
		return LevelWarn
	default:
		return LevelOK
	}
}

// Sweep forgets actors whose window and cooldown have both expired and
// returns how many entries were dropped.
func (g *Governor) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	dropped := 0
	for id, w := range g.windows {
		if now.Sub(w.start) >= g.cfg.FloodWindow {
			delete(g.windows, id)
			dropped++
		}
	}
	for id, last := range g.lastCommand {
		if now.Sub(last) >= g.cfg.Cooldown {
			delete(g.lastCommand, id)
			dropped++
		}
	}
	return dropped
}

func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.lastCommand)
	clear(g.windows)
}

// Tracked returns the number of actors with live flood or cooldown state.
func (g *Governor) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := make(map[string]struct{}, len(g.windows)+len(g.lastCommand))
	for id := range g.windows {
		seen[id] = struct{}{}
	}
	for id := range g.lastCommand {
		seen[id] = struct{}{}
	}
	return len(seen)
}
