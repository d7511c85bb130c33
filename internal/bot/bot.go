package bot

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tazhate/dombot/config"
	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/ratelimit"
	"github.com/tazhate/dombot/internal/service"
	"github.com/tazhate/dombot/internal/storage"
)

// Transport is what the bot needs from the chat network.
type Transport interface {
	SelfID() string
	Send(ctx context.Context, chatID string, msg domain.OutboundMessage) error
	GroupInfo(ctx context.Context, groupID string) (*domain.GroupInfo, error)
	UpdateParticipant(ctx context.Context, groupID, memberID string, action domain.MembershipAction) error
	SetAnnounce(ctx context.Context, groupID string, announce bool) error
	// DisplayName returns the contact's push name, if one is known.
	DisplayName(ctx context.Context, actorID string) (string, bool)
}

type Deps struct {
	Config    *config.Config
	Store     *storage.Store
	Transport Transport
	Ledger    *service.LedgerService
	Auth      *service.AuthService
	Admins    *service.AdminService
	Governor  *ratelimit.Governor
	Logger    zerolog.Logger
}

type Bot struct {
	cfg      *config.Config
	store    *storage.Store
	tr       Transport
	ledger   *service.LedgerService
	auth     *service.AuthService
	admins   *service.AdminService
	governor *ratelimit.Governor
	log      zerolog.Logger

	commands map[string]*command

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	server  *http.Server
}

func New(d Deps) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		cfg:      d.Config,
		store:    d.Store,
		tr:       d.Transport,
		ledger:   d.Ledger,
		auth:     d.Auth,
		admins:   d.Admins,
		governor: d.Governor,
		log:      d.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	b.commands = b.registry()
	return b
}

// OnMessage handles msg on its own goroutine with a bounded deadline.
func (b *Bot) OnMessage(msg domain.InboundMessage) {
	b.spawn(func(ctx context.Context) {
		b.HandleMessage(ctx, msg)
	})
}

func (b *Bot) OnMembership(change domain.MembershipChange) {
	b.spawn(func(ctx context.Context) {
		b.HandleMembership(ctx, change)
	})
}

func (b *Bot) spawn(fn func(ctx context.Context)) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.log.Error().Interface("panic", r).Msg("Event handler panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(b.ctx, b.cfg.CommandTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// Stop refuses new events, waits for in-flight handlers until ctx expires
// and stops the status API.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	defer b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.log.Warn().Msg("Timed out waiting for handlers to finish")
	}

	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) send(ctx context.Context, chatID, text string, mentions ...string) error {
	return b.tr.Send(ctx, chatID, domain.OutboundMessage{Text: text, Mentions: mentions})
}

// reply answers in the chat msg came from. Failures are logged only.
func (b *Bot) reply(ctx context.Context, msg domain.InboundMessage, text string, mentions ...string) {
	if err := b.send(ctx, msg.ChatID, text, mentions...); err != nil {
		b.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("Failed to send reply")
	}
}

// displayName falls back to the @tag when the contact has no known name.
func (b *Bot) displayName(ctx context.Context, actorID string) string {
	if name, ok := b.tr.DisplayName(ctx, actorID); ok && name != "" {
		return name
	}
	return domain.MentionTag(actorID)
}
