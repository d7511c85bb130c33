package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tazhate/dombot/internal/domain"
)

var (
	// ErrLoggedOut means the session was revoked and the device must be
	// paired again.
	ErrLoggedOut = errors.New("whatsapp session logged out")
	// ErrTemporaryBan means WhatsApp refused the connection for a while.
	ErrTemporaryBan = errors.New("whatsapp account temporarily banned")
	// ErrClientOutdated means the client version must be upgraded.
	ErrClientOutdated = errors.New("whatsapp client outdated")
)

// Handler receives mapped inbound events. Calls must not block.
type Handler interface {
	OnMessage(msg domain.InboundMessage)
	OnMembership(change domain.MembershipChange)
}

// Notifier forwards operator-facing alerts (pairing codes, connection state).
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type Config struct {
	SessionPath    string
	PairPhone      string
	ReconnectDelay time.Duration
}

type connState int

const (
	stateClosed connState = iota
	stateLoggedOut
	stateBanned
	stateOutdated
)

// terminalErr is the error Run stops with for st, or nil when st is
// retried.
func terminalErr(st connState) error {
	switch st {
	case stateLoggedOut:
		return ErrLoggedOut
	case stateBanned:
		return ErrTemporaryBan
	case stateOutdated:
		return ErrClientOutdated
	default:
		return nil
	}
}

// Client owns the WhatsApp session and implements the bot's transport.
type Client struct {
	cfg       Config
	container *sqlstore.Container
	wa        *whatsmeow.Client
	ids       identities
	notifier  Notifier
	log       zerolog.Logger

	mu      sync.RWMutex
	handler Handler

	states chan connState
}

// NewClient opens the session store and prepares a client for the first
// stored device, or a fresh device when none is paired.
func NewClient(ctx context.Context, cfg Config, notifier Notifier, log zerolog.Logger) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SessionPath), 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	dsn := "file:" + cfg.SessionPath + "?_foreign_keys=on"
	container, err := sqlstore.New(ctx, "sqlite3", dsn, waLog.Zerolog(log.With().Str("component", "wa-store").Logger()))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}

	wa := whatsmeow.NewClient(device, waLog.Zerolog(log.With().Str("component", "wa-client").Logger()))
	// Run owns reconnection, so a logged-out session halts instead of looping.
	wa.EnableAutoReconnect = false

	c := &Client{
		cfg:       cfg,
		container: container,
		wa:        wa,
		ids:       identities{lids: device.LIDs},
		notifier:  notifier,
		log:       log,
		states:    make(chan connState, 8),
	}
	wa.AddEventHandler(c.handleEvent)
	return c, nil
}

func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Client) currentHandler() Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// Run connects and keeps the session up until ctx is done. A non-terminal
// disconnect is retried after ReconnectDelay. A logout, temporary ban or
// outdated client stops Run with the matching error.
func (c *Client) Run(ctx context.Context) error {
	defer c.wa.Disconnect()

	for {
		c.drainStates()

		if err := c.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Dur("retry_in", c.cfg.ReconnectDelay).Msg("Connect failed")
			if !sleep(ctx, c.cfg.ReconnectDelay) {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case st := <-c.states:
			if err := terminalErr(st); err != nil {
				c.log.Error().Err(err).Msg("WhatsApp connection stopped for good")
				c.notify(ctx, terminalNotice(err))
				return err
			}
			c.wa.Disconnect()
			c.log.Warn().Dur("retry_in", c.cfg.ReconnectDelay).Msg("Disconnected, reconnecting")
			if !sleep(ctx, c.cfg.ReconnectDelay) {
				return nil
			}
		}
	}
}

func terminalNotice(err error) string {
	switch {
	case errors.Is(err, ErrTemporaryBan):
		return "⛔ WhatsApp temporarily banned this account. The bot stopped."
	case errors.Is(err, ErrClientOutdated):
		return "⬆️ WhatsApp rejected this client version. Upgrade the bot and restart it."
	default:
		return "🚫 WhatsApp session logged out. Pair the device again and restart the bot."
	}
}

func (c *Client) connect(ctx context.Context) error {
	if c.wa.IsConnected() {
		return nil
	}
	if c.wa.Store.ID == nil {
		return c.pair(ctx)
	}
	return c.wa.Connect()
}

// pair connects an unpaired device and emits pairing material: a phone code
// when PairPhone is set, raw QR payloads otherwise.
func (c *Client) pair(ctx context.Context) error {
	qrChan, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get qr channel: %w", err)
	}
	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	codeRequested := false
	for evt := range qrChan {
		switch evt.Event {
		case whatsmeow.QRChannelEventCode:
			if c.cfg.PairPhone != "" {
				if codeRequested {
					continue
				}
				codeRequested = true
				code, err := c.wa.PairPhone(ctx, c.cfg.PairPhone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
				if err != nil {
					return fmt.Errorf("request pairing code: %w", err)
				}
				c.log.Info().Str("code", code).Msg("Enter this pairing code in WhatsApp > Linked devices")
				c.notify(ctx, "🔗 WhatsApp pairing code: <code>"+code+"</code>")
				continue
			}
			c.log.Info().Str("qr", evt.Code).Dur("expires_in", evt.Timeout).Msg("Scan this QR payload in WhatsApp > Linked devices")
		case whatsmeow.QRChannelSuccess.Event:
			c.log.Info().Msg("Device paired")
			c.notify(ctx, "✅ WhatsApp device paired.")
			return nil
		case whatsmeow.QRChannelTimeout.Event:
			c.wa.Disconnect()
			return errors.New("pairing timed out")
		case whatsmeow.QRChannelEventError:
			c.wa.Disconnect()
			return fmt.Errorf("pairing failed: %w", evt.Error)
		default:
			c.wa.Disconnect()
			return fmt.Errorf("pairing failed: %s", evt.Event)
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("pairing channel closed")
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		msg, ok := c.ids.toInbound(context.Background(), v)
		if !ok {
			return
		}
		if h := c.currentHandler(); h != nil {
			h.OnMessage(msg)
		}
	case *events.GroupInfo:
		h := c.currentHandler()
		if h == nil {
			return
		}
		for _, change := range c.ids.toMembershipChanges(context.Background(), v) {
			h.OnMembership(change)
		}
	case *events.Connected:
		c.log.Info().Str("self", c.SelfID()).Msg("Connected to WhatsApp")
		go c.notify(context.Background(), "🟢 Bot connected to WhatsApp.")
	case *events.Disconnected:
		c.pushState(stateClosed)
	case *events.StreamReplaced:
		c.log.Warn().Msg("Stream replaced by another connection")
		c.pushState(stateClosed)
	case *events.LoggedOut:
		c.log.Warn().Str("reason", v.Reason.String()).Msg("Logged out")
		c.pushState(stateLoggedOut)
	// The events below end the connection without a Disconnected event.
	case *events.ConnectFailure:
		c.log.Warn().Str("reason", v.Reason.String()).Str("message", v.Message).Msg("Connect failure")
		if v.Reason.IsLoggedOut() {
			c.pushState(stateLoggedOut)
			return
		}
		c.pushState(stateClosed)
	case *events.StreamError:
		c.log.Warn().Str("code", v.Code).Msg("Stream error")
		c.pushState(stateClosed)
	case *events.TemporaryBan:
		c.log.Error().Str("ban", v.String()).Msg("Temporarily banned")
		c.pushState(stateBanned)
	case *events.ClientOutdated:
		c.log.Error().Msg("Client outdated")
		c.pushState(stateOutdated)
	}
}

func (c *Client) pushState(st connState) {
	select {
	case c.states <- st:
	default:
	}
}

func (c *Client) drainStates() {
	for {
		select {
		case <-c.states:
		default:
			return
		}
	}
}

func (c *Client) notify(ctx context.Context, text string) {
	if c.notifier != nil {
		c.notifier.Notify(ctx, text)
	}
}

// Close disconnects and releases the session store.
func (c *Client) Close() error {
	c.wa.Disconnect()
	return c.container.Close()
}

func (c *Client) SelfID() string {
	if c.wa.Store.ID == nil {
		return ""
	}
	return c.wa.Store.ID.ToNonAD().String()
}

func (c *Client) Send(ctx context.Context, chatID string, msg domain.OutboundMessage) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	if _, err := c.wa.SendMessage(ctx, jid, outboundMessage(msg)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) GroupInfo(ctx context.Context, groupID string) (*domain.GroupInfo, error) {
	jid, err := types.ParseJID(groupID)
	if err != nil {
		return nil, fmt.Errorf("parse group id %q: %w", groupID, err)
	}
	info, err := c.wa.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get group info: %w", err)
	}
	return c.ids.toGroupInfo(ctx, info), nil
}

var participantChanges = map[domain.MembershipAction]whatsmeow.ParticipantChange{
	domain.MembershipAdd:     whatsmeow.ParticipantChangeAdd,
	domain.MembershipRemove:  whatsmeow.ParticipantChangeRemove,
	domain.MembershipPromote: whatsmeow.ParticipantChangePromote,
	domain.MembershipDemote:  whatsmeow.ParticipantChangeDemote,
}

func (c *Client) UpdateParticipant(ctx context.Context, groupID, memberID string, action domain.MembershipAction) error {
	change, ok := participantChanges[action]
	if !ok {
		return fmt.Errorf("unsupported membership action %q", action)
	}
	group, err := types.ParseJID(groupID)
	if err != nil {
		return fmt.Errorf("parse group id %q: %w", groupID, err)
	}
	member, err := types.ParseJID(memberID)
	if err != nil {
		return fmt.Errorf("parse member id %q: %w", memberID, err)
	}

	results, err := c.wa.UpdateGroupParticipants(ctx, group, []types.JID{member}, change)
	if err != nil {
		return fmt.Errorf("update participants: %w", err)
	}
	for _, r := range results {
		if r.Error != 0 {
			return fmt.Errorf("update participant %s: status %d", memberID, r.Error)
		}
	}
	return nil
}

func (c *Client) SetAnnounce(ctx context.Context, groupID string, announce bool) error {
	jid, err := types.ParseJID(groupID)
	if err != nil {
		return fmt.Errorf("parse group id %q: %w", groupID, err)
	}
	if err := c.wa.SetGroupAnnounce(ctx, jid, announce); err != nil {
		return fmt.Errorf("set announce: %w", err)
	}
	return nil
}

// DisplayName looks the contact up in the local store. Lookup errors are
// treated as unknown.
func (c *Client) DisplayName(ctx context.Context, actorID string) (string, bool) {
	jid, err := types.ParseJID(actorID)
	if err != nil {
		return "", false
	}
	contact, err := c.wa.Store.Contacts.GetContact(ctx, jid)
	if err != nil || !contact.Found {
		return "", false
	}
	for _, name := range []string{contact.FullName, contact.PushName, contact.BusinessName, contact.FirstName} {
		if name = strings.TrimSpace(name); name != "" {
			return name, true
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
