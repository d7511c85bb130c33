package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/dombot/config"
	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/ratelimit"
	"github.com/tazhate/dombot/internal/service"
	"github.com/tazhate/dombot/internal/storage"
)

const (
	owner    = "5531973272146@s.whatsapp.net"
	u1       = "111@s.whatsapp.net"
	u2       = "222@s.whatsapp.net"
	u3       = "333@s.whatsapp.net"
	selfID   = "999@s.whatsapp.net"
	groupID  = "120363000@g.us"
	secret   = "s3cret"
	password = "hunter2"
)

type sentMessage struct {
	chatID string
	msg    domain.OutboundMessage
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sentMessage
	groups   map[string]*domain.GroupInfo
	names    map[string]string
	updates  []string
	announce map[string]bool
	sendErr  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		groups:   map[string]*domain.GroupInfo{},
		names:    map[string]string{},
		announce: map[string]bool{},
	}
}

func (f *fakeTransport) SelfID() string { return selfID }

func (f *fakeTransport) Send(_ context.Context, chatID string, msg domain.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, msg: msg})
	return nil
}

func (f *fakeTransport) GroupInfo(_ context.Context, id string) (*domain.GroupInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, errors.New("not a participant")
	}
	return g, nil
}

func (f *fakeTransport) UpdateParticipant(_ context.Context, groupID, memberID string, action domain.MembershipAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, string(action)+":"+memberID)
	return nil
}

func (f *fakeTransport) SetAnnounce(_ context.Context, groupID string, announce bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announce[groupID] = announce
	return nil
}

func (f *fakeTransport) DisplayName(_ context.Context, id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[id]
	return name, ok
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.msg.Text)
	}
	return out
}

func (f *fakeTransport) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	bot    *Bot
	tr     *fakeTransport
	clock  *clock
	ledger *service.LedgerService
	admins *service.AdminService
	store  *storage.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		BotName:        "Dom Bot",
		Prefix:         "/",
		SupremeOwner:   owner,
		AuthSecret:     secret,
		CommandTimeout: 5 * time.Second,
		API:            config.APIConfig{Port: "0", Username: "ops", Password: password},
	}

	store, err := storage.Open(context.Background(), storage.NewMemory(), owner, storage.Options{WriteThrough: true, Logger: zerolog.Nop()})
	require.NoError(t, err)

	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tr := newFakeTransport()
	tr.groups[groupID] = &domain.GroupInfo{
		ID: groupID,
		Participants: []domain.Participant{
			{ID: selfID, Role: domain.GroupRoleAdmin},
			{ID: owner, Role: domain.GroupRoleMember},
			{ID: u1, Role: domain.GroupRoleAdmin},
			{ID: u2, Role: domain.GroupRoleMember},
			{ID: u3, Role: domain.GroupRoleMember},
		},
	}

	ledger := service.NewLedgerService(store, service.DefaultLedgerRules(), owner)
	ledger.SetClock(clk.Now)
	admins := service.NewAdminService(store, secret)

	b := New(Deps{
		Config:    cfg,
		Store:     store,
		Transport: tr,
		Ledger:    ledger,
		Auth:      service.NewAuthService(store, tr, zerolog.Nop()),
		Admins:    admins,
		Governor:  ratelimit.New(ratelimit.DefaultConfig(), clk.Now),
		Logger:    zerolog.Nop(),
	})
	return &harness{bot: b, tr: tr, clock: clk, ledger: ledger, admins: admins, store: store}
}

func privateMsg(from, text string, mentions ...string) domain.InboundMessage {
	return domain.InboundMessage{
		ChatID:   from,
		SenderID: from,
		Body:     domain.TextBody{Text: text},
		Mentions: mentions,
	}
}

func groupMsg(from, text string, mentions ...string) domain.InboundMessage {
	return domain.InboundMessage{
		ChatID:   groupID,
		SenderID: from,
		IsGroup:  true,
		Body:     domain.TextBody{Text: text},
		Mentions: mentions,
	}
}

// handle delivers msg after the cooldown has passed.
func (h *harness) handle(msg domain.InboundMessage) string {
	h.clock.Advance(3 * time.Second)
	h.bot.HandleMessage(context.Background(), msg)
	return h.tr.last().msg.Text
}

func (h *harness) coins(id string) int64 {
	u, _ := h.ledger.User(id)
	return u.Coins
}

func TestDailyTwice(t *testing.T) {
	h := newHarness(t)

	reply := h.handle(privateMsg(u1, "/daily"))
	assert.Contains(t, reply, "50")

	reply = h.handle(privateMsg(u1, "/daily"))
	assert.Contains(t, reply, "already claimed")

	// 50 from the bonus, once, plus the passive reward for two messages.
	assert.Equal(t, int64(50+2), h.coins(u1))
}

func TestGiveRequiresOwner(t *testing.T) {
	h := newHarness(t)

	h.handle(groupMsg(owner, "/give @222 100", u2))
	assert.Equal(t, int64(100), h.coins(u2))
	assert.Equal(t, []string{u2}, h.tr.last().msg.Mentions)

	reply := h.handle(groupMsg(u3, "/give @222 100", u2))
	assert.Contains(t, reply, "Only bot owners")
	assert.Equal(t, int64(100), h.coins(u2))
}

func TestGiveValidatesArguments(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.handle(privateMsg(owner, "/give 100")), "Mention someone")
	assert.Contains(t, h.handle(privateMsg(owner, "/give @222", u2)), "how many")
	assert.Contains(t, h.handle(privateMsg(owner, "/give @222 -5", u2)), "positive")
	assert.Contains(t, h.handle(privateMsg(owner, "/give @222 abc", u2)), "positive")
	assert.Zero(t, h.coins(u2))
}

func TestCooldownBlocksSecondCommand(t *testing.T) {
	h := newHarness(t)

	h.handle(privateMsg(u1, "/coin"))
	h.clock.Advance(2 * time.Second)
	h.bot.HandleMessage(context.Background(), privateMsg(u1, "/daily"))

	assert.Contains(t, h.tr.last().msg.Text, "Slow down")
	u, _ := h.ledger.User(u1)
	assert.Zero(t, u.LastDailyClaim)
}

func TestFloodWarnThenDrop(t *testing.T) {
	h := newHarness(t)

	for range 75 {
		h.bot.HandleMessage(context.Background(), groupMsg(u1, "spam"))
	}

	var warnings int
	for _, text := range h.tr.texts() {
		if strings.Contains(text, "too many messages") {
			warnings++
		}
	}
	assert.Equal(t, 40, warnings)
	assert.Equal(t, int64(70), h.coins(u1))

	u, _ := h.ledger.User(u1)
	assert.Equal(t, int64(70), u.MessageCount)
}

func TestFloodBlockedCommandGetsNoReply(t *testing.T) {
	h := newHarness(t)
	for range 70 {
		h.bot.HandleMessage(context.Background(), groupMsg(u2, "hi"))
	}
	h.tr.reset()

	h.bot.HandleMessage(context.Background(), groupMsg(u2, "/coin"))
	assert.Empty(t, h.tr.texts())
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.handle(privateMsg(u1, "/dance")), "not recognized")
}

func TestCommandWordIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.handle(privateMsg(u1, "/DAILY")), "50")
}

func TestIgnoresSelfAndNonText(t *testing.T) {
	h := newHarness(t)

	self := privateMsg(u1, "/daily")
	self.FromSelf = true
	h.handle(self)

	sticker := privateMsg(u1, "")
	sticker.Body = domain.OtherBody{Kind: "sticker"}
	h.handle(sticker)

	assert.Empty(t, h.tr.texts())
	_, ok := h.ledger.User(u1)
	assert.False(t, ok)
}

func TestCaptionCountsAsText(t *testing.T) {
	h := newHarness(t)
	msg := privateMsg(u1, "")
	msg.Body = domain.CaptionBody{Media: "image", Caption: "/daily"}

	assert.Contains(t, h.handle(msg), "50")
}

func TestPlainTextEarnsButDoesNotReply(t *testing.T) {
	h := newHarness(t)
	h.handle(groupMsg(u1, "good morning"))

	assert.Empty(t, h.tr.texts())
	assert.Equal(t, int64(1), h.coins(u1))
}

func TestAuthentication(t *testing.T) {
	t.Run("bare secret in private", func(t *testing.T) {
		h := newHarness(t)
		reply := h.handle(privateMsg(u1, secret))
		assert.Contains(t, reply, "now a bot owner")
		assert.Contains(t, h.admins.Owners(), u1)
	})

	t.Run("auth command in private", func(t *testing.T) {
		h := newHarness(t)
		h.handle(privateMsg(u1, "/auth "+secret))
		assert.Contains(t, h.admins.Owners(), u1)

		reply := h.handle(privateMsg(u1, "/auth "+secret))
		assert.Contains(t, reply, "already an owner")
	})

	t.Run("wrong secret", func(t *testing.T) {
		h := newHarness(t)
		reply := h.handle(privateMsg(u1, "/auth guess"))
		assert.Contains(t, reply, "Wrong secret")
		assert.NotContains(t, h.admins.Owners(), u1)
	})

	t.Run("secret in group is refused", func(t *testing.T) {
		h := newHarness(t)
		reply := h.handle(groupMsg(u1, secret))
		assert.Contains(t, reply, "Never send the secret in a group")
		assert.NotContains(t, reply, secret)
		assert.NotContains(t, h.admins.Owners(), u1)

		reply = h.handle(groupMsg(u1, "/auth "+secret))
		assert.Contains(t, reply, "private chat")
		assert.NotContains(t, h.admins.Owners(), u1)
	})
}

func TestAddAdminAndDelAdmin(t *testing.T) {
	h := newHarness(t)

	reply := h.handle(privateMsg(u3, "/addadmin @222", u2))
	assert.Contains(t, reply, "Only bot owners")

	h.handle(privateMsg(owner, "/addadmin @222", u2))
	assert.Equal(t, []string{u2}, h.admins.Admins())

	reply = h.handle(privateMsg(u2, "/admins"))
	assert.Contains(t, reply, "@222")
	assert.Contains(t, reply, "@5531973272146")

	h.handle(privateMsg(owner, "/deladmin @222", u2))
	assert.Empty(t, h.admins.Admins())
}

func TestPayAndCoin(t *testing.T) {
	h := newHarness(t)
	_, err := h.ledger.AddCoins(context.Background(), u1, 40)
	require.NoError(t, err)

	reply := h.handle(groupMsg(u1, "/pay @222 15", u2))
	assert.Contains(t, reply, "Sent 15 coins")
	// 40 + 1 passive - 15
	assert.Equal(t, int64(26), h.coins(u1))
	assert.Equal(t, int64(15), h.coins(u2))

	reply = h.handle(groupMsg(u1, "/pay @222 1000", u2))
	assert.Contains(t, reply, "don't have enough")
	assert.Equal(t, int64(15), h.coins(u2))

	reply = h.handle(groupMsg(u3, "/coin @222", u2))
	assert.Contains(t, reply, "@222 has 15 coins")
}

func TestPayByReply(t *testing.T) {
	h := newHarness(t)
	_, err := h.ledger.AddCoins(context.Background(), u1, 10)
	require.NoError(t, err)

	msg := groupMsg(u1, "/pay 5")
	msg.QuotedSender = u3
	h.handle(msg)

	assert.Equal(t, int64(5), h.coins(u3))
}

func TestStealRequiresGroup(t *testing.T) {
	h := newHarness(t)
	reply := h.handle(privateMsg(u1, "/steal @222", u2))
	assert.Contains(t, reply, "only works in groups")
}

func TestOwnerStealTakesEverything(t *testing.T) {
	h := newHarness(t)
	_, err := h.ledger.AddCoins(context.Background(), u2, 400)
	require.NoError(t, err)

	reply := h.handle(groupMsg(owner, "/steal @222", u2))
	assert.Contains(t, reply, "stole 400 coins")
	assert.Zero(t, h.coins(u2))
}

func TestRankUsesDisplayNames(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ledger.AddCoins(ctx, u2, 300)
	require.NoError(t, err)
	_, err = h.ledger.AddCoins(ctx, u3, 200)
	require.NoError(t, err)
	h.tr.names[u2] = "Maria"

	reply := h.handle(groupMsg(u1, "/rank"))
	assert.Contains(t, reply, "Maria: 300")
	assert.Contains(t, reply, "@333: 200")
	assert.Less(t, strings.Index(reply, "Maria"), strings.Index(reply, "@333"))
}

func TestKickNeedsGroupAdmin(t *testing.T) {
	h := newHarness(t)

	reply := h.handle(groupMsg(u3, "/kick @222", u2))
	assert.Contains(t, reply, "Only admins")
	assert.Empty(t, h.tr.updates)

	// u1 is a native group admin.
	reply = h.handle(groupMsg(u1, "/ban @222", u2))
	assert.Contains(t, reply, "Removed @222")
	assert.Equal(t, []string{"remove:" + u2}, h.tr.updates)
}

func TestModerationNeedsBotAdmin(t *testing.T) {
	h := newHarness(t)
	h.tr.groups[groupID].Participants[0].Role = domain.GroupRoleMember

	for _, cmd := range []string{"/kick @222", "/promote @222", "/demote @222", "/close", "/open"} {
		reply := h.handle(groupMsg(owner, cmd, u2))
		assert.Contains(t, reply, "I need to be a group admin", cmd)
	}
	assert.Empty(t, h.tr.updates)
	assert.Empty(t, h.tr.announce)
}

func TestModerationRefusesOwnersAndSelf(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.handle(groupMsg(u1, "/kick @5531973272146", owner)), "owners can't be moderated")
	assert.Contains(t, h.handle(groupMsg(u1, "/kick @999", selfID)), "myself")
	assert.Empty(t, h.tr.updates)
}

func TestPromoteDemoteCloseOpen(t *testing.T) {
	h := newHarness(t)

	h.handle(groupMsg(owner, "/promote @333", u3))
	h.handle(groupMsg(owner, "/demote @333", u3))
	assert.Equal(t, []string{"promote:" + u3, "demote:" + u3}, h.tr.updates)

	h.handle(groupMsg(u1, "/close"))
	assert.True(t, h.tr.announce[groupID])
	h.handle(groupMsg(u1, "/open"))
	assert.False(t, h.tr.announce[groupID])
}

func TestMentionAll(t *testing.T) {
	h := newHarness(t)

	h.handle(groupMsg(u1, "/mentionall meeting now"))
	last := h.tr.last()
	assert.Equal(t, groupID, last.chatID)
	assert.True(t, strings.HasPrefix(last.msg.Text, "meeting now"))
	assert.ElementsMatch(t, []string{owner, u1, u2, u3}, last.msg.Mentions)
	assert.NotContains(t, last.msg.Text, "@999")
}

func TestTransportFailureIsReported(t *testing.T) {
	h := newHarness(t)
	delete(h.tr.groups, groupID)

	reply := h.handle(groupMsg(owner, "/close"))
	assert.Contains(t, reply, "Couldn't read the group's member list")
}

func TestMembershipNotices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleMembership(ctx, domain.MembershipChange{GroupID: groupID, Action: domain.MembershipAdd, AffectedIDs: []string{u2, selfID}})
	assert.Contains(t, h.tr.last().msg.Text, "Welcome")
	_, ok := h.ledger.User(u2)
	assert.True(t, ok)
	_, ok = h.ledger.User(selfID)
	assert.False(t, ok)

	h.bot.HandleMembership(ctx, domain.MembershipChange{GroupID: groupID, Action: domain.MembershipRemove, AffectedIDs: []string{u2}, ActorID: u1})
	assert.Contains(t, h.tr.last().msg.Text, "was removed")

	h.bot.HandleMembership(ctx, domain.MembershipChange{GroupID: groupID, Action: domain.MembershipRemove, AffectedIDs: []string{u3}, ActorID: u3})
	assert.Contains(t, h.tr.last().msg.Text, "Goodbye")

	h.bot.HandleMembership(ctx, domain.MembershipChange{GroupID: groupID, Action: domain.MembershipPromote, AffectedIDs: []string{u3}})
	assert.Contains(t, h.tr.last().msg.Text, "now a group admin")
}

func TestMembershipSendFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.tr.sendErr = errors.New("socket closed")

	h.bot.HandleMembership(context.Background(), domain.MembershipChange{GroupID: groupID, Action: domain.MembershipAdd, AffectedIDs: []string{u2}})
	_, ok := h.ledger.User(u2)
	assert.True(t, ok)
}

func TestOnMessageAndStop(t *testing.T) {
	h := newHarness(t)

	for i := range 5 {
		h.bot.OnMessage(privateMsg(fmt.Sprintf("%d@s.whatsapp.net", 100+i), "/daily"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.bot.Stop(ctx))
	assert.Len(t, h.tr.texts(), 5)

	h.bot.OnMessage(privateMsg(u1, "/daily"))
	assert.Len(t, h.tr.texts(), 5)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{"/Give @123 50", "give", []string{"@123", "50"}, true},
		{"  /rank  ", "rank", []string{}, true},
		{"/", "", nil, true},
		{"hello /rank", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := parseCommand(tt.text, "/")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestFormatWait(t *testing.T) {
	assert.Equal(t, "less than a minute", formatWait(30*time.Second))
	assert.Equal(t, "45m", formatWait(45*time.Minute))
	assert.Equal(t, "3h07m", formatWait(3*time.Hour+7*time.Minute))
}
