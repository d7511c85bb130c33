package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/storage"
)

const (
	supreme = "5531973272146@s.whatsapp.net"
	alice   = "111@s.whatsapp.net"
	bob     = "222@s.whatsapp.net"
	carol   = "333@s.whatsapp.net"
	group   = "120363000@g.us"
	botID   = "999@s.whatsapp.net"
)

func newStore(t *testing.T) (*storage.Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	s, err := storage.Open(context.Background(), mem, supreme, storage.Options{WriteThrough: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return s, mem
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newLedger(t *testing.T) (*LedgerService, *fakeClock, *storage.Store) {
	t.Helper()
	s, _ := newStore(t)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLedgerService(s, DefaultLedgerRules(), supreme)
	l.SetClock(clock.Now)
	return l, clock, s
}

type fakeGroups struct {
	groups map[string]*domain.GroupInfo
	err    error
	calls  int
}

func (f *fakeGroups) SelfID() string { return botID }

func (f *fakeGroups) GroupInfo(_ context.Context, id string) (*domain.GroupInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	g, ok := f.groups[id]
	if !ok {
		return nil, errors.New("item-not-found")
	}
	return g, nil
}
