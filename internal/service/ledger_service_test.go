package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/dombot/internal/apperr"
)

func TestRecordMessageCreatesUserAndRewards(t *testing.T) {
	l, clock, _ := newLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordMessage(ctx, alice))
	require.NoError(t, l.RecordMessage(ctx, alice))

	u, ok := l.User(alice)
	require.True(t, ok)
	assert.Equal(t, int64(2), u.Coins)
	assert.Equal(t, int64(2), u.MessageCount)
	assert.Equal(t, clock.Now().UnixMilli(), u.JoinedAt)
	assert.Zero(t, u.LastDailyClaim)
}

func TestClaimDailyOncePerInterval(t *testing.T) {
	l, clock, _ := newLedger(t)
	ctx := context.Background()

	claim, err := l.ClaimDaily(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(50), claim.Amount)
	assert.Equal(t, int64(50), claim.Balance)
	assert.WithinDuration(t, clock.Now().Add(24*time.Hour), claim.NextAt, 0)
	assert.Equal(t, time.UTC, claim.NextAt.Location())

	clock.Advance(23*time.Hour + 59*time.Minute)
	claim, err = l.ClaimDaily(ctx, alice)
	require.ErrorIs(t, err, ErrDailyAlreadyClaimed)
	assert.Equal(t, int64(50), claim.Balance)

	clock.Advance(time.Minute)
	claim, err = l.ClaimDaily(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), claim.Balance)
}

func TestTransfer(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	_, err := l.AddCoins(ctx, alice, 40)
	require.NoError(t, err)

	res, err := l.Transfer(ctx, alice, bob, 15)
	require.NoError(t, err)
	assert.Equal(t, TransferResult{FromBalance: 25, ToBalance: 15}, res)

	_, err = l.Transfer(ctx, alice, bob, 26)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, apperr.Is(err, apperr.KindPreconditionFailed))

	a, _ := l.User(alice)
	b, _ := l.User(bob)
	assert.Equal(t, int64(25), a.Coins)
	assert.Equal(t, int64(15), b.Coins)
}

func TestTransferRejectsBadInput(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -5} {
		_, err := l.Transfer(ctx, alice, bob, amount)
		require.ErrorIs(t, err, ErrInvalidAmount)
	}
	_, err := l.Transfer(ctx, alice, alice, 1)
	require.ErrorIs(t, err, ErrSelfTarget)

	_, ok := l.User(alice)
	assert.False(t, ok, "rejected transfers must not create records")
}

func TestTransferFromUnknownUserDoesNotCreateRecords(t *testing.T) {
	l, _, _ := newLedger(t)

	_, err := l.Transfer(context.Background(), alice, bob, 10)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, ok := l.User(bob)
	assert.False(t, ok)
}

func TestAddCoinsFloorsAtZero(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddCoins(ctx, alice, 10)
	require.NoError(t, err)
	bal, err := l.AddCoins(ctx, alice, -25)
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestGift(t *testing.T) {
	l, _, _ := newLedger(t)
	bal, err := l.Gift(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)
}

func TestStealRandomAmountIsCapped(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	var gotN int64
	l.SetRand(func(n int64) int64 {
		gotN = n
		return n - 1
	})

	_, err := l.AddCoins(ctx, bob, 100)
	require.NoError(t, err)
	stolen, err := l.Steal(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(30), gotN)
	assert.Equal(t, int64(30), stolen)

	_, err = l.AddCoins(ctx, carol, 4)
	require.NoError(t, err)
	stolen, err = l.Steal(ctx, alice, carol)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stolen)

	a, _ := l.User(alice)
	b, _ := l.User(bob)
	c, _ := l.User(carol)
	assert.Equal(t, int64(34), a.Coins)
	assert.Equal(t, int64(70), b.Coins)
	assert.Zero(t, c.Coins)
}

func TestStealMinimumIsOne(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	l.SetRand(func(int64) int64 { return 0 })

	_, err := l.AddCoins(ctx, bob, 10)
	require.NoError(t, err)
	stolen, err := l.Steal(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stolen)
}

func TestSupremeOwnerStealsEverything(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddCoins(ctx, bob, 500)
	require.NoError(t, err)
	stolen, err := l.Steal(ctx, supreme, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(500), stolen)

	bal, err := l.Balance(ctx, supreme)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal)
}

func TestStealFromSelf(t *testing.T) {
	l, _, _ := newLedger(t)
	_, err := l.Steal(context.Background(), alice, alice)
	require.ErrorIs(t, err, ErrSelfTarget)
}

func TestRankingsOrderAndTies(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()

	for _, tc := range []struct {
		id    string
		coins int64
	}{{alice, 10}, {bob, 30}, {carol, 10}} {
		_, err := l.AddCoins(ctx, tc.id, tc.coins)
		require.NoError(t, err)
	}

	got := l.Rankings(0)
	assert.Equal(t, []Ranking{{bob, 30}, {alice, 10}, {carol, 10}}, got)

	assert.Len(t, l.Rankings(2), 2)
}

func TestRankingsDefaultLimit(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	for i := range 20 {
		_, err := l.AddCoins(ctx, string(rune('a'+i))+"@s.whatsapp.net", int64(i))
		require.NoError(t, err)
	}
	assert.Len(t, l.Rankings(0), 15)
}

func TestConcurrentTransfersConserveCoins(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	_, err := l.AddCoins(ctx, alice, 1000)
	require.NoError(t, err)
	_, err = l.AddCoins(ctx, bob, 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = l.Transfer(ctx, alice, bob, 7)
			} else {
				_, _ = l.Transfer(ctx, bob, alice, 3)
			}
		}()
	}
	wg.Wait()

	a, _ := l.User(alice)
	b, _ := l.User(bob)
	assert.Equal(t, int64(2000), a.Coins+b.Coins)
	assert.Equal(t, int64(1000-25*7+25*3), a.Coins)
}

func TestShop(t *testing.T) {
	l, _, _ := newLedger(t)
	items := l.Shop()
	require.NotEmpty(t, items)
	assert.Equal(t, 1, items[0].ID)
}
