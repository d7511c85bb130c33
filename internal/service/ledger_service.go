package service

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/tazhate/dombot/config"
	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/storage"
)

type LedgerRules struct {
	InitialBalance int64
	MessageReward  int64
	DailyBonus     int64
	DailyInterval  time.Duration
	StealMax       int64
	GiftAmount     int64
	RankLimit      int
}

func DefaultLedgerRules() LedgerRules {
	return LedgerRules{
		InitialBalance: 0,
		MessageReward:  1,
		DailyBonus:     50,
		DailyInterval:  24 * time.Hour,
		StealMax:       30,
		GiftAmount:     100,
		RankLimit:      15,
	}
}

func NewLedgerRules(c config.EconomyConfig) LedgerRules {
	return LedgerRules{
		InitialBalance: c.InitialBalance,
		MessageReward:  c.MessageReward,
		DailyBonus:     c.DailyBonus,
		DailyInterval:  c.DailyInterval,
		StealMax:       c.StealMax,
		GiftAmount:     c.GiftAmount,
		RankLimit:      c.RankLimit,
	}
}

type DailyClaim struct {
	Amount  int64
	Balance int64
	NextAt  time.Time
}

type TransferResult struct {
	FromBalance int64
	ToBalance   int64
}

type Ranking struct {
	ID    string
	Coins int64
}

// LedgerService is the virtual economy. Every operation is one Store.Update,
// so a failed precondition leaves both sides of a transfer untouched.
type LedgerService struct {
	store        *storage.Store
	rules        LedgerRules
	supremeOwner string
	now          func() time.Time
	randN        func(n int64) int64
}

func NewLedgerService(s *storage.Store, rules LedgerRules, supremeOwner string) *LedgerService {
	return &LedgerService{
		store:        s,
		rules:        rules,
		supremeOwner: supremeOwner,
		now:          time.Now,
		randN:        rand.Int64N,
	}
}

func (s *LedgerService) SetClock(now func() time.Time) {
	s.now = now
}

// SetRand replaces the source for steal amounts. fn(n) must return a value in [0, n).
func (s *LedgerService) SetRand(fn func(n int64) int64) {
	s.randN = fn
}

func (s *LedgerService) Now() time.Time {
	return s.now()
}

func (s *LedgerService) Rules() LedgerRules {
	return s.rules
}

func (s *LedgerService) ensure(doc *domain.Document, id string) *domain.User {
	return doc.EnsureUser(id, s.now(), s.rules.InitialBalance)
}

func (s *LedgerService) EnsureUser(ctx context.Context, id string) error {
	var exists bool
	s.store.View(func(doc *domain.Document) {
		_, exists = doc.Users.Get(id)
	})
	if exists {
		return nil
	}
	return s.store.Update(ctx, func(doc *domain.Document) error {
		s.ensure(doc, id)
		return nil
	})
}

// RecordMessage counts one observed message and pays the passive reward.
func (s *LedgerService) RecordMessage(ctx context.Context, id string) error {
	return s.store.Update(ctx, func(doc *domain.Document) error {
		u := s.ensure(doc, id)
		u.MessageCount++
		u.Credit(s.rules.MessageReward)
		return nil
	})
}

// AddCoins applies amount (negative for debits) and returns the new balance,
// floored at zero.
func (s *LedgerService) AddCoins(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		balance = s.ensure(doc, id).Credit(amount)
		return nil
	})
	return balance, err
}

// Gift credits the fixed gift amount.
func (s *LedgerService) Gift(ctx context.Context, id string) (int64, error) {
	return s.AddCoins(ctx, id, s.rules.GiftAmount)
}

func (s *LedgerService) Balance(ctx context.Context, id string) (int64, error) {
	if err := s.EnsureUser(ctx, id); err != nil {
		return 0, err
	}
	var coins int64
	s.store.View(func(doc *domain.Document) {
		if u, ok := doc.Users.Get(id); ok {
			coins = u.Coins
		}
	})
	return coins, nil
}

// User returns a copy of id's record.
func (s *LedgerService) User(id string) (domain.User, bool) {
	var (
		out domain.User
		ok  bool
	)
	s.store.View(func(doc *domain.Document) {
		var u *domain.User
		if u, ok = doc.Users.Get(id); ok {
			out = *u
		}
	})
	return out, ok
}

// ClaimDaily grants the daily bonus at most once per DailyInterval. When it
// was already claimed the result carries NextAt and the error is
// ErrDailyAlreadyClaimed.
func (s *LedgerService) ClaimDaily(ctx context.Context, id string) (DailyClaim, error) {
	var claim DailyClaim
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		now := s.now()
		u := s.ensure(doc, id)
		if !u.CanClaimDaily(now, s.rules.DailyInterval) {
			claim.NextAt = u.NextDailyAt(s.rules.DailyInterval)
			claim.Balance = u.Coins
			return ErrDailyAlreadyClaimed
		}
		u.LastDailyClaim = now.UnixMilli()
		claim.Amount = s.rules.DailyBonus
		claim.Balance = u.Credit(s.rules.DailyBonus)
		claim.NextAt = u.NextDailyAt(s.rules.DailyInterval)
		return nil
	})
	return claim, err
}

func (s *LedgerService) Transfer(ctx context.Context, fromID, toID string, amount int64) (TransferResult, error) {
	var res TransferResult
	if amount <= 0 {
		return res, ErrInvalidAmount
	}
	if fromID == toID {
		return res, ErrSelfTarget
	}
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		from := s.ensure(doc, fromID)
		if from.Coins < amount {
			return ErrInsufficientFunds
		}
		to := s.ensure(doc, toID)
		res.FromBalance = from.Credit(-amount)
		res.ToBalance = to.Credit(amount)
		return nil
	})
	return res, err
}

// Steal moves coins from targetID to actorID and returns the amount moved.
// The supreme owner takes the whole balance; anyone else takes a random
// amount in [1, StealMax], capped at what the target has.
func (s *LedgerService) Steal(ctx context.Context, actorID, targetID string) (int64, error) {
	if actorID == targetID {
		return 0, ErrSelfTarget
	}
	var stolen int64
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		thief := s.ensure(doc, actorID)
		victim := s.ensure(doc, targetID)

		if actorID == s.supremeOwner {
			stolen = victim.Coins
		} else {
			stolen = min(s.randN(s.rules.StealMax)+1, victim.Coins)
		}
		victim.Credit(-stolen)
		thief.Credit(stolen)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stolen, nil
}

// Rankings lists users by coins, highest first. Ties keep the order in which
// users were first seen. limit <= 0 uses the configured RankLimit.
func (s *LedgerService) Rankings(limit int) []Ranking {
	if limit <= 0 {
		limit = s.rules.RankLimit
	}
	var all []Ranking
	s.store.View(func(doc *domain.Document) {
		all = make([]Ranking, 0, doc.Users.Len())
		doc.Users.Each(func(id string, u *domain.User) bool {
			all = append(all, Ranking{ID: id, Coins: u.Coins})
			return true
		})
	})
	slices.SortStableFunc(all, func(a, b Ranking) int {
		switch {
		case a.Coins > b.Coins:
			return -1
		case a.Coins < b.Coins:
			return 1
		default:
			return 0
		}
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (s *LedgerService) Shop() []domain.ShopItem {
	var items []domain.ShopItem
	s.store.View(func(doc *domain.Document) {
		items = append(items, doc.Shop...)
	})
	return items
}
