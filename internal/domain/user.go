package domain

import "time"

// User is the economy record for one actor. Timestamps are milliseconds since
// the Unix epoch; LastDailyClaim is 0 until the first claim.
type User struct {
	Coins          int64 `json:"coins"`
	MessageCount   int64 `json:"messageCount"`
	LastDailyClaim int64 `json:"lastDailyClaim"`
	JoinedAt       int64 `json:"joinedAt"`
}

func NewUser(now time.Time, initialCoins int64) *User {
	if initialCoins < 0 {
		initialCoins = 0
	}
	return &User{
		Coins:    initialCoins,
		JoinedAt: now.UnixMilli(),
	}
}

// NextDailyAt returns when the next daily claim becomes available, in UTC.
func (u *User) NextDailyAt(interval time.Duration) time.Time {
	if u.LastDailyClaim == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.LastDailyClaim).UTC().Add(interval)
}

func (u *User) CanClaimDaily(now time.Time, interval time.Duration) bool {
	return now.UnixMilli()-u.LastDailyClaim >= interval.Milliseconds()
}

// Credit adds delta (which may be negative) and floors the balance at zero.
func (u *User) Credit(delta int64) int64 {
	u.Coins += delta
	if u.Coins < 0 {
		u.Coins = 0
	}
	return u.Coins
}
