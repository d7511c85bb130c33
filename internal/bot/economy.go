package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/service"
)

func (b *Bot) cmdGive(ctx context.Context, c *cmdContext) error {
	target, err := c.target()
	if err != nil {
		return err
	}
	amount, err := c.amount()
	if err != nil {
		return err
	}
	balance, err := b.ledger.AddCoins(ctx, target, amount)
	if err != nil {
		return err
	}
	tag := domain.MentionTag(target)
	b.reply(ctx, c.msg, fmt.Sprintf("💰 Gave %d coins to %s. New balance: %d", amount, tag, balance), target)
	return nil
}

func (b *Bot) cmdGift(ctx context.Context, c *cmdContext) error {
	target, err := c.target()
	if err != nil {
		return err
	}
	balance, err := b.ledger.Gift(ctx, target)
	if err != nil {
		return err
	}
	tag := domain.MentionTag(target)
	amount := b.ledger.Rules().GiftAmount
	b.reply(ctx, c.msg, fmt.Sprintf("🎁 %s received a gift of %d coins! Balance: %d", tag, amount, balance), target)
	return nil
}

func (b *Bot) cmdCoin(ctx context.Context, c *cmdContext) error {
	who := c.actor()
	if id, ok := c.msg.Target(); ok {
		who = id
	}
	balance, err := b.ledger.Balance(ctx, who)
	if err != nil {
		return err
	}
	if who == c.actor() {
		b.reply(ctx, c.msg, fmt.Sprintf("💰 You have %d coins.", balance))
		return nil
	}
	b.reply(ctx, c.msg, fmt.Sprintf("💰 %s has %d coins.", domain.MentionTag(who), balance), who)
	return nil
}

func (b *Bot) cmdRank(ctx context.Context, c *cmdContext) error {
	top := b.ledger.Rankings(0)
	if len(top) == 0 {
		b.reply(ctx, c.msg, "Nobody has any coins yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("🏆 *Richest members*\n")
	for i, r := range top {
		medal := fmt.Sprintf("%d.", i+1)
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		fmt.Fprintf(&sb, "\n%s %s: %d", medal, b.displayName(ctx, r.ID), r.Coins)
	}
	b.reply(ctx, c.msg, sb.String())
	return nil
}

func (b *Bot) cmdDaily(ctx context.Context, c *cmdContext) error {
	claim, err := b.ledger.ClaimDaily(ctx, c.actor())
	if errors.Is(err, service.ErrDailyAlreadyClaimed) {
		wait := claim.NextAt.Sub(b.ledger.Now()).Round(time.Minute)
		b.reply(ctx, c.msg, fmt.Sprintf("⏳ You already claimed your daily bonus. Come back in %s.", formatWait(wait)))
		return nil
	}
	if err != nil {
		return err
	}
	b.reply(ctx, c.msg, fmt.Sprintf("🎁 Daily bonus: +%d coins! Balance: %d", claim.Amount, claim.Balance))
	return nil
}

func (b *Bot) cmdPay(ctx context.Context, c *cmdContext) error {
	target, err := c.target()
	if err != nil {
		return err
	}
	amount, err := c.amount()
	if err != nil {
		return err
	}
	res, err := b.ledger.Transfer(ctx, c.actor(), target, amount)
	if err != nil {
		return err
	}
	tag := domain.MentionTag(target)
	b.reply(ctx, c.msg, fmt.Sprintf("✅ Sent %d coins to %s. Your balance: %d", amount, tag, res.FromBalance), target)
	return nil
}

func (b *Bot) cmdSteal(ctx context.Context, c *cmdContext) error {
	target, err := c.target()
	if err != nil {
		return err
	}
	stolen, err := b.ledger.Steal(ctx, c.actor(), target)
	if err != nil {
		return err
	}
	tag := domain.MentionTag(target)
	if stolen == 0 {
		b.reply(ctx, c.msg, fmt.Sprintf("🪹 %s is broke, nothing to steal.", tag), target)
		return nil
	}
	b.reply(ctx, c.msg, fmt.Sprintf("🦹 You stole %d coins from %s!", stolen, tag), target)
	return nil
}

func (b *Bot) cmdShop(ctx context.Context, c *cmdContext) error {
	items := b.ledger.Shop()
	if len(items) == 0 {
		b.reply(ctx, c.msg, "🛒 The shop is empty.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("🛒 *Shop*\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "\n%d. %s: %d coins", item.ID, item.Name, item.Price)
	}
	b.reply(ctx, c.msg, sb.String())
	return nil
}

// formatWait renders a duration as "3h12m" or "45m".
func formatWait(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
