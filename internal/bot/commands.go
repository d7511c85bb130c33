package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tazhate/dombot/internal/apperr"
	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/service"
)

type handlerFunc func(ctx context.Context, c *cmdContext) error

// command is one registry entry. The dispatcher enforces everything except
// the handler's own argument checks.
type command struct {
	name          string
	handler       handlerFunc
	role          domain.Role
	requiresGroup bool
	privateOnly   bool
	needsBotAdmin bool
}

type cmdContext struct {
	msg  domain.InboundMessage
	name string
	args []string
	role domain.Role
	log  zerolog.Logger
}

func (c *cmdContext) actor() string {
	return c.msg.SenderID
}

// target is the first mention, else the quoted message's author.
func (c *cmdContext) target() (string, error) {
	id, ok := c.msg.Target()
	if !ok {
		return "", apperr.InvalidArgument("Mention someone or reply to one of their messages.")
	}
	return id, nil
}

// amount is the first argument that is not a mention.
func (c *cmdContext) amount() (int64, error) {
	for _, a := range c.args {
		if strings.HasPrefix(a, "@") {
			continue
		}
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil || n <= 0 {
			return 0, service.ErrInvalidAmount
		}
		return n, nil
	}
	return 0, apperr.InvalidArgument("Tell me how many coins.")
}

func (b *Bot) registry() map[string]*command {
	entries := []*command{
		{name: "help", handler: b.cmdHelp},
		{name: "about", handler: b.cmdHelp},
		{name: "menu", handler: b.cmdHelp},
		{name: "auth", handler: b.cmdAuth, privateOnly: true},

		{name: "addadmin", handler: b.cmdAddAdmin, role: domain.RoleOwner},
		{name: "deladmin", handler: b.cmdDelAdmin, role: domain.RoleOwner},
		{name: "admins", handler: b.cmdAdmins, role: domain.RoleAdmin},

		{name: "give", handler: b.cmdGive, role: domain.RoleOwner},
		{name: "gift", handler: b.cmdGift, role: domain.RoleOwner},
		{name: "coin", handler: b.cmdCoin},
		{name: "rank", handler: b.cmdRank},
		{name: "daily", handler: b.cmdDaily},
		{name: "pay", handler: b.cmdPay},
		{name: "steal", handler: b.cmdSteal, requiresGroup: true},
		{name: "shop", handler: b.cmdShop},

		{name: "kick", handler: b.cmdKick, role: domain.RoleAdmin, requiresGroup: true, needsBotAdmin: true},
		{name: "ban", handler: b.cmdKick, role: domain.RoleAdmin, requiresGroup: true, needsBotAdmin: true},
		{name: "promote", handler: b.cmdPromote, role: domain.RoleAdmin, requiresGroup: true, needsBotAdmin: true},
		{name: "demote", handler: b.cmdDemote, role: domain.RoleAdmin, requiresGroup: true, needsBotAdmin: true},
		{name: "mentionall", handler: b.cmdMentionAll, role: domain.RoleAdmin, requiresGroup: true},
		{name: "close", handler: b.cmdClose, role: domain.RoleAdmin, requiresGroup: true, needsBotAdmin: true},
		{name: "open", handler: b.cmdOpen, role: domain.RoleAdmin, requiresGroup: true, needsBotAdmin: true},
	}

	m := make(map[string]*command, len(entries))
	for _, e := range entries {
		m[e.name] = e
	}
	return m
}

// parseCommand splits "/Give @123 50" into ("give", ["@123", "50"]). ok is
// false when text does not start with prefix.
func parseCommand(text, prefix string) (name string, args []string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(text), prefix)
	if !found {
		return "", nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, true
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// authorize applies the registry entry's context and role requirements.
func (b *Bot) authorize(ctx context.Context, cmd *command, c *cmdContext) error {
	msg := c.msg
	if cmd.requiresGroup && !msg.IsGroup {
		return apperr.InvalidArgument("This command only works in groups.")
	}
	if cmd.privateOnly && msg.IsGroup {
		return apperr.PermissionDenied("This only works in a private chat with me. Never send the secret in a group.")
	}

	c.role = domain.RoleMember
	if cmd.role > domain.RoleMember {
		c.role = b.auth.Resolve(ctx, msg.ChatID, msg.SenderID, msg.IsGroup)
		if !c.role.AtLeast(cmd.role) {
			if cmd.role == domain.RoleOwner {
				return apperr.PermissionDenied("Only bot owners can use this command.")
			}
			return apperr.PermissionDenied("Only admins can use this command.")
		}
	}

	if cmd.needsBotAdmin {
		ok, err := b.auth.BotIsGroupAdmin(ctx, msg.ChatID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.PermissionDenied("I need to be a group admin to do that.")
		}
	}
	return nil
}

func (b *Bot) cmdHelp(ctx context.Context, c *cmdContext) error {
	p := b.cfg.Prefix
	var sb strings.Builder
	fmt.Fprintf(&sb, "🤖 *%s*\n\n", b.cfg.BotName)
	sb.WriteString("*Economy*\n")
	fmt.Fprintf(&sb, "%scoin [@user] - balance\n", p)
	fmt.Fprintf(&sb, "%sdaily - daily bonus\n", p)
	fmt.Fprintf(&sb, "%spay @user <amount> - send coins\n", p)
	fmt.Fprintf(&sb, "%ssteal @user - try your luck (groups)\n", p)
	fmt.Fprintf(&sb, "%srank - richest members\n", p)
	fmt.Fprintf(&sb, "%sshop - shop catalog\n\n", p)
	sb.WriteString("*Group admins*\n")
	fmt.Fprintf(&sb, "%skick @user, %sban @user\n", p, p)
	fmt.Fprintf(&sb, "%spromote @user, %sdemote @user\n", p, p)
	fmt.Fprintf(&sb, "%smentionall [text]\n", p)
	fmt.Fprintf(&sb, "%sclose, %sopen\n\n", p, p)
	sb.WriteString("*Owners*\n")
	fmt.Fprintf(&sb, "%saddadmin @user, %sdeladmin @user, %sadmins\n", p, p, p)
	fmt.Fprintf(&sb, "%sgive @user <amount>, %sgift @user\n", p, p)
	fmt.Fprintf(&sb, "%sauth <secret> (private chat)", p)

	b.reply(ctx, c.msg, sb.String())
	return nil
}

func (b *Bot) cmdAuth(ctx context.Context, c *cmdContext) error {
	if len(c.args) == 0 {
		return apperr.InvalidArgument(fmt.Sprintf("Usage: %sauth <secret>", b.cfg.Prefix))
	}
	return b.authenticate(ctx, c.msg, strings.Join(c.args, " "))
}

func (b *Bot) authenticate(ctx context.Context, msg domain.InboundMessage, secret string) error {
	added, err := b.admins.Authenticate(ctx, msg.SenderID, secret)
	if err != nil {
		return err
	}
	if !added {
		b.reply(ctx, msg, "✅ You are already an owner.")
		return nil
	}
	b.log.Info().Str("actor_id", msg.SenderID).Msg("Actor authenticated as owner")
	b.reply(ctx, msg, "✅ Authenticated. You are now a bot owner.")
	return nil
}

func (b *Bot) cmdAddAdmin(ctx context.Context, c *cmdContext) error {
	target, err := c.target()
	if err != nil {
		return err
	}
	added, err := b.admins.AddAdmin(ctx, target)
	if err != nil {
		return err
	}
	tag := domain.MentionTag(target)
	if !added {
		b.reply(ctx, c.msg, tag+" is already a bot admin.", target)
		return nil
	}
	b.reply(ctx, c.msg, "✅ "+tag+" is now a bot admin.", target)
	return nil
}

func (b *Bot) cmdDelAdmin(ctx context.Context, c *cmdContext) error {
	target, err := c.target()
	if err != nil {
		return err
	}
	removed, err := b.admins.RemoveAdmin(ctx, target)
	if err != nil {
		return err
	}
	tag := domain.MentionTag(target)
	if !removed {
		b.reply(ctx, c.msg, tag+" is not a bot admin.", target)
		return nil
	}
	b.reply(ctx, c.msg, "✅ "+tag+" is no longer a bot admin.", target)
	return nil
}

func (b *Bot) cmdAdmins(ctx context.Context, c *cmdContext) error {
	owners := b.admins.Owners()
	admins := b.admins.Admins()

	var sb strings.Builder
	sb.WriteString("👑 *Owners*\n")
	for _, id := range owners {
		sb.WriteString(domain.MentionTag(id) + "\n")
	}
	sb.WriteString("\n🛡 *Admins*\n")
	if len(admins) == 0 {
		sb.WriteString("none\n")
	}
	for _, id := range admins {
		sb.WriteString(domain.MentionTag(id) + "\n")
	}

	b.reply(ctx, c.msg, strings.TrimRight(sb.String(), "\n"), append(owners, admins...)...)
	return nil
}
