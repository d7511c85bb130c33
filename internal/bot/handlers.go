package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tazhate/dombot/internal/apperr"
	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/ratelimit"
)

// HandleMessage runs one inbound message through the pipeline: filter,
// flood check, economy, secret auth, cooldown, command dispatch.
func (b *Bot) HandleMessage(ctx context.Context, msg domain.InboundMessage) {
	if msg.FromSelf {
		return
	}
	text, ok := domain.BodyText(msg.Body)
	if !ok {
		return
	}
	text = strings.TrimSpace(text)

	log := b.log.With().
		Str("event_id", uuid.NewString()).
		Str("chat_id", msg.ChatID).
		Str("actor_id", msg.SenderID).
		Logger()

	switch b.governor.Observe(msg.SenderID) {
	case ratelimit.LevelBlocked:
		log.Debug().Msg("Flood blocked, message dropped")
		return
	case ratelimit.LevelWarn:
		tag := domain.MentionTag(msg.SenderID)
		b.reply(ctx, msg, "⚠️ "+tag+" you are sending too many messages. Slow down or I'll start ignoring you.", msg.SenderID)
	}

	if err := b.ledger.RecordMessage(ctx, msg.SenderID); err != nil {
		log.Error().Err(err).Msg("Failed to record message")
	}

	if b.admins.CheckSecret(text) {
		b.handleSecret(ctx, msg, text, log)
		return
	}

	name, args, isCommand := parseCommand(text, b.cfg.Prefix)
	if !isCommand {
		return
	}

	if !b.governor.AllowCommand(msg.SenderID) {
		b.reply(ctx, msg, "⏳ Slow down! Wait a few seconds between commands.")
		return
	}

	cmd, ok := b.commands[name]
	if !ok {
		log.Debug().Str("command", name).Msg("Unknown command")
		b.reply(ctx, msg, "❓ Command not recognized. Send "+b.cfg.Prefix+"help for the list.")
		return
	}

	c := &cmdContext{
		msg:  msg,
		name: name,
		args: args,
		log:  log.With().Str("command", name).Logger(),
	}
	if err := b.authorize(ctx, cmd, c); err != nil {
		b.replyError(ctx, c, err)
		return
	}
	if err := cmd.handler(ctx, c); err != nil {
		b.replyError(ctx, c, err)
		return
	}
	c.log.Debug().Str("role", c.role.String()).Msg("Command handled")
}

// handleSecret treats a bare message equal to the secret as an auth attempt.
func (b *Bot) handleSecret(ctx context.Context, msg domain.InboundMessage, secret string, log zerolog.Logger) {
	if msg.IsGroup {
		log.Warn().Msg("Auth secret sent in a group")
		b.reply(ctx, msg, "🔒 Never send the secret in a group. Authenticate in a private chat with me.")
		return
	}
	c := &cmdContext{msg: msg, name: "auth", log: log}
	if err := b.authenticate(ctx, msg, secret); err != nil {
		b.replyError(ctx, c, err)
	}
}

var kindIcons = map[apperr.Kind]string{
	apperr.KindPermissionDenied:   "⛔",
	apperr.KindInvalidArgument:    "⚠️",
	apperr.KindPreconditionFailed: "⏳",
	apperr.KindTransportFailure:   "📡",
	apperr.KindConfiguration:      "🔧",
}

// replyError turns err into the chat reply for c.
func (b *Bot) replyError(ctx context.Context, c *cmdContext, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindPermissionDenied, apperr.KindInvalidArgument, apperr.KindPreconditionFailed:
		c.log.Debug().Err(err).Msg("Command rejected")
	case apperr.KindTransportFailure, apperr.KindConfiguration:
		c.log.Warn().Err(err).Msg("Command failed")
	default:
		c.log.Error().Err(err).Msg("Command failed")
	}

	icon, ok := kindIcons[kind]
	if !ok {
		icon = "❌"
	}
	b.reply(ctx, c.msg, icon+" "+apperr.UserMessage(err))
}

// HandleMembership registers affected members and announces the change.
func (b *Bot) HandleMembership(ctx context.Context, change domain.MembershipChange) {
	log := b.log.With().
		Str("event_id", uuid.NewString()).
		Str("chat_id", change.GroupID).
		Str("action", string(change.Action)).
		Logger()

	self := b.tr.SelfID()
	for _, id := range change.AffectedIDs {
		if id == "" || id == self {
			continue
		}
		if err := b.ledger.EnsureUser(ctx, id); err != nil {
			log.Error().Err(err).Str("actor_id", id).Msg("Failed to register member")
		}

		text := membershipNotice(change, id)
		if text == "" {
			continue
		}
		if err := b.send(ctx, change.GroupID, text, id); err != nil {
			log.Warn().Err(err).Str("actor_id", id).Msg("Failed to send membership notice")
		}
	}
}

func membershipNotice(change domain.MembershipChange, id string) string {
	tag := domain.MentionTag(id)
	switch change.Action {
	case domain.MembershipAdd:
		return "👋 Welcome to the group, " + tag + "!"
	case domain.MembershipRemove:
		if change.ActorID != "" && change.ActorID != id {
			return "🚪 " + tag + " was removed from the group."
		}
		return "👋 " + tag + " left the group. Goodbye!"
	case domain.MembershipPromote:
		return "⭐ " + tag + " is now a group admin."
	case domain.MembershipDemote:
		return "🔻 " + tag + " is no longer a group admin."
	default:
		return ""
	}
}
