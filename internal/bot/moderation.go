package bot

import (
	"context"
	"strings"

	"github.com/tazhate/dombot/internal/apperr"
	"github.com/tazhate/dombot/internal/domain"
)

// moderationTarget rejects targets the bot must never act on.
func (b *Bot) moderationTarget(c *cmdContext) (string, error) {
	target, err := c.target()
	if err != nil {
		return "", err
	}
	if target == b.tr.SelfID() {
		return "", apperr.InvalidArgument("I can't do that to myself.")
	}
	if target == c.actor() {
		return "", apperr.InvalidArgument("You can't do that to yourself.")
	}
	if b.auth.IsOwner(target) {
		return "", apperr.PermissionDenied("Bot owners can't be moderated.")
	}
	return target, nil
}

func (b *Bot) changeParticipant(ctx context.Context, c *cmdContext, action domain.MembershipAction, done string) error {
	target, err := b.moderationTarget(c)
	if err != nil {
		return err
	}
	tag := domain.MentionTag(target)
	if err := b.tr.UpdateParticipant(ctx, c.msg.ChatID, target, action); err != nil {
		return apperr.Transport(err, "WhatsApp refused to "+string(action)+" "+tag+".")
	}
	c.log.Info().Str("target", target).Str("action", string(action)).Msg("Group member updated")
	b.reply(ctx, c.msg, done+" "+tag, target)
	return nil
}

func (b *Bot) cmdKick(ctx context.Context, c *cmdContext) error {
	return b.changeParticipant(ctx, c, domain.MembershipRemove, "👢 Removed")
}

func (b *Bot) cmdPromote(ctx context.Context, c *cmdContext) error {
	return b.changeParticipant(ctx, c, domain.MembershipPromote, "⭐ Promoted to group admin:")
}

func (b *Bot) cmdDemote(ctx context.Context, c *cmdContext) error {
	return b.changeParticipant(ctx, c, domain.MembershipDemote, "🔻 No longer a group admin:")
}

func (b *Bot) cmdMentionAll(ctx context.Context, c *cmdContext) error {
	info, err := b.tr.GroupInfo(ctx, c.msg.ChatID)
	if err != nil {
		return apperr.Transport(err, "Couldn't read the group's member list.")
	}

	text := strings.Join(c.args, " ")
	if text == "" {
		text = "📢 Attention, everyone!"
	}

	members := make([]string, 0, len(info.Participants))
	var sb strings.Builder
	sb.WriteString(text + "\n")
	for _, id := range info.MemberIDs() {
		if id == b.tr.SelfID() {
			continue
		}
		members = append(members, id)
		sb.WriteString("\n" + domain.MentionTag(id))
	}

	if err := b.send(ctx, c.msg.ChatID, sb.String(), members...); err != nil {
		return apperr.Transport(err, "Couldn't send the mention.")
	}
	return nil
}

func (b *Bot) setAnnounce(ctx context.Context, c *cmdContext, announce bool, done string) error {
	if err := b.tr.SetAnnounce(ctx, c.msg.ChatID, announce); err != nil {
		return apperr.Transport(err, "WhatsApp refused to change the group settings.")
	}
	c.log.Info().Bool("announce", announce).Msg("Group posting permission changed")
	b.reply(ctx, c.msg, done)
	return nil
}

func (b *Bot) cmdClose(ctx context.Context, c *cmdContext) error {
	return b.setAnnounce(ctx, c, true, "🔒 Group closed. Only admins can send messages.")
}

func (b *Bot) cmdOpen(ctx context.Context, c *cmdContext) error {
	return b.setAnnounce(ctx, c, false, "🔓 Group opened. Everyone can send messages.")
}
