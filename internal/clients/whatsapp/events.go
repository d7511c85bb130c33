package whatsapp

import (
	"context"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/tazhate/dombot/internal/domain"
)

// LIDResolver maps hidden-user (LID) JIDs to phone-number JIDs. whatsmeow's
// device store implements it.
type LIDResolver interface {
	GetPNForLID(ctx context.Context, lid types.JID) (types.JID, error)
}

// identities puts every actor JID in the phone-number space, so a member
// addressed by LID in one group is the same ledger user everywhere and
// matches the configured owner. A nil resolver leaves unknown LIDs as is.
type identities struct {
	lids LIDResolver
}

func (m identities) actorID(ctx context.Context, jid, alt types.JID) string {
	jid = jid.ToNonAD()
	if jid.Server == types.HiddenUserServer {
		if alt.Server == types.DefaultUserServer {
			return alt.ToNonAD().String()
		}
		if m.lids != nil {
			if pn, err := m.lids.GetPNForLID(ctx, jid); err == nil && !pn.IsEmpty() {
				return pn.ToNonAD().String()
			}
		}
	}
	return jid.String()
}

func (m identities) parseActorID(ctx context.Context, raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	jid, err := types.ParseJID(raw)
	if err != nil || jid.IsEmpty() {
		return "", false
	}
	return m.actorID(ctx, jid, types.EmptyJID), true
}

// toInbound maps a whatsmeow message event. ok is false for events with no
// usable payload.
func (m identities) toInbound(ctx context.Context, evt *events.Message) (domain.InboundMessage, bool) {
	if evt == nil || evt.Message == nil {
		return domain.InboundMessage{}, false
	}
	info := evt.Info
	msg := domain.InboundMessage{
		ID:        info.ID,
		ChatID:    info.Chat.ToNonAD().String(),
		SenderID:  m.actorID(ctx, info.Sender, info.SenderAlt),
		PushName:  info.PushName,
		IsGroup:   info.IsGroup,
		FromSelf:  info.IsFromMe,
		Timestamp: info.Timestamp,
		Body:      messageBody(evt.Message),
	}
	if ci := contextInfo(evt.Message); ci != nil {
		for _, raw := range ci.GetMentionedJID() {
			if id, ok := m.parseActorID(ctx, raw); ok {
				msg.Mentions = append(msg.Mentions, id)
			}
		}
		if id, ok := m.parseActorID(ctx, ci.GetParticipant()); ok {
			msg.QuotedSender = id
		}
	}
	return msg, true
}

// messageBody picks the variant for m. Captions of image, video and document
// messages count as text.
func messageBody(m *waE2E.Message) domain.MessageBody {
	switch {
	case m.Conversation != nil:
		return domain.TextBody{Text: m.GetConversation()}
	case m.GetExtendedTextMessage() != nil:
		return domain.TextBody{Text: m.GetExtendedTextMessage().GetText()}
	case m.GetImageMessage() != nil:
		return domain.CaptionBody{Media: "image", Caption: m.GetImageMessage().GetCaption()}
	case m.GetVideoMessage() != nil:
		return domain.CaptionBody{Media: "video", Caption: m.GetVideoMessage().GetCaption()}
	case m.GetDocumentMessage() != nil:
		return domain.CaptionBody{Media: "document", Caption: m.GetDocumentMessage().GetCaption()}
	case m.GetStickerMessage() != nil:
		return domain.OtherBody{Kind: "sticker"}
	case m.GetAudioMessage() != nil:
		return domain.OtherBody{Kind: "audio"}
	case m.GetReactionMessage() != nil:
		return domain.OtherBody{Kind: "reaction"}
	case m.GetProtocolMessage() != nil:
		return domain.OtherBody{Kind: "protocol"}
	default:
		return domain.OtherBody{Kind: "unknown"}
	}
}

func contextInfo(m *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case m.GetExtendedTextMessage() != nil:
		return m.GetExtendedTextMessage().GetContextInfo()
	case m.GetImageMessage() != nil:
		return m.GetImageMessage().GetContextInfo()
	case m.GetVideoMessage() != nil:
		return m.GetVideoMessage().GetContextInfo()
	case m.GetDocumentMessage() != nil:
		return m.GetDocumentMessage().GetContextInfo()
	default:
		return nil
	}
}

// toMembershipChanges splits one group-info event into one change per action.
func (m identities) toMembershipChanges(ctx context.Context, evt *events.GroupInfo) []domain.MembershipChange {
	if evt == nil {
		return nil
	}
	groupID := evt.JID.ToNonAD().String()
	actor := ""
	if evt.Sender != nil {
		alt := types.EmptyJID
		if evt.SenderPN != nil {
			alt = *evt.SenderPN
		}
		actor = m.actorID(ctx, *evt.Sender, alt)
	}

	var out []domain.MembershipChange
	add := func(action domain.MembershipAction, jids []types.JID) {
		if len(jids) == 0 {
			return
		}
		ids := make([]string, 0, len(jids))
		for _, j := range jids {
			ids = append(ids, m.actorID(ctx, j, types.EmptyJID))
		}
		out = append(out, domain.MembershipChange{
			GroupID:     groupID,
			Action:      action,
			AffectedIDs: ids,
			ActorID:     actor,
		})
	}
	add(domain.MembershipAdd, evt.Join)
	add(domain.MembershipRemove, evt.Leave)
	add(domain.MembershipPromote, evt.Promote)
	add(domain.MembershipDemote, evt.Demote)
	return out
}

// outboundMessage builds the wire message. Plain text goes out as a
// conversation; mentions need an extended text message.
func outboundMessage(msg domain.OutboundMessage) *waE2E.Message {
	if len(msg.Mentions) == 0 {
		return &waE2E.Message{Conversation: proto.String(msg.Text)}
	}
	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(msg.Text),
			ContextInfo: &waE2E.ContextInfo{
				MentionedJID: append([]string{}, msg.Mentions...),
			},
		},
	}
}

// toGroupInfo keeps the phone-number JID for participants addressed by LID,
// so roles match the sender ids seen on messages.
func (m identities) toGroupInfo(ctx context.Context, info *types.GroupInfo) *domain.GroupInfo {
	out := &domain.GroupInfo{
		ID:           info.JID.ToNonAD().String(),
		Name:         info.Name,
		Announce:     info.IsAnnounce,
		Participants: make([]domain.Participant, 0, len(info.Participants)),
	}
	for _, p := range info.Participants {
		role := domain.GroupRoleMember
		switch {
		case p.IsSuperAdmin:
			role = domain.GroupRoleSuperAdmin
		case p.IsAdmin:
			role = domain.GroupRoleAdmin
		}
		out.Participants = append(out.Participants, domain.Participant{ID: m.actorID(ctx, p.JID, p.PhoneNumber), Role: role})
	}
	return out
}
