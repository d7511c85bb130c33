package domain

import (
	"strings"
	"time"
)

// MessageBody is the payload of an inbound message. Exactly one of TextBody,
// CaptionBody or OtherBody.
type MessageBody interface {
	isMessageBody()
}

// TextBody is a plain or extended text message.
type TextBody struct {
	Text string
}

// CaptionBody is the caption attached to a media message.
type CaptionBody struct {
	Media   string
	Caption string
}

// OtherBody is any message kind the bot does not read (stickers, audio,
// reactions, protocol messages).
type OtherBody struct {
	Kind string
}

func (TextBody) isMessageBody()    {}
func (CaptionBody) isMessageBody() {}
func (OtherBody) isMessageBody()   {}

// BodyText extracts readable text. ok is false for OtherBody and nil.
func BodyText(b MessageBody) (text string, ok bool) {
	switch v := b.(type) {
	case TextBody:
		return v.Text, true
	case CaptionBody:
		return v.Caption, true
	default:
		return "", false
	}
}

type InboundMessage struct {
	ID        string
	ChatID    string
	SenderID  string
	PushName  string
	IsGroup   bool
	FromSelf  bool
	Timestamp time.Time
	Body      MessageBody
	// Mentions lists actor ids tagged in the message, in order.
	Mentions []string
	// QuotedSender is the author of the message being replied to, if any.
	QuotedSender string
}

// Target is the actor a moderation or economy command acts on: the first
// mention, else the author of the quoted message.
func (m InboundMessage) Target() (string, bool) {
	if len(m.Mentions) > 0 && m.Mentions[0] != "" {
		return m.Mentions[0], true
	}
	if m.QuotedSender != "" {
		return m.QuotedSender, true
	}
	return "", false
}

type OutboundMessage struct {
	Text     string
	Mentions []string
}

type Participant struct {
	ID   string
	Role GroupRole
}

type GroupInfo struct {
	ID           string
	Name         string
	Announce     bool
	Participants []Participant
}

func (g *GroupInfo) RoleOf(actorID string) (GroupRole, bool) {
	for _, p := range g.Participants {
		if p.ID == actorID {
			return p.Role, true
		}
	}
	return "", false
}

func (g *GroupInfo) MemberIDs() []string {
	ids := make([]string, 0, len(g.Participants))
	for _, p := range g.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

type MembershipAction string

const (
	MembershipAdd     MembershipAction = "add"
	MembershipRemove  MembershipAction = "remove"
	MembershipPromote MembershipAction = "promote"
	MembershipDemote  MembershipAction = "demote"
)

type MembershipChange struct {
	GroupID     string
	Action      MembershipAction
	AffectedIDs []string
	// ActorID is who performed the change; empty when unknown or self-initiated.
	ActorID string
}

// UserPart returns the part of an actor id before the server ("5531...@s.whatsapp.net" -> "5531...").
func UserPart(actorID string) string {
	user, _, _ := strings.Cut(actorID, "@")
	return user
}

// MentionTag renders the "@user" token that chat clients turn into a mention.
func MentionTag(actorID string) string {
	return "@" + UserPart(actorID)
}
