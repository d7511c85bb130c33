package telegram

import (
	"context"
	"fmt"
	"html"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of the Telegram Bot API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts operator alerts to one Telegram chat. A zero Notifier is
// disabled and drops every alert.
type Notifier struct {
	api     Sender
	chatID  int64
	botName string
	log     zerolog.Logger
}

// NewNotifier creates a Telegram notifier. It returns a disabled notifier
// when token or chatID is missing.
func NewNotifier(token string, chatID int64, botName string, log zerolog.Logger) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return &Notifier{log: log}, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return &Notifier{log: log}, fmt.Errorf("create telegram bot api: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Int64("chat_id", chatID).Msg("Telegram alerts enabled")
	return NewNotifierWithSender(api, chatID, botName, log), nil
}

func NewNotifierWithSender(api Sender, chatID int64, botName string, log zerolog.Logger) *Notifier {
	return &Notifier{api: api, chatID: chatID, botName: botName, log: log}
}

// IsConfigured returns true if alerts are delivered
func (n *Notifier) IsConfigured() bool {
	return n != nil && n.api != nil && n.chatID != 0
}

// Notify sends text as HTML, prefixed with the bot name. text may already
// contain HTML markup; the bot name is escaped. Errors are logged.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if !n.IsConfigured() {
		return
	}
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.botName), text))
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(msg)
		done <- err
	}()

	timeout := time.NewTimer(15 * time.Second)
	defer timeout.Stop()
	select {
	case err := <-done:
		if err != nil {
			n.log.Warn().Err(err).Msg("Failed to send Telegram alert")
		}
	case <-timeout.C:
		n.log.Warn().Msg("Telegram alert timed out")
	case <-ctx.Done():
	}
}
