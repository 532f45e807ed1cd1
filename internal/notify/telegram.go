// Package notify delivers chat messages to users by their numeric id.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender delivers a text message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipientID int64, text string) error
}

// Telegram sends messages through the Telegram Bot API.
type Telegram struct {
	bot *tgbotapi.BotAPI
	log *zap.Logger
}

// NewTelegram authenticates the bot token.
func NewTelegram(token string, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Info("telegram sender initialized", zap.String("bot", bot.Self.UserName))
	return &Telegram{bot: bot, log: log}, nil
}

// Send posts text as a Markdown message. The Bot API client has no context
// support, so ctx is only checked before the call.
func (t *Telegram) Send(ctx context.Context, recipientID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(recipientID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", recipientID, err)
	}
	return nil
}

// Ensure Telegram implements Sender
var _ Sender = (*Telegram)(nil)
