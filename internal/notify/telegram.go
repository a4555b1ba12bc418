// Package notify delivers operator notifications.
package notify

import (
	"context"
	"errors"
	"fmt"

	"armada/internal/config"
	"armada/internal/domain"
	"armada/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier sends every notification to a fixed list of operator chats.
type TelegramNotifier struct {
	bot     domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

// NewBotSender connects to the Bot API with the configured token.
func NewBotSender(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	l := logger.With().Str("component", "telegram").Logger()
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: &l}
}

// Notify returns an error if delivery failed for at least one chat, so the
// worker retries. Chats that already got the message may see it again.
func (n *TelegramNotifier) Notify(ctx context.Context, note models.Notification) error {
	if len(n.chatIDs) == 0 {
		return errors.New("no telegram chats configured")
	}
	text := Format(note)

	var errs []error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Int64("booking_id", note.BookingID).Msg("telegram send failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// Format renders a notification as plain text.
func Format(n models.Notification) string {
	if n.Body == "" {
		return n.Title
	}
	return n.Title + "\n\n" + n.Body
}

// LogNotifier writes notifications to the log. Used when Telegram is disabled.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "notify").Logger()
	return &LogNotifier{logger: &l}
}

func (n *LogNotifier) Notify(ctx context.Context, note models.Notification) error {
	n.logger.Info().
		Str("kind", note.Kind).
		Int64("booking_id", note.BookingID).
		Str("title", note.Title).
		Msg(note.Body)
	return nil
}
