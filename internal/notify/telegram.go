package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers alert messages to the owner's Telegram chat.
// Owner ids are chat ids.
type TelegramNotifier struct {
	bot sender
}

func NewTelegramNotifier(token string, debug bool) (*TelegramNotifier, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("missing telegram bot token")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = debug
	return &TelegramNotifier{bot: bot}, nil
}

// Send delivers message to the chat ownerID. The bot API call takes no
// context, so it runs on its own goroutine and Send returns ctx.Err() once
// ctx ends; the request itself is then abandoned, not aborted.
func (n *TelegramNotifier) Send(ctx context.Context, ownerID string, message string) error {
	if n == nil || n.bot == nil {
		return errors.New("telegram notifier not configured")
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(ownerID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", ownerID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, message)
	msg.DisableWebPagePreview = true

	done := make(chan error, 1)
	go func() {
		_, err := n.bot.Send(msg)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	}
}
