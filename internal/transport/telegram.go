package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"
)

type telegramAPI interface {
	GetMe() (tgbotapi.User, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers messages as Telegram chat messages. Recipients are
// numeric chat IDs.
type Telegram struct {
	api telegramAPI
	log *slog.Logger
}

// NewTelegram creates a Telegram transport with the given bot token.
func NewTelegram(token string, log *slog.Logger) (*Telegram, error) {
	if token == "" {
		return nil, ErrNoIdentity
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, log: log}, nil
}

// Login verifies the bot token against the Telegram API.
func (t *Telegram) Login(_ context.Context) error {
	if _, err := t.api.GetMe(); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	return nil
}

// Send delivers the message to every recipient chat, retrying each
// chat a few times on transient failures.
func (t *Telegram) Send(ctx context.Context, msg *Message) error {
	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	for _, r := range msg.Recipients {
		chatID, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return fmt.Errorf("recipient %q is not a chat id: %w", r, err)
		}
		if err := t.sendToChat(ctx, chatID, text); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) sendToChat(ctx context.Context, chatID int64, text string) error {
	m := tgbotapi.NewMessage(chatID, text)
	m.DisableWebPagePreview = true

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(_ context.Context) error {
		_, err := t.api.Send(m)
		if err == nil {
			return nil
		}
		if isUnauthorized(err) {
			return fmt.Errorf("%w: %v", ErrAuthRequired, err)
		}
		t.log.Debug("telegram send failed, retrying", "chat_id", chatID, "error", err)
		return retry.RetryableError(fmt.Errorf("send to chat %d: %w", chatID, err))
	})
}

func isUnauthorized(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401 || apiErr.Code == 403
	}
	return false
}
