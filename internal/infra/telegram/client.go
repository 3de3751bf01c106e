package telegram

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	domainTelegram "survey_compliance_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// connectivityKeywords mark API errors that are really transport failures and
// therefore worth retrying.
var connectivityKeywords = []string{"cannot connect", "connection", "timeout", "network"}

// TelebotAdapter implements the domain Client interface using the
// gopkg.in/telebot.v3 library. Platform errors are translated into the
// classified error types the dispatcher retries on.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// Send posts a message to the chat and returns the platform message ID.
func (tba *TelebotAdapter) Send(ctx context.Context, p domainTelegram.SendParams) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &domainTelegram.ConnectivityError{Err: err}
	}

	opts := &telebot.SendOptions{
		ParseMode:             p.ParseMode,
		DisableWebPagePreview: p.DisableWebPreview,
		ThreadID:              p.ThreadID,
	}
	if p.ReplyTo != 0 {
		opts.ReplyTo = &telebot.Message{ID: p.ReplyTo, Chat: &telebot.Chat{ID: p.ChatID}}
	}

	msg, err := tba.bot.Send(telebot.ChatID(p.ChatID), p.Text, opts)
	if err != nil {
		return 0, classifyError(err)
	}
	return msg.ID, nil
}

func (tba *TelebotAdapter) Pin(ctx context.Context, chatID int64, messageID int, silent bool) error {
	if err := ctx.Err(); err != nil {
		return &domainTelegram.ConnectivityError{Err: err}
	}

	stored := telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if silent {
		return classifyError(tba.bot.Pin(stored, telebot.Silent))
	}
	return classifyError(tba.bot.Pin(stored))
}

func (tba *TelebotAdapter) Ban(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return &domainTelegram.ConnectivityError{Err: err}
	}

	member := &telebot.ChatMember{User: &telebot.User{ID: userID}}
	return classifyError(tba.bot.Ban(&telebot.Chat{ID: chatID}, member))
}

// classifyError maps telebot and transport errors onto the domain error types.
// Flood responses carry the wait the platform mandated; timeouts and
// connection-level failures are retryable; everything else is permanent.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return &domainTelegram.RateLimitError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domainTelegram.ConnectivityError{Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range connectivityKeywords {
		if strings.Contains(msg, kw) {
			return &domainTelegram.ConnectivityError{Err: err}
		}
	}
	return err
}
