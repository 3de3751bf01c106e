package app

import (
	"context"
	"fmt"

	"survey_compliance_bot/internal/domain/chat"

	"github.com/sirupsen/logrus"
)

// ChatService manages the single chat the bot serves.
type ChatService interface {
	Bind(ctx context.Context, telegramID int64, title, chatType string) error
	Unbind(ctx context.Context) error
	BindThread(ctx context.Context, telegramID, threadID int64) error
	UnbindThread(ctx context.Context, telegramID int64) error
	Bound(ctx context.Context) (*chat.Chat, error)
}

type ChatServiceImpl struct {
	chats  chat.Repository
	logger *logrus.Entry
}

func NewChatService(cr chat.Repository, logger *logrus.Entry) *ChatServiceImpl {
	return &ChatServiceImpl{chats: cr, logger: logger}
}

// Bind registers the chat as the bot's single destination. The repository
// rejects a second bind while one chat is already bound.
func (s *ChatServiceImpl) Bind(ctx context.Context, telegramID int64, title, chatType string) error {
	c := &chat.Chat{TelegramID: telegramID, Type: chatType}
	if title != "" {
		c.Title.String = title
		c.Title.Valid = true
	}
	if err := s.chats.Bind(ctx, c); err != nil {
		return fmt.Errorf("bind chat %d: %w", telegramID, err)
	}
	s.logger.WithField("chat_id", telegramID).Info("Chat bound")
	return nil
}

func (s *ChatServiceImpl) Unbind(ctx context.Context) error {
	n, err := s.chats.Unbind(ctx)
	if err != nil {
		return fmt.Errorf("unbind chat: %w", err)
	}
	s.logger.WithField("removed", n).Info("Chat unbound")
	return nil
}

// BindThread routes all bot messages into one forum topic of the bound chat.
func (s *ChatServiceImpl) BindThread(ctx context.Context, telegramID, threadID int64) error {
	if err := s.chats.SetThread(ctx, telegramID, threadID); err != nil {
		return fmt.Errorf("bind thread %d: %w", threadID, err)
	}
	s.logger.WithFields(logrus.Fields{"chat_id": telegramID, "thread_id": threadID}).Info("Thread bound")
	return nil
}

func (s *ChatServiceImpl) UnbindThread(ctx context.Context, telegramID int64) error {
	if err := s.chats.ClearThread(ctx, telegramID); err != nil {
		return fmt.Errorf("unbind thread: %w", err)
	}
	s.logger.WithField("chat_id", telegramID).Info("Thread unbound")
	return nil
}

func (s *ChatServiceImpl) Bound(ctx context.Context) (*chat.Chat, error) {
	return s.chats.GetBound(ctx)
}
