package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"survey_compliance_bot/internal/app"
	"survey_compliance_bot/internal/domain/penalty"
	idb "survey_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	userService app.UserService,
	penalties penalty.Repository,
	baseLogger *logrus.Entry,
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		u, err := userService.Get(ctx, senderID)
		if err == nil {
			if u.Active {
				return c.Send(fmt.Sprintf("Привет, %s! Я слежу за прохождением опросов команды. Используйте /help для списка команд.", u.Callsign))
			}
			return c.Send("Ваш аккаунт неактивен. Вернитесь в командный чат или обратитесь к администратору.")
		} else if !errors.Is(err, idb.ErrUserNotFound) {
			logCtx.WithError(err).Error("Error checking user status for /start command")
			return c.Send("Произошла ошибка при проверке вашего статуса. Пожалуйста, попробуйте позже.")
		}

		return c.Send("Привет! Я бот учёта опросов команды. Зарегистрируйтесь командой /reg <позывной>: только латинские буквы, не длиннее 20 символов.")
	})

	b.Handle("/reg", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/reg").WithField("sender_id", senderID)
		logCtx.Info("Processing /reg command")

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /reg <позывной>")
		}

		u, err := userService.Register(ctx, app.RegisterInput{
			TelegramID: senderID,
			Username:   c.Sender().Username,
			FirstName:  c.Sender().FirstName,
			LastName:   c.Sender().LastName,
			Callsign:   args[0],
		})
		if err != nil {
			logWithError := logCtx.WithError(err)
			switch {
			case errors.Is(err, app.ErrInvalidCallsign):
				logWithError.Warn("Invalid callsign")
				return c.Send("Ошибка: Позывной должен состоять только из латинских букв и быть не длиннее 20 символов.")
			case errors.Is(err, app.ErrCallsignTaken):
				logWithError.Warn("Callsign taken")
				return c.Send(fmt.Sprintf("Ошибка: Позывной %q уже занят.", strings.ToLower(args[0])))
			case errors.Is(err, app.ErrAlreadyRegistered):
				logWithError.Warn("Already registered")
				return c.Send("Вы уже зарегистрированы.")
			default:
				logWithError.Error("Failed to register user")
				return c.Send("Произошла ошибка при регистрации. Пожалуйста, попробуйте позже.")
			}
		}

		logCtx.WithField("callsign", u.Callsign).Info("User registered")
		return c.Send(fmt.Sprintf("Вы зарегистрированы с позывным %s. Не забывайте проходить опросы вовремя!", u.Callsign))
	})

	b.Handle("/profile", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/profile").WithField("sender_id", senderID)
		logCtx.Info("Processing /profile command")

		u, err := userService.Get(ctx, senderID)
		if err != nil {
			if errors.Is(err, idb.ErrUserNotFound) {
				return c.Send("Вы не зарегистрированы. Используйте /reg <позывной>.")
			}
			logCtx.WithError(err).Error("Error loading profile")
			return c.Send("Произошла ошибка при получении профиля. Пожалуйста, попробуйте позже.")
		}

		count, err := penalties.CountByUser(ctx, u.ID)
		if err != nil {
			logCtx.WithError(err).Error("Error counting penalties for profile")
			return c.Send("Произошла ошибка при получении профиля. Пожалуйста, попробуйте позже.")
		}

		status := "в строю"
		if u.Reserved {
			status = "в запасе (освобождён от опросов)"
		}
		if !u.Active {
			status = "неактивен"
		}
		return c.Send(fmt.Sprintf("Позывной: %s\nРоль: %s\nСтатус: %s\nШтрафные баллы: %d из %d",
			u.Callsign, u.Role, status, count, penalty.BanThreshold))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		u, err := userService.Get(ctx, senderID)
		if err != nil && !errors.Is(err, idb.ErrUserNotFound) {
			logCtx.WithError(err).Error("Error checking user status for /help command")
			return c.Send("Произошла ошибка при проверке вашего статуса. Пожалуйста, попробуйте позже.")
		}

		var helpText strings.Builder
		helpText.WriteString("Доступные команды:\n\n")
		helpText.WriteString("`/reg <позывной>`\n - Зарегистрироваться в системе учёта опросов.\n\n")
		helpText.WriteString("`/profile`\n - Показать свой профиль и штрафные баллы.\n\n")
		helpText.WriteString("`/help`\n - Показать это справочное сообщение.")

		if err == nil && u.IsAdmin() {
			logCtx.Info("User identified as Admin, sending admin help.")
			helpText.WriteString("\n\nКоманды Администратора:\n\n")
			helpText.WriteString("`/bind`\n - Привязать текущий групповой чат для уведомлений.\n\n")
			helpText.WriteString("`/unbind`\n - Отвязать чат.\n\n")
			helpText.WriteString("`/bind_topic` и `/unbind_topic`\n - Привязать или отвязать тему для уведомлений.\n\n")
			helpText.WriteString("`/reserve <позывной>`\n - Перевести пользователя в запас или вернуть из него.\n\n")
			helpText.WriteString("`/add_admin <позывной>` и `/remove_admin <позывной>`\n - Управление администраторами.\n\n")
			helpText.WriteString("`/penalties <позывной>`\n - Показать штрафные баллы пользователя.\n\n")
			helpText.WriteString("`/reset_penalties`\n - Обнулить все штрафные баллы.")
		}

		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

// RegisterMemberHandlers wires chat membership events to the roster: a
// returning member is reactivated with penalties forgiven, a leaving member is
// deactivated.
func RegisterMemberHandlers(ctx context.Context, b *telebot.Bot, userService app.UserService, baseLogger *logrus.Entry) {
	memberLogger := baseLogger.WithField("handler_group", "membership")

	b.Handle(telebot.OnUserJoined, func(c telebot.Context) error {
		for _, joinedID := range joinedUserIDs(c) {
			logCtx := memberLogger.WithField("telegram_id", joinedID)
			if err := userService.HandleMemberReturn(ctx, joinedID); err != nil {
				logCtx.WithError(err).Error("Failed to process joined member")
				continue
			}
			logCtx.Info("Processed joined member")
		}
		return nil
	})

	b.Handle(telebot.OnUserLeft, func(c telebot.Context) error {
		left := c.Message().UserLeft
		if left == nil {
			return nil
		}
		logCtx := memberLogger.WithField("telegram_id", left.ID)
		if err := userService.HandleMemberLeft(ctx, left.ID); err != nil {
			logCtx.WithError(err).Error("Failed to process left member")
			return nil
		}
		logCtx.Info("Processed left member")
		return nil
	})
}

// joinedUserIDs collects every user ID from a join event; Telegram reports a
// single joiner and a batch of added members through different fields.
func joinedUserIDs(c telebot.Context) []int64 {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	var out []int64
	if msg.UserJoined != nil {
		out = append(out, msg.UserJoined.ID)
	}
	for _, u := range msg.UsersJoined {
		if msg.UserJoined != nil && u.ID == msg.UserJoined.ID {
			continue
		}
		out = append(out, u.ID)
	}
	return out
}
