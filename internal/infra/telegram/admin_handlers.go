package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"survey_compliance_bot/internal/app"
	"survey_compliance_bot/internal/domain/penalty"
	"survey_compliance_bot/internal/domain/user"
	idb "survey_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// AdminDeps bundles the services the admin command handlers need.
type AdminDeps struct {
	Chats             app.ChatService
	Users             app.UserService
	Roster            user.Repository
	Penalties         penalty.Repository
	CreatorTelegramID int64
}

// RegisterAdminHandlers registers handlers for admin commands: binding the
// chat and topic, roster management and the penalty ledger.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, deps AdminDeps, baseLogger *logrus.Entry) {
	isAdmin := func(senderID int64) bool {
		if senderID == deps.CreatorTelegramID {
			return true
		}
		u, err := deps.Users.Get(ctx, senderID)
		return err == nil && u.IsAdmin()
	}

	guard := func(handler string, fn func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   handler,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if !isAdmin(c.Sender().ID) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			}
			return fn(c, handlerLogger)
		}
	}

	b.Handle("/bind", guard("/bind", func(c telebot.Context, log *logrus.Entry) error {
		chat := c.Chat()
		if chat.Type == telebot.ChatPrivate {
			return c.Send("Команду нужно выполнять в групповом чате, который вы хотите привязать.")
		}

		err := deps.Chats.Bind(ctx, chat.ID, chat.Title, string(chat.Type))
		if err != nil {
			if errors.Is(err, idb.ErrChatAlreadyBound) {
				log.Warn("Chat already bound")
				return c.Send("Ошибка: Бот уже привязан к другому чату. Сначала выполните /unbind.")
			}
			log.WithError(err).Error("Failed to bind chat")
			return c.Send("Произошла ошибка при привязке чата.")
		}
		log.WithField("chat_id", chat.ID).Info("Chat bound")
		return c.Send("Чат успешно привязан. Уведомления об опросах будут приходить сюда.")
	}))

	b.Handle("/unbind", guard("/unbind", func(c telebot.Context, log *logrus.Entry) error {
		if err := deps.Chats.Unbind(ctx); err != nil {
			log.WithError(err).Error("Failed to unbind chat")
			return c.Send("Произошла ошибка при отвязке чата.")
		}
		return c.Send("Чат отвязан. Уведомления приостановлены до привязки нового чата.")
	}))

	b.Handle("/bind_topic", guard("/bind_topic", func(c telebot.Context, log *logrus.Entry) error {
		threadID := c.Message().ThreadID
		if threadID == 0 {
			return c.Send("Команду нужно выполнять внутри темы (топика) привязанного чата.")
		}

		err := deps.Chats.BindThread(ctx, c.Chat().ID, int64(threadID))
		if err != nil {
			if errors.Is(err, idb.ErrChatNotFound) {
				return c.Send("Ошибка: Этот чат не привязан. Сначала выполните /bind.")
			}
			log.WithError(err).Error("Failed to bind topic")
			return c.Send("Произошла ошибка при привязке темы.")
		}
		return c.Send("Тема привязана. Уведомления будут приходить в эту тему.")
	}))

	b.Handle("/unbind_topic", guard("/unbind_topic", func(c telebot.Context, log *logrus.Entry) error {
		err := deps.Chats.UnbindThread(ctx, c.Chat().ID)
		if err != nil {
			if errors.Is(err, idb.ErrChatNotFound) {
				return c.Send("Ошибка: Этот чат не привязан.")
			}
			log.WithError(err).Error("Failed to unbind topic")
			return c.Send("Произошла ошибка при отвязке темы.")
		}
		return c.Send("Тема отвязана. Уведомления будут приходить в общий чат.")
	}))

	b.Handle("/reserve", guard("/reserve", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /reserve <позывной>")
		}

		u, err := deps.Users.ToggleReserve(ctx, args[0])
		if err != nil {
			if errors.Is(err, idb.ErrUserNotFound) {
				return c.Send(fmt.Sprintf("Пользователь с позывным %q не найден.", args[0]))
			}
			log.WithError(err).Error("Failed to toggle reserve")
			return c.Send("Произошла ошибка при изменении статуса пользователя.")
		}

		if u.Reserved {
			return c.Send(fmt.Sprintf("Пользователь %s переведён в запас и освобождён от опросов.", u.Callsign))
		}
		return c.Send(fmt.Sprintf("Пользователь %s возвращён из запаса и снова участвует в опросах.", u.Callsign))
	}))

	b.Handle("/add_admin", guard("/add_admin", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /add_admin <позывной>")
		}
		if err := deps.Users.AddAdmin(ctx, args[0]); err != nil {
			if errors.Is(err, idb.ErrUserNotFound) {
				return c.Send(fmt.Sprintf("Пользователь с позывным %q не найден.", args[0]))
			}
			log.WithError(err).Error("Failed to add admin")
			return c.Send("Произошла ошибка при назначении администратора.")
		}
		return c.Send(fmt.Sprintf("Пользователь %s назначен администратором.", strings.ToLower(args[0])))
	}))

	b.Handle("/remove_admin", guard("/remove_admin", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /remove_admin <позывной>")
		}
		if err := deps.Users.RemoveAdmin(ctx, args[0]); err != nil {
			if errors.Is(err, idb.ErrUserNotFound) {
				return c.Send(fmt.Sprintf("Пользователь с позывным %q не найден.", args[0]))
			}
			log.WithError(err).Error("Failed to remove admin")
			return c.Send("Произошла ошибка при снятии администратора.")
		}
		return c.Send(fmt.Sprintf("Пользователь %s больше не администратор.", strings.ToLower(args[0])))
	}))

	b.Handle("/penalties", guard("/penalties", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /penalties <позывной>")
		}

		target, err := deps.Roster.GetByCallsign(ctx, strings.ToLower(args[0]))
		if err != nil {
			if errors.Is(err, idb.ErrUserNotFound) {
				return c.Send(fmt.Sprintf("Пользователь с позывным %q не найден.", args[0]))
			}
			log.WithError(err).Error("Failed to get user for penalty count")
			return c.Send("Произошла ошибка при получении штрафных баллов.")
		}

		items, err := deps.Penalties.ListByUser(ctx, target.ID)
		if err != nil {
			log.WithError(err).Error("Failed to list penalties")
			return c.Send("Произошла ошибка при получении штрафных баллов.")
		}
		if len(items) == 0 {
			return c.Send(fmt.Sprintf("У пользователя %s нет штрафных баллов.", target.Callsign))
		}

		var reply strings.Builder
		fmt.Fprintf(&reply, "У пользователя %s %d штрафных баллов (исключение при %d):\n",
			target.Callsign, len(items), penalty.BanThreshold)
		for _, p := range items {
			fmt.Fprintf(&reply, "— %s: %s\n", p.IssuedAt.Format("02.01.2006"), p.Reason)
		}
		return c.Send(reply.String())
	}))

	b.Handle("/reset_penalties", guard("/reset_penalties", func(c telebot.Context, log *logrus.Entry) error {
		if err := deps.Penalties.DeleteAll(ctx); err != nil {
			log.WithError(err).Error("Failed to reset penalties")
			return c.Send("Произошла ошибка при обнулении штрафных баллов.")
		}
		log.Info("All penalties reset")
		return c.Send("Все штрафные баллы обнулены.")
	}))
}
