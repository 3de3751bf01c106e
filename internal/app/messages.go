package app

import (
	"fmt"
	"strings"
	"time"

	"survey_compliance_bot/internal/domain/survey"
)

const deadlineFormat = "02.01.2006 15:04"

// escapeMarkdown escapes the characters Telegram's Markdown mode treats
// specially, so titles and names cannot break message formatting.
func escapeMarkdown(text string) string {
	r := strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)
	return r.Replace(text)
}

func announcementText(s *survey.Survey, loc *time.Location) string {
	return fmt.Sprintf(
		"Запущен новый опрос:\n\n"+
			"• *%s*\n"+
			"🕒 Пройти до: %s\n"+
			"🔗 [Перейти к опросу](%s)\n",
		escapeMarkdown(s.Title),
		s.EndsAt.In(loc).Format(deadlineFormat),
		s.FormURL,
	)
}

func reminderText(s *survey.Survey, loc *time.Location) string {
	return fmt.Sprintf(
		"🔔 Напоминаю, что опрос нужно пройти до\n\n"+
			"*%s*\n\n"+
			"Если опрос не будет пройден до указанной даты, вы получите штрафной балл.\n"+
			"Три штрафных балла приведут к автоматическому исключению из команды.\n\n"+
			"🔗 [Перейти к опросу](%s)",
		s.EndsAt.In(loc).Format(deadlineFormat),
		s.FormURL,
	)
}

func notAnsweredPrefix(s *survey.Survey) string {
	return fmt.Sprintf(
		"⚠️ Опрос по мероприятию [%s](%s) не прошли:\n",
		escapeMarkdown(s.Title), s.FormURL,
	)
}

func penalizedPrefix(s *survey.Survey) string {
	return fmt.Sprintf(
		"⚠️ Опрос по мероприятию [%s](%s) завершен.\n\n"+
			"Ниже перечислены пользователи, которые не прошли опрос вовремя "+
			"и получили +1 штрафной балл\n\n(3 штрафных балла = исключение из команды):\n",
		escapeMarkdown(s.Title), s.FormURL,
	)
}

func allClearText(s *survey.Survey) string {
	return fmt.Sprintf(
		"✅ Опрос по мероприятию [%s](%s) завершен.\n\n"+
			"Все члены команды прошли опрос вовремя!",
		escapeMarkdown(s.Title), s.FormURL,
	)
}

const removedPrefix = "🚫 Пользователи, достигшие 3 штрафных баллов, " +
	"были автоматически исключены из команды:\n"

func closingSoonText(s *survey.Survey, loc *time.Location) string {
	return fmt.Sprintf(
		"⏳ Опрос *%s* закрывается %s.\n"+
			"Если вы ещё не прошли его — самое время.\n\n"+
			"🔗 [Перейти к опросу](%s)",
		escapeMarkdown(s.Title),
		s.EndsAt.In(loc).Format(deadlineFormat),
		s.FormURL,
	)
}
