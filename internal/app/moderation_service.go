package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"survey_compliance_bot/internal/dispatch"
	"survey_compliance_bot/internal/domain/chat"
	"survey_compliance_bot/internal/domain/penalty"
	"survey_compliance_bot/internal/domain/survey"
	"survey_compliance_bot/internal/domain/user"
	idb "survey_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// JobProducer is the slice of the dispatch queue the moderation service needs.
type JobProducer interface {
	Enqueue(job dispatch.Job) dispatch.Handle
	EnqueueBulk(jobs []dispatch.Job) dispatch.Handle
}

// NewSurveyInput carries the fields of a form-created event.
type NewSurveyInput struct {
	FormID      string
	Title       string
	Description string
	FormURL     string
	EndsAt      time.Time
}

// SurveyFinishedReport summarizes what a survey-finished event produced.
type SurveyFinishedReport struct {
	FormID        string
	NonResponders []string
	Banned        []*penalty.Offender
}

// ModerationService drives the survey compliance workflow: announcements,
// reminders to non-responders, penalty issuance and removal of repeat
// offenders.
type ModerationService interface {
	HandleSurveyAnnounced(ctx context.Context, in NewSurveyInput) error
	HandleSurveyReminder(ctx context.Context, formID string, answers []string) error
	HandleSurveyFinished(ctx context.Context, formID string, answers []string) (*SurveyFinishedReport, error)
	AnnouncePendingSurveys(ctx context.Context) error
	SendDeadlineReminders(ctx context.Context, now time.Time) error
}

type ModerationServiceImpl struct {
	chats     chat.Repository
	surveys   survey.Repository
	users     user.Repository
	penalties penalty.Repository
	producer  JobProducer
	logger    *logrus.Entry
	loc       *time.Location

	banThreshold int
	messageLimit int
}

func NewModerationService(
	cr chat.Repository,
	sr survey.Repository,
	ur user.Repository,
	pr penalty.Repository,
	producer JobProducer,
	logger *logrus.Entry,
	loc *time.Location,
) *ModerationServiceImpl {
	return &ModerationServiceImpl{
		chats:        cr,
		surveys:      sr,
		users:        ur,
		penalties:    pr,
		producer:     producer,
		logger:       logger,
		loc:          loc,
		banThreshold: penalty.BanThreshold,
		messageLimit: MessageLimit,
	}
}

// HandleSurveyAnnounced registers the survey and queues a pinned announcement
// to the bound chat. A replayed event for an already announced survey is
// absorbed without a second announcement.
func (s *ModerationServiceImpl) HandleSurveyAnnounced(ctx context.Context, in NewSurveyInput) error {
	bound, err := s.chats.GetBound(ctx)
	if err != nil {
		return fmt.Errorf("resolve bound chat: %w", err)
	}

	sv, err := s.surveys.GetByFormID(ctx, in.FormID)
	switch {
	case err == nil:
		if sv.Announced {
			s.logger.WithField("form_id", in.FormID).Info("Survey already announced, skipping")
			return nil
		}
	case errors.Is(err, idb.ErrSurveyNotFound):
		sv = &survey.Survey{
			FormID:  in.FormID,
			Title:   in.Title,
			FormURL: in.FormURL,
			EndsAt:  in.EndsAt,
		}
		if in.Description != "" {
			sv.Description.String = in.Description
			sv.Description.Valid = true
		}
		if err := s.surveys.Create(ctx, sv); err != nil {
			return fmt.Errorf("create survey %q: %w", in.FormID, err)
		}
	default:
		return fmt.Errorf("get survey %q: %w", in.FormID, err)
	}

	return s.announce(ctx, bound, sv)
}

func (s *ModerationServiceImpl) announce(ctx context.Context, bound *chat.Chat, sv *survey.Survey) error {
	h := s.producer.Enqueue(dispatch.Job{
		Kind:      dispatch.KindSendAndPin,
		ChatID:    bound.TelegramID,
		ThreadID:  bound.Thread(),
		Text:      announcementText(sv, s.loc),
		ParseMode: telebot.ModeMarkdown,
	})
	if h.Status == dispatch.StatusError {
		return fmt.Errorf("queue announcement for survey %q: %w", sv.FormID, h.Err)
	}

	if err := s.surveys.MarkAnnounced(ctx, sv.ID); err != nil {
		return fmt.Errorf("mark survey %q announced: %w", sv.FormID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"form_id": sv.FormID,
		"job_id":  h.JobID,
	}).Info("Survey announcement queued")
	return nil
}

// HandleSurveyReminder queues a reminder to everyone on the roster who has not
// answered yet. When everyone has answered, nothing is sent.
func (s *ModerationServiceImpl) HandleSurveyReminder(ctx context.Context, formID string, answers []string) error {
	bound, err := s.chats.GetBound(ctx)
	if err != nil {
		return fmt.Errorf("resolve bound chat: %w", err)
	}

	sv, err := s.surveys.GetByFormID(ctx, formID)
	if err != nil {
		return fmt.Errorf("get survey %q: %w", formID, err)
	}

	roster, err := s.users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list roster: %w", err)
	}

	missing, err := NonResponders(sv, answers, roster)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		s.logger.WithField("form_id", formID).Info("Everyone answered, no reminder needed")
		return nil
	}

	tags := make([]string, 0, len(missing))
	for _, nr := range missing {
		tags = append(tags, nr.User.MentionTag())
	}

	chunks, err := SplitMessage(notAnsweredPrefix(sv), tags, s.messageLimit)
	if err != nil {
		return fmt.Errorf("build reminder for survey %q: %w", formID, err)
	}

	jobs := make([]dispatch.Job, 0, len(chunks)+1)
	for _, text := range chunks {
		jobs = append(jobs, dispatch.Job{
			Kind:              dispatch.KindSend,
			ChatID:            bound.TelegramID,
			ThreadID:          bound.Thread(),
			Text:              text,
			ParseMode:         telebot.ModeMarkdown,
			DisableWebPreview: true,
		})
	}
	jobs = append(jobs, dispatch.Job{
		Kind:              dispatch.KindSend,
		ChatID:            bound.TelegramID,
		ThreadID:          bound.Thread(),
		Text:              reminderText(sv, s.loc),
		ParseMode:         telebot.ModeMarkdown,
		DisableWebPreview: true,
	})

	h := s.producer.EnqueueBulk(jobs)
	if h.Status == dispatch.StatusError {
		return fmt.Errorf("queue reminder for survey %q: %w", formID, h.Err)
	}
	s.logger.WithFields(logrus.Fields{
		"form_id":        formID,
		"non_responders": len(missing),
		"batch_id":       h.JobID,
	}).Info("Survey reminder queued")
	return nil
}

// HandleSurveyFinished closes out a survey: penalizes non-responders, announces
// the result and removes users who reached the ban threshold. The bound chat is
// resolved first so that a misconfigured installation aborts before any penalty
// is written.
func (s *ModerationServiceImpl) HandleSurveyFinished(ctx context.Context, formID string, answers []string) (*SurveyFinishedReport, error) {
	bound, err := s.chats.GetBound(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve bound chat: %w", err)
	}

	sv, err := s.surveys.GetByFormID(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("get survey %q: %w", formID, err)
	}

	roster, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	missing, err := NonResponders(sv, answers, roster)
	if err != nil {
		return nil, err
	}

	report := &SurveyFinishedReport{FormID: formID}

	if len(missing) == 0 {
		h := s.producer.Enqueue(dispatch.Job{
			Kind:              dispatch.KindSend,
			ChatID:            bound.TelegramID,
			ThreadID:          bound.Thread(),
			Text:              allClearText(sv),
			ParseMode:         telebot.ModeMarkdown,
			DisableWebPreview: true,
		})
		if h.Status == dispatch.StatusError {
			s.logger.WithError(h.Err).WithField("form_id", formID).Error("Failed to queue completion notice")
		}
		s.logger.WithField("form_id", formID).Info("Survey finished with full participation")
		return report, nil
	}

	tags := make([]string, 0, len(missing))
	for _, nr := range missing {
		report.NonResponders = append(report.NonResponders, nr.Callsign)

		// Re-resolve right before the write: the roster snapshot may be stale
		// and a user who left or lost the regular role gets no point.
		target, err := s.users.GetActiveByCallsign(ctx, nr.Callsign)
		if err != nil {
			if errors.Is(err, idb.ErrUserNotFound) {
				s.logger.WithField("callsign", nr.Callsign).Warn("Non-responder no longer active, penalty skipped")
				continue
			}
			return nil, fmt.Errorf("resolve non-responder %q: %w", nr.Callsign, err)
		}
		tags = append(tags, target.MentionTag())

		p := &penalty.Penalty{
			UserID:   target.ID,
			SurveyID: sv.ID,
			Reason:   fmt.Sprintf("Не прошёл опрос по мероприятию %q", sv.Title),
		}
		if err := s.penalties.Add(ctx, p); err != nil {
			return nil, fmt.Errorf("issue penalty to %q: %w", nr.Callsign, err)
		}
	}

	// Delivery trouble never stops the workflow: penalties are already on the
	// ledger and the ban pass below still has to run.
	if len(tags) > 0 {
		chunks, err := SplitMessage(penalizedPrefix(sv), tags, s.messageLimit)
		if err != nil {
			return nil, fmt.Errorf("build penalty notice for survey %q: %w", formID, err)
		}
		jobs := make([]dispatch.Job, 0, len(chunks))
		for _, text := range chunks {
			jobs = append(jobs, dispatch.Job{
				Kind:              dispatch.KindSend,
				ChatID:            bound.TelegramID,
				ThreadID:          bound.Thread(),
				Text:              text,
				ParseMode:         telebot.ModeMarkdown,
				DisableWebPreview: true,
			})
		}
		if h := s.producer.EnqueueBulk(jobs); h.Status == dispatch.StatusError {
			s.logger.WithError(h.Err).WithField("form_id", formID).Error("Failed to queue penalty notice")
		}
	}

	offenders, err := s.penalties.OffendersWithAtLeast(ctx, s.banThreshold)
	if err != nil {
		return nil, fmt.Errorf("list offenders: %w", err)
	}
	if len(offenders) == 0 {
		return report, nil
	}

	removedTags := make([]string, 0, len(offenders))
	for _, off := range offenders {
		report.Banned = append(report.Banned, off)
		removedTags = append(removedTags, off.MentionTag())

		h := s.producer.Enqueue(dispatch.Job{
			Kind:   dispatch.KindBan,
			ChatID: bound.TelegramID,
			UserID: off.TelegramID,
		})
		if h.Status == dispatch.StatusError {
			s.logger.WithError(h.Err).WithField("callsign", off.Callsign).Error("Failed to queue ban")
		}
		if err := s.users.SetActive(ctx, off.TelegramID, false); err != nil {
			s.logger.WithError(err).WithField("callsign", off.Callsign).Error("Failed to deactivate banned user")
		}
	}

	removedChunks, err := SplitMessage(removedPrefix, removedTags, s.messageLimit)
	if err != nil {
		return nil, fmt.Errorf("build removal notice for survey %q: %w", formID, err)
	}
	removedJobs := make([]dispatch.Job, 0, len(removedChunks))
	for _, text := range removedChunks {
		removedJobs = append(removedJobs, dispatch.Job{
			Kind:              dispatch.KindSend,
			ChatID:            bound.TelegramID,
			ThreadID:          bound.Thread(),
			Text:              text,
			ParseMode:         telebot.ModeMarkdown,
			DisableWebPreview: true,
		})
	}
	if h := s.producer.EnqueueBulk(removedJobs); h.Status == dispatch.StatusError {
		s.logger.WithError(h.Err).WithField("form_id", formID).Error("Failed to queue removal notice")
	}

	s.logger.WithFields(logrus.Fields{
		"form_id":        formID,
		"non_responders": len(report.NonResponders),
		"banned":         len(report.Banned),
	}).Info("Survey finished")
	return report, nil
}

// AnnouncePendingSurveys announces every survey that was registered but never
// made it to the chat, e.g. because no chat was bound at the time.
func (s *ModerationServiceImpl) AnnouncePendingSurveys(ctx context.Context) error {
	bound, err := s.chats.GetBound(ctx)
	if err != nil {
		if errors.Is(err, idb.ErrNoBoundChat) {
			return nil
		}
		return fmt.Errorf("resolve bound chat: %w", err)
	}

	pending, err := s.surveys.ListUnannounced(ctx)
	if err != nil {
		return fmt.Errorf("list unannounced surveys: %w", err)
	}
	now := time.Now()
	for _, sv := range pending {
		if sv.IsExpired(now) {
			s.logger.WithField("form_id", sv.FormID).Info("Skipping expired survey in announcement sweep")
			continue
		}
		if err := s.announce(ctx, bound, sv); err != nil {
			s.logger.WithError(err).WithField("form_id", sv.FormID).Error("Failed to announce pending survey")
		}
	}
	return nil
}

// SendDeadlineReminders nudges the chat about surveys closing within the next
// day. Runs from the scheduler once per day.
func (s *ModerationServiceImpl) SendDeadlineReminders(ctx context.Context, now time.Time) error {
	bound, err := s.chats.GetBound(ctx)
	if err != nil {
		if errors.Is(err, idb.ErrNoBoundChat) {
			return nil
		}
		return fmt.Errorf("resolve bound chat: %w", err)
	}

	closing, err := s.surveys.ListEndingBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("list closing surveys: %w", err)
	}
	if len(closing) == 0 {
		return nil
	}

	jobs := make([]dispatch.Job, 0, len(closing))
	for _, sv := range closing {
		jobs = append(jobs, dispatch.Job{
			Kind:              dispatch.KindSend,
			ChatID:            bound.TelegramID,
			ThreadID:          bound.Thread(),
			Text:              closingSoonText(sv, s.loc),
			ParseMode:         telebot.ModeMarkdown,
			DisableWebPreview: true,
		})
	}
	if h := s.producer.EnqueueBulk(jobs); h.Status == dispatch.StatusError {
		return fmt.Errorf("queue deadline reminders: %w", h.Err)
	}
	s.logger.WithField("surveys", len(closing)).Info("Deadline reminders queued")
	return nil
}
