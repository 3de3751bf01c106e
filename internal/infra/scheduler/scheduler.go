package scheduler

import (
	"context"
	"time"

	"survey_compliance_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SurveyScheduler drives the periodic moderation jobs: announcing surveys that
// never made it to the chat and nudging the team about approaching deadlines.
type SurveyScheduler struct {
	cronEngine               *cron.Cron
	moderation               app.ModerationService
	logger                   *logrus.Entry
	cronSpecAnnounceSweep    string
	cronSpecDeadlineReminder string
}

func NewSurveyScheduler(
	moderation app.ModerationService,
	logger *logrus.Entry,
	loc *time.Location,
	cronSpecAnnounceSweep string, // e.g. "*/5 * * * *"
	cronSpecDeadlineReminder string, // e.g. "0 10 * * *"
) *SurveyScheduler {
	return &SurveyScheduler{
		cronEngine:               cron.New(cron.WithLocation(loc)),
		moderation:               moderation,
		logger:                   logger,
		cronSpecAnnounceSweep:    cronSpecAnnounceSweep,
		cronSpecDeadlineReminder: cronSpecDeadlineReminder,
	}
}

func (s *SurveyScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpecAnnounceSweep, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.moderation.AnnouncePendingSurveys(ctx); err != nil {
			s.logger.WithError(err).Error("Announce sweep failed")
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecDeadlineReminder, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.moderation.SendDeadlineReminders(ctx, time.Now()); err != nil {
			s.logger.WithError(err).Error("Deadline reminder run failed")
		}
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Info("Survey scheduler started")
	return nil
}

func (s *SurveyScheduler) Stop() {
	ctx := s.cronEngine.Stop() // Waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Survey scheduler stopped")
}
