package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"survey_compliance_bot/internal/app"
	idb "survey_compliance_bot/internal/infra/database"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// ModerationAPI is the slice of the moderation service the webhook handlers
// call into.
type ModerationAPI interface {
	HandleSurveyAnnounced(ctx context.Context, in app.NewSurveyInput) error
	HandleSurveyReminder(ctx context.Context, formID string, answers []string) error
	HandleSurveyFinished(ctx context.Context, formID string, answers []string) (*app.SurveyFinishedReport, error)
}

// Server hosts the webhook endpoints the survey platform calls.
type Server struct {
	echo       *echo.Echo
	moderation ModerationAPI
	logger     *logrus.Entry
	addr       string
}

func NewServer(moderation ModerationAPI, secret, addr string, logger *logrus.Entry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewAppValidator()

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	s := &Server{echo: e, moderation: moderation, logger: logger, addr: addr}

	e.GET("/health", s.health)

	hooks := e.Group("/webhook", WebhookSecret(secret))
	hooks.POST("/new-form", s.newForm)
	hooks.POST("/send-survey-completion-status", s.completionStatus)
	hooks.POST("/send-survey-finished", s.surveyFinished)

	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.addr).Info("Webhook server starting")
	err := s.echo.Start(s.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) newForm(c echo.Context) error {
	var req NewFormRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := s.moderation.HandleSurveyAnnounced(c.Request().Context(), app.NewSurveyInput{
		FormID:      req.GoogleFormID,
		Title:       req.Title,
		Description: req.Description,
		FormURL:     req.FormURL,
		EndsAt:      req.EndedAt,
	})
	if err != nil {
		return moderationError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "queued", "google_form_id": req.GoogleFormID})
}

func (s *Server) completionStatus(c echo.Context) error {
	var req SurveyResponsesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := s.moderation.HandleSurveyReminder(c.Request().Context(), req.GoogleFormID, req.callsigns())
	if err != nil {
		return moderationError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "queued", "google_form_id": req.GoogleFormID})
}

func (s *Server) surveyFinished(c echo.Context) error {
	var req SurveyResponsesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	report, err := s.moderation.HandleSurveyFinished(c.Request().Context(), req.GoogleFormID, req.callsigns())
	if err != nil {
		return moderationError(err)
	}

	banned := make([]string, 0, len(report.Banned))
	for _, off := range report.Banned {
		banned = append(banned, off.Callsign)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "queued",
		"google_form_id": report.FormID,
		"non_responders": report.NonResponders,
		"banned":         banned,
	})
}

// moderationError maps service failures onto HTTP statuses: a missing bound
// chat is the caller's misconfiguration, an unknown survey is a 404.
func moderationError(err error) error {
	switch {
	case errors.Is(err, idb.ErrNoBoundChat):
		return echo.NewHTTPError(http.StatusBadRequest, "no chat is bound")
	case errors.Is(err, idb.ErrSurveyNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "survey not found")
	default:
		return err
	}
}

func requestLogger(logger *logrus.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.WithFields(logrus.Fields{
				"method":   c.Request().Method,
				"path":     c.Request().URL.Path,
				"status":   c.Response().Status,
				"duration": time.Since(start),
			}).Info("HTTP request")
			return err
		}
	}
}
