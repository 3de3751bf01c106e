package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"survey_compliance_bot/internal/app"
	"survey_compliance_bot/internal/domain/penalty"
	idb "survey_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

type stubModeration struct {
	announced  []app.NewSurveyInput
	reminders  []string
	finished   []string
	failWith   error
	lastReport *app.SurveyFinishedReport
}

func (m *stubModeration) HandleSurveyAnnounced(_ context.Context, in app.NewSurveyInput) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.announced = append(m.announced, in)
	return nil
}

func (m *stubModeration) HandleSurveyReminder(_ context.Context, formID string, _ []string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.reminders = append(m.reminders, formID)
	return nil
}

func (m *stubModeration) HandleSurveyFinished(_ context.Context, formID string, _ []string) (*app.SurveyFinishedReport, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.finished = append(m.finished, formID)
	if m.lastReport != nil {
		return m.lastReport, nil
	}
	return &app.SurveyFinishedReport{FormID: formID}, nil
}

func newTestServer(t *testing.T, moderation *stubModeration) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(moderation, testSecret, ":0", log.WithField("component", "httpapi"))
}

func doRequest(s *Server, method, path, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(secretHeader, secret)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

const validNewForm = `{
	"google_form_id": "form-1",
	"title": "Q3 training",
	"form_url": "https://forms.example/form-1",
	"ended_at": "2025-07-01T18:00:00Z"
}`

func TestWebhookRejectsMissingSecret(t *testing.T) {
	s := newTestServer(t, &stubModeration{})

	rec := doRequest(s, http.MethodPost, "/webhook/new-form", "", validNewForm)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodPost, "/webhook/new-form", "wrong", validNewForm)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthNeedsNoSecret(t *testing.T) {
	s := newTestServer(t, &stubModeration{})
	rec := doRequest(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewFormQueuesAnnouncement(t *testing.T) {
	moderation := &stubModeration{}
	s := newTestServer(t, moderation)

	rec := doRequest(s, http.MethodPost, "/webhook/new-form", testSecret, validNewForm)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, moderation.announced, 1)
	in := moderation.announced[0]
	assert.Equal(t, "form-1", in.FormID)
	assert.Equal(t, "Q3 training", in.Title)
	assert.Equal(t, "https://forms.example/form-1", in.FormURL)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp["status"])
}

func TestNewFormValidation(t *testing.T) {
	moderation := &stubModeration{}
	s := newTestServer(t, moderation)

	missingTitle := `{"google_form_id":"form-1","form_url":"https://forms.example/f","ended_at":"2025-07-01T18:00:00Z"}`
	rec := doRequest(s, http.MethodPost, "/webhook/new-form", testSecret, missingTitle)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	badURL := `{"google_form_id":"form-1","title":"t","form_url":"not a url","ended_at":"2025-07-01T18:00:00Z"}`
	rec = doRequest(s, http.MethodPost, "/webhook/new-form", testSecret, badURL)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, moderation.announced)
}

func TestCompletionStatusPassesAnswers(t *testing.T) {
	moderation := &stubModeration{}
	s := newTestServer(t, moderation)

	body := `{"google_form_id":"form-1","answers":[{"answer":"alpha"},{"answer":"bravo"}]}`
	rec := doRequest(s, http.MethodPost, "/webhook/send-survey-completion-status", testSecret, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"form-1"}, moderation.reminders)
}

func TestNoBoundChatMapsTo400(t *testing.T) {
	moderation := &stubModeration{failWith: idb.ErrNoBoundChat}
	s := newTestServer(t, moderation)

	body := `{"google_form_id":"form-1","answers":[]}`
	rec := doRequest(s, http.MethodPost, "/webhook/send-survey-finished", testSecret, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSurveyMapsTo404(t *testing.T) {
	moderation := &stubModeration{failWith: idb.ErrSurveyNotFound}
	s := newTestServer(t, moderation)

	body := `{"google_form_id":"nope","answers":[]}`
	rec := doRequest(s, http.MethodPost, "/webhook/send-survey-completion-status", testSecret, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSurveyFinishedReturnsReport(t *testing.T) {
	moderation := &stubModeration{
		lastReport: &app.SurveyFinishedReport{
			FormID:        "form-1",
			NonResponders: []string{"alpha", "bravo"},
			Banned:        []*penalty.Offender{{Callsign: "alpha", Count: 3}},
		},
	}
	s := newTestServer(t, moderation)

	body := `{"google_form_id":"form-1","answers":[{"answer":"charlie"}]}`
	rec := doRequest(s, http.MethodPost, "/webhook/send-survey-finished", testSecret, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status        string   `json:"status"`
		NonResponders []string `json:"non_responders"`
		Banned        []string `json:"banned"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, []string{"alpha", "bravo"}, resp.NonResponders)
	assert.Equal(t, []string{"alpha"}, resp.Banned)
}
