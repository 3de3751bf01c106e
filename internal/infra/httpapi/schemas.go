package httpapi

import "time"

// NewFormRequest is the payload of a form-created webhook.
type NewFormRequest struct {
	GoogleFormID string    `json:"google_form_id" validate:"required"`
	Title        string    `json:"title" validate:"required"`
	Description  string    `json:"description"`
	FormURL      string    `json:"form_url" validate:"required,url"`
	EndedAt      time.Time `json:"ended_at" validate:"required"`
}

// SurveyAnswer is one submitted answer; only the respondent's callsign matters.
type SurveyAnswer struct {
	Answer string `json:"answer" validate:"required"`
}

// SurveyResponsesRequest carries the answers collected so far for a survey.
type SurveyResponsesRequest struct {
	GoogleFormID string         `json:"google_form_id" validate:"required"`
	Answers      []SurveyAnswer `json:"answers" validate:"dive"`
}

func (r *SurveyResponsesRequest) callsigns() []string {
	out := make([]string, 0, len(r.Answers))
	for _, a := range r.Answers {
		out = append(out, a.Answer)
	}
	return out
}
