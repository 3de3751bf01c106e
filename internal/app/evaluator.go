package app

import (
	"errors"
	"strings"

	"survey_compliance_bot/internal/domain/survey"
	"survey_compliance_bot/internal/domain/user"
)

// ErrSurveyNotResolved is returned when an evaluation references a survey
// that does not exist.
var ErrSurveyNotResolved = errors.New("survey not resolved")

// NonResponder pairs an eligible user's callsign with the user record.
type NonResponder struct {
	Callsign string
	User     *user.User
}

// NonResponders computes which of the roster's users did not submit an
// answer for the survey. Comparison is case-insensitive; exempt (reserved),
// inactive, and creator-role accounts are excluded from consideration.
// Roster order is preserved so downstream messages are deterministic.
func NonResponders(s *survey.Survey, answers []string, roster []*user.User) ([]NonResponder, error) {
	if s == nil {
		return nil, ErrSurveyNotResolved
	}

	answered := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		answered[strings.ToLower(a)] = struct{}{}
	}

	var out []NonResponder
	for _, u := range roster {
		if !u.Active || u.Reserved || u.IsCreator() {
			continue
		}
		if _, ok := answered[strings.ToLower(u.Callsign)]; ok {
			continue
		}
		out = append(out, NonResponder{Callsign: u.Callsign, User: u})
	}
	return out, nil
}
