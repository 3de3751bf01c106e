package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"survey_compliance_bot/internal/domain/user"
	idb "survey_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCallsign   = errors.New("callsign must be latin letters only, at most 20 characters")
	ErrCallsignTaken     = errors.New("callsign is already taken")
	ErrAlreadyRegistered = errors.New("user is already registered")
)

var callsignPattern = regexp.MustCompile(`^[a-zA-Z]+$`)

// RegisterInput carries the Telegram identity of a joining member.
type RegisterInput struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	Callsign   string
}

// UserService manages the team roster.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*user.User, error)
	Get(ctx context.Context, telegramID int64) (*user.User, error)
	ToggleReserve(ctx context.Context, callsign string) (*user.User, error)
	AddAdmin(ctx context.Context, callsign string) error
	RemoveAdmin(ctx context.Context, callsign string) error
	HandleMemberReturn(ctx context.Context, telegramID int64) error
	HandleMemberLeft(ctx context.Context, telegramID int64) error
}

type UserServiceImpl struct {
	users             user.Repository
	penalties         penaltyForgiver
	logger            *logrus.Entry
	creatorTelegramID int64
}

// penaltyForgiver is the slice of the penalty ledger the roster needs: clearing
// a returning member's record.
type penaltyForgiver interface {
	DeleteByUser(ctx context.Context, userID int64) error
}

func NewUserService(ur user.Repository, pf penaltyForgiver, logger *logrus.Entry, creatorTelegramID int64) *UserServiceImpl {
	return &UserServiceImpl{
		users:             ur,
		penalties:         pf,
		logger:            logger,
		creatorTelegramID: creatorTelegramID,
	}
}

// Register creates a roster entry. Callsigns are latin-only, at most 20
// characters and stored lowercase; duplicates are rejected.
func (s *UserServiceImpl) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	callsign := strings.ToLower(strings.TrimSpace(in.Callsign))
	if len(callsign) == 0 || len(callsign) > 20 || !callsignPattern.MatchString(callsign) {
		return nil, ErrInvalidCallsign
	}

	if _, err := s.users.GetByTelegramID(ctx, in.TelegramID); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, idb.ErrUserNotFound) {
		return nil, fmt.Errorf("check existing registration: %w", err)
	}

	if _, err := s.users.GetByCallsign(ctx, callsign); err == nil {
		return nil, ErrCallsignTaken
	} else if !errors.Is(err, idb.ErrUserNotFound) {
		return nil, fmt.Errorf("check callsign availability: %w", err)
	}

	role := user.RoleUser
	if in.TelegramID == s.creatorTelegramID {
		role = user.RoleCreator
	}

	u := &user.User{
		TelegramID: in.TelegramID,
		Callsign:   callsign,
		Role:       role,
		Active:     true,
	}
	if in.Username != "" {
		u.Username = sql.NullString{String: in.Username, Valid: true}
	}
	if in.FirstName != "" {
		u.FirstName = sql.NullString{String: in.FirstName, Valid: true}
	}
	if in.LastName != "" {
		u.LastName = sql.NullString{String: in.LastName, Valid: true}
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, idb.ErrDuplicateCallsign) {
			return nil, ErrCallsignTaken
		}
		if errors.Is(err, idb.ErrDuplicateTelegramID) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"telegram_id": in.TelegramID,
		"callsign":    callsign,
		"role":        role,
	}).Info("User registered")
	return u, nil
}

func (s *UserServiceImpl) Get(ctx context.Context, telegramID int64) (*user.User, error) {
	return s.users.GetByTelegramID(ctx, telegramID)
}

// ToggleReserve flips the reserved flag: reserved members stay on the roster
// but are exempt from survey checks.
func (s *UserServiceImpl) ToggleReserve(ctx context.Context, callsign string) (*user.User, error) {
	u, err := s.users.GetByCallsign(ctx, strings.ToLower(callsign))
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", callsign, err)
	}
	u.Reserved = !u.Reserved
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user %q: %w", callsign, err)
	}
	s.logger.WithFields(logrus.Fields{
		"callsign": u.Callsign,
		"reserved": u.Reserved,
	}).Info("User reserve flag toggled")
	return u, nil
}

func (s *UserServiceImpl) AddAdmin(ctx context.Context, callsign string) error {
	return s.setRole(ctx, callsign, user.RoleAdmin)
}

func (s *UserServiceImpl) RemoveAdmin(ctx context.Context, callsign string) error {
	return s.setRole(ctx, callsign, user.RoleUser)
}

func (s *UserServiceImpl) setRole(ctx context.Context, callsign string, role user.Role) error {
	u, err := s.users.GetByCallsign(ctx, strings.ToLower(callsign))
	if err != nil {
		return fmt.Errorf("get user %q: %w", callsign, err)
	}
	if u.IsCreator() {
		return fmt.Errorf("cannot change role of the creator account")
	}
	u.Role = role
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user %q: %w", callsign, err)
	}
	s.logger.WithFields(logrus.Fields{"callsign": u.Callsign, "role": role}).Info("User role changed")
	return nil
}

// HandleMemberReturn reactivates a returning member and forgives their
// accumulated penalties. Unknown members are ignored; they register themselves.
func (s *UserServiceImpl) HandleMemberReturn(ctx context.Context, telegramID int64) error {
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, idb.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("get user %d: %w", telegramID, err)
	}

	if err := s.penalties.DeleteByUser(ctx, u.ID); err != nil {
		return fmt.Errorf("forgive penalties of %q: %w", u.Callsign, err)
	}
	if err := s.users.SetActive(ctx, telegramID, true); err != nil {
		return fmt.Errorf("reactivate %q: %w", u.Callsign, err)
	}
	s.logger.WithField("callsign", u.Callsign).Info("Returning member reactivated, penalties forgiven")
	return nil
}

// HandleMemberLeft deactivates a member who left the chat. Unknown members are
// ignored.
func (s *UserServiceImpl) HandleMemberLeft(ctx context.Context, telegramID int64) error {
	err := s.users.SetActive(ctx, telegramID, false)
	if errors.Is(err, idb.ErrUserNotFound) {
		return nil
	}
	return err
}
