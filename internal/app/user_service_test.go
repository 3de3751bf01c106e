package app

import (
	"context"
	"io"
	"strings"
	"testing"

	"survey_compliance_bot/internal/domain/penalty"
	"survey_compliance_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const creatorID int64 = 777

func newUserFixture(t *testing.T) (*UserServiceImpl, *fakeUserRepo, *fakePenaltyRepo) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	users := &fakeUserRepo{}
	penalties := &fakePenaltyRepo{users: users}
	svc := NewUserService(users, penalties, log.WithField("component", "users"), creatorID)
	return svc, users, penalties
}

func TestRegisterNormalizesCallsign(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	u, err := svc.Register(context.Background(), RegisterInput{
		TelegramID: 1,
		Username:   "some_user",
		Callsign:   "  Alpha ",
	})
	require.NoError(t, err)

	assert.Equal(t, "alpha", u.Callsign)
	assert.Equal(t, user.RoleUser, u.Role)
	assert.True(t, u.Active)
	assert.Equal(t, "some_user", u.Username.String)
}

func TestRegisterCreatorGetsCreatorRole(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	u, err := svc.Register(context.Background(), RegisterInput{TelegramID: creatorID, Callsign: "owner"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleCreator, u.Role)
}

func TestRegisterRejectsInvalidCallsigns(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	for _, callsign := range []string{"", "alpha1", "позывной", "with space", strings.Repeat("a", 21)} {
		_, err := svc.Register(context.Background(), RegisterInput{TelegramID: 1, Callsign: callsign})
		assert.ErrorIs(t, err, ErrInvalidCallsign, "callsign %q", callsign)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.Register(context.Background(), RegisterInput{TelegramID: 1, Callsign: "alpha"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{TelegramID: 2, Callsign: "ALPHA"})
	assert.ErrorIs(t, err, ErrCallsignTaken)

	_, err = svc.Register(context.Background(), RegisterInput{TelegramID: 1, Callsign: "bravo"})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestToggleReserveFlips(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	_, err := svc.Register(context.Background(), RegisterInput{TelegramID: 1, Callsign: "alpha"})
	require.NoError(t, err)

	u, err := svc.ToggleReserve(context.Background(), "Alpha")
	require.NoError(t, err)
	assert.True(t, u.Reserved)

	u, err = svc.ToggleReserve(context.Background(), "alpha")
	require.NoError(t, err)
	assert.False(t, u.Reserved)
}

func TestAdminRoleManagement(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	_, err := svc.Register(context.Background(), RegisterInput{TelegramID: 1, Callsign: "alpha"})
	require.NoError(t, err)

	require.NoError(t, svc.AddAdmin(context.Background(), "alpha"))
	u, err := users.GetByCallsign(context.Background(), "alpha")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())

	require.NoError(t, svc.RemoveAdmin(context.Background(), "alpha"))
	u, err = users.GetByCallsign(context.Background(), "alpha")
	require.NoError(t, err)
	assert.False(t, u.IsAdmin())
}

func TestAdminRoleCannotTouchCreator(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	_, err := svc.Register(context.Background(), RegisterInput{TelegramID: creatorID, Callsign: "owner"})
	require.NoError(t, err)

	assert.Error(t, svc.AddAdmin(context.Background(), "owner"))
}

func TestHandleMemberReturnForgivesPenalties(t *testing.T) {
	svc, users, penalties := newUserFixture(t)
	u, err := svc.Register(context.Background(), RegisterInput{TelegramID: 1, Callsign: "alpha"})
	require.NoError(t, err)

	require.NoError(t, users.SetActive(context.Background(), 1, false))
	for i := 0; i < 3; i++ {
		require.NoError(t, penalties.Add(context.Background(), &penalty.Penalty{UserID: u.ID, SurveyID: int64(i)}))
	}

	require.NoError(t, svc.HandleMemberReturn(context.Background(), 1))

	count, err := penalties.CountByUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	restored, err := users.GetByTelegramID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, restored.Active)
}

func TestHandleMemberReturnUnknownUserIsIgnored(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	assert.NoError(t, svc.HandleMemberReturn(context.Background(), 12345))
}

func TestHandleMemberLeftDeactivates(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	_, err := svc.Register(context.Background(), RegisterInput{TelegramID: 1, Callsign: "alpha"})
	require.NoError(t, err)

	require.NoError(t, svc.HandleMemberLeft(context.Background(), 1))
	u, err := users.GetByTelegramID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, u.Active)

	assert.NoError(t, svc.HandleMemberLeft(context.Background(), 999), "unknown member is not an error")
}
