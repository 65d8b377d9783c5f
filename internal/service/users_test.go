package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notofine/backend/internal/models"
)

type memDevices struct {
	byToken map[string]*models.DeviceToken
}

func (m *memDevices) Upsert(_ context.Context, userID int64, token, platform string) (*models.DeviceToken, error) {
	dt := &models.DeviceToken{ID: int64(len(m.byToken) + 1), UserID: userID, Token: token, Platform: platform}
	m.byToken[token] = dt
	cp := *dt
	return &cp, nil
}

func (m *memDevices) Delete(_ context.Context, token string) error {
	delete(m.byToken, token)
	return nil
}

func (m *memDevices) ListByUser(_ context.Context, userID int64) ([]models.DeviceToken, error) {
	var out []models.DeviceToken
	for _, dt := range m.byToken {
		if dt.UserID == userID {
			out = append(out, *dt)
		}
	}
	return out, nil
}

func newUserFixture() *UserService {
	return NewUserService(
		&memUsers{byID: make(map[int64]*models.User)},
		&memDevices{byToken: make(map[string]*models.DeviceToken)},
	)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserFixture()

	user, err := svc.Register(context.Background(), "Dana Reeve", " Dana@Example.com ", "hunter2hunter2", "+15550100")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", user.Email, "email is normalized")
	assert.True(t, user.IsActive)

	logged, err := svc.Login(context.Background(), "dana@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newUserFixture()

	_, err := svc.Register(context.Background(), "Dana Reeve", "dana@example.com", "hunter2hunter2", "")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "dana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown email is indistinguishable from wrong password")
}

func TestRegisterValidation(t *testing.T) {
	svc := newUserFixture()

	_, err := svc.Register(context.Background(), "X", "not-an-email", "hunter2hunter2", "")
	assert.Error(t, err)

	_, err = svc.Register(context.Background(), "X", "x@example.com", "short", "")
	assert.Error(t, err)
}

func TestDeviceRegistration(t *testing.T) {
	svc := newUserFixture()

	_, err := svc.RegisterDevice(context.Background(), 1, "", "android")
	assert.Error(t, err)

	dt, err := svc.RegisterDevice(context.Background(), 1, "tok-1", "")
	require.NoError(t, err)
	assert.Equal(t, "unknown", dt.Platform)

	devices, err := svc.ListDevices(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}
