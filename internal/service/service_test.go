package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/repository"
	"FallWatch.iot/internal/session"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*AuthService, *clock.Mock, *session.Directory) {
	users, err := repository.NewFileUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	mock := clock.NewMock()
	store := session.NewMemoryStore(mock)
	return NewAuthService(users, store, mock, time.Hour), mock, session.NewDirectory(store, mock)
}

func TestAuthService_SignupLoginLogout(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthService(t)

	user, err := svc.Signup(ctx, models.SignupRequest{Name: "Asha", Email: "asha@example.com", Password: "s3cret", Phone: "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.NotEqual(t, "s3cret", user.Password)
	assert.Equal(t, "user", user.Role)
	assert.Equal(t, "english", user.Language)

	_, err = svc.Signup(ctx, models.SignupRequest{Name: "Asha", Email: "asha@example.com", Password: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Len(t, sess.Token, 32)

	got, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)

	require.NoError(t, svc.Logout(ctx, sess.Token))
	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuthService_SignupRequiresFields(t *testing.T) {
	svc, _, _ := newAuthService(t)
	_, err := svc.Signup(context.Background(), models.SignupRequest{Email: "a@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestAuthService_LoginMakesRecipientUntilExpiry(t *testing.T) {
	ctx := context.Background()
	svc, mock, dir := newAuthService(t)

	_, err := svc.Signup(ctx, models.SignupRequest{Name: "Asha", Email: "asha@example.com", Password: "pw", Phone: "111"})
	require.NoError(t, err)
	_, err = svc.Signup(ctx, models.SignupRequest{Name: "Bala", Email: "bala@example.com", Password: "pw"})
	require.NoError(t, err)

	for _, email := range []string{"asha@example.com", "bala@example.com"} {
		_, err := svc.Login(ctx, models.LoginRequest{Email: email, Password: "pw"})
		require.NoError(t, err)
	}

	recipients, err := dir.Recipients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Recipient{{Name: "Asha", Phone: "111"}}, recipients)

	mock.Add(time.Hour)
	recipients, err = dir.Recipients(ctx)
	require.NoError(t, err)
	assert.Empty(t, recipients)
}

type stubTelemetry struct {
	resp models.HistoryResponse
	err  error
	got  models.HistoryQuery
}

func (s *stubTelemetry) Record(models.Reading)              {}
func (s *stubTelemetry) EnsureBucket(context.Context) error { return nil }
func (s *stubTelemetry) Close()                             {}

func (s *stubTelemetry) History(_ context.Context, q models.HistoryQuery) (models.HistoryResponse, error) {
	s.got = q
	return s.resp, s.err
}

func TestDataService_GetHistory(t *testing.T) {
	ctx := context.Background()

	_, err := NewDataService(nil).GetHistory(ctx, models.HistoryQuery{Field: "spo2"})
	assert.ErrorIs(t, err, ErrHistoryUnavailable)

	stub := &stubTelemetry{resp: models.HistoryResponse{Field: "spo2"}}
	svc := NewDataService(stub)

	_, err = svc.GetHistory(ctx, models.HistoryQuery{})
	assert.ErrorIs(t, err, repository.ErrInvalidQuery)

	resp, err := svc.GetHistory(ctx, models.HistoryQuery{Field: "spo2", Start: "-6h"})
	require.NoError(t, err)
	assert.Equal(t, "spo2", resp.Field)
	assert.Equal(t, "-6h", stub.got.Start)

	stub.err = errors.New("influx down")
	_, err = svc.GetHistory(ctx, models.HistoryQuery{Field: "spo2"})
	assert.ErrorContains(t, err, "influx down")
}
