package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chat-hub/internal/mocks"
	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
)

const testSecret = "test-secret"

func newTestService(users *mocks.UserRepositoryMock, sessions *mocks.SessionRepositoryMock) *Service {
	return NewService(users, sessions, testSecret, time.Hour)
}

func TestRegisterRejectsShortUsername(t *testing.T) {
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.SessionRepositoryMock))

	_, err := svc.Register(context.Background(), "a", "secret1")
	require.ErrorIs(t, err, ErrValidation)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.SessionRepositoryMock))

	_, err := svc.Register(context.Background(), "alice", "short")
	require.ErrorIs(t, err, ErrValidation)
}

func TestRegisterConflict(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := newTestService(users, new(mocks.SessionRepositoryMock))

	users.On("CreateUser", mock.Anything, "alice", mock.Anything).
		Return(models.User{}, repositories.ErrUsernameTaken).Once()

	_, err := svc.Register(context.Background(), "alice", "secret1")
	require.ErrorIs(t, err, ErrUsernameTaken)
	users.AssertExpectations(t)
}

func TestRegisterIssuesVerifiableToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	sessions := new(mocks.SessionRepositoryMock)
	svc := newTestService(users, sessions)

	users.On("CreateUser", mock.Anything, "alice", mock.Anything).
		Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	sessions.On("CreateSession", mock.Anything, mock.Anything, 1).
		Return(models.Session{UserID: 1}, nil).Once()
	sessions.On("GetSession", mock.Anything, mock.Anything).
		Return(models.Session{UserID: 1}, nil).Once()

	result, err := svc.Register(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	require.Equal(t, 1, result.UserID)
	require.Equal(t, "alice", result.Username)
	require.NotEmpty(t, result.Token)

	identity, err := svc.Verify(context.Background(), result.Token)
	require.NoError(t, err)
	require.Equal(t, 1, identity.UserID)
	require.Equal(t, "alice", identity.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := newTestService(users, new(mocks.SessionRepositoryMock))

	hash, err := bcrypt.GenerateFromPassword([]byte("correct1"), bcrypt.MinCost)
	require.NoError(t, err)
	users.On("GetUserByUsername", mock.Anything, "alice").
		Return(models.User{ID: 1, Username: "alice", PasswordHash: string(hash)}, nil).Once()

	_, err = svc.Login(context.Background(), "alice", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := newTestService(users, new(mocks.SessionRepositoryMock))

	users.On("GetUserByUsername", mock.Anything, "ghost").
		Return(models.User{}, repositories.ErrUserNotFound).Once()

	_, err := svc.Login(context.Background(), "ghost", "whatever1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginMintsFreshSession(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	sessions := new(mocks.SessionRepositoryMock)
	svc := newTestService(users, sessions)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	users.On("GetUserByUsername", mock.Anything, "alice").
		Return(models.User{ID: 1, Username: "alice", PasswordHash: string(hash)}, nil).Once()
	sessions.On("CreateSession", mock.Anything, mock.Anything, 1).
		Return(models.Session{UserID: 1}, nil).Once()

	result, err := svc.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	sessions.AssertExpectations(t)
}

func TestVerifyMalformedToken(t *testing.T) {
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.SessionRepositoryMock))

	_, err := svc.Verify(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRevokedSession(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	sessions := new(mocks.SessionRepositoryMock)
	svc := newTestService(users, sessions)

	users.On("CreateUser", mock.Anything, "alice", mock.Anything).
		Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	sessions.On("CreateSession", mock.Anything, mock.Anything, 1).
		Return(models.Session{UserID: 1}, nil).Once()

	result, err := svc.Register(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	// The session row is gone, so the otherwise-valid token is rejected.
	sessions.On("GetSession", mock.Anything, mock.Anything).
		Return(models.Session{}, repositories.ErrSessionNotFound).Once()

	_, err = svc.Verify(context.Background(), result.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTokenSignedWithOtherSecret(t *testing.T) {
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.SessionRepositoryMock))

	forged, err := signToken(1, "alice", "session-id", "other-secret", time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), forged)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.SessionRepositoryMock))

	expired, err := signToken(1, "alice", "session-id", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), expired)
	require.ErrorIs(t, err, ErrInvalidToken)
}
