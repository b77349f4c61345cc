package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-hub/internal/auth"
)

type credentialServiceMock struct {
	mock.Mock
}

func (m *credentialServiceMock) Register(ctx context.Context, username, password string) (auth.Result, error) {
	args := m.Called(ctx, username, password)
	var result auth.Result
	if val := args.Get(0); val != nil {
		result = val.(auth.Result)
	}
	return result, args.Error(1)
}

func (m *credentialServiceMock) Login(ctx context.Context, username, password string) (auth.Result, error) {
	args := m.Called(ctx, username, password)
	var result auth.Result
	if val := args.Get(0); val != nil {
		result = val.(auth.Result)
	}
	return result, args.Error(1)
}

func (m *credentialServiceMock) Verify(ctx context.Context, token string) (auth.Identity, error) {
	args := m.Called(ctx, token)
	var identity auth.Identity
	if val := args.Get(0); val != nil {
		identity = val.(auth.Identity)
	}
	return identity, args.Error(1)
}

func setupAuthRouter(service CredentialService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(service, zap.NewNop())
	r := gin.New()
	r.POST("/auth/register", handler.Register)
	r.POST("/auth/login", handler.Login)
	r.GET("/auth/verify", handler.Verify)
	return r
}

func TestRegisterSuccess(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	service.On("Register", mock.Anything, "alice", "secret1").
		Return(auth.Result{UserID: 1, Username: "alice", Token: "tok"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(`{"username":"alice","password":"secret1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "tok", resp["token"])
	require.Equal(t, "alice", resp["username"])
	require.Equal(t, float64(1), resp["userId"])
	service.AssertExpectations(t)
}

func TestRegisterValidationError(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	service.On("Register", mock.Anything, "a", "secret1").
		Return(auth.Result{}, auth.ErrValidation).Once()

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(`{"username":"a","password":"secret1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterConflict(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	service.On("Register", mock.Anything, "alice", "secret1").
		Return(auth.Result{}, auth.ErrUsernameTaken).Once()

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(`{"username":"alice","password":"secret1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterMissingFields(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(`{"username":"alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginInvalidCredentials(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	service.On("Login", mock.Anything, "alice", "wrong11").
		Return(auth.Result{}, auth.ErrInvalidCredentials).Once()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"alice","password":"wrong11"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginServiceError(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	service.On("Login", mock.Anything, "alice", "secret1").
		Return(auth.Result{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"alice","password":"secret1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVerifySuccess(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	service.On("Verify", mock.Anything, "tok").
		Return(auth.Identity{UserID: 1, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "alice", resp["username"])
}

func TestVerifyMissingToken(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	service.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestVerifyInvalidToken(t *testing.T) {
	service := new(credentialServiceMock)
	router := setupAuthRouter(service)

	service.On("Verify", mock.Anything, "bad").
		Return(auth.Identity{}, auth.ErrInvalidToken).Once()

	req := httptest.NewRequest(http.MethodGet, "/auth/verify?token=bad", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type counterStub struct {
	connections int
	online      int
}

func (c counterStub) ConnectionCount() int { return c.connections }
func (c counterStub) OnlineCount() int     { return c.online }

func TestHealthReportsConnections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", Health(counterStub{connections: 3, online: 2}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ok", resp["status"])
	require.Equal(t, float64(3), resp["connections"])
	require.Equal(t, float64(2), resp["online"])
}
