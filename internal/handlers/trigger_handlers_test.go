package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-reminders/internal/auth"
	"ms-reminders/internal/config"
	"ms-reminders/internal/dispatch"
)

// MockCycleRunner is a mock of the CycleRunner interface
type MockCycleRunner struct {
	mock.Mock
}

func (m *MockCycleRunner) RunCycle(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func signedTestToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func triggerRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/reminders/v1/run", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRunCycleReturnsAttemptedCount(t *testing.T) {
	runner := new(MockCycleRunner)
	runner.On("RunCycle", mock.Anything).Return(3, nil)

	handler := NewTriggerHandler(runner, config.Config{})
	protected := auth.AuthMiddleware(http.HandlerFunc(handler.RunCycle))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, triggerRequest(t, signedTestToken(t, "user-1")))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Attempted int `json:"attempted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Attempted)
	runner.AssertExpectations(t)
}

func TestRunCycleRequiresAuthentication(t *testing.T) {
	runner := new(MockCycleRunner)
	handler := NewTriggerHandler(runner, config.Config{})
	protected := auth.AuthMiddleware(http.HandlerFunc(handler.RunCycle))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, triggerRequest(t, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	runner.AssertNotCalled(t, "RunCycle", mock.Anything)
}

func TestRunCycleRejectsMalformedToken(t *testing.T) {
	runner := new(MockCycleRunner)
	handler := NewTriggerHandler(runner, config.Config{})
	protected := auth.AuthMiddleware(http.HandlerFunc(handler.RunCycle))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, triggerRequest(t, "not-a-jwt"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	runner.AssertNotCalled(t, "RunCycle", mock.Anything)
}

func TestRunCycleConflictWhileRunning(t *testing.T) {
	runner := new(MockCycleRunner)
	runner.On("RunCycle", mock.Anything).Return(0, dispatch.ErrCycleRunning)

	handler := NewTriggerHandler(runner, config.Config{})
	protected := auth.AuthMiddleware(http.HandlerFunc(handler.RunCycle))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, triggerRequest(t, signedTestToken(t, "user-1")))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRunCycleSurfacesConfigurationFailures(t *testing.T) {
	runner := new(MockCycleRunner)
	runner.On("RunCycle", mock.Anything).Return(0, errors.New("no delivery channel configured"))

	handler := NewTriggerHandler(runner, config.Config{})
	protected := auth.AuthMiddleware(http.HandlerFunc(handler.RunCycle))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, triggerRequest(t, signedTestToken(t, "user-1")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
