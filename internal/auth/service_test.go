package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/models"
	"taskflow/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:    []byte("test-secret"),
		ExpiresIn: time.Hour,
		Issuer:    "taskflow-app",
		Audience:  "taskflow-users",
	}
}

func newTestService(t *testing.T) (*Service, *testutil.DB) {
	t.Helper()
	db := testutil.NewDB()
	db.AddUser(models.User{ID: 1, Name: "Ada", Email: "ada@example.com", Role: models.RoleMember})
	deleted := time.Now().Add(-time.Hour)
	db.AddUser(models.User{ID: 2, Name: "Gone", Email: "gone@example.com", DeletedAt: &deleted})
	return NewService(db, testConfig()), db
}

func TestIssueAndVerifyToken(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.IssueToken(&models.User{ID: 1, Email: "ada@example.com", Role: models.RoleManager})
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, "manager", claims.Role)
	assert.Equal(t, "taskflow-app", claims.Issuer)
}

func TestVerifyTokenDistinguishesFailures(t *testing.T) {
	svc, _ := newTestService(t)
	user := &models.User{ID: 1, Email: "ada@example.com"}

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.IssueToken(user)
	require.NoError(t, err)
	svc.now = time.Now

	other := NewService(nil, config.JWTConfig{Secret: []byte("other"), ExpiresIn: time.Hour, Issuer: "taskflow-app", Audience: "taskflow-users"})
	forged, err := other.IssueToken(user)
	require.NoError(t, err)

	wrongAudience := NewService(nil, config.JWTConfig{Secret: []byte("test-secret"), ExpiresIn: time.Hour, Issuer: "taskflow-app", Audience: "someone-else"})
	misaddressed, err := wrongAudience.IssueToken(user)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrTokenRequired},
		{name: "expired", token: expired, want: ErrTokenExpired},
		{name: "garbage", token: "not-a-jwt", want: ErrTokenInvalid},
		{name: "wrong secret", token: forged, want: ErrTokenInvalid},
		{name: "wrong audience", token: misaddressed, want: ErrTokenInvalid},
		{name: "alg none", token: unsigned, want: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.VerifyToken(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want.Error(), Reason(err))
		})
	}
}

func TestAuthenticateRejectsMissingAndDeactivatedUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ghost, err := svc.IssueToken(&models.User{ID: 99})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, ErrUserNotFound)

	gone, err := svc.IssueToken(&models.User{ID: 2})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, gone)
	assert.ErrorIs(t, err, ErrUserDeactivated)

	ok, err := svc.IssueToken(&models.User{ID: 1})
	require.NoError(t, err)
	user, err := svc.Authenticate(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
}

func TestAuthenticateWrapsStoreFailures(t *testing.T) {
	svc, db := newTestService(t)
	token, err := svc.IssueToken(&models.User{ID: 1})
	require.NoError(t, err)

	db.FailOn("GetUserByID", errors.New("connection reset"))
	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, "AUTH_FAILED", Code(err))
}

func TestAuthenticateHandshake(t *testing.T) {
	svc, _ := newTestService(t)
	token, err := svc.IssueToken(&models.User{ID: 1})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/ws", nil)
	_, err = svc.AuthenticateHandshake(req)
	assert.ErrorIs(t, err, ErrTokenRequired)
	assert.Equal(t, "authentication token required", Reason(err))

	req = httptest.NewRequest("GET", "/ws?token="+token, nil)
	user, err := svc.AuthenticateHandshake(req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	req = httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	user, err = svc.AuthenticateHandshake(req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{name: "query token", target: "/ws?token=abc", want: "abc"},
		{name: "query auth", target: "/ws?auth=def", want: "def"},
		{name: "bearer header", target: "/ws", header: "Bearer ghi", want: "ghi"},
		{name: "lowercase scheme", target: "/ws", header: "bearer jkl", want: "jkl"},
		{name: "basic header ignored", target: "/ws", header: "Basic xyz", want: ""},
		{name: "nothing", target: "/ws", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, TokenFromRequest(req))
		})
	}
}

func TestRegisterLoginAndRefresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &models.RegisterRequest{Name: "Bo", Email: "bad-email", Password: "longenough"})
	assert.Error(t, err)
	_, err = svc.Register(ctx, &models.RegisterRequest{Name: "Bo", Email: "bo@example.com", Password: "short"})
	assert.Error(t, err)

	registered, err := svc.Register(ctx, &models.RegisterRequest{Name: " Bo ", Email: "bo@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "Bo", registered.User.Name)
	assert.NotEmpty(t, registered.Token)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "bo@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	loggedIn, err := svc.Login(ctx, &models.LoginRequest{Email: "bo@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	svc.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	stale, err := svc.IssueToken(&loggedIn.User)
	require.NoError(t, err)
	svc.now = time.Now

	_, err = svc.VerifyToken(stale)
	require.ErrorIs(t, err, ErrTokenExpired)

	refreshed, err := svc.Refresh(ctx, stale)
	require.NoError(t, err)
	_, err = svc.VerifyToken(refreshed.Token)
	assert.NoError(t, err)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	svc, _ := newTestService(t)
	token, err := svc.IssueToken(&models.User{ID: 2})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), token)
	assert.ErrorIs(t, err, ErrUserDeactivated)
}
