package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	server   *server.Server
	srv      *httptest.Server
	users    *fakeuserrepo.FakeUserRepo
	sessions *loginsession.InMemoryLoginSessionRepo
}

func setupTestFixture(t *testing.T, style string, options ...server.ServerOption) *testFixture {
	t.Helper()
	t.Setenv("ENV", "DEV")
	t.Setenv("RESPONSE_STYLE", style)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")

	f := &testFixture{
		users:    fakeuserrepo.NewFakeUserRepo(),
		sessions: loginsession.NewInMemoryLoginSessionRepo(),
	}
	options = append([]server.ServerOption{
		server.WithLoginSessions(f.sessions),
		server.WithProviderVerifier(server.UnverifiedProviderVerifier{}),
	}, options...)

	s, err := server.New(config.New(), f.users, options...)
	require.NoError(t, err)
	f.server = s
	f.srv = httptest.NewServer(s)
	t.Cleanup(f.srv.Close)
	return f
}

type response struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Result  map[string]any `json:"result"`
}

func (f *testFixture) do(t *testing.T, method, path, bearer string, body any) (int, response) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (f *testFixture) login(t *testing.T, username string) string {
	t.Helper()
	status, resp := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
		"username": username,
		"password": server.DemoPassword,
	})
	require.Equal(t, http.StatusOK, status, resp.Message)
	tok, _ := resp.Result["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func providerToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":         "provider-" + email,
		"email":       email,
		"given_name":  "Pat",
		"family_name": "Provider",
		"exp":         exp.Unix(),
	}).SignedString([]byte("provider-key"))
	require.NoError(t, err)
	return raw
}

func TestDemoAccountsSeeded(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	list, err := f.users.List(0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 5)

	admin, err := f.users.GetByUsername("admin")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, admin.Role)
	assert.True(t, users.CheckPasswordHash(server.DemoPassword, admin.PasswordHash))
}

func TestNewRejectsUnknownResponseStyle(t *testing.T) {
	t.Setenv("RESPONSE_STYLE", "xml")
	_, err := server.New(config.New(), fakeuserrepo.NewFakeUserRepo())
	assert.Error(t, err)
}

func TestLoginNested(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	status, resp := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
		"username": "customer",
		"password": server.DemoPassword,
	})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	user, ok := resp.Result["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "customer", user["username"])
	assert.Equal(t, "customer", user["role"])
	assert.Equal(t, float64(5), user["id"])
	assert.NotEmpty(t, resp.Result["token"])

	account, err := f.users.GetByUsername("customer")
	require.NoError(t, err)
	assert.False(t, account.LastLogin.IsZero())
}

func TestLoginByEmail(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	status, _ := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
		"username": "driver@example.com",
		"password": server.DemoPassword,
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestLoginFlat(t *testing.T) {
	f := setupTestFixture(t, server.ResponseFlat)

	status, resp := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
		"username": "admin",
		"password": server.DemoPassword,
	})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, float64(1), resp.Result["userId"])
	assert.Equal(t, "ADMIN", resp.Result["role"])
	assert.NotEmpty(t, resp.Result["accessToken"])
	assert.Nil(t, resp.Result["user"])
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		style      string
		body       map[string]string
		wantStatus int
		wantMsg    string
	}{
		{"wrong password", server.ResponseNested, map[string]string{"username": "admin", "password": "nope"}, http.StatusUnauthorized, server.MsgInvalidCredentials},
		{"unknown user", server.ResponseNested, map[string]string{"username": "ghost", "password": "nope"}, http.StatusUnauthorized, server.MsgInvalidCredentials},
		{"missing password", server.ResponseNested, map[string]string{"username": "admin"}, http.StatusBadRequest, "password is required"},
		{"flat answers 200", server.ResponseFlat, map[string]string{"username": "admin", "password": "nope"}, http.StatusOK, server.MsgInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, tt.style)
			status, resp := f.do(t, http.MethodPost, server.RouteAuthLogin, "", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

// brokenUserRepo fails every username lookup
type brokenUserRepo struct {
	*fakeuserrepo.FakeUserRepo
}

func (brokenUserRepo) GetByUsername(string) (*users.Account, error) {
	return nil, errors.New("connection reset")
}

func TestLoginRepoFailureIsNotBadCredentials(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("RESPONSE_STYLE", server.ResponseNested)
	s, err := server.New(config.New(), brokenUserRepo{fakeuserrepo.NewFakeUserRepo()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, bytes.NewReader([]byte(`{"username":"admin","password":"x"}`)))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), server.MsgInvalidCredentials)
}

func TestLoginBlockedAccount(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)
	account, err := f.users.GetByUsername("driver")
	require.NoError(t, err)
	account.Blocked = true
	require.NoError(t, f.users.Upsert(account))

	status, resp := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
		"username": "driver",
		"password": server.DemoPassword,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, server.MsgAccountBlocked, resp.Message)
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	status, resp := f.do(t, http.MethodPost, server.RouteAuthRegister, "", map[string]string{
		"username":  "newbie",
		"email":     "newbie@example.com",
		"password":  "Str0ngPass",
		"firstName": "New",
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	user := resp.Result["user"].(map[string]any)
	assert.Equal(t, "customer", user["role"])
	assert.Equal(t, float64(6), user["id"])

	tok := resp.Result["token"].(string)
	status, me := f.do(t, http.MethodGet, server.RouteAPIMe, tok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "newbie", me.Result["username"])
}

func TestRegisterFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantMsg    string
	}{
		{"username taken", map[string]string{"username": "Admin", "email": "other@example.com", "password": "Str0ngPass"}, http.StatusConflict, server.MsgUsernameTaken},
		{"email taken", map[string]string{"username": "other", "email": "admin@example.com", "password": "Str0ngPass"}, http.StatusConflict, server.MsgEmailTaken},
		{"privileged role", map[string]string{"username": "sneaky", "email": "sneaky@example.com", "password": "Str0ngPass", "role": "admin"}, http.StatusForbidden, "Role cannot be self-assigned"},
		{"weak password", map[string]string{"username": "weak", "email": "weak@example.com", "password": "short"}, http.StatusBadRequest, "password must be at least 8 characters long"},
		{"bad email", map[string]string{"username": "bad", "email": "not-an-email", "password": "Str0ngPass"}, http.StatusBadRequest, `invalid email "not-an-email"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, server.ResponseNested)
			status, resp := f.do(t, http.MethodPost, server.RouteAuthRegister, "", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestMeRequiresLiveToken(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	status, resp := f.do(t, http.MethodGet, server.RouteAPIMe, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, resp.Success)

	status, _ = f.do(t, http.MethodGet, server.RouteAPIMe, "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	tok := f.login(t, "staff")
	status, resp = f.do(t, http.MethodGet, server.RouteAPIMe, tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "staff", resp.Result["username"])
	assert.Nil(t, resp.Result["PasswordHash"])

	status, _ = f.do(t, http.MethodPost, server.RouteAuthLogout, tok, nil)
	require.Equal(t, http.StatusOK, status)

	status, resp = f.do(t, http.MethodGet, server.RouteAPIMe, tok, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Session has been revoked", resp.Message)
}

func TestSessionsFollowTokenClock(t *testing.T) {
	frozen := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	prev := token.NowTimeFunc
	token.NowTimeFunc = func() time.Time { return frozen }
	t.Cleanup(func() { token.NowTimeFunc = prev })

	f := setupTestFixture(t, server.ResponseNested)
	tok := f.login(t, "staff")

	status, resp := f.do(t, http.MethodGet, server.RouteAPIMe, tok, nil)
	assert.Equal(t, http.StatusOK, status, resp.Message)
}

func TestRotatedSecretKeepsSessions(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)
	tok := f.login(t, "customer")

	t.Setenv("JWT_SECRET", "rotated-secret")
	t.Setenv("JWT_PREVIOUS_SECRETS", "test-secret")
	rotated, err := server.New(config.New(), f.users, server.WithLoginSessions(f.sessions))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	rotated.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Setenv("JWT_PREVIOUS_SECRETS", "")
	retired, err := server.New(config.New(), f.users, server.WithLoginSessions(f.sessions))
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	retired.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOverviewRequiresRole(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	status, resp := f.do(t, http.MethodGet, server.RouteAdminOverview, f.login(t, "customer"), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Forbidden", resp.Message)

	status, resp = f.do(t, http.MethodGet, server.RouteAdminOverview, f.login(t, "admin"), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(5), resp.Result["accounts"])
	byRole := resp.Result["byRole"].(map[string]any)
	assert.Equal(t, float64(1), byRole["driver"])
}

func TestProviderExchange(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)
	raw := providerToken(t, "pat@example.com", time.Now().Add(time.Hour))

	status, resp := f.do(t, http.MethodPost, server.RouteAuthExchange, "", map[string]string{"providerToken": raw})
	require.Equal(t, http.StatusOK, status, resp.Message)
	user := resp.Result["user"].(map[string]any)
	assert.Equal(t, "pat@example.com", user["email"])
	assert.Equal(t, "Pat", user["firstName"])
	assert.Equal(t, "customer", user["role"])
	firstID := user["id"]

	// Second exchange reuses the account
	_, resp = f.do(t, http.MethodPost, server.RouteAuthExchange, "", map[string]string{"providerToken": raw})
	assert.Equal(t, firstID, resp.Result["user"].(map[string]any)["id"])

	// Existing accounts are matched by email
	_, resp = f.do(t, http.MethodPost, server.RouteAuthExchange, "", map[string]string{
		"providerToken": providerToken(t, "owner@example.com", time.Now().Add(time.Hour)),
	})
	assert.Equal(t, "restaurant_owner", resp.Result["user"].(map[string]any)["role"])
}

func TestProviderExchangeFailures(t *testing.T) {
	t.Run("expired token", func(t *testing.T) {
		f := setupTestFixture(t, server.ResponseNested)
		status, resp := f.do(t, http.MethodPost, server.RouteAuthExchange, "", map[string]string{
			"providerToken": providerToken(t, "pat@example.com", time.Now().Add(-time.Minute)),
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.False(t, resp.Success)
		assert.Empty(t, resp.Message)
	})

	t.Run("not configured", func(t *testing.T) {
		f := setupTestFixture(t, server.ResponseNested, server.WithProviderVerifier(nil))
		status, _ := f.do(t, http.MethodPost, server.RouteAuthExchange, "", map[string]string{"providerToken": "x.y.z"})
		assert.Equal(t, http.StatusNotImplemented, status)
	})
}

func TestNewProviderVerifier(t *testing.T) {
	ctx := context.Background()

	t.Setenv("OIDC_ISSUER", "")
	t.Setenv("ENV", "DEV")
	verifier, err := server.NewProviderVerifier(ctx, config.New())
	require.NoError(t, err)
	assert.IsType(t, server.UnverifiedProviderVerifier{}, verifier)

	t.Setenv("ENV", "PROD")
	verifier, err = server.NewProviderVerifier(ctx, config.New())
	require.NoError(t, err)
	assert.Nil(t, verifier)

	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	t.Setenv("OIDC_ISSUER", down.URL)
	t.Setenv("OIDC_CLIENT_ID", "food-delivery")
	verifier, err = server.NewProviderVerifier(ctx, config.New())
	assert.Error(t, err)
	assert.Nil(t, verifier)
}

func TestValidatePassword(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	_, resp := f.do(t, http.MethodPost, server.RouteAPIValidatePassword, "", map[string]string{"password": "Str0ngPass"})
	assert.Equal(t, true, resp.Result["valid"])

	_, resp = f.do(t, http.MethodPost, server.RouteAPIValidatePassword, "", map[string]string{"password": "alllowercase1"})
	assert.Equal(t, false, resp.Result["valid"])
	assert.Equal(t, "password must contain at least one uppercase letter", resp.Result["message"])
}

func TestCorsPreflight(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+server.RouteAuthLogin, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRequestIDEchoed(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+server.RouteAPIValidatePassword, bytes.NewReader([]byte(`{"password":"x"}`)))
	require.NoError(t, err)
	req.Header.Set(server.HeaderRequestID, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(server.HeaderRequestID))

	resp2, err := http.Post(f.srv.URL+server.RouteAPIValidatePassword, "application/json", bytes.NewReader([]byte(`{"password":"x"}`)))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.NotEmpty(t, resp2.Header.Get(server.HeaderRequestID))
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)
	handler := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, f.server.RecoverMiddleware)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/anything", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t, server.ResponseNested)
	resp, err := http.Get(f.srv.URL + server.RouteHealth)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
