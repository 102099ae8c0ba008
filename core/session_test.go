package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		Port:            "0",
		DatabaseURL:     "memory://",
		DatabaseName:    "sampledb",
		UsersCollection: "users",
		SessionSecret:   "test-session-secret-0123456789abcdef",
		SessionStore:    "memory",
		SessionTTL:      time.Hour,
		CookieSameSite:  "Lax",
		CSRFEnabled:     true,
		StoreTimeout:    time.Second,
		BcryptCost:      bcrypt.MinCost,
	}
}

// withCookies builds a request carrying the cookies set on rec.
func withCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionManagerLoginResolveLogout(t *testing.T) {
	store := NewMemorySessionStore()
	sm := NewSessionManager(testConfig(), store)

	rec := httptest.NewRecorder()
	token, err := sm.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, cookies[0].Value, "user-1")

	id, err := sm.Resolve(withCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	// logout, then replay the old cookie
	logoutRec := httptest.NewRecorder()
	require.NoError(t, sm.Logout(logoutRec, withCookies(rec)))
	_, err = sm.Resolve(withCookies(rec))
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, 0, store.Len())

	// logging out again is fine
	require.NoError(t, sm.Logout(httptest.NewRecorder(), withCookies(rec)))
}

func TestSessionManagerLoginRotatesToken(t *testing.T) {
	store := NewMemorySessionStore()
	sm := NewSessionManager(testConfig(), store)

	first := httptest.NewRecorder()
	oldToken, err := sm.Login(first, httptest.NewRequest(http.MethodPost, "/login", nil), "user-1")
	require.NoError(t, err)

	second := httptest.NewRecorder()
	newToken, err := sm.Login(second, withCookies(first), "user-2")
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, newToken)

	_, err = store.Get(context.Background(), oldToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, 1, store.Len())

	id, err := sm.Resolve(withCookies(second))
	require.NoError(t, err)
	assert.Equal(t, "user-2", id)
}

func TestSessionManagerRejectsTamperedCookie(t *testing.T) {
	sm := NewSessionManager(testConfig(), NewMemorySessionStore())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionName, Value: "forged"})

	_, err := sm.Resolve(req)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	other := testConfig()
	other.SessionSecret = "a-different-secret-0123456789abcdef"
	rec := httptest.NewRecorder()
	_, err = NewSessionManager(other, NewMemorySessionStore()).Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), "user-1")
	require.NoError(t, err)
	_, err = sm.Resolve(withCookies(rec))
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestSessionManagerStoreUnavailable(t *testing.T) {
	s, mr := newMiniredisStore(t)
	sm := NewSessionManager(testConfig(), s)

	rec := httptest.NewRecorder()
	_, err := sm.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "user-1")
	require.NoError(t, err)

	mr.Close()
	_, err = sm.Resolve(withCookies(rec))
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	// a logout the store could not record must not clear the cookie
	logoutRec := httptest.NewRecorder()
	err = sm.Logout(logoutRec, withCookies(rec))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, logoutRec.Result().Cookies())
}

func TestSessionManagerCookieOptions(t *testing.T) {
	cfg := testConfig()
	cfg.CookieSecure = true
	cfg.CookieSameSite = "strict"
	sm := NewSessionManager(cfg, NewMemorySessionStore())

	rec := httptest.NewRecorder()
	_, err := sm.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "user-1")
	require.NoError(t, err)
	c := rec.Result().Cookies()[0]
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, int(time.Hour/time.Second), c.MaxAge)
	assert.Equal(t, "/", c.Path)
}
