package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
)

const sessionName = "authchat_session"

const (
	sessionTokenKey = "sid"
	csrfTokenKey    = "csrf_token"
)

// SessionManager ties the signed session cookie to a server-side SessionStore.
// The cookie only carries an opaque token; identities live in the store, so
// deleting the store entry revokes the cookie even if it is replayed.
type SessionManager struct {
	cookies  *sessions.CookieStore
	store    SessionStore
	ttl      time.Duration
	secure   bool
	sameSite http.SameSite
	timeout  time.Duration
}

func NewSessionManager(cfg Config, store SessionStore) *SessionManager {
	cookies := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookies.MaxAge(int(cfg.SessionTTL / time.Second))
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreLimit
	}
	return &SessionManager{
		cookies:  cookies,
		store:    store,
		ttl:      cfg.SessionTTL,
		secure:   cfg.CookieSecure,
		sameSite: sameSiteFromString(cfg.CookieSameSite),
		timeout:  timeout,
	}
}

// Session returns the request's cookie session. A cookie that fails signature
// or decoding checks yields a fresh anonymous session rather than an error.
func (m *SessionManager) Session(r *http.Request) *sessions.Session {
	// On decode failure gorilla still hands back (and caches per request) an empty new session.
	sess, _ := m.cookies.Get(r, sessionName)
	if sess == nil {
		sess = sessions.NewSession(m.cookies, sessionName)
		sess.IsNew = true
	}
	m.applyOptions(sess)
	return sess
}

// Login binds a fresh token to userID. Any token the request already carried is
// destroyed first so a pre-authentication token never becomes authenticated.
func (m *SessionManager) Login(w http.ResponseWriter, r *http.Request, userID string) (string, error) {
	sess := m.Session(r)
	if old, _ := sess.Values[sessionTokenKey].(string); old != "" {
		if err := m.deleteToken(r.Context(), old); err != nil {
			return "", err
		}
	}

	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	csrf, err := generateCSRFToken()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(r.Context(), m.timeout)
	defer cancel()
	if err := m.store.Set(ctx, token, userID, m.ttl); err != nil {
		return "", asStoreErr(err)
	}

	sess.Values = map[interface{}]interface{}{
		sessionTokenKey: token,
		csrfTokenKey:    csrf,
	}
	m.applyOptions(sess)
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the user identity bound to the request's session token.
func (m *SessionManager) Resolve(r *http.Request) (string, error) {
	token := m.Token(r)
	if token == "" {
		return "", ErrSessionInvalid
	}
	ctx, cancel := context.WithTimeout(r.Context(), m.timeout)
	defer cancel()
	id, err := m.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return "", ErrSessionInvalid
		}
		return "", asStoreErr(err)
	}
	return id, nil
}

// Token returns the opaque session token carried by the request, if any.
func (m *SessionManager) Token(r *http.Request) string {
	token, _ := m.Session(r).Values[sessionTokenKey].(string)
	return token
}

// Logout destroys the server-side session and expires the cookie. Unknown or
// already-destroyed sessions are fine. If the store cannot delete the token the
// cookie is left untouched and ErrStoreUnavailable is returned, so the caller
// never reports a logout that did not happen.
func (m *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := m.Session(r)
	if token, _ := sess.Values[sessionTokenKey].(string); token != "" {
		if err := m.deleteToken(r.Context(), token); err != nil {
			return err
		}
	}
	sess.Values = map[interface{}]interface{}{}
	m.applyOptions(sess)
	sess.Options.MaxAge = -1 // must come after applyOptions
	return sess.Save(r, w)
}

// Forget drops a token that resolved to a missing user.
func (m *SessionManager) Forget(r *http.Request) {
	if token := m.Token(r); token != "" {
		_ = m.deleteToken(r.Context(), token)
	}
}

// CSRFToken returns the session's CSRF token, issuing and saving one if needed.
func (m *SessionManager) CSRFToken(w http.ResponseWriter, r *http.Request) (string, error) {
	sess := m.Session(r)
	if token, _ := sess.Values[csrfTokenKey].(string); token != "" {
		return token, nil
	}
	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}
	sess.Values[csrfTokenKey] = token
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return token, nil
}

func (m *SessionManager) deleteToken(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.store.Delete(ctx, token); err != nil {
		return asStoreErr(err)
	}
	return nil
}

func (m *SessionManager) applyOptions(sess *sessions.Session) {
	if sess.Options == nil {
		sess.Options = &sessions.Options{}
	}
	sess.Options.Path = "/"
	sess.Options.MaxAge = int(m.ttl / time.Second)
	sess.Options.HttpOnly = true
	sess.Options.Secure = m.secure
	sess.Options.SameSite = m.sameSite
}

func asStoreErr(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return storeErr(err)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
