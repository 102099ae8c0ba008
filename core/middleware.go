package core

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserKey = "user"
	ctxCSRFKey = "csrf_token"
)

// IdentityMiddleware resolves the session token to a user and attaches it.
// Unknown, expired and dangling sessions leave the request anonymous.
func IdentityMiddleware(sm *SessionManager, auth AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := sm.Resolve(c.Request)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				log.Printf("session lookup failed: %v", err)
				renderUnavailable(c)
				c.Abort()
				return
			}
			c.Next()
			return
		}

		user, err := auth.UserByID(c.Request.Context(), userID)
		switch {
		case err == nil:
			c.Set(ctxUserKey, user)
		case errors.Is(err, ErrSessionInvalid):
			sm.Forget(c.Request)
		default:
			log.Printf("user lookup failed: %v", err)
			renderUnavailable(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireLogin sends anonymous requests back to the home page.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUser(c); !ok {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok && u.ID != ""
}

// OriginRefererMiddleware validates Origin/Referer on unsafe methods. With no
// allow list configured only the request's own host is accepted.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		origin := requestOrigin(c.Request)
		if !originAllowed(allowed, origin, c.Request.Host) {
			c.String(http.StatusForbidden, "origin not allowed")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestOrigin(r *http.Request) string {
	origin := r.Header.Get("Origin")
	if origin == "" {
		if referer := r.Header.Get("Referer"); referer != "" {
			if u, err := url.Parse(referer); err == nil && u.Host != "" {
				origin = u.Scheme + "://" + u.Host
			}
		}
	}
	return origin
}

func originAllowed(allowed map[string]struct{}, origin, host string) bool {
	if origin == "" {
		// Same-origin navigation (no Origin header) is allowed.
		return true
	}
	origin = strings.ToLower(origin)
	if len(allowed) > 0 {
		_, ok := allowed[origin]
		return ok
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// CSRFMiddleware issues a per-session token and validates it on unsafe methods.
// The token is accepted from the X-CSRF-Token header or the _csrf form field.
func CSRFMiddleware(sm *SessionManager, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		token, err := sm.CSRFToken(c.Writer, c.Request)
		if err != nil {
			c.String(http.StatusInternalServerError, "failed to issue csrf token")
			c.Abort()
			return
		}

		if !isSafeMethod(c.Request.Method) {
			got := c.GetHeader("X-CSRF-Token")
			if got == "" {
				got = c.PostForm("_csrf")
			}
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				c.String(http.StatusForbidden, "invalid csrf token")
				c.Abort()
				return
			}
		}

		c.Set(ctxCSRFKey, token)
		c.Writer.Header().Set("X-CSRF-Token", token)
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
