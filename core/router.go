package core

import (
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// credentialsForm binds username/password from form or JSON bodies.
type credentialsForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, sm *SessionManager, authService AuthService, hub *PresenceHub, metrics *Metrics) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.tmpl")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, CollectSystemStatus(hub, startedAt))
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	if cfg.StaticDir != "" {
		r.Static("/public", cfg.StaticDir)
	}

	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowed, r.Header.Get("Origin"), r.Host)
		},
	}

	// Global page middleware: origin -> CSRF -> identity
	pages := r.Group("/",
		OriginRefererMiddleware(cfg),
		CSRFMiddleware(sm, cfg.CSRFEnabled),
		IdentityMiddleware(sm, authService),
	)
	{
		pages.GET("/", func(c *gin.Context) {
			user, loggedIn := currentUser(c)
			c.HTML(http.StatusOK, "index.tmpl", gin.H{
				"title":            "Connected to Database",
				"message":          "Please log in",
				"showLogin":        !loggedIn,
				"showRegistration": !loggedIn,
				"username":         user.Username,
				"csrf":             c.GetString(ctxCSRFKey),
			})
		})

		pages.POST("/register", func(c *gin.Context) {
			var form credentialsForm
			if err := c.ShouldBind(&form); err != nil {
				metrics.authResult("register", "invalid")
				c.Redirect(http.StatusFound, "/")
				return
			}

			user, err := authService.Register(c.Request.Context(), form.Username, form.Password)
			if err != nil {
				switch {
				case errors.Is(err, ErrStoreUnavailable):
					metrics.authResult("register", "unavailable")
					log.Printf("register failed: %v", err)
					renderUnavailable(c)
				case errors.Is(err, ErrDuplicateUsername):
					metrics.authResult("register", "duplicate")
					c.Redirect(http.StatusFound, "/")
				default:
					metrics.authResult("register", "invalid")
					c.Redirect(http.StatusFound, "/")
				}
				return
			}
			log.Printf("user registered id=%s username=%s", user.ID, user.Username)

			if _, err := sm.Login(c.Writer, c.Request, user.ID); err != nil {
				metrics.authResult("register", "unavailable")
				log.Printf("session create failed after register: %v", err)
				renderUnavailable(c)
				return
			}
			metrics.authResult("register", "ok")
			c.Redirect(http.StatusFound, "/profile")
		})

		pages.POST("/login", func(c *gin.Context) {
			var form credentialsForm
			if err := c.ShouldBind(&form); err != nil {
				metrics.authResult("login", "invalid")
				c.Redirect(http.StatusFound, "/")
				return
			}

			user, err := authService.Authenticate(c.Request.Context(), form.Username, form.Password)
			if err != nil {
				if errors.Is(err, ErrStoreUnavailable) {
					metrics.authResult("login", "unavailable")
					log.Printf("login failed: %v", err)
					renderUnavailable(c)
					return
				}
				metrics.authResult("login", "invalid")
				c.Redirect(http.StatusFound, "/")
				return
			}

			if _, err := sm.Login(c.Writer, c.Request, user.ID); err != nil {
				metrics.authResult("login", "unavailable")
				log.Printf("session create failed: %v", err)
				renderUnavailable(c)
				return
			}
			metrics.authResult("login", "ok")
			c.Redirect(http.StatusFound, "/profile")
		})

		pages.GET("/profile", RequireLogin(), func(c *gin.Context) {
			user, _ := currentUser(c)
			c.HTML(http.StatusOK, "profile.tmpl", gin.H{
				"username": user.Username,
				"csrf":     c.GetString(ctxCSRFKey),
			})
		})

		pages.GET("/chat", RequireLogin(), func(c *gin.Context) {
			user, _ := currentUser(c)
			c.HTML(http.StatusOK, "chat.tmpl", gin.H{
				"username": user.Username,
				"csrf":     c.GetString(ctxCSRFKey),
			})
		})

		logout := func(c *gin.Context) {
			if err := sm.Logout(c.Writer, c.Request); err != nil {
				log.Printf("logout failed: %v", err)
				if errors.Is(err, ErrStoreUnavailable) {
					renderUnavailable(c)
					return
				}
				c.String(http.StatusInternalServerError, "logout failed")
				return
			}
			c.Redirect(http.StatusFound, "/")
		}
		pages.GET("/logout", logout)
		pages.POST("/logout", logout)

		pages.GET("/ws", func(c *gin.Context) {
			user, ok := currentUser(c)
			if !ok {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "login required")
				return
			}
			conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
			if err != nil {
				// Upgrade has already written the HTTP error
				log.Printf("websocket upgrade failed: %v", err)
				return
			}
			hub.ServeConn(conn, user)
		})
	}

	r.NoRoute(notFound)

	return r
}
