package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/pkg/log"
)

const (
	SessionKey       = "session"
	SessionHeaderKey = "X-Session-ID"
)

// SessionMiddleware attaches the caller's session to every request.
type SessionMiddleware struct {
	sessions   *session.Manager
	cookieName string
	secure     bool
}

// NewSessionMiddleware creates a new session middleware.
func NewSessionMiddleware(sessions *session.Manager, cookieName string, secure bool) *SessionMiddleware {
	if cookieName == "" {
		cookieName = "discovery_session"
	}
	return &SessionMiddleware{
		sessions:   sessions,
		cookieName: cookieName,
		secure:     secure,
	}
}

// RequireSession returns a Gin middleware that resolves the session from the
// cookie or the X-Session-ID header and creates one when neither is usable.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(m.cookieName)
		if err != nil || id == "" {
			id = c.GetHeader(SessionHeaderKey)
		}

		ctx := c.Request.Context()
		sess, _ := m.sessions.GetOrCreate(ctx, id)
		if sess.ID != id {
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     m.cookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Header(SessionHeaderKey, sess.ID)

		c.Set(SessionKey, sess)
		c.Set(log.FieldSessionID, sess.ID)
		c.Request = c.Request.WithContext(log.WithStr(ctx, log.FieldSessionID, sess.ID))

		c.Next()
	}
}

// GetSession extracts the session from Gin context.
func GetSession(c *gin.Context) *session.Session {
	if s, exists := c.Get(SessionKey); exists {
		return s.(*session.Session)
	}
	return nil
}

// CORS allows the listed origins to call the API. "*" allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		_, ok := allowed[origin]
		if !ok && !allowAll {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Session-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Session-ID")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
