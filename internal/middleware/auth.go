package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/OlsenSM91/Open-Server-Shares/internal/session"
)

const (
	// SessionTokenKey is the cookie-session key holding the opaque
	// server-side session token.
	SessionTokenKey = "sid"

	// ContextUsername and ContextSessionToken are the gin context keys
	// populated by RequireAuth for downstream handlers.
	ContextUsername     = "username"
	ContextSessionToken = "session_token"
)

// RequireAuth only lets requests through when the signed cookie carries
// a token for a live, authenticated session. Everything else is
// redirected to the login entry point, never served the protected
// content.
func RequireAuth(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie := sessions.Default(c)
		token, _ := cookie.Get(SessionTokenKey).(string)
		if token == "" {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}

		sess, ok := store.Get(token)
		if !ok || !sess.Authenticated {
			// Stale cookie: drop it so the client stops resending it.
			cookie.Delete(SessionTokenKey)
			_ = cookie.Save()
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}

		c.Set(ContextUsername, sess.Username)
		c.Set(ContextSessionToken, token)
		c.Next()
	}
}

// CurrentUsername returns the authenticated username set by
// RequireAuth, or "" on unauthenticated routes.
func CurrentUsername(c *gin.Context) string {
	name, _ := c.Get(ContextUsername)
	s, _ := name.(string)
	return s
}
