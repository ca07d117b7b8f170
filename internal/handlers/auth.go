package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/OlsenSM91/Open-Server-Shares/internal/config"
	"github.com/OlsenSM91/Open-Server-Shares/internal/core"
	"github.com/OlsenSM91/Open-Server-Shares/internal/metrics"
	"github.com/OlsenSM91/Open-Server-Shares/internal/middleware"
	"github.com/OlsenSM91/Open-Server-Shares/internal/models"
	"github.com/OlsenSM91/Open-Server-Shares/internal/services"
	"github.com/OlsenSM91/Open-Server-Shares/internal/session"
)

// AuthHandler owns the login/logout workflow: credential verification
// through the directory port and the session lifecycle around it.
type AuthHandler struct {
	authenticator core.Authenticator
	sessions      *session.Store
	cfg           *config.Config
	audit         *services.AuditService
	metrics       metrics.Recorder
}

func NewAuthHandler(
	authenticator core.Authenticator,
	sessionStore *session.Store,
	cfg *config.Config,
	audit *services.AuditService,
	m metrics.Recorder,
) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		sessions:      sessionStore,
		cfg:           cfg,
		audit:         audit,
		metrics:       m,
	}
}

// LoginPage serves the entry point: the listing for a live session,
// the login form for everyone else.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	cookie := sessions.Default(c)
	if token, _ := cookie.Get(middleware.SessionTokenKey).(string); token != "" {
		if sess, ok := h.sessions.Get(token); ok && sess.Authenticated {
			c.Redirect(http.StatusFound, "/files")
			return
		}
	}
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

// Login handles the credential form submission. Every deny reason
// renders the same generic message; the distinction lives only in the
// diagnostic log and the audit trail.
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	start := time.Now()
	result, err := h.authenticator.Authenticate(c.Request.Context(), username, password)
	elapsed := time.Since(start)
	if err != nil {
		// The port contract folds failures into deny reasons; treat an
		// unexpected error exactly like an outage.
		log.Printf("[Auth] Authenticator error for user=%s: %v", username, err)
		result = core.AuthzResult{Reason: core.ReasonDirectoryUnavailable, Username: username}
	}

	h.metrics.RecordLogin(string(result.Reason), elapsed)

	if !result.Allowed {
		log.Printf("[Auth] Deny user=%s reason=%s", username, result.Reason)
		h.audit.Log(services.AuditLogEntry{
			EventType:     models.EventAuthenticationFailure,
			Severity:      models.SeverityWarning,
			ActorUsername: username,
			ActorIP:       c.ClientIP(),
			Success:       false,
			ErrorMessage:  string(result.Reason),
			UserAgent:     c.Request.UserAgent(),
			RequestPath:   c.Request.URL.Path,
			RequestMethod: c.Request.Method,
		})
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"Message": h.cfg.DenyMessage(),
		})
		return
	}

	// Session state is mutated only now, with the full result known.
	token, err := h.sessions.Create(result.Username)
	if err != nil {
		log.Printf("[Auth] Session creation failed for user=%s: %v", username, err)
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{
			"Message": "Failed to create session",
		})
		return
	}
	h.sessions.MarkAuthenticated(token)
	h.metrics.RecordSessionCreated()

	cookie := sessions.Default(c)
	cookie.Set(middleware.SessionTokenKey, token)
	if err := cookie.Save(); err != nil {
		h.sessions.Invalidate(token)
		log.Printf("[Auth] Cookie save failed for user=%s: %v", username, err)
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{
			"Message": "Failed to create session",
		})
		return
	}

	h.audit.Log(services.AuditLogEntry{
		EventType:     models.EventAuthenticationSuccess,
		Severity:      models.SeverityInfo,
		ActorUsername: result.Username,
		ActorIP:       c.ClientIP(),
		Success:       true,
		UserAgent:     c.Request.UserAgent(),
		RequestPath:   c.Request.URL.Path,
		RequestMethod: c.Request.Method,
	})
	c.Redirect(http.StatusFound, "/files")
}

// Logout invalidates the server-side session, clears the cookie and
// returns to the entry point. Safe to call without a session.
func (h *AuthHandler) Logout(c *gin.Context) {
	cookie := sessions.Default(c)
	if token, _ := cookie.Get(middleware.SessionTokenKey).(string); token != "" {
		if sess, ok := h.sessions.Get(token); ok {
			h.audit.Log(services.AuditLogEntry{
				EventType:     models.EventLogout,
				Severity:      models.SeverityInfo,
				ActorUsername: sess.Username,
				ActorIP:       c.ClientIP(),
				Success:       true,
			})
		}
		h.sessions.Invalidate(token)
		h.metrics.RecordLogout()
	}

	cookie.Clear()
	if err := cookie.Save(); err != nil {
		log.Printf("[Auth] Cookie clear failed: %v", err)
	}
	c.Redirect(http.StatusFound, "/")
}
