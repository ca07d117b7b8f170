package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	csrfTokenKey    = "csrf_token"
	csrfFormField   = "csrf_token"
	csrfHeaderField = "X-CSRF-Token"
)

// CSRFMiddleware provides CSRF protection for state-changing
// operations. The token lives in the signed cookie session and must be
// echoed back in the form (or header) of every POST.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie := sessions.Default(c)

		token, _ := cookie.Get(csrfTokenKey).(string)
		if token == "" {
			token = generateCSRFToken()
			cookie.Set(csrfTokenKey, token)
			if err := cookie.Save(); err != nil {
				c.String(http.StatusInternalServerError, "Failed to save CSRF token")
				c.Abort()
				return
			}
		}

		// Make token available to templates
		c.Set(csrfTokenKey, token)

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			submitted := c.PostForm(csrfFormField)
			if submitted == "" {
				submitted = c.GetHeader(csrfHeaderField)
			}
			if subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
				c.String(http.StatusForbidden,
					"CSRF token validation failed. Please refresh the page and try again.")
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

func generateCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// Without randomness the CSRF protection is broken anyway.
		panic("failed to generate CSRF token: " + err.Error())
	}
	return base64.StdEncoding.EncodeToString(b)
}

// GetCSRFToken retrieves the CSRF token from the context
func GetCSRFToken(c *gin.Context) string {
	if token, exists := c.Get(csrfTokenKey); exists {
		if tokenStr, ok := token.(string); ok {
			return tokenStr
		}
	}
	return ""
}
