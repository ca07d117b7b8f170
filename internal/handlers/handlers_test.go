package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/OlsenSM91/Open-Server-Shares/internal/config"
	"github.com/OlsenSM91/Open-Server-Shares/internal/core"
	"github.com/OlsenSM91/Open-Server-Shares/internal/metrics"
	"github.com/OlsenSM91/Open-Server-Shares/internal/middleware"
	"github.com/OlsenSM91/Open-Server-Shares/internal/services"
	"github.com/OlsenSM91/Open-Server-Shares/internal/session"
	"github.com/OlsenSM91/Open-Server-Shares/internal/templates"
)

// fakeAuthenticator scripts directory outcomes per credential pair.
type fakeAuthenticator struct {
	results map[string]core.AuthzResult // key: "user:pass"
}

func (f *fakeAuthenticator) Authenticate(
	ctx context.Context,
	username, password string,
) (core.AuthzResult, error) {
	if res, ok := f.results[username+":"+password]; ok {
		return res, nil
	}
	return core.AuthzResult{
		Allowed:  false,
		Reason:   core.ReasonInvalidCredentials,
		Username: username,
	}, nil
}

func (f *fakeAuthenticator) Name() string { return "fake" }

// fakeRegistry serves a fixed snapshot and scripted close outcomes.
type fakeRegistry struct {
	handles   []core.OpenHandle
	listErr   error
	closeErr  error
	closedIDs []string
}

func (f *fakeRegistry) List(ctx context.Context) ([]core.OpenHandle, error) {
	return f.handles, f.listErr
}

func (f *fakeRegistry) Close(ctx context.Context, id string) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closedIDs = append(f.closedIDs, id)
	return nil
}

type fixture struct {
	router   *gin.Engine
	sessions *session.Store
	registry *fakeRegistry
}

// newFixture wires the routes the way main does, with the ports faked
// and CSRF optional so most tests can post forms directly.
func newFixture(t *testing.T, auth core.Authenticator, registry *fakeRegistry, withCSRF bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		LDAPGroup:          "ShareManagement",
		SessionMaxAge:      3600,
		SessionIdleTimeout: 15 * time.Minute,
	}
	sessionStore := session.NewStore(cfg.SessionIdleTimeout)
	audit := services.NewAuditService(nil, false, 0)
	recorder := metrics.NewNoopMetrics()

	authHandler := NewAuthHandler(auth, sessionStore, cfg, audit, recorder)
	filesHandler := NewFilesHandler(registry, audit, recorder)

	r := gin.New()
	r.SetHTMLTemplate(templates.Load())
	cookieStore := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("openshares_session", cookieStore))

	r.GET("/", authHandler.LoginPage)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	protected := r.Group("")
	protected.Use(middleware.RequireAuth(sessionStore))
	if withCSRF {
		protected.Use(middleware.CSRFMiddleware())
	}
	protected.GET("/files", filesHandler.ListFiles)
	protected.POST("/release", filesHandler.Release)

	return &fixture{router: r, sessions: sessionStore, registry: registry}
}

func allowBob() *fakeAuthenticator {
	return &fakeAuthenticator{results: map[string]core.AuthzResult{
		"bob:correct-horse": {
			Allowed:  true,
			Reason:   core.ReasonOk,
			Username: "bob",
			UserDN:   "CN=Bob Smith,OU=Users,DC=domain,DC=local",
		},
	}}
}

func sampleHandles() []core.OpenHandle {
	return []core.OpenHandle{
		{
			ID:         "4415226383481",
			RemoteHost: "ws-alice.domain.local",
			RemoteAddr: "10.0.0.21",
			User:       `DOMAIN\alice`,
			Path:       `D:\Shares\Accounting\ledger.xlsx`,
		},
	}
}

// do runs one request, carrying any cookies previously captured.
func (f *fixture) do(t *testing.T, method, target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// login authenticates bob and returns the session cookies.
func (f *fixture) login(t *testing.T) []*http.Cookie {
	t.Helper()
	w := f.do(t, http.MethodPost, "/login", url.Values{
		"username": {"bob"},
		"password": {"correct-horse"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "login must set a session cookie")
	return cookies
}
