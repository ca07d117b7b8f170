package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlsenSM91/Open-Server-Shares/internal/core"
)

func TestLoginPage(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{}, false)

	w := f.do(t, http.MethodGet, "/", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="username"`)
	assert.Contains(t, w.Body.String(), `name="password"`)
}

func TestLoginPageRedirectsAuthenticated(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{}, false)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/", nil, cookies)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/files", w.Header().Get("Location"))
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{}, false)

	w := f.do(t, http.MethodPost, "/login", url.Values{
		"username": {"bob"},
		"password": {"correct-horse"},
	}, nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/files", w.Header().Get("Location"))
	assert.Equal(t, 1, f.sessions.Len())
}

func TestLoginDenied(t *testing.T) {
	deny := func(reason core.DenyReason) *fakeAuthenticator {
		return &fakeAuthenticator{results: map[string]core.AuthzResult{
			"alice:wrongpass": {Allowed: false, Reason: reason, Username: "alice"},
		}}
	}

	// Every deny reason renders the exact same message: the page must
	// not reveal whether the account exists or the group is missing.
	for _, reason := range []core.DenyReason{
		core.ReasonInvalidCredentials,
		core.ReasonNotInGroup,
		core.ReasonDirectoryUnavailable,
	} {
		t.Run(string(reason), func(t *testing.T) {
			f := newFixture(t, deny(reason), &fakeRegistry{}, false)

			w := f.do(t, http.MethodPost, "/login", url.Values{
				"username": {"alice"},
				"password": {"wrongpass"},
			}, nil)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(),
				"Invalid credentials or not part of the ShareManagement group.")
			assert.Equal(t, 0, f.sessions.Len(), "deny must not create a session")
		})
	}
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{}, false)

	w := f.do(t, http.MethodPost, "/login", url.Values{
		"username": {"mallory"},
		"password": {"whatever"},
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(),
		"Invalid credentials or not part of the ShareManagement group.")
}

func TestLogout(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{handles: sampleHandles()}, false)
	cookies := f.login(t)
	require.Equal(t, 1, f.sessions.Len())

	w := f.do(t, http.MethodGet, "/logout", nil, cookies)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, 0, f.sessions.Len(), "logout must invalidate the server-side session")

	// The old cookie no longer opens the protected listing.
	w = f.do(t, http.MethodGet, "/files", nil, cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{}, false)

	w := f.do(t, http.MethodGet, "/logout", nil, nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}
