package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlsenSM91/Open-Server-Shares/internal/smb"
)

func TestListFiles(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{handles: sampleHandles()}, false)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/files", nil, cookies)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "ws-alice.domain.local")
	assert.Contains(t, body, `DOMAIN\alice`)
	assert.Contains(t, body, `ledger.xlsx`)
	assert.Contains(t, body, "bob")
}

func TestListFilesRequiresSession(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{handles: sampleHandles()}, false)

	w := f.do(t, http.MethodGet, "/files", nil, nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestListFilesEmpty(t *testing.T) {
	f := newFixture(t, allowBob(), &fakeRegistry{}, false)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/files", nil, cookies)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No open files")
}

func TestListFilesDegradesOnMalformedOutput(t *testing.T) {
	reg := &fakeRegistry{listErr: smb.ErrMalformedOutput}
	f := newFixture(t, allowBob(), reg, false)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/files", nil, cookies)

	// The listing degrades to an empty page with a notice; it must not
	// surface a 5xx for a transient enumerator hiccup.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "could not be read")
}

func TestReleaseSuccess(t *testing.T) {
	reg := &fakeRegistry{handles: sampleHandles()}
	f := newFixture(t, allowBob(), reg, false)
	cookies := f.login(t)

	w := f.do(t, http.MethodPost, "/release", url.Values{
		"file_id": {"4415226383481"},
	}, cookies)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/files", w.Header().Get("Location"))
	require.Len(t, reg.closedIDs, 1)
	assert.Equal(t, "4415226383481", reg.closedIDs[0])
}

func TestReleaseFailureNamesHandle(t *testing.T) {
	reg := &fakeRegistry{
		handles:  sampleHandles(),
		closeErr: &smb.CloseError{HandleID: "12345", Err: errors.New("no MSFT_SmbOpenFile objects found")},
	}
	f := newFixture(t, allowBob(), reg, false)
	cookies := f.login(t)

	w := f.do(t, http.MethodPost, "/release", url.Values{
		"file_id": {"12345"},
	}, cookies)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "12345")
	assert.NotContains(t, body, "MSFT_SmbOpenFile", "raw tool output stays in the log")

	// The session survives the failure: the operator refreshes and
	// keeps working.
	reg.closeErr = nil
	w = f.do(t, http.MethodGet, "/files", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReleaseRequiresSession(t *testing.T) {
	reg := &fakeRegistry{handles: sampleHandles()}
	f := newFixture(t, allowBob(), reg, false)

	w := f.do(t, http.MethodPost, "/release", url.Values{
		"file_id": {"4415226383481"},
	}, nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Empty(t, reg.closedIDs)
}

func TestReleaseCSRF(t *testing.T) {
	reg := &fakeRegistry{handles: sampleHandles()}
	f := newFixture(t, allowBob(), reg, true)
	cookies := f.login(t)

	// Without the token the post is rejected outright.
	w := f.do(t, http.MethodPost, "/release", url.Values{
		"file_id": {"4415226383481"},
	}, cookies)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, reg.closedIDs)

	// The listing page carries the token; a post echoing it goes
	// through. The CSRF middleware may rotate the session cookie when
	// it first issues a token, so carry the updated cookies forward.
	w = f.do(t, http.MethodGet, "/files", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	if updated := w.Result().Cookies(); len(updated) > 0 {
		cookies = updated
	}

	m := regexp.MustCompile(`name="csrf_token" value="([^"]+)"`).FindStringSubmatch(w.Body.String())
	require.Len(t, m, 2, "files page must embed the csrf token")

	w = f.do(t, http.MethodPost, "/release", url.Values{
		"file_id":    {"4415226383481"},
		"csrf_token": {m[1]},
	}, cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	require.Len(t, reg.closedIDs, 1)
}
