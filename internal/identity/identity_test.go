package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareIssuesVisitorCookie(t *testing.T) {
	var visitor, session string
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		visitor = VisitorIDFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/chat?session_id=abc-123", nil))

	assert.Regexp(t, `^v_[a-f0-9]{32}$`, visitor)
	assert.Equal(t, "abc-123", session)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorCookieName, cookies[0].Name)
	assert.Equal(t, visitor, cookies[0].Value)
	assert.False(t, cookies[0].Secure)

	// The cookie is reused on the next request; the header beats the query.
	req := httptest.NewRequest(http.MethodGet, "/ws/chat?session_id=from-query", nil)
	req.AddCookie(cookies[0])
	req.Header.Set(SessionHeaderName, "from-header")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, cookies[0].Value, visitor)
	assert.Equal(t, "from-header", session)
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	var visitor string
	h := Middleware(false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		visitor = VisitorIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: "../../etc"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.NotEqual(t, "../../etc", visitor)
	require.Len(t, rr.Result().Cookies(), 1)
	assert.True(t, rr.Result().Cookies()[0].Secure)
}

func TestSanitizeSessionID(t *testing.T) {
	assert.Equal(t, "3f6c1a2e-aaaa-bbbb-cccc-0123456789ab", SanitizeSessionID(" 3f6c1a2e-aaaa-bbbb-cccc-0123456789ab "))
	assert.Empty(t, SanitizeSessionID(""))
	assert.Empty(t, SanitizeSessionID("bad id"))
	assert.Empty(t, SanitizeSessionID("../x"))
}
