package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/models"
	"github.com/altavia-air/altavia-api/internal/token"
	"github.com/altavia-air/altavia-api/pkg/config"
)

type memorySink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *memorySink) Emit(entry audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *memorySink) all() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}

type failureCounter struct {
	mu      sync.Mutex
	reasons []string
}

func (f *failureCounter) ObserveAuthFailure(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
}

func newAuthFixture(t *testing.T) (*token.Codec, *audit.Logger, *memorySink) {
	t.Helper()
	codec, err := token.NewCodec(config.JWTConfig{
		Secret:        "test-secret-at-least-32-characters!!",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 168 * time.Hour,
		Issuer:        "altavia-api",
	})
	require.NoError(t, err)

	sink := &memorySink{}
	auditor := audit.NewLogger(64, sink)
	t.Cleanup(auditor.Close)
	return codec, auditor, sink
}

func authRouter(codec *token.Codec, auditor *audit.Logger, observer AuthObserver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(codec, auditor, observer))
	r.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": SubjectFrom(c)})
	})
	r.GET("/private", RequireAuth(auditor), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": SubjectFrom(c)})
	})
	r.GET("/payments", RequireAuth(auditor), RequireScope(models.ScopePayments, auditor), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAnonymousPassesThrough(t *testing.T) {
	codec, auditor, _ := newAuthFixture(t)
	r := authRouter(codec, auditor, nil)

	w := get(r, "/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subject":""`)
}

func TestAuthenticateValidToken(t *testing.T) {
	codec, auditor, _ := newAuthFixture(t)
	r := authRouter(codec, auditor, nil)

	signed, _, err := codec.Mint("usr-1", models.TokenKindAccess, []string{models.ScopeBookingsRead})
	require.NoError(t, err)

	w := get(r, "/private", "Bearer "+signed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subject":"usr-1"`)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	codec, auditor, sink := newAuthFixture(t)
	counter := &failureCounter{}
	r := authRouter(codec, auditor, counter)

	refresh, _, err := codec.Mint("usr-1", models.TokenKindRefresh, nil)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		reason string
	}{
		{"garbage", "Bearer not.a.jwt", "malformed"},
		{"not bearer", "Basic dXNlcjpwYXNz", "malformed"},
		{"refresh as access", "Bearer " + refresh, "wrong_kind"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, "/open", tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	time.Sleep(50 * time.Millisecond)
	entries := sink.all()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, audit.EventAuthentication, e.EventType)
		assert.Equal(t, audit.OutcomeFailure, e.Outcome)
	}

	counter.mu.Lock()
	defer counter.mu.Unlock()
	assert.ElementsMatch(t, []string{"malformed", "malformed", "wrong_kind"}, counter.reasons)
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	codec, auditor, _ := newAuthFixture(t)
	r := authRouter(codec, auditor, nil)

	w := get(r, "/private", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}

func TestRequireScope(t *testing.T) {
	codec, auditor, sink := newAuthFixture(t)
	r := authRouter(codec, auditor, nil)

	withScope, _, err := codec.Mint("usr-1", models.TokenKindAccess, []string{models.ScopePayments})
	require.NoError(t, err)
	withoutScope, _, err := codec.Mint("usr-1", models.TokenKindAccess, []string{models.ScopeBookingsRead})
	require.NoError(t, err)

	w := get(r, "/payments", "Bearer "+withScope)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/payments", "Bearer "+withoutScope)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "forbidden")

	time.Sleep(50 * time.Millisecond)
	var denial *audit.Entry
	for _, e := range sink.all() {
		if e.EventType == audit.EventAuthorization {
			copied := e
			denial = &copied
		}
	}
	require.NotNil(t, denial)
	assert.Equal(t, models.ScopePayments, denial.Details["required_scope"])
}
