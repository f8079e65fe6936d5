package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/database"
	"github.com/mrlokans/moneta/internal/database/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthConfig() config.Auth {
	return config.Auth{
		SessionLifetime:  24 * time.Hour,
		BcryptCost:       4,
		SecureCookies:    false,
		MaxLoginAttempts: 3,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}
}

type fixture struct {
	db       *database.Database
	service  *Service
	sessions *SessionManager
	mw       *Middleware
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewDatabase(config.Database{
		Path:     filepath.Join(t.TempDir(), "auth.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	cfg := testAuthConfig()
	sm, err := NewSessionManager(sqlDB, cfg)
	require.NoError(t, err)

	svc := NewService(users.NewRepository(db.DB), cfg, nil)
	return &fixture{
		db:       db,
		service:  svc,
		sessions: sm,
		mw:       NewMiddleware(svc, sm, nil),
	}
}

func (f *fixture) signup(t *testing.T, username, email string) {
	t.Helper()
	_, err := f.service.Register(SignupInput{
		Username:        username,
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
}

func postForm(router http.Handler, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func get(router http.Handler, path string, header http.Header, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// sessionCookie pulls the session cookie out of the recorded headers.
func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	resp := http.Response{Header: rr.Header()}
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %q cookie in %v", name, rr.Header().Values("Set-Cookie"))
	return nil
}
