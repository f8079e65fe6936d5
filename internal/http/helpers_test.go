package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/moneta/internal/audit"
	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/catalog"
	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/database"
	auditdb "github.com/mrlokans/moneta/internal/database/audit"
	catalogdb "github.com/mrlokans/moneta/internal/database/catalog"
	lendingdb "github.com/mrlokans/moneta/internal/database/lending"
	"github.com/mrlokans/moneta/internal/database/users"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
	"github.com/mrlokans/moneta/internal/lending"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "secret1"

var jsonHeader = http.Header{"Accept": []string{"application/json"}}

type fixture struct {
	db      *database.Database
	router  *gin.Engine
	auth    *auth.Service
	catalog *catalog.Service
	lending *lending.Service
	auditor *audit.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewDatabase(config.Database{
		Path:     filepath.Join(t.TempDir(), "moneta.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	authCfg := config.Auth{
		SessionLifetime:  time.Hour,
		BcryptCost:       4,
		MaxLoginAttempts: 5,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}
	sessions, err := auth.NewSessionManager(sqlDB, authCfg)
	require.NoError(t, err)

	auditor := audit.NewService(auditdb.NewRepository(db.DB), nil)
	t.Cleanup(auditor.Wait)

	usersRepo := users.NewRepository(db.DB)
	authService := auth.NewService(usersRepo, authCfg, nil)
	catalogService := catalog.NewService(catalogdb.NewRepository(db.DB), usersRepo, auditor, nil)
	lendingService := lending.NewService(lendingdb.NewRepository(db.DB), config.Lending{
		MaxActiveItems: 5,
		BorrowPeriod:   7 * 24 * time.Hour,
	}, auditor, nil)

	router := NewRouter(RouterConfig{
		Catalog:        catalogService,
		Lending:        lendingService,
		Database:       db,
		Auditor:        auditor,
		AuthService:    authService,
		SessionManager: sessions,
		AuthMiddleware: auth.NewMiddleware(authService, sessions, nil),
		AuthConfig:     authCfg,
		TemplatesPath:  filepath.Join(t.TempDir(), "templates"),
		StaticPath:     filepath.Join(t.TempDir(), "static"),
		Version:        "test",
	})

	return &fixture{
		db:      db,
		router:  router,
		auth:    authService,
		catalog: catalogService,
		lending: lendingService,
		auditor: auditor,
	}
}

// member registers a reader and returns a signed-in session cookie.
func (f *fixture) member(t *testing.T, name string) (*entities.User, *http.Cookie) {
	t.Helper()
	user, err := f.auth.Register(auth.SignupInput{
		Username:        name,
		Email:           name + "@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	return user, f.login(t, user.Email)
}

func (f *fixture) librarian(t *testing.T, name string) (*entities.User, *http.Cookie) {
	t.Helper()
	user, err := f.auth.CreateLibrarian(auth.SignupInput{
		Username:        name,
		Email:           name + "@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	return user, f.login(t, user.Email)
}

func (f *fixture) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rr := f.post("/login", url.Values{"email": {email}, "password": {testPassword}}, nil)
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())

	resp := http.Response{Header: rr.Header()}
	for _, c := range resp.Cookies() {
		if c.Name == "moneta_session" {
			return c
		}
	}
	t.Fatalf("login did not set a session cookie")
	return nil
}

func (f *fixture) book(t *testing.T, name string) uint {
	t.Helper()
	id, err := f.catalog.Create(0, entities.KindBook, name)
	require.NoError(t, err)
	return id
}

func (f *fixture) get(path string, header http.Header, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) post(path string, form url.Values, cookie *http.Cookie, headers ...http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, h := range headers {
		for k, v := range h {
			req.Header[k] = v
		}
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func idForm(field string, id uint) url.Values {
	return url.Values{field: {fmt.Sprint(id)}}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		value string
		want  uint
		ok    bool
	}{
		{"123", 123, true},
		{"abc", 0, false},
		{"-1", 0, false},
		{"0", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Params = gin.Params{{Key: "id", Value: tt.value}}

			id, ok := parseIDParam(c, "id")

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
			if !tt.ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, w.Body.String(), "invalid id")
			}
		})
	}
}

func TestParseFormID(t *testing.T) {
	newContext := func(body string) (*gin.Context, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c, w
	}

	c, _ := newContext("book_id=7")
	id, ok := parseFormID(c, "book_id")
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)

	c, w := newContext("")
	_, ok = parseFormID(c, "book_id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "book_id is required")

	c, w = newContext("book_id=x")
	_, ok = parseFormID(c, "book_id")
	assert.False(t, ok)
	assert.Contains(t, w.Body.String(), "invalid book_id")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", errs.NewValidationError("name", "required"), http.StatusUnprocessableEntity, "validation_failed"},
		{"duplicate name", fmt.Errorf("create: %w", errs.ErrDuplicateName), http.StatusConflict, "duplicate"},
		{"duplicate email", errs.ErrDuplicateEmail, http.StatusConflict, "duplicate"},
		{"not found", errs.ErrNotFound, http.StatusNotFound, "not_found"},
		{"unauthorized", errs.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"quota", errs.ErrQuotaExceeded, http.StatusConflict, "quota_exceeded"},
		{"transition", errs.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{"unavailable", errs.ErrBookUnavailable, http.StatusConflict, "book_unavailable"},
		{"other", fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := classify(tt.err)
			assert.Equal(t, tt.status, se.status)
			assert.Equal(t, tt.code, se.code)
		})
	}
}

func TestNotFoundRoute(t *testing.T) {
	f := newFixture(t)

	rr := f.get("/no/such/page", nil, nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Page not found", rr.Body.String())
}
