package auth

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
	"github.com/mrlokans/moneta/internal/validation"
)

// LoginHook runs after a principal signs in. It must not block the login.
type LoginHook interface {
	AfterLogin(ctx context.Context, user *entities.User)
}

// Auditor records authentication events.
type Auditor interface {
	LogAuth(userID uint, action string, ipAddr, userAgent string, success bool)
}

// isLocalPath reports whether path is safe to redirect to.
func isLocalPath(path string) bool {
	switch {
	case path == "", !strings.HasPrefix(path, "/"):
		return false
	case strings.HasPrefix(path, "//"), strings.Contains(path, "://"), strings.Contains(path, "\\"):
		return false
	}
	return true
}

func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return "/"
}

// AuthController serves sign-in, sign-up and sign-out.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	templates      *template.Template
	limiter        *LoginLimiter
	hook           LoginHook
	audit          Auditor
	log            *zap.Logger
}

// NewAuthController creates a new authentication controller. Templates are
// optional; without them every page renders as JSON.
func NewAuthController(service *Service, sessionManager *SessionManager, templatesPath string, cfg config.Auth, log *zap.Logger) *AuthController {
	if log == nil {
		log = zap.NewNop()
	}

	tmpl, err := template.ParseGlob(filepath.Join(templatesPath, "auth", "*.html"))
	if err != nil {
		tmpl = nil
	}

	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		templates:      tmpl,
		limiter: NewLoginLimiter(LoginLimiterConfig{
			MaxAttempts: cfg.MaxLoginAttempts,
			Window:      cfg.RateLimitWindow,
			Lockout:     cfg.LockoutDuration,
		}),
		log: log.Named("auth"),
	}
}

// SetLoginHook installs the post-login callback.
func (ac *AuthController) SetLoginHook(hook LoginHook) {
	ac.hook = hook
}

func (ac *AuthController) SetAuditor(a Auditor) {
	ac.audit = a
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	router.GET("/login", ac.LoginPage)
	router.POST("/login", ac.Login)
	router.GET("/register", ac.RegisterPage)
	router.POST("/register", ac.Register)
	router.GET("/logout", ac.Logout)
	router.POST("/logout", ac.Logout)
}

// Stop releases the login limiter.
func (ac *AuthController) Stop() {
	ac.limiter.Stop()
}

func (ac *AuthController) LoginPage(c *gin.Context) {
	if ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	ac.render(c, http.StatusOK, "login.html", gin.H{
		"Title":     "Login",
		"Next":      sanitizeRedirectPath(c.Query("next")),
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

type loginInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// Login checks credentials, opens the session and fires the login hook.
func (ac *AuthController) Login(c *gin.Context) {
	in := loginInput{
		Email:    strings.TrimSpace(c.PostForm("email")),
		Password: c.PostForm("password"),
	}
	remember := isChecked(c.PostForm("remember"))
	next := sanitizeRedirectPath(c.PostForm("next"))
	ip := c.ClientIP()

	page := func(status int, fields map[string]string, msg string) {
		ac.render(c, status, "login.html", gin.H{
			"Title":     "Login",
			"Next":      next,
			"Email":     in.Email,
			"CSRFToken": GetCSRFToken(c),
			"Errors":    fields,
			"Error":     msg,
		})
	}

	if allowed, retryAfter := ac.limiter.Allow(ip, in.Email); !allowed {
		c.Header("Retry-After", retryAfter.String())
		page(http.StatusTooManyRequests, nil, "Too many login attempts. Please try again later.")
		return
	}

	if err := validateForm(in); err != nil {
		page(http.StatusUnprocessableEntity, err.Fields, "")
		return
	}

	user, err := ac.service.Login(in.Email, in.Password)
	if err != nil {
		var fields map[string]string
		switch {
		case errors.Is(err, errs.ErrNoSuchUser):
			fields = map[string]string{"email": "No user with that email."}
		case errors.Is(err, errs.ErrIncorrectPassword):
			fields = map[string]string{"password": "Incorrect password."}
		default:
			ac.log.Error("login failed", zap.Error(err))
			page(http.StatusInternalServerError, nil, "Internal server error")
			return
		}
		ac.limiter.RecordFailure(ip, in.Email)
		ac.logAuth(0, "login", c, false)
		page(http.StatusUnauthorized, fields, "")
		return
	}

	ac.limiter.RecordSuccess(ip, in.Email)
	if err := ac.sessionManager.CreateSession(c.Request, user, remember); err != nil {
		ac.log.Error("failed to create session", zap.Uint("user_id", user.ID), zap.Error(err))
		page(http.StatusInternalServerError, nil, "Failed to create session")
		return
	}
	ac.logAuth(user.ID, "login", c, true)

	if ac.hook != nil {
		ac.hook.AfterLogin(context.WithoutCancel(c.Request.Context()), user)
	}

	c.Redirect(http.StatusFound, next)
}

func (ac *AuthController) RegisterPage(c *gin.Context) {
	if ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	ac.render(c, http.StatusOK, "register.html", gin.H{
		"Title":     "Register",
		"Next":      sanitizeRedirectPath(c.Query("next")),
		"CSRFToken": GetCSRFToken(c),
	})
}

// Register creates a member account and signs it in.
func (ac *AuthController) Register(c *gin.Context) {
	in := SignupInput{
		Username:        c.PostForm("username"),
		Email:           c.PostForm("email"),
		Password:        c.PostForm("password"),
		ConfirmPassword: c.PostForm("confirm_password"),
	}
	next := sanitizeRedirectPath(c.PostForm("next"))

	page := func(status int, fields map[string]string, msg string) {
		ac.render(c, status, "register.html", gin.H{
			"Title":     "Register",
			"Next":      next,
			"Username":  in.Username,
			"Email":     in.Email,
			"CSRFToken": GetCSRFToken(c),
			"Errors":    fields,
			"Error":     msg,
		})
	}

	user, err := ac.service.Register(in)
	if err != nil {
		if ve, ok := errs.IsValidation(err); ok {
			page(http.StatusUnprocessableEntity, ve.Fields, "")
			return
		}
		switch {
		case errors.Is(err, errs.ErrDuplicateEmail):
			page(http.StatusConflict, nil, "This email is already registered.")
		case errors.Is(err, errs.ErrDuplicateUsername):
			page(http.StatusConflict, nil, "This username is taken.")
		default:
			ac.log.Error("registration failed", zap.Error(err))
			page(http.StatusInternalServerError, nil, "Internal server error")
		}
		return
	}

	ac.logAuth(user.ID, "register", c, true)
	if err := ac.sessionManager.CreateSession(c.Request, user, false); err != nil {
		ac.log.Error("failed to create session", zap.Uint("user_id", user.ID), zap.Error(err))
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.Redirect(http.StatusFound, next)
}

// Logout destroys the session and goes home.
func (ac *AuthController) Logout(c *gin.Context) {
	if userID := ac.sessionManager.GetUserID(c.Request); userID != 0 {
		ac.logAuth(userID, "logout", c, true)
	}
	_ = ac.sessionManager.DestroySession(c.Request)
	c.Redirect(http.StatusFound, "/")
}

func (ac *AuthController) logAuth(userID uint, action string, c *gin.Context, success bool) {
	if ac.audit != nil {
		ac.audit.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
	}
}

// render executes an auth template, or writes data as JSON when templates
// are not available.
func (ac *AuthController) render(c *gin.Context, status int, name string, data gin.H) {
	if ac.templates == nil {
		c.JSON(status, data)
		return
	}

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		ac.log.Error("template error", zap.String("template", name), zap.Error(err))
	}
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "y", "yes", "true", "1":
		return true
	}
	return false
}

func validateForm(v any) *errs.ValidationError {
	err := validation.Struct(v)
	if err == nil {
		return nil
	}
	if ve, ok := errs.IsValidation(err); ok {
		return ve
	}
	return errs.NewValidationError("form", err.Error())
}
