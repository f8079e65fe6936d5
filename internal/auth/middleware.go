package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/entities"
)

// Context keys for the request principal
const (
	ContextKeyUser     = "auth_user"
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUsername = "auth_username"
	ContextKeyRole     = "auth_role"
)

// Middleware resolves the session principal and guards routes by role.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	log            *zap.Logger
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, sessionManager *SessionManager, log *zap.Logger) *Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		log:            log.Named("auth"),
	}
}

// Handler loads the principal for every request. Anonymous requests pass
// through untouched; the guards decide what they may see.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.sessionManager == nil {
			c.Next()
			return
		}

		userID := m.sessionManager.GetUserID(c.Request)
		if userID == 0 {
			c.Next()
			return
		}

		user, err := m.service.GetUserByID(userID)
		if err != nil {
			// Account deleted while the session was alive.
			m.log.Debug("dropping stale session", zap.Uint("user_id", userID), zap.Error(err))
			m.sessionManager.Remove(c.Request.Context(), SessionKeyUserID)
			c.Next()
			return
		}

		setPrincipal(c, user)
		c.Next()
	}
}

func setPrincipal(c *gin.Context, user *entities.User) {
	c.Set(ContextKeyUser, user)
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyUsername, user.Username)
	c.Set(ContextKeyRole, user.Role)
}

// RequireLibrarian admits librarians only.
func (m *Middleware) RequireLibrarian() gin.HandlerFunc {
	return requireRole(entities.UserRoleLibrarian)
}

// RequireMember admits readers only.
func (m *Middleware) RequireMember() gin.HandlerFunc {
	return requireRole(entities.UserRoleMember)
}

func requireRole(roles ...entities.UserRole) gin.HandlerFunc {
	allowed := make(map[entities.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		user, ok := CurrentPrincipal(c)
		if !ok {
			if IsAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		if !allowed[user.Role] {
			if IsAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			} else {
				c.String(http.StatusUnauthorized, "Unauthorized")
				c.Abort()
			}
			return
		}
		c.Next()
	}
}

// IsAPIRequest reports whether the client wants JSON rather than pages.
func IsAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// CurrentPrincipal returns the signed-in user, if any.
func CurrentPrincipal(c *gin.Context) (*entities.User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*entities.User)
	return user, ok && user != nil
}

// GetUserID returns 0 for anonymous requests.
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextKeyUserID); exists {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}
