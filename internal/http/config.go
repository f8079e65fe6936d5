package http

import (
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/audit"
	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/catalog"
	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/database"
	"github.com/mrlokans/moneta/internal/lending"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core services
	Catalog  *catalog.Service
	Lending  *lending.Service
	Database *database.Database
	Auditor  *audit.Service

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	AuthConfig     config.Auth
	// AuthController is built from the fields above when nil.
	AuthController *auth.AuthController
	LoginHook      auth.LoginHook
	CSRFSecret     []byte
	SecureCookies  bool

	// UI paths
	TemplatesPath string
	StaticPath    string

	// Per-client request throttling; zero RPS disables it.
	RateLimit config.RateLimit

	// Application info
	Version string

	Logger *zap.Logger
}
