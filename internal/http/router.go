package http

import (
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestLoggerMiddleware(log))

	if cfg.RateLimit.RPS > 0 {
		router.Use(NewClientRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())
	}

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	router.Use(cfg.SessionManager.SessionLoadSave())
	router.Use(cfg.AuthMiddleware.Handler())

	if _, err := os.Stat(cfg.StaticPath); err == nil {
		router.Static("/static", cfg.StaticPath)
	}

	pages := NewPages(cfg.TemplatesPath, log)

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", Ping)

	authController := cfg.AuthController
	if authController == nil {
		authController = auth.NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.TemplatesPath, cfg.AuthConfig, log)
	}
	if cfg.LoginHook != nil {
		authController.SetLoginHook(cfg.LoginHook)
	}
	if cfg.Auditor != nil {
		authController.SetAuditor(cfg.Auditor)
	}
	authController.RegisterRoutes(router)

	browse := NewBrowseController(cfg.Catalog, cfg.Lending, pages, cfg.SessionManager, log)
	loans := NewLendingController(cfg.Lending, pages, cfg.SessionManager, log)
	librarian := NewLibrarianController(cfg.Catalog, cfg.Lending, pages, cfg.SessionManager, log)
	auditLog := NewAuditController(cfg.Auditor, pages, cfg.SessionManager, log)

	router.GET("/", browse.Home)

	member := router.Group("/", cfg.AuthMiddleware.RequireMember())
	{
		member.GET("/sections", browse.Sections)
		member.GET("/sections/:name", browse.Section)
		member.GET("/trending", browse.Trending)
		member.GET("/book/:id", browse.Book)
		member.GET("/author/:id", browse.Author)
		member.GET("/shelf", browse.Shelf)
		member.GET("/explore", browse.ExplorePage)
		member.POST("/explore", browse.Explore)

		member.POST("/borrow", loans.Borrow)
		member.POST("/request", loans.Request)
		member.POST("/request/cancel", loans.CancelRequest)
		member.POST("/return", loans.Return)
		member.POST("/rate", loans.Rate)
		member.POST("/comment", loans.Comment)
		member.GET("/comment/remove/book/:id", loans.RemoveComment)
		member.POST("/read", loans.Read)
	}

	lib := router.Group("/librarian", cfg.AuthMiddleware.RequireLibrarian())
	{
		for _, kind := range []entities.CatalogKind{entities.KindUser, entities.KindBook, entities.KindSection, entities.KindAuthor} {
			lib.GET("/"+string(kind)+"s", librarian.List(kind))
			lib.GET("/"+string(kind)+"/:id", librarian.Detail(kind))
			lib.GET("/"+string(kind)+"/delete/:id", librarian.Delete(kind))
		}
		for _, kind := range []entities.CatalogKind{entities.KindAuthor, entities.KindSection, entities.KindUser} {
			lib.POST("/"+string(kind)+"/remove/book", librarian.RemoveBook(kind))
		}
		for _, kind := range []entities.CatalogKind{entities.KindBook, entities.KindSection, entities.KindAuthor} {
			lib.GET("/"+string(kind)+"/edit/:id", librarian.EditPage(kind))
			lib.POST("/"+string(kind)+"/edit/:id", librarian.Edit(kind))
		}
		lib.POST("/author/include", librarian.Include(entities.KindAuthor))
		lib.POST("/section/include", librarian.Include(entities.KindSection))
		lib.POST("/item/add", librarian.AddItem)

		lib.GET("/find", librarian.FindPage)
		lib.POST("/find", librarian.Find)

		lib.GET("/requests", librarian.Requests)
		lib.GET("/grant/:id", librarian.Grant)
		lib.GET("/reject/:id", librarian.Reject)
		lib.GET("/return/handle/:id", librarian.HandleReturn)

		if cfg.Auditor != nil {
			lib.GET("/audit", auditLog.Events)
		}
	}

	router.NoRoute(notFound(log))

	return router
}
