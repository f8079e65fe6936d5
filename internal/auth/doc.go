// Package auth signs readers and librarians in and out and guards routes by
// role.
//
// Sessions live in the SQLite sessions table through scs. The Middleware
// resolves the session into a *entities.User stored on the gin context;
// RequireMember and RequireLibrarian gate route groups:
//
//	mw := auth.NewMiddleware(service, sessions, log)
//	router.Use(sessions.SessionLoadSave(), mw.Handler())
//	librarian := router.Group("/librarian", mw.RequireLibrarian())
//
// Anonymous browsers are redirected to /login?next=<path>. JSON clients and
// principals with the wrong role get 401.
package auth
