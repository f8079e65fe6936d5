package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // field errors for validation failures
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message  string `json:"message"`
	Data     any    `json:"data,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// --- Error Response Helpers ---

func respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "bad_request"})
}

// serviceError describes how a domain error is shown to the client.
type serviceError struct {
	status  int
	code    string
	message string
}

// classify maps the error taxonomy onto HTTP statuses.
func classify(err error) serviceError {
	if _, ok := errs.IsValidation(err); ok {
		return serviceError{http.StatusUnprocessableEntity, "validation_failed", "Please correct the highlighted fields."}
	}

	switch {
	case errors.Is(err, errs.ErrDuplicateName):
		return serviceError{http.StatusConflict, "duplicate", "An item with that name already exists."}
	case errors.Is(err, errs.ErrDuplicate):
		return serviceError{http.StatusConflict, "duplicate", "That record already exists."}
	case errors.Is(err, errs.ErrNotFound):
		return serviceError{http.StatusNotFound, "not_found", "non-existent resource"}
	case errors.Is(err, errs.ErrUnauthorized):
		return serviceError{http.StatusUnauthorized, "unauthorized", "Unauthorised access."}
	case errors.Is(err, errs.ErrQuotaExceeded):
		return serviceError{http.StatusConflict, "quota_exceeded", "Too many books. Return one before taking another."}
	case errors.Is(err, errs.ErrInvalidTransition):
		return serviceError{http.StatusConflict, "invalid_transition", "That action is not possible for this book right now."}
	case errors.Is(err, errs.ErrBookUnavailable):
		return serviceError{http.StatusConflict, "book_unavailable", "This book is currently with another reader."}
	}
	return serviceError{http.StatusInternalServerError, "internal", "internal server error"}
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseFormID reads a required id from the submitted form.
func parseFormID(c *gin.Context, field string) (uint, bool) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		respondBadRequest(c, field+" is required")
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+field)
		return 0, false
	}
	return uint(id), true
}

// principal returns the signed-in user. Routes behind a role guard always
// have one.
func principal(c *gin.Context) *entities.User {
	user, _ := auth.CurrentPrincipal(c)
	return user
}

// controller holds what every page controller needs to answer a request.
type controller struct {
	pages    *Pages
	sessions *auth.SessionManager
	log      *zap.Logger
}

// render shows a page, or its data as JSON for API clients.
func (ctl *controller) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if ctl.sessions != nil {
		if msg := ctl.sessions.PopFlash(c.Request); msg != "" {
			data["flash"] = msg
		}
	}
	ctl.pages.Render(c, status, name, data)
}

// done finishes a successful write. Browsers follow the redirect, API
// clients get the message.
func (ctl *controller) done(c *gin.Context, redirect, message string, data any) {
	if auth.IsAPIRequest(c) {
		c.JSON(http.StatusOK, SuccessResponse{Message: message, Data: data, Redirect: redirect})
		return
	}
	if ctl.sessions != nil && message != "" {
		ctl.sessions.Flash(c.Request, message)
	}
	c.Redirect(http.StatusFound, redirect)
}

// fail reports a service error with the status its kind maps to.
func (ctl *controller) fail(c *gin.Context, err error, op string) {
	se := classify(err)

	resp := ErrorResponse{Error: se.message, Code: se.code}
	if ve, ok := errs.IsValidation(err); ok {
		resp.Details = ve.Fields
	}

	if se.status == http.StatusInternalServerError {
		ctl.log.Error("request failed",
			zap.String("op", op),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	} else {
		ctl.log.Debug("request rejected",
			zap.String("op", op),
			zap.String("code", se.code),
			zap.Error(err),
		)
	}

	if auth.IsAPIRequest(c) || !ctl.pages.Enabled() {
		c.AbortWithStatusJSON(se.status, resp)
		return
	}

	page := "error.html"
	if se.status == http.StatusNotFound {
		page = "non_existent.html"
	}
	ctl.pages.Render(c, se.status, page, gin.H{
		"error":   resp.Error,
		"code":    resp.Code,
		"details": resp.Details,
	})
	c.Abort()
}
