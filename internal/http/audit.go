package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/audit"
	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/entities"
)

const (
	auditPageSize    = 25
	auditMaxPageSize = 100
)

// AuditController lets librarians read the audit trail.
type AuditController struct {
	controller
	auditor *audit.Service
}

func NewAuditController(auditor *audit.Service, pages *Pages, sessions *auth.SessionManager, log *zap.Logger) *AuditController {
	return &AuditController{
		controller: controller{pages: pages, sessions: sessions, log: log.Named("audit")},
		auditor:    auditor,
	}
}

// Events lists audit events, newest first.
// GET /librarian/audit?type=lending&user=3&page=2&limit=50
func (ac *AuditController) Events(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(auditPageSize)))
	if limit < 1 || limit > auditMaxPageSize {
		limit = auditPageSize
	}

	var userID uint
	if raw := c.Query("user"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid user")
			return
		}
		userID = uint(id)
	}

	eventType := entities.AuditEventType(c.Query("type"))
	offset := (page - 1) * limit

	var (
		events []entities.AuditEvent
		total  int64
		err    error
	)
	if eventType != "" {
		events, total, err = ac.auditor.GetEventsByType(eventType, userID, limit, offset)
	} else {
		events, total, err = ac.auditor.GetEvents(userID, limit, offset)
	}
	if err != nil {
		ac.fail(c, err, "audit events")
		return
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	ac.render(c, http.StatusOK, "audit.html", gin.H{
		"events":       events,
		"page":         page,
		"limit":        limit,
		"total_pages":  totalPages,
		"total_events": total,
		"event_type":   eventType,
		"event_types": []entities.AuditEventType{
			entities.AuditEventAuth,
			entities.AuditEventCatalog,
			entities.AuditEventLending,
			entities.AuditEventHousekeeping,
		},
	})
}
