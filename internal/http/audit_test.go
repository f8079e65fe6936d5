package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/moneta/internal/entities"
)

type auditPage struct {
	Events      []entities.AuditEvent `json:"events"`
	Page        int                   `json:"page"`
	TotalPages  int                   `json:"total_pages"`
	TotalEvents int64                 `json:"total_events"`
}

func TestAudit_Events(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.librarian(t, "keeper1")
	reader, readerCookie := f.member(t, "reader1")
	dune := f.book(t, "Dune")
	emma := f.book(t, "Emma")

	require.NoError(t, f.lending.Borrow(reader.ID, dune))
	require.NoError(t, f.lending.Borrow(reader.ID, emma))
	f.auditor.Wait()
	require.NoError(t, f.lending.Return(reader.ID, dune))
	f.auditor.Wait()

	t.Run("members are turned away", func(t *testing.T) {
		rr := f.get("/librarian/audit", jsonHeader, readerCookie)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("filters by type", func(t *testing.T) {
		rr := f.get("/librarian/audit?type=lending", jsonHeader, cookie)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var body auditPage
		decode(t, rr, &body)
		assert.Equal(t, int64(3), body.TotalEvents)
		require.Len(t, body.Events, 3)
		assert.Equal(t, "return", body.Events[0].Action, "newest first")
		for _, e := range body.Events {
			assert.Equal(t, entities.AuditEventLending, e.EventType)
			assert.Equal(t, reader.ID, e.UserID)
		}
	})

	t.Run("filters by user and pages", func(t *testing.T) {
		rr := f.get(fmt.Sprintf("/librarian/audit?user=%d&limit=2&page=2", reader.ID), jsonHeader, cookie)
		require.Equal(t, http.StatusOK, rr.Code)

		var body auditPage
		decode(t, rr, &body)
		assert.Equal(t, 2, body.Page)
		assert.Equal(t, int(body.TotalEvents+1)/2, body.TotalPages)
		assert.NotEmpty(t, body.Events)
		for _, e := range body.Events {
			assert.Equal(t, reader.ID, e.UserID)
		}
	})

	t.Run("bad user id", func(t *testing.T) {
		rr := f.get("/librarian/audit?user=abc", jsonHeader, cookie)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
