package http

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/moneta/internal/entities"
)

func TestBorrowAndReturn(t *testing.T) {
	f := newFixture(t)
	reader, cookie := f.member(t, "reader1")
	bookID := f.book(t, "Dune")

	rr := f.post("/return", idForm("book_id", bookID), cookie, jsonHeader)
	assert.Equal(t, http.StatusConflict, rr.Code, "nothing to return yet")

	rr = f.post("/borrow", idForm("book_id", bookID), cookie)
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())
	assert.Equal(t, "/shelf", rr.Header().Get("Location"))

	state, err := f.lending.State(reader.ID, bookID)
	require.NoError(t, err)
	assert.Equal(t, entities.StateBorrowed, state)

	t.Run("book held by someone else", func(t *testing.T) {
		_, otherCookie := f.member(t, "reader2")
		rr := f.post("/borrow", idForm("book_id", bookID), otherCookie, jsonHeader)
		assert.Equal(t, http.StatusConflict, rr.Code)

		var body ErrorResponse
		decode(t, rr, &body)
		assert.Equal(t, "book_unavailable", body.Code)
	})

	rr = f.post("/return", idForm("book_id", bookID), cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/shelf", rr.Header().Get("Location"))

	state, err = f.lending.State(reader.ID, bookID)
	require.NoError(t, err)
	assert.Equal(t, entities.StateReturnedPending, state)
}

func TestBorrow_Quota(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.member(t, "reader1")

	for i := 0; i < 5; i++ {
		id := f.book(t, fmt.Sprintf("Book %d", i))
		rr := f.post("/borrow", idForm("book_id", id), cookie, jsonHeader)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	extra := f.book(t, "One too many")
	rr := f.post("/borrow", idForm("book_id", extra), cookie, jsonHeader)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var body ErrorResponse
	decode(t, rr, &body)
	assert.Equal(t, "quota_exceeded", body.Code)
}

func TestRequestAndCancel(t *testing.T) {
	f := newFixture(t)
	reader, cookie := f.member(t, "reader1")
	bookID := f.book(t, "Dune")

	rr := f.post("/request", idForm("book_id", bookID), cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, fmt.Sprintf("/book/%d", bookID), rr.Header().Get("Location"))

	rr = f.post("/request", idForm("book_id", bookID), cookie, jsonHeader)
	assert.Equal(t, http.StatusConflict, rr.Code)
	var body ErrorResponse
	decode(t, rr, &body)
	assert.Equal(t, "invalid_transition", body.Code)

	rr = f.post("/request/cancel", idForm("book_id", bookID), cookie, jsonHeader)
	require.Equal(t, http.StatusOK, rr.Code)

	state, err := f.lending.State(reader.ID, bookID)
	require.NoError(t, err)
	assert.Equal(t, entities.StateAvailable, state)

	t.Run("cancelling nothing is fine", func(t *testing.T) {
		rr := f.post("/request/cancel", idForm("book_id", bookID), cookie, jsonHeader)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing book", func(t *testing.T) {
		rr := f.post("/request", idForm("book_id", 999), cookie, jsonHeader)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("missing book_id", func(t *testing.T) {
		rr := f.post("/request", url.Values{}, cookie, jsonHeader)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRate(t *testing.T) {
	f := newFixture(t)
	reader, cookie := f.member(t, "reader1")
	bookID := f.book(t, "Dune")

	for _, score := range []string{"0", "6", "five"} {
		form := idForm("book_id", bookID)
		form.Set("score", score)
		rr := f.post("/rate", form, cookie, jsonHeader)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "score %q", score)
	}

	for _, score := range []string{"3", "5"} {
		form := idForm("book_id", bookID)
		form.Set("score", score)
		rr := f.post("/rate", form, cookie, jsonHeader)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	score, rated, err := f.lending.UserScore(reader.ID, bookID)
	require.NoError(t, err)
	assert.True(t, rated)
	assert.Equal(t, 5, score, "rating again replaces the score")
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.member(t, "reader1")
	_, otherCookie := f.member(t, "reader2")
	bookID := f.book(t, "Dune")

	form := idForm("book_id", bookID)
	form.Set("content", "   ")
	rr := f.post("/comment", form, cookie, jsonHeader)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var failed ErrorResponse
	decode(t, rr, &failed)
	assert.Equal(t, "validation_failed", failed.Code)
	assert.NotNil(t, failed.Details)

	form.Set("content", "The spice must flow.")
	rr = f.post("/comment", form, cookie, jsonHeader)
	require.Equal(t, http.StatusOK, rr.Code)

	var created struct {
		Data entities.Comment `json:"data"`
	}
	decode(t, rr, &created)
	require.NotZero(t, created.Data.ID)

	removePath := fmt.Sprintf("/comment/remove/book/%d", created.Data.ID)

	rr = f.get(removePath, jsonHeader, otherCookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "only the author may remove a comment")

	rr = f.get(removePath, nil, cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, fmt.Sprintf("/book/%d", bookID), rr.Header().Get("Location"))

	rr = f.get(removePath, jsonHeader, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFlashFollowsRedirect(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.member(t, "reader1")
	bookID := f.book(t, "Dune")

	rr := f.post("/borrow", idForm("book_id", bookID), cookie)
	require.Equal(t, http.StatusFound, rr.Code)

	rr = f.get("/shelf", jsonHeader, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Flash string `json:"flash"`
	}
	decode(t, rr, &body)
	assert.Equal(t, "Book borrowed.", body.Flash)

	rr = f.get("/shelf", jsonHeader, cookie)
	var again map[string]any
	decode(t, rr, &again)
	assert.NotContains(t, again, "flash", "a flash is shown once")
}
