package http

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
	"github.com/mrlokans/moneta/internal/lending"
)

func TestLibrarianPages_Guards(t *testing.T) {
	f := newFixture(t)
	_, memberCookie := f.member(t, "reader1")

	rr := f.get("/librarian/books", nil, memberCookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.get("/librarian/books", nil, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?next=%2Flibrarian%2Fbooks", rr.Header().Get("Location"))

	rr = f.post("/librarian/item/add", url.Values{"kind": {"book"}, "user_input": {"Dune"}}, memberCookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLibrarian_Lists(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.librarian(t, "keeper1")
	f.member(t, "reader1")
	f.book(t, "Dune")

	rr := f.get("/librarian/users", jsonHeader, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var users struct {
		Users []entities.User `json:"users"`
	}
	decode(t, rr, &users)
	require.Len(t, users.Users, 1, "librarians are not listed")
	assert.Equal(t, "reader1", users.Users[0].Username)

	rr = f.get("/librarian/books", jsonHeader, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Dune")

	for _, path := range []string{"/librarian/sections", "/librarian/authors", "/librarian/requests", "/librarian/find"} {
		rr := f.get(path, jsonHeader, cookie)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestLibrarian_AddItem(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.librarian(t, "keeper1")

	for _, kind := range []string{"book", "author", "section"} {
		rr := f.post("/librarian/item/add", url.Values{"kind": {kind}, "user_input": {"Item " + kind}}, cookie)
		require.Equal(t, http.StatusFound, rr.Code, kind)
		assert.Equal(t, "/librarian/"+kind+"s", rr.Header().Get("Location"))
	}

	rr := f.post("/librarian/item/add", url.Values{"kind": {"book"}, "user_input": {"Item book"}}, cookie, jsonHeader)
	assert.Equal(t, http.StatusConflict, rr.Code)
	var body ErrorResponse
	decode(t, rr, &body)
	assert.Equal(t, "duplicate", body.Code)

	rr = f.post("/librarian/item/add", url.Values{"kind": {"user"}, "user_input": {"someone"}}, cookie, jsonHeader)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.post("/librarian/item/add", url.Values{"kind": {"book"}, "user_input": {""}}, cookie, jsonHeader)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLibrarian_Detail(t *testing.T) {
	f := newFixture(t)
	librarian, cookie := f.librarian(t, "keeper1")
	reader, _ := f.member(t, "reader1")
	bookID := f.book(t, "Dune")
	require.NoError(t, f.lending.Borrow(reader.ID, bookID))

	rr := f.get(fmt.Sprintf("/librarian/book/%d", bookID), jsonHeader, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Dune")

	rr = f.get(fmt.Sprintf("/librarian/user/%d", reader.ID), jsonHeader, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		User     entities.User    `json:"user"`
		Activity lending.Activity `json:"activity"`
	}
	decode(t, rr, &body)
	assert.Equal(t, "reader1", body.User.Username)
	require.Len(t, body.Activity.Borrowed, 1)
	assert.Equal(t, bookID, body.Activity.Borrowed[0].BookID)

	rr = f.get(fmt.Sprintf("/librarian/user/%d", librarian.ID), jsonHeader, cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "librarian accounts are not browsable")

	rr = f.get("/librarian/section/77", jsonHeader, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLibrarian_Find(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.librarian(t, "keeper1")
	mustCreate(t, f, entities.KindAuthor, "J. R. R. Tolkien")
	mustCreate(t, f, entities.KindAuthor, "Terry Pratchett")
	f.book(t, "Mort")

	rr := f.post("/librarian/find", url.Values{"obj_type": {"Author"}, "obj_name": {"TOLK"}}, cookie, jsonHeader)
	require.Equal(t, http.StatusOK, rr.Code)
	var authors struct {
		Authors []entities.Author `json:"authors"`
	}
	decode(t, rr, &authors)
	require.Len(t, authors.Authors, 1)
	assert.Equal(t, "J. R. R. Tolkien", authors.Authors[0].Name)

	rr = f.post("/librarian/find", url.Values{"obj_name": {"mor"}}, cookie, jsonHeader)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Mort", "books are searched by default")

	rr = f.post("/librarian/find", url.Values{"obj_type": {"Planet"}, "obj_name": {"x"}}, cookie, jsonHeader)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.post("/librarian/find", url.Values{"obj_type": {"Book"}}, cookie, jsonHeader)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLibrarian_IncludeAndRemove(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.librarian(t, "keeper1")
	bookID := f.book(t, "Good Omens")
	authorID, err := f.catalog.Create(0, entities.KindAuthor, "Neil Gaiman")
	require.NoError(t, err)
	sectionID, err := f.catalog.Create(0, entities.KindSection, "Comedy")
	require.NoError(t, err)

	t.Run("author by name from the book page", func(t *testing.T) {
		form := url.Values{"author_name": {"Neil Gaiman"}, "book_id": {fmt.Sprint(bookID)}}
		rr := f.post("/librarian/author/include", form, cookie)
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, fmt.Sprintf("/librarian/book/%d", bookID), rr.Header().Get("Location"))

		rr = f.post("/librarian/author/include", form, cookie, jsonHeader)
		require.Equal(t, http.StatusOK, rr.Code)
		var body SuccessResponse
		decode(t, rr, &body)
		assert.Equal(t, "Already linked.", body.Message)
	})

	t.Run("section by book name from the section page", func(t *testing.T) {
		form := url.Values{"section_id": {fmt.Sprint(sectionID)}, "book_name": {"Good Omens"}}
		rr := f.post("/librarian/section/include", form, cookie)
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, fmt.Sprintf("/librarian/section/%d", sectionID), rr.Header().Get("Location"))

		book, err := f.catalog.Book(bookID)
		require.NoError(t, err)
		require.Len(t, book.Sections, 1)
		assert.Equal(t, "Comedy", book.Sections[0].Name)
	})

	t.Run("unknown names", func(t *testing.T) {
		form := url.Values{"author_name": {"Nobody"}, "book_id": {fmt.Sprint(bookID)}}
		rr := f.post("/librarian/author/include", form, cookie, jsonHeader)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		form = url.Values{"section_id": {fmt.Sprint(sectionID)}, "book_name": {"No Such Book"}}
		rr = f.post("/librarian/section/include", form, cookie, jsonHeader)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("remove with origin returns to the author", func(t *testing.T) {
		form := url.Values{"author_id": {fmt.Sprint(authorID)}, "book_id": {fmt.Sprint(bookID)}, "origin": {"author"}}
		rr := f.post("/librarian/author/remove/book", form, cookie)
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, fmt.Sprintf("/librarian/author/%d", authorID), rr.Header().Get("Location"))

		book, err := f.catalog.Book(bookID)
		require.NoError(t, err)
		assert.Empty(t, book.Authors)
	})

	t.Run("remove without origin returns to the book", func(t *testing.T) {
		form := url.Values{"section_id": {fmt.Sprint(sectionID)}, "book_id": {fmt.Sprint(bookID)}}
		rr := f.post("/librarian/section/remove/book", form, cookie)
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, fmt.Sprintf("/librarian/book/%d", bookID), rr.Header().Get("Location"))

		rr = f.post("/librarian/section/remove/book", form, cookie, jsonHeader)
		assert.Equal(t, http.StatusOK, rr.Code, "removing a missing link is not an error")
	})
}

func TestLibrarian_RemoveBookFromUser(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.librarian(t, "keeper1")
	reader, _ := f.member(t, "reader1")
	bookID := f.book(t, "Dune")
	require.NoError(t, f.lending.Borrow(reader.ID, bookID))

	form := url.Values{"user_id": {fmt.Sprint(reader.ID)}, "book_id": {fmt.Sprint(bookID)}, "origin": {"user"}}
	rr := f.post("/librarian/user/remove/book", form, cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, fmt.Sprintf("/librarian/user/%d", reader.ID), rr.Header().Get("Location"))

	state, err := f.lending.State(reader.ID, bookID)
	require.NoError(t, err)
	assert.Equal(t, entities.StateAvailable, state)

	rr = f.post("/librarian/user/remove/book", form, cookie, jsonHeader)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLibrarian_Edit(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.librarian(t, "keeper1")
	bookID := f.book(t, "Dun")
	f.book(t, "Emma")
	authorID, err := f.catalog.Create(0, entities.KindAuthor, "Frank Herbert")
	require.NoError(t, err)

	rr := f.get(fmt.Sprintf("/librarian/book/edit/%d", bookID), jsonHeader, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"default"`)

	form := url.Values{"name": {"Dune"}, "description": {"Desert planet."}, "file_path": {"books/dune.pdf"}}
	rr = f.post(fmt.Sprintf("/librarian/book/edit/%d", bookID), form, cookie)
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())
	assert.Equal(t, fmt.Sprintf("/librarian/book/%d", bookID), rr.Header().Get("Location"))

	book, err := f.catalog.Book(bookID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Name)
	require.NotNil(t, book.Description)
	assert.Equal(t, "Desert planet.", *book.Description)
	require.NotNil(t, book.Content)
	assert.Equal(t, "dune.pdf", book.Content.Filename)

	t.Run("None clears the description", func(t *testing.T) {
		rr := f.post(fmt.Sprintf("/librarian/book/edit/%d", bookID), url.Values{"description": {"None"}}, cookie)
		require.Equal(t, http.StatusFound, rr.Code)

		book, err := f.catalog.Book(bookID)
		require.NoError(t, err)
		assert.Nil(t, book.Description)
		assert.Equal(t, "Dune", book.Name, "blank name leaves it alone")
	})

	t.Run("author bio", func(t *testing.T) {
		rr := f.post(fmt.Sprintf("/librarian/author/edit/%d", authorID), url.Values{"description": {"Wrote Dune."}}, cookie)
		require.Equal(t, http.StatusFound, rr.Code)

		author, err := f.catalog.Author(authorID)
		require.NoError(t, err)
		require.NotNil(t, author.Bio)
		assert.Equal(t, "Wrote Dune.", *author.Bio)
	})

	t.Run("rename onto an existing name", func(t *testing.T) {
		rr := f.post(fmt.Sprintf("/librarian/book/edit/%d", bookID), url.Values{"name": {"Emma"}}, cookie, jsonHeader)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("missing row", func(t *testing.T) {
		rr := f.post("/librarian/section/edit/42", url.Values{"name": {"Poetry"}}, cookie, jsonHeader)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestLibrarian_Delete(t *testing.T) {
	f := newFixture(t)
	librarian, cookie := f.librarian(t, "keeper1")
	reader, _ := f.member(t, "reader1")
	bookID := f.book(t, "Dune")
	require.NoError(t, f.lending.Borrow(reader.ID, bookID))
	_, err := f.lending.Comment(reader.ID, bookID, "great")
	require.NoError(t, err)

	rr := f.get(fmt.Sprintf("/librarian/book/delete/%d", bookID), nil, cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/librarian/books", rr.Header().Get("Location"))

	_, err = f.catalog.Book(bookID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	rr = f.get(fmt.Sprintf("/librarian/book/delete/%d", bookID), jsonHeader, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.get(fmt.Sprintf("/librarian/user/delete/%d", librarian.ID), jsonHeader, cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "librarians cannot delete themselves")

	rr = f.get(fmt.Sprintf("/librarian/user/delete/%d", reader.ID), nil, cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/librarian/users", rr.Header().Get("Location"))
}

func TestLibrarian_RequestQueue(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.librarian(t, "keeper1")
	reader, _ := f.member(t, "reader1")
	granted := f.book(t, "Granted")
	rejected := f.book(t, "Rejected")

	require.NoError(t, f.lending.Request(reader.ID, granted))
	require.NoError(t, f.lending.Request(reader.ID, rejected))

	rr := f.get("/librarian/requests", jsonHeader, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var queue lending.Queue
	decode(t, rr, &queue)
	require.Len(t, queue.Requests, 2)

	ids := map[uint]uint{}
	for _, r := range queue.Requests {
		ids[r.BookID] = r.ID
	}

	rr = f.get(fmt.Sprintf("/librarian/grant/%d", ids[granted]), nil, cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/librarian/requests", rr.Header().Get("Location"))

	rr = f.get(fmt.Sprintf("/librarian/grant/%d", ids[granted]), jsonHeader, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code, "a request is granted once")

	rr = f.get(fmt.Sprintf("/librarian/reject/%d", ids[rejected]), nil, cookie)
	require.Equal(t, http.StatusFound, rr.Code)

	state, err := f.lending.State(reader.ID, granted)
	require.NoError(t, err)
	assert.Equal(t, entities.StateBorrowed, state)
	state, err = f.lending.State(reader.ID, rejected)
	require.NoError(t, err)
	assert.Equal(t, entities.StateAvailable, state)

	require.NoError(t, f.lending.Return(reader.ID, granted))
	q, err := f.lending.Queue()
	require.NoError(t, err)
	require.Len(t, q.Returns, 1)

	rr = f.get(fmt.Sprintf("/librarian/return/handle/%d", q.Returns[0].ID), nil, cookie)
	require.Equal(t, http.StatusFound, rr.Code)

	state, err = f.lending.State(reader.ID, granted)
	require.NoError(t, err)
	assert.Equal(t, entities.StateRead, state)
}
