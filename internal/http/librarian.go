package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/catalog"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
	"github.com/mrlokans/moneta/internal/lending"
)

// LibrarianController serves the librarian console: catalog management and
// the request and return queues.
type LibrarianController struct {
	controller
	catalog *catalog.Service
	lending *lending.Service
}

func NewLibrarianController(catalogService *catalog.Service, lendingService *lending.Service, pages *Pages, sessions *auth.SessionManager, log *zap.Logger) *LibrarianController {
	return &LibrarianController{
		controller: controller{pages: pages, sessions: sessions, log: log.Named("librarian")},
		catalog:    catalogService,
		lending:    lendingService,
	}
}

func listPath(kind entities.CatalogKind) string {
	return "/librarian/" + string(kind) + "s"
}

func detailPath(kind entities.CatalogKind, id uint) string {
	return fmt.Sprintf("/librarian/%s/%d", kind, id)
}

// List shows every row of kind.
func (lc *LibrarianController) List(kind entities.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := lc.catalog.List(kind)
		if err != nil {
			lc.fail(c, err, "list "+string(kind))
			return
		}
		lc.render(c, http.StatusOK, "all_"+string(kind)+"s.html", gin.H{string(kind) + "s": items})
	}
}

// Requests shows pending requests and returns, plus who holds what.
func (lc *LibrarianController) Requests(c *gin.Context) {
	queue, err := lc.lending.Queue()
	if err != nil {
		lc.fail(c, err, "queue")
		return
	}
	lc.render(c, http.StatusOK, "requests.html", gin.H{
		"requests": queue.Requests,
		"returns":  queue.Returns,
		"borrows":  queue.Borrows,
	})
}

// Detail shows one row of kind. Reader detail includes their lending activity.
func (lc *LibrarianController) Detail(kind entities.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		item, err := lc.catalog.Get(kind, id)
		if err != nil {
			lc.fail(c, err, "get "+string(kind))
			return
		}

		data := gin.H{string(kind): item}
		if kind == entities.KindUser {
			activity, err := lc.lending.Activity(id)
			if err != nil {
				lc.fail(c, err, "user activity")
				return
			}
			data["activity"] = activity
		}
		lc.render(c, http.StatusOK, "object_"+string(kind)+".html", data)
	}
}

func (lc *LibrarianController) FindPage(c *gin.Context) {
	lc.render(c, http.StatusOK, "search.html", gin.H{
		"types": []string{"Book", "Author", "Section", "User"},
	})
}

type findForm struct {
	Name string `form:"obj_name"`
	Type string `form:"obj_type"`
}

// Find searches one kind of item by name.
func (lc *LibrarianController) Find(c *gin.Context) {
	var form findForm
	if err := c.ShouldBind(&form); err != nil {
		respondBadRequest(c, "invalid search form")
		return
	}

	name := strings.TrimSpace(form.Name)
	if name == "" {
		lc.fail(c, errs.NewValidationError("obj_name", "This field is required."), "find")
		return
	}
	kind := entities.KindBook
	if form.Type != "" {
		kind = entities.CatalogKind(strings.ToLower(strings.TrimSpace(form.Type)))
	}
	if !kind.Valid() {
		lc.fail(c, errs.NewValidationError("obj_type", "Not a valid choice."), "find")
		return
	}

	results, err := lc.catalog.Search(kind, name)
	if err != nil {
		lc.fail(c, err, "find")
		return
	}
	lc.render(c, http.StatusOK, "all_"+string(kind)+"s.html", gin.H{
		string(kind) + "s": results,
		"query":            name,
	})
}

// Include links a book with an author or section. The form either names
// the author or section for a book id, or names the book for an author or
// section id. The redirect goes back to the page the form was on.
func (lc *LibrarianController) Include(kind entities.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		nameField := string(kind) + "_name"
		idField := string(kind) + "_id"

		var ref catalog.LinkRef
		fromBook := false
		if name, ok := c.GetPostForm(nameField); ok {
			bookID, ok := parseFormID(c, "book_id")
			if !ok {
				return
			}
			ref = catalog.LinkRef{BookID: bookID, TargetName: name}
			fromBook = true
		} else {
			targetID, ok := parseFormID(c, idField)
			if !ok {
				return
			}
			ref = catalog.LinkRef{BookName: c.PostForm("book_name"), TargetID: targetID}
		}

		link := lc.catalog.LinkAuthor
		if kind == entities.KindSection {
			link = lc.catalog.LinkSection
		}
		duplicate, err := link(principal(c).ID, ref)
		if err != nil {
			lc.fail(c, err, "include "+string(kind))
			return
		}

		message := "Linked."
		if duplicate {
			message = "Already linked."
		}
		if fromBook {
			lc.done(c, detailPath(entities.KindBook, ref.BookID), message, gin.H{"duplicate": duplicate})
			return
		}
		lc.done(c, detailPath(kind, ref.TargetID), message, gin.H{"duplicate": duplicate})
	}
}

// RemoveBook detaches a book from an author, a section or a reader's shelf.
// A non-empty origin field sends the librarian back to the author, section
// or reader page rather than the book.
func (lc *LibrarianController) RemoveBook(kind entities.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, ok := parseFormID(c, string(kind)+"_id")
		if !ok {
			return
		}
		bookID, ok := parseFormID(c, "book_id")
		if !ok {
			return
		}

		actorID := principal(c).ID
		var err error
		switch kind {
		case entities.KindAuthor:
			err = lc.catalog.UnlinkAuthor(actorID, bookID, targetID)
		case entities.KindSection:
			err = lc.catalog.UnlinkSection(actorID, bookID, targetID)
		case entities.KindUser:
			err = lc.lending.RevokeBorrow(targetID, bookID)
		}
		if err != nil {
			lc.fail(c, err, "remove book from "+string(kind))
			return
		}

		redirect := detailPath(entities.KindBook, bookID)
		if c.PostForm("origin") != "" {
			redirect = detailPath(kind, targetID)
		}
		lc.done(c, redirect, "Removed.", nil)
	}
}

// AddItem creates a book, author or section from just a name.
func (lc *LibrarianController) AddItem(c *gin.Context) {
	kind := entities.CatalogKind(strings.ToLower(strings.TrimSpace(c.PostForm("kind"))))
	if kind == entities.KindUser || !kind.Valid() {
		lc.fail(c, errs.NewValidationError("kind", "Unknown item type."), "add item")
		return
	}

	id, err := lc.catalog.Create(principal(c).ID, kind, c.PostForm("user_input"))
	if err != nil {
		lc.fail(c, err, "add "+string(kind))
		return
	}
	lc.done(c, listPath(kind), "Created.", gin.H{"id": id})
}

func (lc *LibrarianController) EditPage(kind entities.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		item, err := lc.catalog.Get(kind, id)
		if err != nil {
			lc.fail(c, err, "edit "+string(kind))
			return
		}
		lc.render(c, http.StatusOK, "edit_"+string(kind)+".html", gin.H{"default": item})
	}
}

// Edit applies the edit form. Blank fields are left alone and a
// description of "None" clears it.
func (lc *LibrarianController) Edit(kind entities.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		ch := catalog.Changes{Name: c.PostForm("name")}
		for _, field := range []string{"description", "bio"} {
			if v, ok := c.GetPostForm(field); ok && strings.TrimSpace(v) != "" {
				v = strings.TrimSpace(v)
				ch.Description = &v
				break
			}
		}
		if kind == entities.KindBook {
			ch.Content = strings.TrimSpace(c.PostForm("file_path"))
			if ch.Content == "" {
				ch.Content = strings.TrimSpace(c.PostForm("content"))
			}
		}

		if err := lc.catalog.Update(principal(c).ID, kind, id, ch); err != nil {
			lc.fail(c, err, "edit "+string(kind))
			return
		}
		lc.done(c, detailPath(kind, id), "Saved.", nil)
	}
}

func (lc *LibrarianController) Delete(kind entities.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		if err := lc.catalog.Delete(principal(c).ID, kind, id); err != nil {
			lc.fail(c, err, "delete "+string(kind))
			return
		}
		lc.done(c, listPath(kind), "Deleted.", nil)
	}
}

func (lc *LibrarianController) Grant(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	req, err := lc.lending.Grant(id)
	if err != nil {
		lc.fail(c, err, "grant")
		return
	}
	lc.done(c, "/librarian/requests", "Request granted.", req)
}

func (lc *LibrarianController) Reject(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	req, err := lc.lending.Reject(id)
	if err != nil {
		lc.fail(c, err, "reject")
		return
	}
	lc.done(c, "/librarian/requests", "Request rejected.", req)
}

// HandleReturn files a pending return as read.
func (lc *LibrarianController) HandleReturn(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ret, err := lc.lending.HandleReturn(id)
	if err != nil {
		lc.fail(c, err, "handle return")
		return
	}
	lc.done(c, "/librarian/requests", "Return handled.", ret)
}
