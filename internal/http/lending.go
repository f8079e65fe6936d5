package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/errs"
	"github.com/mrlokans/moneta/internal/lending"
)

// LendingController handles a reader's borrow, request, return, rating and
// comment actions. Every action takes the book from the book_id form field.
type LendingController struct {
	controller
	lending *lending.Service
}

func NewLendingController(lendingService *lending.Service, pages *Pages, sessions *auth.SessionManager, log *zap.Logger) *LendingController {
	return &LendingController{
		controller: controller{pages: pages, sessions: sessions, log: log.Named("lending")},
		lending:    lendingService,
	}
}

func bookPath(id uint) string {
	return "/book/" + strconv.FormatUint(uint64(id), 10)
}

func (lc *LendingController) Borrow(c *gin.Context) {
	bookID, ok := parseFormID(c, "book_id")
	if !ok {
		return
	}
	if err := lc.lending.Borrow(principal(c).ID, bookID); err != nil {
		lc.fail(c, err, "borrow")
		return
	}
	lc.done(c, "/shelf", "Book borrowed.", nil)
}

func (lc *LendingController) Request(c *gin.Context) {
	bookID, ok := parseFormID(c, "book_id")
	if !ok {
		return
	}
	if err := lc.lending.Request(principal(c).ID, bookID); err != nil {
		lc.fail(c, err, "request")
		return
	}
	lc.done(c, bookPath(bookID), "Request sent to the librarians.", nil)
}

func (lc *LendingController) CancelRequest(c *gin.Context) {
	bookID, ok := parseFormID(c, "book_id")
	if !ok {
		return
	}
	if err := lc.lending.CancelRequest(principal(c).ID, bookID); err != nil {
		lc.fail(c, err, "cancel request")
		return
	}
	lc.done(c, bookPath(bookID), "Request cancelled.", nil)
}

func (lc *LendingController) Return(c *gin.Context) {
	bookID, ok := parseFormID(c, "book_id")
	if !ok {
		return
	}
	if err := lc.lending.Return(principal(c).ID, bookID); err != nil {
		lc.fail(c, err, "return")
		return
	}
	lc.done(c, "/shelf", "Book returned.", nil)
}

func (lc *LendingController) Rate(c *gin.Context) {
	bookID, ok := parseFormID(c, "book_id")
	if !ok {
		return
	}
	score, err := strconv.Atoi(strings.TrimSpace(c.PostForm("score")))
	if err != nil {
		lc.fail(c, errs.NewValidationError("score", "Score must be a number between 1 and 5."), "rate")
		return
	}
	if err := lc.lending.Rate(principal(c).ID, bookID, score); err != nil {
		lc.fail(c, err, "rate")
		return
	}
	lc.done(c, bookPath(bookID), "Rating saved.", gin.H{"score": score})
}

func (lc *LendingController) Comment(c *gin.Context) {
	bookID, ok := parseFormID(c, "book_id")
	if !ok {
		return
	}
	comment, err := lc.lending.Comment(principal(c).ID, bookID, c.PostForm("content"))
	if err != nil {
		lc.fail(c, err, "comment")
		return
	}
	lc.done(c, bookPath(bookID), "Comment posted.", comment)
}

// RemoveComment deletes one of the reader's own comments.
func (lc *LendingController) RemoveComment(c *gin.Context) {
	commentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	comment, err := lc.lending.RemoveComment(commentID, principal(c).ID)
	if err != nil {
		lc.fail(c, err, "remove comment")
		return
	}
	lc.done(c, bookPath(comment.BookID), "Comment removed.", nil)
}

// Read opens a book the reader currently holds.
func (lc *LendingController) Read(c *gin.Context) {
	bookID, ok := parseFormID(c, "book_id")
	if !ok {
		return
	}
	content, err := lc.lending.ReadContent(principal(c).ID, bookID)
	if err != nil {
		lc.fail(c, err, "read")
		return
	}
	lc.render(c, http.StatusOK, "read.html", gin.H{"content": content})
}
