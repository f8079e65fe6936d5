package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/catalog"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/lending"
)

// BrowseController serves the reader-facing catalog pages.
type BrowseController struct {
	controller
	catalog *catalog.Service
	lending *lending.Service
}

func NewBrowseController(catalogService *catalog.Service, lendingService *lending.Service, pages *Pages, sessions *auth.SessionManager, log *zap.Logger) *BrowseController {
	return &BrowseController{
		controller: controller{pages: pages, sessions: sessions, log: log.Named("browse")},
		catalog:    catalogService,
		lending:    lendingService,
	}
}

// BookView is a book as one reader sees it.
type BookView struct {
	Book      *entities.Book        `json:"book"`
	Authors   []entities.Author     `json:"authors"`
	Sections  []entities.Section    `json:"sections"`
	AvgScore  float64               `json:"avg_score"`
	NumScores int64                 `json:"num_scores"`
	YourScore *int                  `json:"your_score"`
	Owned     bool                  `json:"owned"`
	State     entities.LendingState `json:"state"`
}

// Home greets visitors, shows readers what they hold and librarians what
// is waiting for them.
func (bc *BrowseController) Home(c *gin.Context) {
	user, ok := auth.CurrentPrincipal(c)
	if !ok {
		bc.render(c, http.StatusOK, "home.html", gin.H{"message": "Welcome to moneta."})
		return
	}

	if user.IsLibrarian() {
		queue, err := bc.lending.Queue()
		if err != nil {
			bc.fail(c, err, "home queue")
			return
		}
		bc.render(c, http.StatusOK, "home.html", gin.H{
			"username": user.Username,
			"queue":    queue,
		})
		return
	}

	activity, err := bc.lending.Activity(user.ID)
	if err != nil {
		bc.fail(c, err, "home activity")
		return
	}
	trending, err := bc.catalog.Trending()
	if err != nil {
		bc.fail(c, err, "home trending")
		return
	}
	bc.render(c, http.StatusOK, "home.html", gin.H{
		"username": user.Username,
		"activity": activity,
		"trending": trending,
	})
}

func (bc *BrowseController) Sections(c *gin.Context) {
	sections, err := bc.catalog.List(entities.KindSection)
	if err != nil {
		bc.fail(c, err, "list sections")
		return
	}
	bc.render(c, http.StatusOK, "sections.html", gin.H{"sections": sections})
}

// Section lists a section's books. The name matches regardless of case.
func (bc *BrowseController) Section(c *gin.Context) {
	section, err := bc.catalog.SectionByName(c.Param("name"))
	if err != nil {
		bc.fail(c, err, "section")
		return
	}
	bc.render(c, http.StatusOK, "genre_list.html", gin.H{
		"genre": section.Name,
		"books": section.Books,
	})
}

func (bc *BrowseController) Trending(c *gin.Context) {
	trending, err := bc.catalog.Trending()
	if err != nil {
		bc.fail(c, err, "trending")
		return
	}
	bc.render(c, http.StatusOK, "trending.html", gin.H{
		"new":       trending.Newest,
		"top_rated": trending.TopRated,
	})
}

func (bc *BrowseController) Book(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	view, err := bc.bookView(id, principal(c).ID)
	if err != nil {
		bc.fail(c, err, "book view")
		return
	}
	bc.render(c, http.StatusOK, "book.html", gin.H{"view": view})
}

func (bc *BrowseController) bookView(bookID, userID uint) (*BookView, error) {
	detail, err := bc.catalog.BookDetail(bookID)
	if err != nil {
		return nil, err
	}
	state, err := bc.lending.State(userID, bookID)
	if err != nil {
		return nil, err
	}

	view := &BookView{
		Book:      detail.Book,
		Authors:   detail.Book.Authors,
		Sections:  detail.Book.Sections,
		AvgScore:  detail.Average,
		NumScores: detail.Scores,
		Owned:     state == entities.StateBorrowed,
		State:     state,
	}

	score, rated, err := bc.lending.UserScore(userID, bookID)
	if err != nil {
		return nil, err
	}
	if rated {
		view.YourScore = &score
	}
	return view, nil
}

func (bc *BrowseController) Author(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	author, err := bc.catalog.Author(id)
	if err != nil {
		bc.fail(c, err, "author")
		return
	}
	bc.render(c, http.StatusOK, "author.html", gin.H{
		"author": author,
		"books":  author.Books,
	})
}

// Shelf lists the books the reader currently holds.
func (bc *BrowseController) Shelf(c *gin.Context) {
	borrows, err := bc.lending.Shelf(principal(c).ID)
	if err != nil {
		bc.fail(c, err, "shelf")
		return
	}

	books := make([]*entities.Book, 0, len(borrows))
	for _, b := range borrows {
		if b.Book != nil {
			books = append(books, b.Book)
		}
	}
	bc.render(c, http.StatusOK, "shelf.html", gin.H{
		"books":   books,
		"borrows": borrows,
	})
}

func (bc *BrowseController) ExplorePage(c *gin.Context) {
	bc.render(c, http.StatusOK, "explore.html", nil)
}

type exploreForm struct {
	BookName    string `form:"book_name"`
	AuthorName  string `form:"author_name"`
	SectionName string `form:"section_name"`
}

// Explore searches books by name, author and section together.
func (bc *BrowseController) Explore(c *gin.Context) {
	var form exploreForm
	if err := c.ShouldBind(&form); err != nil {
		respondBadRequest(c, "invalid search form")
		return
	}

	books, err := bc.catalog.UserSearchBooks(form.BookName, form.AuthorName, form.SectionName)
	if err != nil {
		bc.fail(c, err, "explore")
		return
	}

	data := gin.H{
		"results": books,
		"query": gin.H{
			"book_name":    strings.TrimSpace(form.BookName),
			"author_name":  strings.TrimSpace(form.AuthorName),
			"section_name": strings.TrimSpace(form.SectionName),
		},
	}
	if len(books) == 0 {
		data["message"] = "No results."
	}
	bc.render(c, http.StatusOK, "results.html", data)
}
