// Package catalog implements librarian management of books, authors,
// sections and reader accounts, plus the read-only browsing views.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/database"
	catalogdb "github.com/mrlokans/moneta/internal/database/catalog"
	"github.com/mrlokans/moneta/internal/database/users"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
	"github.com/mrlokans/moneta/internal/validation"
)

// TrendingSize is how many books each trending list holds.
const TrendingSize = 5

// clearSentinel is the literal that resets a description or bio to null.
const clearSentinel = "None"

// Auditor records catalog changes.
type Auditor interface {
	LogCatalog(userID uint, action string, kind entities.CatalogKind, entityID uint, description string, err error)
}

type Service struct {
	repo  *catalogdb.Repository
	users *users.Repository
	audit Auditor
	log   *zap.Logger
}

func NewService(repo *catalogdb.Repository, usersRepo *users.Repository, auditor Auditor, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:  repo,
		users: usersRepo,
		audit: auditor,
		log:   log.Named("catalog"),
	}
}

// Changes describes an edit. Zero values leave the field untouched.
type Changes struct {
	Name        string
	Description *string // description for books and sections, bio for authors
	Content     string  // books only
}

// RatedBook is a book with its mean score.
type RatedBook struct {
	Book    entities.Book `json:"book"`
	Average float64       `json:"average"`
	Count   int64         `json:"count"`
}

type Trending struct {
	Newest   []entities.Book `json:"newest"`
	TopRated []RatedBook     `json:"top_rated"`
}

// BookDetail is a book with its rating aggregate.
type BookDetail struct {
	Book    *entities.Book `json:"book"`
	Average float64        `json:"average"`
	Scores  int64          `json:"scores"`
}

// LinkRef identifies a link by id or name on either side.
type LinkRef struct {
	BookID     uint
	BookName   string
	TargetID   uint
	TargetName string
}

type itemInput struct {
	Name string `form:"name" validate:"required,max=255"`
}

// List returns every row of kind ordered by name. Users lists readers only.
func (s *Service) List(kind entities.CatalogKind) (any, error) {
	switch kind {
	case entities.KindBook:
		return s.repo.ListBooks()
	case entities.KindAuthor:
		return s.repo.ListAuthors()
	case entities.KindSection:
		return s.repo.ListSections()
	case entities.KindUser:
		return s.users.ListByRole(entities.UserRoleMember)
	}
	return nil, errs.ErrNotFound
}

// Search matches names containing q, ignoring case.
func (s *Service) Search(kind entities.CatalogKind, q string) (any, error) {
	q = strings.TrimSpace(q)
	switch kind {
	case entities.KindBook:
		return s.repo.SearchBooks(q)
	case entities.KindAuthor:
		return s.repo.SearchAuthors(q)
	case entities.KindSection:
		return s.repo.SearchSections(q)
	case entities.KindUser:
		return s.users.SearchByRole(entities.UserRoleMember, q)
	}
	return nil, errs.ErrNotFound
}

// Get loads a single row of kind. Librarian accounts are never returned.
func (s *Service) Get(kind entities.CatalogKind, id uint) (any, error) {
	var (
		v   any
		err error
	)
	switch kind {
	case entities.KindBook:
		v, err = s.repo.GetBook(id)
	case entities.KindAuthor:
		v, err = s.repo.GetAuthor(id)
	case entities.KindSection:
		v, err = s.repo.GetSection(id)
	case entities.KindUser:
		v, err = s.Member(id)
	default:
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return v, nil
}

func (s *Service) Book(id uint) (*entities.Book, error) {
	book, err := s.repo.GetBook(id)
	return book, mapErr(err)
}

func (s *Service) Author(id uint) (*entities.Author, error) {
	author, err := s.repo.GetAuthor(id)
	return author, mapErr(err)
}

func (s *Service) Section(id uint) (*entities.Section, error) {
	section, err := s.repo.GetSection(id)
	return section, mapErr(err)
}

// SectionByName finds a section ignoring case.
func (s *Service) SectionByName(name string) (*entities.Section, error) {
	section, err := s.repo.GetSectionByName(name)
	return section, mapErr(err)
}

// Member returns a reader account. Librarians are off limits.
func (s *Service) Member(id uint) (*entities.User, error) {
	user, err := s.users.GetUserByID(id)
	if err != nil {
		return nil, mapErr(err)
	}
	if user.IsLibrarian() {
		return nil, errs.ErrUnauthorized
	}
	return user, nil
}

// BookDetail loads a book with its mean score rounded to one decimal.
func (s *Service) BookDetail(id uint) (*BookDetail, error) {
	book, err := s.repo.GetBook(id)
	if err != nil {
		return nil, mapErr(err)
	}
	summary, err := s.repo.RatingSummaryFor(id)
	if err != nil {
		return nil, fmt.Errorf("rating summary: %w", err)
	}
	return &BookDetail{
		Book:    book,
		Average: math.Round(summary.Average*10) / 10,
		Scores:  summary.Count,
	}, nil
}

// Create adds a book, author or section with the given name. Books get a
// placeholder content row.
func (s *Service) Create(actorID uint, kind entities.CatalogKind, name string) (uint, error) {
	name = strings.TrimSpace(name)
	if err := validation.Struct(itemInput{Name: name}); err != nil {
		return 0, err
	}

	var (
		id  uint
		err error
	)
	switch kind {
	case entities.KindBook:
		book := &entities.Book{Name: name}
		err = s.repo.CreateBook(book, config.PlaceholderContent)
		id = book.ID
	case entities.KindAuthor:
		author := &entities.Author{Name: name}
		err = s.repo.CreateAuthor(author)
		id = author.ID
	case entities.KindSection:
		section := &entities.Section{Name: name}
		err = s.repo.CreateSection(section)
		id = section.ID
	default:
		return 0, errs.NewValidationError("type", "Unknown item type.")
	}

	err = mapErr(err)
	s.record(actorID, "create", kind, id, "Created "+string(kind)+": "+name, err)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update edits a book, author or section in place.
func (s *Service) Update(actorID uint, kind entities.CatalogKind, id uint, ch Changes) error {
	fields := map[string]any{}
	if name := strings.TrimSpace(ch.Name); name != "" {
		if err := validation.Struct(itemInput{Name: name}); err != nil {
			return err
		}
		fields["name"] = name
	}

	descColumn := "description"
	if kind == entities.KindAuthor {
		descColumn = "bio"
	}
	if ch.Description != nil {
		if *ch.Description == clearSentinel {
			fields[descColumn] = nil
		} else {
			fields[descColumn] = *ch.Description
		}
	}

	var err error
	switch kind {
	case entities.KindBook:
		if strings.TrimSpace(ch.Content) != "" {
			fields["content"] = ContentFilename(ch.Content)
		}
		err = s.repo.UpdateBook(id, fields)
	case entities.KindAuthor:
		err = s.repo.UpdateAuthor(id, fields)
	case entities.KindSection:
		err = s.repo.UpdateSection(id, fields)
	default:
		return errs.ErrNotFound
	}

	err = mapErr(err)
	s.record(actorID, "update", kind, id, fmt.Sprintf("Updated %s %d", kind, id), err)
	return err
}

// Delete removes a row of kind and everything that references it.
// Librarians can only delete reader accounts, never their own.
func (s *Service) Delete(actorID uint, kind entities.CatalogKind, id uint) error {
	var err error
	switch kind {
	case entities.KindBook:
		err = s.repo.DeleteBook(id)
	case entities.KindAuthor:
		err = s.repo.DeleteAuthor(id)
	case entities.KindSection:
		err = s.repo.DeleteSection(id)
	case entities.KindUser:
		if id == actorID {
			return errs.ErrUnauthorized
		}
		if _, err := s.Member(id); err != nil {
			return err
		}
		err = s.users.DeleteUser(id)
	default:
		return errs.ErrNotFound
	}

	err = mapErr(err)
	s.record(actorID, "delete", kind, id, fmt.Sprintf("Deleted %s %d", kind, id), err)
	return err
}

// LinkAuthor credits an author with a book. Reports duplicate when the link
// already existed.
func (s *Service) LinkAuthor(actorID uint, ref LinkRef) (duplicate bool, err error) {
	bookID, authorID, err := s.resolve(ref, func(name string) (uint, error) {
		a, err := s.repo.GetAuthorByName(name)
		if err != nil {
			return 0, err
		}
		return a.ID, nil
	}, func(id uint) error {
		_, err := s.repo.GetAuthor(id)
		return err
	})
	if err != nil {
		return false, err
	}

	inserted, err := s.repo.LinkAuthor(bookID, authorID)
	if err != nil {
		return false, fmt.Errorf("link author: %w", err)
	}
	if inserted {
		s.record(actorID, "link", entities.KindAuthor, authorID, fmt.Sprintf("Linked author %d to book %d", authorID, bookID), nil)
	}
	return !inserted, nil
}

// LinkSection files a book under a section. Reports duplicate when the link
// already existed.
func (s *Service) LinkSection(actorID uint, ref LinkRef) (duplicate bool, err error) {
	bookID, sectionID, err := s.resolve(ref, func(name string) (uint, error) {
		sec, err := s.repo.GetSectionByName(name)
		if err != nil {
			return 0, err
		}
		return sec.ID, nil
	}, func(id uint) error {
		_, err := s.repo.GetSection(id)
		return err
	})
	if err != nil {
		return false, err
	}

	inserted, err := s.repo.LinkSection(bookID, sectionID)
	if err != nil {
		return false, fmt.Errorf("link section: %w", err)
	}
	if inserted {
		s.record(actorID, "link", entities.KindSection, sectionID, fmt.Sprintf("Linked section %d to book %d", sectionID, bookID), nil)
	}
	return !inserted, nil
}

func (s *Service) UnlinkAuthor(actorID, bookID, authorID uint) error {
	if err := s.repo.UnlinkAuthor(bookID, authorID); err != nil {
		return fmt.Errorf("unlink author: %w", err)
	}
	s.record(actorID, "unlink", entities.KindAuthor, authorID, fmt.Sprintf("Unlinked author %d from book %d", authorID, bookID), nil)
	return nil
}

func (s *Service) UnlinkSection(actorID, bookID, sectionID uint) error {
	if err := s.repo.UnlinkSection(bookID, sectionID); err != nil {
		return fmt.Errorf("unlink section: %w", err)
	}
	s.record(actorID, "unlink", entities.KindSection, sectionID, fmt.Sprintf("Unlinked section %d from book %d", sectionID, bookID), nil)
	return nil
}

// resolve turns a LinkRef into ids, looking up the named side first.
func (s *Service) resolve(ref LinkRef, targetByName func(string) (uint, error), targetExists func(uint) error) (uint, uint, error) {
	bookID, targetID := ref.BookID, ref.TargetID

	if targetID == 0 {
		name := strings.TrimSpace(ref.TargetName)
		if name == "" {
			return 0, 0, errs.NewValidationError("name", "This field is required.")
		}
		id, err := targetByName(name)
		if err != nil {
			return 0, 0, mapErr(err)
		}
		targetID = id
	} else if err := targetExists(targetID); err != nil {
		return 0, 0, mapErr(err)
	}

	if bookID == 0 {
		name := strings.TrimSpace(ref.BookName)
		if name == "" {
			return 0, 0, errs.NewValidationError("name", "This field is required.")
		}
		book, err := s.repo.GetBookByName(name)
		if err != nil {
			return 0, 0, mapErr(err)
		}
		bookID = book.ID
	} else if _, err := s.repo.GetBook(bookID); err != nil {
		return 0, 0, mapErr(err)
	}

	return bookID, targetID, nil
}

// UserSearchBooks finds books whose name contains book and that have an
// author matching author and a section matching section.
func (s *Service) UserSearchBooks(book, author, section string) ([]entities.Book, error) {
	return s.repo.FilterBooks(strings.TrimSpace(book), strings.TrimSpace(author), strings.TrimSpace(section))
}

// Trending returns the newest books and the best rated ones.
func (s *Service) Trending() (*Trending, error) {
	newest, err := s.repo.NewestBooks(TrendingSize)
	if err != nil {
		return nil, fmt.Errorf("newest books: %w", err)
	}

	books, err := s.repo.BooksByID()
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	summaries, err := s.repo.RatingSummaries()
	if err != nil {
		return nil, fmt.Errorf("rating summaries: %w", err)
	}

	return &Trending{
		Newest:   newest,
		TopRated: topRated(books, summaries, TrendingSize),
	}, nil
}

// topRated keeps the n best averages seen while scanning books in order.
// A later book only displaces an earlier one with a strictly higher average,
// so ties keep scan order. Unrated books are skipped.
func topRated(books []entities.Book, summaries map[uint]catalogdb.RatingSummary, n int) []RatedBook {
	top := make([]RatedBook, 0, n+1)
	for _, book := range books {
		summary, ok := summaries[book.ID]
		if !ok || summary.Count == 0 {
			continue
		}

		pos := len(top)
		for i := range top {
			if summary.Average > top[i].Average {
				pos = i
				break
			}
		}
		if pos >= n {
			continue
		}

		top = append(top, RatedBook{})
		copy(top[pos+1:], top[pos:])
		top[pos] = RatedBook{Book: book, Average: summary.Average, Count: summary.Count}
		if len(top) > n {
			top = top[:n]
		}
	}
	return top
}

func (s *Service) record(actorID uint, action string, kind entities.CatalogKind, id uint, description string, err error) {
	if err != nil && !errors.Is(err, errs.ErrDuplicate) {
		s.log.Warn("catalog change failed", zap.String("action", action), zap.String("kind", string(kind)), zap.Uint("id", id), zap.Error(err))
	}
	if s.audit != nil {
		s.audit.LogCatalog(actorID, action, kind, id, description, err)
	}
}

// mapErr translates persistence errors into the shared taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if database.IsNotFound(err) {
		return errs.ErrNotFound
	}
	if _, ok := database.UniqueViolation(err); ok {
		return errs.ErrDuplicateName
	}
	return err
}
