// Package catalog provides database operations for books, authors and
// sections, including the written and category link tables.
package catalog

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/moneta/internal/entities"
)

// Repository handles catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn against a repository bound to a single transaction.
func (r *Repository) Transaction(fn func(tx *Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// RatingSummary is the aggregate of all scores given to one book.
type RatingSummary struct {
	BookID  uint
	Average float64
	Count   int64
}

func like(q string) string {
	return "%" + strings.ToLower(q) + "%"
}

// Books

func (r *Repository) ListBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Order("name").Find(&books).Error
	return books, err
}

func (r *Repository) SearchBooks(q string) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("LOWER(name) LIKE ?", like(q)).Order("name").Find(&books).Error
	return books, err
}

// GetBook loads a book with its authors, sections, content and comments.
func (r *Repository) GetBook(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.
		Preload("Authors", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Preload("Content").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Comments.User").
		First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) GetBookByName(name string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("name = ?", name).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// CreateBook inserts book together with its placeholder content row.
func (r *Repository) CreateBook(book *entities.Book, contentFilename string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(book).Error; err != nil {
			return err
		}
		return tx.Create(&entities.Content{BookID: book.ID, Filename: contentFilename}).Error
	})
}

// UpdateBook applies fields to a book. A "content" key updates the content
// filename instead of a book column.
func (r *Repository) UpdateBook(id uint, fields map[string]any) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		filename, hasContent := fields["content"]
		delete(fields, "content")

		if err := updateRow(tx, &entities.Book{}, id, fields); err != nil {
			return err
		}
		if !hasContent {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "book_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"filename"}),
		}).Create(&entities.Content{BookID: id, Filename: filename.(string)}).Error
	})
}

// DeleteBook removes the book after every row that references it.
func (r *Repository) DeleteBook(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		dependents := []any{
			&entities.Written{},
			&entities.Category{},
			&entities.Borrow{},
			&entities.Return{},
			&entities.Requested{},
			&entities.Comment{},
			&entities.Rating{},
			&entities.Read{},
			&entities.Content{},
		}
		for _, model := range dependents {
			if err := tx.Where("book_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("delete %T rows: %w", model, err)
			}
		}
		return deleteRow(tx, &entities.Book{}, id)
	})
}

// NewestBooks returns the most recently created books, newest first.
func (r *Repository) NewestBooks(limit int) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&books).Error
	return books, err
}

// BooksByID returns every book in id order.
func (r *Repository) BooksByID() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Order("id").Find(&books).Error
	return books, err
}

// RatingSummaries aggregates scores per rated book.
func (r *Repository) RatingSummaries() (map[uint]RatingSummary, error) {
	var rows []RatingSummary
	err := r.db.Model(&entities.Rating{}).
		Select("book_id, AVG(score) AS average, COUNT(*) AS count").
		Group("book_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uint]RatingSummary, len(rows))
	for _, row := range rows {
		out[row.BookID] = row
	}
	return out, nil
}

// RatingSummaryFor aggregates the scores of a single book.
func (r *Repository) RatingSummaryFor(bookID uint) (RatingSummary, error) {
	summary := RatingSummary{BookID: bookID}
	err := r.db.Model(&entities.Rating{}).
		Select("COALESCE(AVG(score), 0) AS average, COUNT(*) AS count").
		Where("book_id = ?", bookID).
		Scan(&summary).Error
	summary.BookID = bookID
	return summary, err
}

// FilterBooks matches book names containing book, restricted to books that
// have a related author matching author and a related section matching
// section. An empty author or section filter still requires at least one
// related row, so unlinked books never match.
func (r *Repository) FilterBooks(book, author, section string) ([]entities.Book, error) {
	query := r.db.Model(&entities.Book{})
	if book != "" {
		query = query.Where("LOWER(books.name) LIKE ?", like(book))
	}
	query = query.Where(`EXISTS (
		SELECT 1 FROM written JOIN authors ON authors.id = written.author_id
		WHERE written.book_id = books.id AND LOWER(authors.name) LIKE ?)`, like(author))
	query = query.Where(`EXISTS (
		SELECT 1 FROM category JOIN sections ON sections.id = category.section_id
		WHERE category.book_id = books.id AND LOWER(sections.name) LIKE ?)`, like(section))

	var books []entities.Book
	err := query.Order("books.name").Find(&books).Error
	return books, err
}

// Authors

func (r *Repository) ListAuthors() ([]entities.Author, error) {
	var authors []entities.Author
	err := r.db.Order("name").Find(&authors).Error
	return authors, err
}

func (r *Repository) SearchAuthors(q string) ([]entities.Author, error) {
	var authors []entities.Author
	err := r.db.Where("LOWER(name) LIKE ?", like(q)).Order("name").Find(&authors).Error
	return authors, err
}

func (r *Repository) GetAuthor(id uint) (*entities.Author, error) {
	var author entities.Author
	err := r.db.
		Preload("Books", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		First(&author, id).Error
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (r *Repository) GetAuthorByName(name string) (*entities.Author, error) {
	var author entities.Author
	err := r.db.Where("name = ?", name).First(&author).Error
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (r *Repository) CreateAuthor(author *entities.Author) error {
	return r.db.Omit(clause.Associations).Create(author).Error
}

func (r *Repository) UpdateAuthor(id uint, fields map[string]any) error {
	return updateRow(r.db, &entities.Author{}, id, fields)
}

func (r *Repository) DeleteAuthor(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("author_id = ?", id).Delete(&entities.Written{}).Error; err != nil {
			return fmt.Errorf("delete written rows: %w", err)
		}
		return deleteRow(tx, &entities.Author{}, id)
	})
}

// Sections

func (r *Repository) ListSections() ([]entities.Section, error) {
	var sections []entities.Section
	err := r.db.Order("name").Find(&sections).Error
	return sections, err
}

func (r *Repository) SearchSections(q string) ([]entities.Section, error) {
	var sections []entities.Section
	err := r.db.Where("LOWER(name) LIKE ?", like(q)).Order("name").Find(&sections).Error
	return sections, err
}

func (r *Repository) GetSection(id uint) (*entities.Section, error) {
	var section entities.Section
	err := r.db.
		Preload("Books", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		First(&section, id).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// GetSectionByName finds a section ignoring case, with its books.
func (r *Repository) GetSectionByName(name string) (*entities.Section, error) {
	var section entities.Section
	err := r.db.
		Preload("Books", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *Repository) CreateSection(section *entities.Section) error {
	return r.db.Omit(clause.Associations).Create(section).Error
}

func (r *Repository) UpdateSection(id uint, fields map[string]any) error {
	return updateRow(r.db, &entities.Section{}, id, fields)
}

func (r *Repository) DeleteSection(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("section_id = ?", id).Delete(&entities.Category{}).Error; err != nil {
			return fmt.Errorf("delete category rows: %w", err)
		}
		return deleteRow(tx, &entities.Section{}, id)
	})
}

// Links

// LinkAuthor records that authorID wrote bookID. Reports false when the link
// already existed.
func (r *Repository) LinkAuthor(bookID, authorID uint) (bool, error) {
	return insertIgnore(r.db, &entities.Written{BookID: bookID, AuthorID: authorID})
}

func (r *Repository) UnlinkAuthor(bookID, authorID uint) error {
	return r.db.Where("book_id = ? AND author_id = ?", bookID, authorID).Delete(&entities.Written{}).Error
}

// LinkSection files bookID under sectionID. Reports false when the link
// already existed.
func (r *Repository) LinkSection(bookID, sectionID uint) (bool, error) {
	return insertIgnore(r.db, &entities.Category{BookID: bookID, SectionID: sectionID})
}

func (r *Repository) UnlinkSection(bookID, sectionID uint) error {
	return r.db.Where("book_id = ? AND section_id = ?", bookID, sectionID).Delete(&entities.Category{}).Error
}

func insertIgnore(db *gorm.DB, row any) (bool, error) {
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func updateRow(db *gorm.DB, model any, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		var count int64
		if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}

	result := db.Model(model).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func deleteRow(db *gorm.DB, model any, id uint) error {
	result := db.Delete(model, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
