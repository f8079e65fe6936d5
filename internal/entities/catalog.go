package entities

import "time"

type Book struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	Authors  []Author  `gorm:"many2many:written;" json:"authors,omitempty"`
	Sections []Section `gorm:"many2many:category;" json:"sections,omitempty"`
	Content  *Content  `gorm:"foreignKey:BookID" json:"content,omitempty"`
	Ratings  []Rating  `json:"-"`
	Comments []Comment `json:"comments,omitempty"`
}

type Author struct {
	ID    uint    `gorm:"primaryKey" json:"id"`
	Name  string  `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Bio   *string `gorm:"type:text" json:"bio"`
	Books []Book  `gorm:"many2many:written;" json:"books,omitempty"`
}

type Section struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Books       []Book    `gorm:"many2many:category;" json:"books,omitempty"`
}

// Written links a book to one of its authors.
type Written struct {
	BookID   uint `gorm:"primaryKey;autoIncrement:false"`
	AuthorID uint `gorm:"primaryKey;autoIncrement:false"`
}

func (Written) TableName() string {
	return "written"
}

// Category links a book to a section.
type Category struct {
	BookID    uint `gorm:"primaryKey;autoIncrement:false"`
	SectionID uint `gorm:"primaryKey;autoIncrement:false"`
}

func (Category) TableName() string {
	return "category"
}

// Content points at the readable file of a book.
type Content struct {
	BookID   uint   `gorm:"primaryKey;autoIncrement:false" json:"book_id"`
	Filename string `gorm:"size:512;not null" json:"filename"`
}

// CatalogKind names the catalog entities librarians manage.
type CatalogKind string

const (
	KindBook    CatalogKind = "book"
	KindAuthor  CatalogKind = "author"
	KindSection CatalogKind = "section"
	KindUser    CatalogKind = "user"
)

func (k CatalogKind) Valid() bool {
	switch k {
	case KindBook, KindAuthor, KindSection, KindUser:
		return true
	}
	return false
}
