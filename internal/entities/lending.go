package entities

import "time"

// LendingState is where a (user, book) pair sits in the lending workflow.
type LendingState string

const (
	StateAvailable       LendingState = "available"
	StateRequested       LendingState = "requested"
	StateBorrowed        LendingState = "borrowed"
	StateReturnedPending LendingState = "returned_pending"
	StateRead            LendingState = "read"
)

// Borrow is an active checkout. A book has at most one.
type Borrow struct {
	BookID     uint      `gorm:"primaryKey;autoIncrement:false;uniqueIndex:idx_borrow_book" json:"book_id"`
	UserID     uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	BorrowedAt time.Time `gorm:"not null" json:"borrowed_at"`
	Book       *Book     `json:"book,omitempty"`
	User       *User     `json:"user,omitempty"`
}

func (Borrow) TableName() string {
	return "borrow"
}

type Requested struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BookID      uint      `gorm:"index;not null" json:"book_id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	RequestedAt time.Time `gorm:"not null" json:"requested_at"`
	Book        *Book     `json:"book,omitempty"`
	User        *User     `json:"user,omitempty"`
}

func (Requested) TableName() string {
	return "requested"
}

// Return is a checked-in book waiting for a librarian to file it as read.
type Return struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BookID     uint      `gorm:"uniqueIndex:idx_return_book_user;not null" json:"book_id"`
	UserID     uint      `gorm:"uniqueIndex:idx_return_book_user;not null" json:"user_id"`
	BorrowedAt time.Time `json:"borrowed_at"`
	ReturnedAt time.Time `gorm:"not null" json:"returned_at"`
	Book       *Book     `json:"book,omitempty"`
	User       *User     `json:"user,omitempty"`
}

func (Return) TableName() string {
	return "returns"
}

type Read struct {
	BookID uint      `gorm:"primaryKey;autoIncrement:false" json:"book_id"`
	UserID uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ReadAt time.Time `json:"read_at"`
	Book   *Book     `json:"book,omitempty"`
}

func (Read) TableName() string {
	return "read"
}

type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BookID    uint      `gorm:"index;not null" json:"book_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	User      *User     `json:"user,omitempty"`
}

type Rating struct {
	BookID uint `gorm:"primaryKey;autoIncrement:false" json:"book_id"`
	UserID uint `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Score  int  `gorm:"not null" json:"score"`
}

const (
	MinScore = 1
	MaxScore = 5
)
