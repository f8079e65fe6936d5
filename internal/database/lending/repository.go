// Package lending provides database operations for the per-reader lending
// records: requests, borrows, returns, reads, ratings and comments.
package lending

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/moneta/internal/entities"
)

// Repository handles lending database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new lending repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn against a repository bound to a single transaction.
func (r *Repository) Transaction(fn func(tx *Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// CountActive returns how many books the user currently has borrowed,
// requested or returned but not yet processed.
func (r *Repository) CountActive(userID uint) (int64, error) {
	var total int64
	for _, model := range []any{&entities.Borrow{}, &entities.Requested{}, &entities.Return{}} {
		var n int64
		if err := r.db.Model(model).Where("user_id = ?", userID).Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Borrows

func (r *Repository) CreateBorrow(borrow *entities.Borrow) error {
	return r.db.Omit(clause.Associations).Create(borrow).Error
}

// GetBorrowOfBook returns the active borrow of a book, whoever holds it.
func (r *Repository) GetBorrowOfBook(bookID uint) (*entities.Borrow, error) {
	var borrow entities.Borrow
	err := r.db.Where("book_id = ?", bookID).First(&borrow).Error
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

func (r *Repository) GetBorrow(userID, bookID uint) (*entities.Borrow, error) {
	var borrow entities.Borrow
	err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&borrow).Error
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

// DeleteBorrow reports whether a borrow row was removed.
func (r *Repository) DeleteBorrow(userID, bookID uint) (bool, error) {
	result := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).Delete(&entities.Borrow{})
	return result.RowsAffected > 0, result.Error
}

// BorrowsByUser lists the user's active borrows with their books, oldest first.
func (r *Repository) BorrowsByUser(userID uint) ([]entities.Borrow, error) {
	var borrows []entities.Borrow
	err := r.db.Preload("Book").Where("user_id = ?", userID).Order("borrowed_at").Find(&borrows).Error
	return borrows, err
}

// ActiveBorrows lists every active borrow with book and user.
func (r *Repository) ActiveBorrows() ([]entities.Borrow, error) {
	var borrows []entities.Borrow
	err := r.db.Preload("Book").Preload("User").Order("borrowed_at").Find(&borrows).Error
	return borrows, err
}

// OverdueBorrows lists the user's borrows that started before cutoff.
func (r *Repository) OverdueBorrows(userID uint, cutoff time.Time) ([]entities.Borrow, error) {
	var borrows []entities.Borrow
	err := r.db.Where("user_id = ? AND borrowed_at < ?", userID, cutoff).Order("borrowed_at").Find(&borrows).Error
	return borrows, err
}

// UsersWithOverdue returns the ids of users holding a borrow older than cutoff.
func (r *Repository) UsersWithOverdue(cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&entities.Borrow{}).
		Where("borrowed_at < ?", cutoff).
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// Requests

func (r *Repository) CreateRequest(req *entities.Requested) error {
	return r.db.Omit(clause.Associations).Create(req).Error
}

func (r *Repository) GetRequest(id uint) (*entities.Requested, error) {
	var req entities.Requested
	err := r.db.First(&req, id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) HasRequest(userID, bookID uint) (bool, error) {
	return r.exists(&entities.Requested{}, userID, bookID)
}

func (r *Repository) DeleteRequest(id uint) (bool, error) {
	result := r.db.Delete(&entities.Requested{}, id)
	return result.RowsAffected > 0, result.Error
}

// DeleteRequestsFor removes every request the user made for the book.
func (r *Repository) DeleteRequestsFor(userID, bookID uint) (int64, error) {
	result := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).Delete(&entities.Requested{})
	return result.RowsAffected, result.Error
}

func (r *Repository) RequestsByUser(userID uint) ([]entities.Requested, error) {
	var reqs []entities.Requested
	err := r.db.Preload("Book").Where("user_id = ?", userID).Order("requested_at").Find(&reqs).Error
	return reqs, err
}

// PendingRequests lists every open request with book and user, oldest first.
func (r *Repository) PendingRequests() ([]entities.Requested, error) {
	var reqs []entities.Requested
	err := r.db.Preload("Book").Preload("User").Order("requested_at").Order("id").Find(&reqs).Error
	return reqs, err
}

// Returns

// InsertReturn records a return unless one already exists for the same
// user and book. Reports whether a row was inserted.
func (r *Repository) InsertReturn(ret *entities.Return) (bool, error) {
	return insertIgnore(r.db, ret)
}

func (r *Repository) GetReturn(id uint) (*entities.Return, error) {
	var ret entities.Return
	err := r.db.First(&ret, id).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *Repository) HasReturn(userID, bookID uint) (bool, error) {
	return r.exists(&entities.Return{}, userID, bookID)
}

func (r *Repository) DeleteReturn(id uint) (bool, error) {
	result := r.db.Delete(&entities.Return{}, id)
	return result.RowsAffected > 0, result.Error
}

func (r *Repository) ReturnsByUser(userID uint) ([]entities.Return, error) {
	var rets []entities.Return
	err := r.db.Preload("Book").Where("user_id = ?", userID).Order("returned_at").Find(&rets).Error
	return rets, err
}

func (r *Repository) PendingReturns() ([]entities.Return, error) {
	var rets []entities.Return
	err := r.db.Preload("Book").Preload("User").Order("returned_at").Order("id").Find(&rets).Error
	return rets, err
}

// Reads

// InsertRead records a completed cycle. Reports false when it was already
// recorded.
func (r *Repository) InsertRead(read *entities.Read) (bool, error) {
	return insertIgnore(r.db, read)
}

func (r *Repository) HasRead(userID, bookID uint) (bool, error) {
	return r.exists(&entities.Read{}, userID, bookID)
}

func (r *Repository) ReadsByUser(userID uint) ([]entities.Read, error) {
	var reads []entities.Read
	err := r.db.Preload("Book").Where("user_id = ?", userID).Order("read_at").Find(&reads).Error
	return reads, err
}

// Ratings

// UpsertRating stores the score, overwriting any earlier one for the pair.
func (r *Repository) UpsertRating(rating *entities.Rating) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score"}),
	}).Create(rating).Error
}

func (r *Repository) GetRating(userID, bookID uint) (*entities.Rating, error) {
	var rating entities.Rating
	err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&rating).Error
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// Comments

func (r *Repository) CreateComment(comment *entities.Comment) error {
	return r.db.Omit(clause.Associations).Create(comment).Error
}

func (r *Repository) GetComment(id uint) (*entities.Comment, error) {
	var comment entities.Comment
	err := r.db.First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *Repository) DeleteComment(id uint) error {
	return r.db.Delete(&entities.Comment{}, id).Error
}

// Content

// BookExists reports whether a book with id exists.
func (r *Repository) BookExists(bookID uint) (bool, error) {
	var n int64
	err := r.db.Model(&entities.Book{}).Where("id = ?", bookID).Count(&n).Error
	return n > 0, err
}

func (r *Repository) GetContent(bookID uint) (*entities.Content, error) {
	var content entities.Content
	err := r.db.Where("book_id = ?", bookID).First(&content).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func (r *Repository) exists(model any, userID, bookID uint) (bool, error) {
	var n int64
	err := r.db.Model(model).Where("user_id = ? AND book_id = ?", userID, bookID).Count(&n).Error
	return n > 0, err
}

func insertIgnore(db *gorm.DB, row any) (bool, error) {
	result := db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
