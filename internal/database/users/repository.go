// Package users provides database operations for accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetUserByEmail(email)
package users

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/moneta/internal/entities"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts user. Uniqueness violations are returned unwrapped so
// callers can inspect the constraint.
func (r *Repository) CreateUser(user *entities.User) error {
	return r.db.Create(user).Error
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetUserByEmail(email string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByRole returns users holding role, ordered by username.
func (r *Repository) ListByRole(role entities.UserRole) ([]entities.User, error) {
	var users []entities.User
	err := r.db.Where("role = ?", role).Order("username").Find(&users).Error
	return users, err
}

// SearchByRole matches usernames containing q, case-insensitively.
func (r *Repository) SearchByRole(role entities.UserRole, q string) ([]entities.User, error) {
	var users []entities.User
	err := r.db.Where("role = ? AND LOWER(username) LIKE ?", role, "%"+strings.ToLower(q)+"%").
		Order("username").
		Find(&users).Error
	return users, err
}

// DeleteUser removes the user and every row that references it.
// Returns gorm.ErrRecordNotFound if no such user exists.
func (r *Repository) DeleteUser(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		dependents := []any{
			&entities.Borrow{},
			&entities.Return{},
			&entities.Requested{},
			&entities.Comment{},
			&entities.Rating{},
			&entities.Read{},
		}
		for _, model := range dependents {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("delete %T rows: %w", model, err)
			}
		}

		result := tx.Delete(&entities.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
