package entities

import "time"

type UserRole string

const (
	UserRoleLibrarian UserRole = "librarian"
	UserRoleMember    UserRole = "member"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleLibrarian || r == UserRoleMember
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:20;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         UserRole  `gorm:"size:20;not null;default:member;index" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsLibrarian() bool {
	return u != nil && u.Role == UserRoleLibrarian
}
