// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── errors.go        # SQLite constraint inspection
//	├── users/           # Accounts and librarian user management
//	├── catalog/         # Books, authors, sections and their links
//	├── lending/         # Borrow, request, return, read, rating and comment rows
//	└── audit/           # Audit trail
//
// Each sub-package provides a Repository type built with NewRepository(db *gorm.DB).
// Multi-step mutations run through Repository.Transaction so that every
// statement shares one SQLite transaction.
//
// # Deletion
//
// Foreign keys are enforced but never cascade. Deleting a book, author,
// section or user removes the dependent join and fact rows explicitly, in
// order, before the row itself.
package database
