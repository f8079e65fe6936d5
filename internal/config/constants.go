package config

import "time"

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./moneta.db"

	// DefaultMaxActiveItems caps borrowed + requested + returned-pending books per user
	DefaultMaxActiveItems = 5

	DefaultBorrowPeriod = 7 * 24 * time.Hour

	// PlaceholderContent is the content filename assigned to newly created books
	PlaceholderContent = "placeholder.pdf"
)
