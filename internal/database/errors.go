package database

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Constraint describes a uniqueness violation reported by SQLite.
type Constraint struct {
	Table   string
	Columns []string
}

// Has reports whether column is part of the violated constraint.
func (c Constraint) Has(column string) bool {
	for _, col := range c.Columns {
		if col == column {
			return true
		}
	}
	return false
}

// UniqueViolation inspects err for a UNIQUE or PRIMARY KEY constraint failure
// and reports which table and columns were involved.
func UniqueViolation(err error) (Constraint, bool) {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return Constraint{}, false
	}
	if serr.ExtendedCode != sqlite3.ErrConstraintUnique && serr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return Constraint{}, false
	}
	return parseConstraint(serr.Error()), true
}

// parseConstraint reads "UNIQUE constraint failed: users.email" style messages.
func parseConstraint(msg string) Constraint {
	var c Constraint
	_, cols, found := strings.Cut(msg, "failed: ")
	if !found {
		return c
	}
	for _, qualified := range strings.Split(cols, ",") {
		table, column, ok := strings.Cut(strings.TrimSpace(qualified), ".")
		if !ok {
			continue
		}
		c.Table = table
		c.Columns = append(c.Columns, column)
	}
	return c
}

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
