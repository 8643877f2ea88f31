// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"inkwell/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// isUniqueConstraintError reports whether err is a unique-index violation on
// PostgreSQL or SQLite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// wrapDBError converts a raw database error into the application taxonomy.
// AppErrors pass through unchanged.
func wrapDBError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	return models.NewPersistenceError(message, err)
}

// page applies limit/offset; a non-positive limit means no limit.
func page(db *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return db.Limit(limit).Offset(offset)
}
