package datastore

import (
	"context"
	"strings"

	"github.com/qdlab/nanolume/internal/errors"
)

// dbError creates a categorised database error with the failing operation
// as context.
func dbError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

// classifyError maps an error onto the error_type label used in metrics.
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.IsValidation(err):
		return "validation"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate entry"):
		return "duplicate"
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "deadlock"):
		return "locked"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "database"
	}
}
