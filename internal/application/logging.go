package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/momentum-planner/internal/calendarsync"
	"github.com/example/momentum-planner/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, calendarsync.ErrAccessDenied):
		return "calendar_access_denied"
	case errors.Is(err, calendarsync.ErrNotConfigured):
		return "calendar_not_configured"
	case errors.Is(err, calendarsync.ErrNoDueDate):
		return "no_due_date"
	case errors.Is(err, calendarsync.ErrResourceNotFound):
		return "calendar_resource_missing"
	}

	var transient *calendarsync.TransientError
	if errors.As(err, &transient) {
		return "calendar_transient"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
