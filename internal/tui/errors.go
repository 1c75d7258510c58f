package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pders01/casedesk/internal/api"
	"github.com/pders01/casedesk/internal/feed"
	"github.com/pders01/casedesk/internal/storage"
	"github.com/pders01/casedesk/internal/validation"
)

// wrapErr formats an error with a contextual prefix.
func wrapErr(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// describeErr turns backend errors into a line fit for the status bar.
func describeErr(err error) string {
	var status *api.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, api.ErrUnauthorized):
		return "Not signed in or session expired"
	case errors.Is(err, storage.ErrNotFound):
		return "Application not found"
	case errors.Is(err, validation.ErrInvalidRecord):
		if _, fields, ok := strings.Cut(err.Error(), validation.ErrInvalidRecord.Error()+": "); ok {
			return "Please fix " + fields
		}
		return "Application is incomplete"
	case errors.Is(err, context.DeadlineExceeded):
		return "Server did not respond in time"
	case errors.Is(err, feed.ErrMalformedPage):
		return "Server sent an unexpected response"
	case errors.As(err, &status):
		return fmt.Sprintf("Server error (%d): %s", status.Code, status.Message)
	default:
		return err.Error()
	}
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, api.ErrUnauthorized) ||
		errors.Is(err, validation.ErrInvalidRecord) ||
		errors.Is(err, context.Canceled)
}
