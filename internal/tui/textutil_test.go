package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pders01/casedesk/internal/api"
	"github.com/pders01/casedesk/internal/storage"
)

func TestTruncateEnd(t *testing.T) {
	assert.Equal(t, "", truncateEnd("abc", 0))
	assert.Equal(t, "abc", truncateEnd("abc", 3))
	assert.Equal(t, "ab…", truncateEnd("abcdef", 3))
	assert.Equal(t, "…", truncateEnd("abcdef", 1))
	assert.Equal(t, "Dela…", truncateEnd("Dela Cruz, José", 5))
}

func TestTruncateMiddle(t *testing.T) {
	assert.Equal(t, "abc", truncateMiddle("abc", 5))
	assert.Equal(t, "ab…ef", truncateMiddle("abcdef", 5))
	assert.Equal(t, "…", truncateMiddle("abcdef", 1))
	assert.Equal(t, "…f", truncateMiddle("abcdef", 2))

	url := "http://127.0.0.1:8000/storage/img/application/files/case-1.pdf"
	got := truncateMiddle(url, 30)
	assert.Len(t, []rune(got), 30)
	assert.True(t, strings.HasPrefix(got, "http://"))
	assert.True(t, strings.HasSuffix(got, "case-1.pdf"))
}

func TestSanitizeQuery(t *testing.T) {
	assert.Equal(t, "dela cruz", sanitizeQuery("  dela \t  cruz\n"))
	assert.Equal(t, "", sanitizeQuery("   "))
	assert.Len(t, []rune(sanitizeQuery(strings.Repeat("ñ", 300))), maxQueryLength)
}

func TestStatusMessages(t *testing.T) {
	assert.Equal(t, "1 application", MsgResultsCount(1))
	assert.Equal(t, "1,250 applications", MsgResultsCount(1250))
	assert.Equal(t, "15 applications • page 1/2 • more ↓", MsgFeedSummary(15, 1, 2, true))
	assert.Equal(t, "0 applications", MsgFeedSummary(0, 0, 0, false))
}

func TestDescribeErr(t *testing.T) {
	assert.Nil(t, wrapErr("load", nil))
	assert.Empty(t, describeErr(nil))
	assert.Equal(t, "Application not found", describeErr(wrapErr("load application", storage.ErrNotFound)))
	assert.Equal(t, "Not signed in or session expired", describeErr(fmt.Errorf("loading page 1: %w", api.ErrUnauthorized)))
	assert.Equal(t, "Server did not respond in time", describeErr(wrapErr("load", context.DeadlineExceeded)))
	assert.Equal(t, "Server error (500): Server Error", describeErr(&api.StatusError{Code: 500, Message: "Server Error"}))
	assert.Equal(t, "boom", describeErr(errors.New("boom")))
}
