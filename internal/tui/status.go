package tui

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Canonical short status messages used across the app.
const (
	MsgRefreshing         = "Refreshing…"
	MsgLoading            = "Loading applications…"
	MsgLoadingMore        = "Loading more…"
	MsgSearching          = "Searching…"
	MsgSaving             = "Saving…"
	MsgDeleting           = "Deleting…"
	MsgLoadingApplication = "Loading application…"
	MsgOpeningAttachment  = "Opening attachment…"
	MsgNoResults          = "No applications found"
	MsgApplicationDeleted = "Application deleted"
	MsgApplicationFiled   = "Application filed"
	MsgApplicationUpdated = "Application updated"
	MsgNoSelection        = "No application selected"
)

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 application"
	}
	return fmt.Sprintf("%s applications", humanize.Comma(int64(n)))
}

// MsgFeedSummary describes how much of the result set is on screen.
func MsgFeedSummary(loaded, currentPage, lastPage int, hasMore bool) string {
	base := MsgResultsCount(loaded)
	if lastPage > 0 {
		base += fmt.Sprintf(" • page %d/%d", currentPage, lastPage)
	}
	if hasMore {
		base += " • more ↓"
	}
	return base
}

func MsgOpened(url string) string {
	return "Opened " + truncateMiddle(url, 48)
}
