package search

import "github.com/pders01/casedesk/internal/storage"

// Result is one window of matching application ids in list order, plus the
// number of matches overall.
type Result struct {
	IDs   []uint64
	Total int
}

// Searcher finds live applications matching a non-empty query.
type Searcher interface {
	Search(query string, offset, limit int) (Result, error)
}

// UpdateListener can be implemented by search engines that maintain
// an external index and want to be notified about data changes.
type UpdateListener interface {
	OnApplicationsSaved(apps []*storage.Application)
}

// DeleteListener can be implemented to get notified when an application is
// soft-deleted.
type DeleteListener interface {
	OnApplicationDeleted(id uint64)
}

// DebugStatser provides lightweight stats for visibility/debugging.
// Implemented by engines that can report index doc counts, etc.
type DebugStatser interface {
	DocCount() (int, error)
}
