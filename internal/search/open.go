package search

import (
	"github.com/pders01/casedesk/internal/debuglog"
	"github.com/pders01/casedesk/internal/storage"
)

// Open returns the bleve engine for indexPath, or the substring Engine when
// indexPath is empty or the index cannot be opened. The returned close
// function releases the index.
func Open(store *storage.Store, indexPath string) (Searcher, func() error) {
	noop := func() error { return nil }
	if indexPath == "" {
		return NewEngine(store), noop
	}

	be, err := NewBleveEngine(store, indexPath)
	if err != nil {
		debuglog.Warnf("search index unavailable, using substring search: %v", err)
		return NewEngine(store), noop
	}
	if n, err := be.DocCount(); err == nil {
		debuglog.Infof("search index %s holds %d applications", indexPath, n)
	}
	return be, be.Close
}
