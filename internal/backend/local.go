// Package backend serves applications straight from the local store, for
// offline use and for the bundled API server.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pders01/casedesk/internal/debuglog"
	"github.com/pders01/casedesk/internal/feed"
	"github.com/pders01/casedesk/internal/search"
	"github.com/pders01/casedesk/internal/storage"
	"github.com/pders01/casedesk/internal/validation"
)

// DefaultPerPage matches the page size of the case API.
const DefaultPerPage = 15

// ErrPageOutOfRange is returned by FetchPage for pages past the last one.
var ErrPageOutOfRange = errors.New("page out of range")

// Listing is one page of applications with the totals needed to render a
// paginator.
type Listing struct {
	Items       []storage.Application
	CurrentPage int
	LastPage    int
	PerPage     int
	Total       int
}

// Local answers list, get, create, update and delete requests from a Store
// and a Searcher.
type Local struct {
	store    *storage.Store
	searcher search.Searcher
	perPage  int
}

// NewLocal creates a backend. A nil searcher uses substring search and a
// non-positive perPage uses DefaultPerPage.
func NewLocal(store *storage.Store, searcher search.Searcher, perPage int) *Local {
	if searcher == nil {
		searcher = search.NewEngine(store)
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Local{store: store, searcher: searcher, perPage: perPage}
}

func (l *Local) PerPage() int { return l.perPage }

// LoadApplications lists live applications matching query in name order.
// Like the case API, a page past the end yields no items rather than an
// error; pages below one are treated as the first.
func (l *Local) LoadApplications(ctx context.Context, query string, page int) (Listing, error) {
	if err := ctx.Err(); err != nil {
		return Listing{}, err
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * l.perPage
	query = strings.TrimSpace(query)

	var (
		items []storage.Application
		total int
	)
	if query == "" {
		all, err := l.store.ListApplications()
		if err != nil {
			return Listing{}, fmt.Errorf("listing applications: %w", err)
		}
		total = len(all)
		for i := offset; i < total && i < offset+l.perPage; i++ {
			items = append(items, *all[i])
		}
	} else {
		res, err := l.searcher.Search(query, offset, l.perPage)
		if err != nil {
			return Listing{}, fmt.Errorf("searching %q: %w", query, err)
		}
		apps, err := l.store.GetApplications(res.IDs)
		if err != nil {
			return Listing{}, fmt.Errorf("loading matches: %w", err)
		}
		total = res.Total
		for _, a := range apps {
			items = append(items, *a)
		}
	}

	if items == nil {
		items = []storage.Application{}
	}
	return Listing{
		Items:       items,
		CurrentPage: page,
		LastPage:    lastPage(total, l.perPage),
		PerPage:     l.perPage,
		Total:       total,
	}, nil
}

// FetchPage implements feed.Fetcher.
func (l *Local) FetchPage(ctx context.Context, query string, page int) (feed.Page[storage.Application], error) {
	if page < 1 {
		return feed.Page[storage.Application]{}, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	listing, err := l.LoadApplications(ctx, query, page)
	if err != nil {
		return feed.Page[storage.Application]{}, err
	}
	if page > listing.LastPage {
		return feed.Page[storage.Application]{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, listing.LastPage)
	}

	debuglog.WithFields(map[string]interface{}{
		"query": query,
		"page":  page,
		"items": len(listing.Items),
		"total": listing.Total,
	}).Debugf("local page")

	return feed.Page[storage.Application]{
		Items:    listing.Items,
		Number:   listing.CurrentPage,
		LastPage: listing.LastPage,
	}, nil
}

// Count returns the number of live applications.
func (l *Local) Count() (int, error) {
	return l.store.Count()
}

func (l *Local) GetApplication(ctx context.Context, id uint64) (*storage.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.store.GetApplication(id)
}

// DestroyApplication soft-deletes the application and drops it from the
// search index.
func (l *Local) DestroyApplication(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.store.DestroyApplication(id); err != nil {
		return err
	}
	if dl, ok := l.searcher.(search.DeleteListener); ok {
		dl.OnApplicationDeleted(id)
	}
	debuglog.Infof("application %d deleted", id)
	return nil
}

// StoreApplication creates a new application from app. The ID, deletion
// flag and timestamps of app are ignored.
func (l *Local) StoreApplication(ctx context.Context, app *storage.Application) (*storage.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created := *app
	created.ID = 0
	created.IsDeleted = false
	created.CreatedAt = time.Time{}
	if err := validation.Struct(&created); err != nil {
		return nil, err
	}
	if err := l.SaveApplications([]*storage.Application{&created}); err != nil {
		return nil, err
	}
	debuglog.Infof("application %d created", created.ID)
	return &created, nil
}

// UpdateApplication replaces the fields of the live application id and
// reindexes it.
func (l *Local) UpdateApplication(ctx context.Context, id uint64, app *storage.Application) (*storage.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	updated := *app
	updated.ID = id
	if err := validation.Struct(&updated); err != nil {
		return nil, err
	}
	if err := l.store.UpdateApplication(&updated); err != nil {
		return nil, err
	}
	l.notifySaved([]*storage.Application{&updated})
	debuglog.Infof("application %d updated", id)
	return &updated, nil
}

// SaveApplications stores apps and indexes them.
func (l *Local) SaveApplications(apps []*storage.Application) error {
	if err := l.store.SaveApplications(apps); err != nil {
		return err
	}
	l.notifySaved(apps)
	return nil
}

// ImportFixtures loads a fixture file into the store and the index.
func (l *Local) ImportFixtures(path string) (int, error) {
	apps, err := l.store.ImportFixtures(path)
	if err != nil {
		return 0, err
	}
	l.notifySaved(apps)
	return len(apps), nil
}

func (l *Local) notifySaved(apps []*storage.Application) {
	if ul, ok := l.searcher.(search.UpdateListener); ok {
		ul.OnApplicationsSaved(apps)
	}
}

func lastPage(total, perPage int) int {
	if total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
