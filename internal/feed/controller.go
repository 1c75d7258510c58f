package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pders01/casedesk/internal/debuglog"
)

// State is a read-only view of a feed. Snapshots never share the Items
// backing array with the controller.
type State[T any] struct {
	Query          string
	CommittedQuery string
	Items          []T
	CurrentPage    int
	LastPage       int
	Loading        bool
	HasMore        bool
	Generation     uint64
	Err            error
}

// Options configures a Controller.
type Options struct {
	// Debounce falls back to DefaultDebounce when not positive.
	Debounce time.Duration
	// ScrollThreshold is how many rows from the end count as near. Zero
	// fires only at the last row; negative means DefaultScrollThreshold.
	ScrollThreshold int
	Clock           Clock
	// OnError is called after a fetch of the current generation fails.
	OnError func(error)
}

// Controller accumulates pages of T for a debounced search string and
// extends them as the user scrolls towards the end of the list.
type Controller[T any] struct {
	mu        sync.Mutex
	fetcher   Fetcher[T]
	state     State[T]
	debouncer *Debouncer[string]
	proximity *Proximity
	onError   func(error)
	updates   chan State[T]
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	inflight  sync.WaitGroup
}

// New creates a controller for one list view. Nothing is fetched until
// Reset, Refresh or a committed query change.
func New[T any](fetcher Fetcher[T], opts Options) *Controller[T] {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ScrollThreshold < 0 {
		opts.ScrollThreshold = DefaultScrollThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T]{
		fetcher:   fetcher,
		proximity: NewProximity(opts.ScrollThreshold),
		onError:   opts.OnError,
		updates:   make(chan State[T], 1),
		ctx:       ctx,
		cancel:    cancel,
		state: State[T]{
			CurrentPage: 1,
			LastPage:    1,
		},
	}
	c.debouncer = NewDebouncer(opts.Debounce, opts.Clock, c.commit)
	return c
}

// Updates delivers the latest state after every change. The channel holds
// at most one pending snapshot and is closed by Close.
func (c *Controller[T]) Updates() <-chan State[T] {
	return c.updates
}

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// QueryChanged records the live search text and schedules it to be
// committed once typing pauses.
func (c *Controller[T]) QueryChanged(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Query = text
	c.publishLocked()
	c.mu.Unlock()

	c.debouncer.Trigger(text)
}

// QueryPending reports whether typed text is still waiting out the debounce.
func (c *Controller[T]) QueryPending() bool {
	return c.debouncer.Pending()
}

// commit is the debouncer's sink.
func (c *Controller[T]) commit(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || query == c.state.CommittedQuery {
		return
	}
	c.resetLocked(query)
}

// Reset starts a new generation for query and loads its first page.
func (c *Controller[T]) Reset(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.resetLocked(query)
}

// Refresh reloads the committed query from page one, discarding whatever
// is still in flight. Call it after records were created, edited or removed.
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.resetLocked(c.state.CommittedQuery)
}

// NearEnd requests the next page. It is a no-op while a page is loading or
// once the last page has been reached, and reports whether a fetch started.
func (c *Controller[T]) NearEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state.Loading || !c.state.HasMore {
		return false
	}
	c.loadPageLocked(c.state.CurrentPage+1, true)
	c.publishLocked()
	return true
}

// Observe feeds a scroll position through the proximity detector and calls
// NearEnd when it triggers.
func (c *Controller[T]) Observe(m Metrics) bool {
	if !c.proximity.Observe(m) {
		return false
	}
	return c.NearEnd()
}

// Wait blocks until every fetch started so far has completed.
func (c *Controller[T]) Wait() {
	c.inflight.Wait()
}

// Close tears the controller down. Pending debounced queries are dropped and
// responses that arrive afterwards are ignored.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.debouncer.Stop()
	c.cancel()
	close(c.updates)
}

func (c *Controller[T]) resetLocked(query string) {
	c.state.CommittedQuery = query
	c.state.Items = nil
	c.state.CurrentPage = 1
	c.state.LastPage = 1
	c.state.HasMore = true
	c.state.Err = nil
	c.state.Generation++
	c.proximity.Rearm()

	debuglog.WithFields(map[string]interface{}{
		"generation": c.state.Generation,
		"query":      query,
	}).Debugf("feed reset")

	c.loadPageLocked(1, false)
	c.publishLocked()
}

func (c *Controller[T]) loadPageLocked(page int, appendItems bool) {
	gen := c.state.Generation
	query := c.state.CommittedQuery
	c.state.Loading = true

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		result, err := c.fetcher.FetchPage(c.ctx, query, page)
		if err == nil {
			err = result.Validate()
		}
		if err == nil && result.Number != page {
			err = fmt.Errorf("%w: asked for page %d, got %d", ErrMalformedPage, page, result.Number)
		}
		c.complete(gen, page, appendItems, result, err)
	}()
}

func (c *Controller[T]) complete(gen uint64, page int, appendItems bool, result Page[T], err error) {
	c.mu.Lock()
	if c.closed || gen != c.state.Generation {
		current := c.state.Generation
		c.mu.Unlock()
		debuglog.WithFields(map[string]interface{}{
			"generation": gen,
			"current":    current,
			"page":       page,
		}).Debugf("discarding stale page")
		return
	}

	if err != nil {
		if !appendItems {
			c.state.Items = nil
		}
		c.state.HasMore = false
		c.state.Loading = false
		c.state.Err = fmt.Errorf("loading page %d: %w", page, err)
		surfaced := c.state.Err
		c.publishLocked()
		c.mu.Unlock()

		debuglog.WithFields(map[string]interface{}{
			"generation": gen,
			"page":       page,
		}).Warnf("fetch failed: %v", err)
		if c.onError != nil {
			c.onError(surfaced)
		}
		return
	}

	if appendItems {
		c.state.Items = append(c.state.Items, result.Items...)
	} else {
		c.state.Items = slices.Clone(result.Items)
	}
	c.state.CurrentPage = result.Number
	c.state.LastPage = result.LastPage
	c.state.HasMore = result.Number < result.LastPage
	c.state.Loading = false
	c.state.Err = nil
	c.publishLocked()
	c.mu.Unlock()
}

func (c *Controller[T]) snapshotLocked() State[T] {
	s := c.state
	s.Items = slices.Clone(c.state.Items)
	return s
}

// publishLocked replaces any unread snapshot with the current one. Holding
// the lock keeps the channel contents in step with the state.
func (c *Controller[T]) publishLocked() {
	if c.closed {
		return
	}
	s := c.snapshotLocked()
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- s:
	default:
	}
}
