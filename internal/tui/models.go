package tui

import (
	"context"

	"github.com/pders01/casedesk/internal/feed"
	"github.com/pders01/casedesk/internal/storage"
)

type View int

const (
	ViewList View = iota
	ViewDetail
	ViewDeleteConfirm
	ViewForm
)

// CaseService is what the terminal client needs from a case backend. The
// HTTP client and the local bbolt backend both satisfy it.
type CaseService interface {
	feed.Fetcher[storage.Application]
	GetApplication(ctx context.Context, id uint64) (*storage.Application, error)
	StoreApplication(ctx context.Context, app *storage.Application) (*storage.Application, error)
	UpdateApplication(ctx context.Context, id uint64, app *storage.Application) (*storage.Application, error)
	DestroyApplication(ctx context.Context, id uint64) error
}

// Opener hands an attachment URL to an external viewer.
type Opener interface {
	Open(rawURL string) error
}
