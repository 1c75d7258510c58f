package api

import (
	"fmt"

	"github.com/pders01/casedesk/internal/feed"
	"github.com/pders01/casedesk/internal/storage"
)

// Paginator is the page envelope the case API wraps list results in.
type Paginator struct {
	CurrentPage int                   `json:"current_page"`
	Data        []storage.Application `json:"data"`
	LastPage    int                   `json:"last_page"`
	PerPage     int                   `json:"per_page"`
	Total       int                   `json:"total"`
}

// ApplicationsResponse is the body of loadApplications.
type ApplicationsResponse struct {
	Applications *Paginator `json:"applications"`
}

// Page checks the envelope and converts it for the feed controller.
func (r ApplicationsResponse) Page() (feed.Page[storage.Application], error) {
	p := r.Applications
	if p == nil {
		return feed.Page[storage.Application]{}, fmt.Errorf("%w: missing applications", feed.ErrMalformedPage)
	}
	if p.Data == nil {
		return feed.Page[storage.Application]{}, fmt.Errorf("%w: missing data", feed.ErrMalformedPage)
	}
	page := feed.Page[storage.Application]{
		Items:    p.Data,
		Number:   p.CurrentPage,
		LastPage: p.LastPage,
	}
	if err := page.Validate(); err != nil {
		return feed.Page[storage.Application]{}, err
	}
	return page, nil
}

// ApplicationResponse carries one application, with a confirmation on
// store and update.
type ApplicationResponse struct {
	Message     string               `json:"message,omitempty"`
	Application *storage.Application `json:"application"`
}

type LoginRequest struct {
	Gmail    string `json:"gmail" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// User is the account returned on login.
type User struct {
	Gmail string `json:"gmail"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// MessageResponse carries confirmations and error descriptions.
type MessageResponse struct {
	Message string `json:"message"`
}
