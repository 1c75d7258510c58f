package search

import (
	"strings"
	"unicode"

	"github.com/pders01/casedesk/internal/storage"
)

// Engine matches the query as a case-insensitive substring of any name part,
// the gender, the crisis or the situation. It scans the store and needs no
// index, which makes it the fallback when the bleve index cannot be opened.
type Engine struct {
	store *storage.Store
}

// NewEngine creates a new search engine
func NewEngine(store *storage.Store) *Engine {
	return &Engine{store: store}
}

func (e *Engine) Search(query string, offset, limit int) (Result, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	apps, err := e.store.ListApplications()
	if err != nil {
		return Result{}, err
	}

	var ids []uint64
	for _, app := range apps {
		if Matches(app, needle) {
			ids = append(ids, app.ID)
		}
	}
	return window(ids, offset, limit), nil
}

// Matches reports whether needle, already lower-cased, occurs in one of the
// searchable fields. An empty needle matches everything.
func Matches(app *storage.Application, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range searchableFields(app) {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func searchableFields(app *storage.Application) []string {
	return []string{
		app.FirstName,
		app.MiddleName,
		app.LastName,
		app.SuffixName,
		app.Gender,
		app.Crisis,
		app.Situation,
	}
}

func window(ids []uint64, offset, limit int) Result {
	total := len(ids)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return Result{IDs: []uint64{}, Total: total}
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return Result{IDs: ids[offset:end], Total: total}
}

// tokenize breaks text into lower-cased terms, dropping single characters.
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len([]rune(term)) > 1 {
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if len([]rune(current.String())) > 1 {
		terms = append(terms, current.String())
	}

	return terms
}
