package search

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/casedesk/internal/storage"
)

func seededStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.ImportFixtures(filepath.Join("..", "storage", "testdata", "applications.toml"))
	require.NoError(t, err)
	return store
}

func namesOf(t *testing.T, store *storage.Store, ids []uint64) []string {
	t.Helper()
	apps, err := store.GetApplications(ids)
	require.NoError(t, err)
	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.FullName()
	}
	return names
}

func TestEngine_SubstringAcrossFields(t *testing.T) {
	store := seededStore(t)
	e := NewEngine(store)

	tests := []struct {
		query string
		total int
	}{
		{"dela cruz", 2},
		{"ruz", 3},
		{"FLOOD", 5},
		{"hospital", 3},
		{"female", 10},
		{"male", 20},
		{"zzz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := e.Search(tt.query, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.total, res.Total)
			assert.Len(t, res.IDs, tt.total)
		})
	}
}

func TestEngine_ResultsInNameOrder(t *testing.T) {
	store := seededStore(t)

	res, err := NewEngine(store).Search("dela cruz", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dela Cruz, Antonio", "Dela Cruz, Jose Jr."}, namesOf(t, store, res.IDs))
}

func TestEngine_Window(t *testing.T) {
	store := seededStore(t)
	e := NewEngine(store)

	all, err := e.Search("male", 0, 0)
	require.NoError(t, err)

	page, err := e.Search("male", 15, 15)
	require.NoError(t, err)
	assert.Equal(t, 20, page.Total)
	assert.Equal(t, all.IDs[15:], page.IDs)

	beyond, err := e.Search("male", 40, 15)
	require.NoError(t, err)
	assert.Equal(t, 20, beyond.Total)
	assert.Empty(t, beyond.IDs)
}

func TestEngine_SkipsDeleted(t *testing.T) {
	store := seededStore(t)
	e := NewEngine(store)

	res, err := e.Search("dela cruz", 0, 0)
	require.NoError(t, err)
	require.NoError(t, store.DestroyApplication(res.IDs[0]))

	res, err = e.Search("dela cruz", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestMatches(t *testing.T) {
	app := &storage.Application{FirstName: "Ana", LastName: "Garcia", Crisis: "Typhoon", Situation: "Displaced", Gender: "Female"}
	assert.True(t, Matches(app, ""))
	assert.True(t, Matches(app, "arc"))
	assert.True(t, Matches(app, "typh"))
	assert.False(t, Matches(app, "flood"))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Dela Cruz", []string{"dela", "cruz"}},
		{"  O'Neil-Santos ", []string{"neil", "santos"}},
		{"a b", nil},
		{"Peña", []string{"peña"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tokenize(tt.input), tt.input)
	}
}
