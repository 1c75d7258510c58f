package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/casedesk/internal/storage"
)

func TestBleveEngine_IndexesAndSearches(t *testing.T) {
	store := seededStore(t)

	eng, err := NewBleveEngine(store, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	n, err := eng.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	res, err := eng.Search("cruz", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total, "last and middle names both match")

	res, err = eng.Search("dela cruz", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dela Cruz, Antonio", "Dela Cruz, Jose Jr."}, namesOf(t, store, res.IDs))
}

func TestBleveEngine_PrefixAndCategoryMatches(t *testing.T) {
	store := seededStore(t)
	eng, err := NewBleveEngine(store, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	res, err := eng.Search("hosp", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	res, err = eng.Search("flood displaced", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total, "every term must match")
}

func TestBleveEngine_SortedAndPaged(t *testing.T) {
	store := seededStore(t)
	eng, err := NewBleveEngine(store, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	first, err := eng.Search("reyes", 0, 1)
	require.NoError(t, err)
	second, err := eng.Search("reyes", 1, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, first.Total)
	assert.Equal(t, []string{"Reyes, Cristina Lim"}, namesOf(t, store, first.IDs))
	assert.Equal(t, []string{"Reyes, Maria Santos"}, namesOf(t, store, second.IDs))
}

func TestBleveEngine_ShortQueryFallsBackToSubstring(t *testing.T) {
	store := seededStore(t)
	eng, err := NewBleveEngine(store, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	viaBleve, err := eng.Search("z", 0, 0)
	require.NoError(t, err)
	viaEngine, err := NewEngine(store).Search("z", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, viaEngine, viaBleve)
}

func TestBleveEngine_Listeners(t *testing.T) {
	store := seededStore(t)
	eng, err := NewBleveEngine(store, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	res, err := eng.Search("navarro", 0, 0)
	require.NoError(t, err)
	require.Len(t, res.IDs, 1)

	require.NoError(t, store.DestroyApplication(res.IDs[0]))
	eng.OnApplicationDeleted(res.IDs[0])

	res, err = eng.Search("navarro", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	app := &storage.Application{
		FirstName: "Lorna", LastName: "Navarro", Gender: "Female", CivilStatus: "Single",
		BirthDate: "1991-01-01", ContactNumber: "09170000000", Gmail: "lorna@gmail.com",
		HouseNo: "1", Street: "Luna", Barangay: "Malanday", City: "Marikina",
		Crisis: "Flood", Situation: "Displaced",
	}
	require.NoError(t, store.SaveApplication(app))
	eng.OnApplicationsSaved([]*storage.Application{app})

	res, err = eng.Search("navarro", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{app.ID}, res.IDs)
}

func TestBleveEngine_PersistentIndexReopens(t *testing.T) {
	store := seededStore(t)
	idxPath := filepath.Join(t.TempDir(), "index", "cases.bleve")

	eng, err := NewBleveEngine(store, idxPath)
	require.NoError(t, err)

	fi, err := os.Stat(idxPath)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	res, err := eng.Search("villanueva", 0, 0)
	require.NoError(t, err)
	require.Len(t, res.IDs, 1)
	require.NoError(t, eng.Close())

	// Deleted while the index was closed; reopening reconciles.
	require.NoError(t, store.DestroyApplication(res.IDs[0]))

	eng, err = NewBleveEngine(store, idxPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	res, err = eng.Search("villanueva", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestOpen_FallsBackToEngine(t *testing.T) {
	store := seededStore(t)

	s, closeFn := Open(store, "")
	_, ok := s.(*Engine)
	assert.True(t, ok)
	assert.NoError(t, closeFn())

	s, closeFn = Open(store, filepath.Join(t.TempDir(), "idx.bleve"))
	_, ok = s.(*BleveEngine)
	assert.True(t, ok)
	assert.NoError(t, closeFn())
}
