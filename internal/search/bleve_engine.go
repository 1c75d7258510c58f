package search

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/casedesk/internal/debuglog"
	"github.com/pders01/casedesk/internal/storage"
	"github.com/pders01/casedesk/internal/validation"
)

const docPrefix = "application:"

// Sort fields hold lower-cased copies of the name parts so hits come back in
// list order rather than by score.
var sortFields = []string{"sort_last", "sort_first", "sort_middle", "sort_suffix", "_id"}

// BleveEngine is a full-text Searcher backed by a bleve index kept in step
// with the store.
type BleveEngine struct {
	store *storage.Store
	idx   bleve.Index
}

// NewBleveEngine creates or opens a Bleve index at indexPath and indexes
// current data. An empty indexPath keeps the index in memory.
func NewBleveEngine(store *storage.Store, indexPath string) (*BleveEngine, error) {
	var idx bleve.Index
	var err error

	if indexPath == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if _, mkErr := validation.NewPathValidator().EnsureDirectory(filepath.Dir(indexPath)); mkErr != nil {
			return nil, fmt.Errorf("index directory: %w", mkErr)
		}
		idx, err = bleve.Open(indexPath)
		if err != nil {
			idx, err = bleve.New(indexPath, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}

	be := &BleveEngine{store: store, idx: idx}
	if err := be.reindexAll(); err != nil {
		idx.Close()
		return nil, fmt.Errorf("indexing applications: %w", err)
	}
	return be, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	for _, name := range []string{"first_name", "middle_name", "last_name", "suffix_name"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = false
		f.IncludeTermVectors = true
		dm.AddFieldMappingsAt(name, f)
	}

	for _, name := range []string{"gender", "crisis", "situation"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = false
		dm.AddFieldMappingsAt(name, f)
	}

	for _, name := range sortFields[:4] {
		f := bleve.NewKeywordFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = false
		f.IncludeInAll = false
		f.DocValues = true
		dm.AddFieldMappingsAt(name, f)
	}

	im.DefaultMapping = dm
	return im
}

func docID(id uint64) string {
	return fmt.Sprintf("%s%020d", docPrefix, id)
}

func parseDocID(s string) (uint64, bool) {
	if !strings.HasPrefix(s, docPrefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(s, docPrefix), 10, 64)
	return id, err == nil
}

func document(app *storage.Application) map[string]any {
	return map[string]any{
		"first_name":  app.FirstName,
		"middle_name": app.MiddleName,
		"last_name":   app.LastName,
		"suffix_name": app.SuffixName,
		"gender":      app.Gender,
		"crisis":      app.Crisis,
		"situation":   app.Situation,
		"sort_last":   sortKey(app.LastName),
		"sort_first":  sortKey(app.FirstName),
		"sort_middle": sortKey(app.MiddleName),
		"sort_suffix": sortKey(app.SuffixName),
	}
}

// sortKey never yields an empty term, so missing name parts sort first as
// they do in the SQL ordering instead of being treated as absent.
func sortKey(s string) string {
	return "k" + strings.ToLower(s)
}

func (b *BleveEngine) reindexAll() error {
	batch := b.idx.NewBatch()
	err := b.store.Scan(func(app *storage.Application) error {
		if app.IsDeleted {
			batch.Delete(docID(app.ID))
			return nil
		}
		return batch.Index(docID(app.ID), document(app))
	})
	if err != nil {
		return err
	}
	return b.idx.Batch(batch)
}

// Search requires every query term to match a name part, the gender, the
// crisis or the situation, either whole or as a prefix. Queries without a
// usable term fall back to substring matching.
func (b *BleveEngine) Search(query string, offset, limit int) (Result, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return NewEngine(b.store).Search(query, offset, limit)
	}

	var perToken []bleveQuery.Query
	for _, tok := range tokens {
		var qs []bleveQuery.Query
		for _, f := range []struct {
			field string
			boost float64
		}{
			{"last_name", 4.0},
			{"first_name", 3.0},
			{"middle_name", 2.0},
			{"suffix_name", 1.0},
			{"crisis", 1.5},
			{"situation", 1.5},
			{"gender", 1.0},
		} {
			m := bleve.NewMatchQuery(tok)
			m.SetField(f.field)
			m.SetBoost(f.boost)
			qs = append(qs, m)

			p := bleve.NewPrefixQuery(tok)
			p.SetField(f.field)
			p.SetBoost(f.boost * 0.8)
			qs = append(qs, p)
		}
		perToken = append(perToken, bleve.NewDisjunctionQuery(qs...))
	}

	if limit <= 0 {
		n, err := b.idx.DocCount()
		if err != nil {
			return Result{}, err
		}
		limit = int(n)
	}
	if offset < 0 {
		offset = 0
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(perToken...), limit, offset, false)
	req.SortBy(sortFields)
	res, err := b.idx.Search(req)
	if err != nil {
		return Result{}, fmt.Errorf("searching index: %w", err)
	}

	ids := make([]uint64, 0, len(res.Hits))
	for _, h := range res.Hits {
		if id, ok := parseDocID(h.ID); ok {
			ids = append(ids, id)
		}
	}
	return Result{IDs: ids, Total: int(res.Total)}, nil
}

// OnApplicationsSaved indexes the provided applications.
func (b *BleveEngine) OnApplicationsSaved(apps []*storage.Application) {
	batch := b.idx.NewBatch()
	for _, app := range apps {
		if app.IsDeleted {
			batch.Delete(docID(app.ID))
			continue
		}
		_ = batch.Index(docID(app.ID), document(app))
	}
	if err := b.idx.Batch(batch); err != nil {
		debuglog.Warnf("indexing %d applications: %v", len(apps), err)
	}
}

// OnApplicationDeleted removes the application from the index.
func (b *BleveEngine) OnApplicationDeleted(id uint64) {
	if err := b.idx.Delete(docID(id)); err != nil {
		debuglog.Warnf("removing application %d from index: %v", id, err)
	}
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}

func (b *BleveEngine) Close() error {
	return b.idx.Close()
}
