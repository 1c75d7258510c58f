package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pders01/casedesk/internal/validation"
)

// ErrNotFound is returned for unknown and soft-deleted applications.
var ErrNotFound = errors.New("application not found")

var (
	applicationsBucket = []byte("applications")
	metaBucket         = []byte("metadata")
)

var lastImportKey = []byte("last_import")

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// NewStore opens or creates the database at dbPath. A zero timeout waits
// one second for the file lock.
func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{applicationsBucket, metaBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// SaveApplication validates and stores app. A zero ID is assigned from the
// bucket sequence; the age is derived from the birth date.
func (s *Store) SaveApplication(app *Application) error {
	return s.SaveApplications([]*Application{app})
}

// SaveApplications stores all apps in one transaction. Nothing is written
// when any of them fails validation.
func (s *Store) SaveApplications(apps []*Application) error {
	now := s.now().UTC()
	for i, app := range apps {
		if age := app.AgeAt(now); age >= 0 {
			app.Age = age
		}
		if err := validation.Struct(app); err != nil {
			return fmt.Errorf("application %d: %w", i, err)
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(applicationsBucket)
		for _, app := range apps {
			if app.ID == 0 {
				seq, err := b.NextSequence()
				if err != nil {
					return fmt.Errorf("allocating id: %w", err)
				}
				app.ID = seq
			} else if app.ID > b.Sequence() {
				if err := b.SetSequence(app.ID); err != nil {
					return fmt.Errorf("advancing id sequence: %w", err)
				}
			}
			if app.CreatedAt.IsZero() {
				app.CreatedAt = now
			}
			app.UpdatedAt = now

			data, err := json.Marshal(app)
			if err != nil {
				return err
			}
			if err := b.Put(idKey(app.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateApplication overwrites a live application, keeping its creation
// time. Unknown and deleted IDs return ErrNotFound.
func (s *Store) UpdateApplication(app *Application) error {
	now := s.now().UTC()
	if age := app.AgeAt(now); age >= 0 {
		app.Age = age
	}
	if err := validation.Struct(app); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(applicationsBucket)
		data := b.Get(idKey(app.ID))
		if data == nil {
			return ErrNotFound
		}
		var existing Application
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("decoding application %d: %w", app.ID, err)
		}
		if existing.IsDeleted {
			return ErrNotFound
		}

		app.IsDeleted = false
		app.CreatedAt = existing.CreatedAt
		app.UpdatedAt = now
		updated, err := json.Marshal(app)
		if err != nil {
			return err
		}
		return b.Put(idKey(app.ID), updated)
	})
}

// GetApplication returns a live application.
func (s *Store) GetApplication(id uint64) (*Application, error) {
	var app Application
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(applicationsBucket).Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &app); err != nil {
			return fmt.Errorf("decoding application %d: %w", id, err)
		}
		if app.IsDeleted {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ListApplications returns all live applications in name order.
func (s *Store) ListApplications() ([]*Application, error) {
	var apps []*Application
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(applicationsBucket).ForEach(func(k, v []byte) error {
			var app Application
			if err := json.Unmarshal(v, &app); err != nil {
				return fmt.Errorf("decoding application %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if !app.IsDeleted {
				apps = append(apps, &app)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(apps, Compare)
	return apps, nil
}

// GetApplications returns the live applications among ids, keeping the
// order of ids. Unknown or deleted ids are skipped.
func (s *Store) GetApplications(ids []uint64) ([]*Application, error) {
	apps := make([]*Application, 0, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(applicationsBucket)
		for _, id := range ids {
			data := b.Get(idKey(id))
			if data == nil {
				continue
			}
			var app Application
			if err := json.Unmarshal(data, &app); err != nil {
				return fmt.Errorf("decoding application %d: %w", id, err)
			}
			if !app.IsDeleted {
				apps = append(apps, &app)
			}
		}
		return nil
	})
	return apps, err
}

// DestroyApplication soft-deletes a live application.
func (s *Store) DestroyApplication(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(applicationsBucket)
		data := b.Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}

		var app Application
		if err := json.Unmarshal(data, &app); err != nil {
			return fmt.Errorf("decoding application %d: %w", id, err)
		}
		if app.IsDeleted {
			return ErrNotFound
		}
		app.IsDeleted = true
		app.UpdatedAt = s.now().UTC()

		updated, err := json.Marshal(&app)
		if err != nil {
			return err
		}
		return b.Put(idKey(id), updated)
	})
}

// Count returns the number of live applications.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(applicationsBucket).ForEach(func(_, v []byte) error {
			var flag struct {
				IsDeleted bool `json:"is_deleted"`
			}
			if err := json.Unmarshal(v, &flag); err != nil {
				return err
			}
			if !flag.IsDeleted {
				n++
			}
			return nil
		})
	})
	return n, err
}

// LastImport reports when fixtures were last imported, or the zero time.
func (s *Store) LastImport() (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metaBucket).Get(lastImportKey)
		if data == nil {
			return nil
		}
		return t.UnmarshalText(data)
	})
	return t, err
}

func (s *Store) markImported() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := s.now().UTC().MarshalText()
		if err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(lastImportKey, data)
	})
}

// Scan calls fn for every stored application, deleted ones included, in id
// order. Search indexes use it to rebuild.
func (s *Store) Scan(fn func(*Application) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(applicationsBucket).ForEach(func(k, v []byte) error {
			var app Application
			if err := json.Unmarshal(v, &app); err != nil {
				return fmt.Errorf("decoding application %d: %w", binary.BigEndian.Uint64(k), err)
			}
			return fn(&app)
		})
	})
}
