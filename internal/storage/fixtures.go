package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/casedesk/internal/validation"
)

type fixtureFile struct {
	Applications []*Application `toml:"application"`
}

// DecodeFixtures reads [[application]] tables from r and validates every
// record. All validation failures are reported together.
func DecodeFixtures(r io.Reader) ([]*Application, error) {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()

	var f fixtureFile
	if err := dec.Decode(&f); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("parsing fixtures at %d:%d: %w", row, col, err)
		}
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}

	now := time.Now()
	var errs []error
	for i, app := range f.Applications {
		if age := app.AgeAt(now); age >= 0 {
			app.Age = age
		}
		if err := validation.Struct(app); err != nil {
			errs = append(errs, fmt.Errorf("application %d (%s): %w", i+1, app.FullName(), err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f.Applications, nil
}

// LoadFixtures reads a fixture file from disk.
func LoadFixtures(path string) ([]*Application, error) {
	clean, err := validation.NewPathValidator().ValidateFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture path: %w", err)
	}
	f, err := os.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("opening fixtures: %w", err)
	}
	defer f.Close()

	return DecodeFixtures(f)
}

// ImportFixtures loads path into the store and returns the imported records.
func (s *Store) ImportFixtures(path string) ([]*Application, error) {
	apps, err := LoadFixtures(path)
	if err != nil {
		return nil, err
	}
	if err := s.SaveApplications(apps); err != nil {
		return nil, fmt.Errorf("saving fixtures: %w", err)
	}
	if err := s.markImported(); err != nil {
		return nil, fmt.Errorf("recording import: %w", err)
	}
	return apps, nil
}
