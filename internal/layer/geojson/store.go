// Package geojson implements a file-backed output layer. Commits are atomic:
// the whole collection is rewritten to a temp file and renamed over the
// target, so an interrupted run leaves the last committed state on disk.
package geojson

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	geo "github.com/paulmach/orb/geojson"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/layer"
)

type Store struct {
	mu   sync.Mutex
	path string
	fc   *geo.FeatureCollection
}

// Open loads or creates the layer file. With appendMode the pre-existing
// collection is kept and seeds deduplication; without it a fresh collection
// replaces whatever was there on the first commit.
func Open(path string, appendMode bool) (*Store, error) {
	s := &Store{path: path, fc: geo.NewFeatureCollection()}

	if appendMode {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			fc, uerr := geo.UnmarshalFeatureCollection(raw)
			if uerr != nil {
				return nil, fmt.Errorf("parse existing layer %s: %w", path, uerr)
			}
			s.fc = fc
		case os.IsNotExist(err):
			// appending to a layer that does not exist yet is a create
		default:
			return nil, fmt.Errorf("read existing layer %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *Store) ExistingRefs(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make(map[string]struct{}, len(s.fc.Features))
	for _, f := range s.fc.Features {
		if ref, ok := f.Properties["NATIONALCADASTRALREFERENCE"].(string); ok && ref != "" {
			refs[ref] = struct{}{}
		}
	}
	return refs, nil
}

func (s *Store) Begin(_ context.Context) (layer.Tx, error) {
	return &tx{store: s}, nil
}

func (s *Store) Close() error { return nil }

// Count reports the number of features currently held by the layer.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fc.Features)
}

type tx struct {
	store   *Store
	pending []*geo.Feature
	done    bool
}

func (t *tx) Add(f model.ParcelFeature) error {
	if t.done {
		return fmt.Errorf("transaction already finished: %w", model.ErrWriteConflict)
	}
	feat := geo.NewFeature(f.Geometry)
	feat.Properties = geo.Properties{
		"NATIONALCADASTRALREFERENCE": f.NationalReference,
		"ADMIN":                      f.Admin,
		"SEZIONE":                    f.Section,
		"FOGLIO":                     f.Sheet,
		"PARTICELLA":                 f.Parcel,
		"AREA":                       f.AreaSqm,
	}
	t.pending = append(t.pending, feat)
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished: %w", model.ErrWriteConflict)
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.fc.Features)
	s.fc.Features = append(s.fc.Features, t.pending...)

	if err := s.flushLocked(); err != nil {
		s.fc.Features = s.fc.Features[:before]
		return fmt.Errorf("%w: %v", model.ErrWriteConflict, err)
	}
	return nil
}

func (t *tx) Rollback() error {
	t.done = true
	t.pending = nil
	return nil
}

func (s *Store) flushLocked() error {
	raw, err := s.fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal layer: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".layer-*.geojson")
	if err != nil {
		return fmt.Errorf("temp layer file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write layer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close layer: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename layer: %w", err)
	}
	return nil
}
