// Package redislayer implements a Redis-backed output layer for the service
// surface, where committed parcels are shared across requests instead of a
// file on disk. Each feature commit is one MULTI/EXEC pipeline.
package redislayer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	geo "github.com/paulmach/orb/geojson"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/layer"
)

const (
	refSetKey  = "ple:refs"
	featPrefix = "ple:feat:"
)

type Option func(*redis.Options)

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

type Store struct {
	rdb *redis.Client
}

func Open(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	ro := &redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) ExistingRefs(ctx context.Context) (map[string]struct{}, error) {
	members, err := s.rdb.SMembers(ctx, refSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMEMBERS %s: %w", refSetKey, err)
	}
	refs := make(map[string]struct{}, len(members))
	for _, m := range members {
		refs[m] = struct{}{}
	}
	return refs, nil
}

func (s *Store) Begin(ctx context.Context) (layer.Tx, error) {
	return &tx{ctx: ctx, store: s}, nil
}

func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

// Feature returns the stored GeoJSON encoding of one committed parcel.
func (s *Store) Feature(ctx context.Context, ref string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, featPrefix+ref).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", featPrefix+ref, err)
	}
	return raw, nil
}

type tx struct {
	ctx     context.Context
	store   *Store
	pending map[string][]byte
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
	raw, err := feat.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal feature %s: %w", f.NationalReference, err)
	}
	if t.pending == nil {
		t.pending = make(map[string][]byte, 1)
	}
	t.pending[f.NationalReference] = raw
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished: %w", model.ErrWriteConflict)
	}
	t.done = true
	if len(t.pending) == 0 {
		return nil
	}

	_, err := t.store.rdb.TxPipelined(t.ctx, func(p redis.Pipeliner) error {
		for ref, raw := range t.pending {
			p.Set(t.ctx, featPrefix+ref, raw, 0)
			p.SAdd(t.ctx, refSetKey, ref)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis commit %d features: %v", model.ErrWriteConflict, len(t.pending), err)
	}
	return nil
}

func (t *tx) Rollback() error {
	t.done = true
	t.pending = nil
	return nil
}
