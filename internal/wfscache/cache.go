// Package wfscache memoizes WFS responses for the lifetime of one run. The
// cache is keyed by the H3 cell of the query point, so repeated requests for
// the same parcel (duplicate batch entries, re-listed sheets) skip the second
// upstream round trip. Nothing survives the run.
package wfscache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	h3 "github.com/uber/h3-go/v4"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
)

// DefaultRes keeps cells a few meters wide so two parcels practically never
// share one.
const DefaultRes = 13

type Cache struct {
	lru *lru.Cache[string, []model.ParcelFeature]
	res int
}

func New(size, res int) (*Cache, error) {
	if size <= 0 {
		size = 256
	}
	if res < 0 || res > 15 {
		res = DefaultRes
	}
	l, err := lru.New[string, []model.ParcelFeature](size)
	if err != nil {
		return nil, fmt.Errorf("wfscache lru: %w", err)
	}
	return &Cache{lru: l, res: res}, nil
}

// Key maps a query point and feature type to a cache key.
func (c *Cache) Key(lon, lat float64, typeName string) (string, error) {
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, c.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell for (%f,%f): %w", lon, lat, err)
	}
	return fmt.Sprintf("%s:%d:%016x", cell.String(), c.res, xxhash.Sum64String(typeName)), nil
}

func (c *Cache) Get(key string) ([]model.ParcelFeature, bool) {
	return c.lru.Get(key)
}

func (c *Cache) Add(key string, feats []model.ParcelFeature) {
	c.lru.Add(key, feats)
}
