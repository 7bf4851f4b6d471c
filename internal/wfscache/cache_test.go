package wfscache

import (
	"testing"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
)

func TestKey_StableForSamePoint(t *testing.T) {
	c, err := New(16, DefaultRes)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	k1, err := c.Key(14.366570, 37.589851, "CP:CadastralParcel")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	k2, err := c.Key(14.366570, 37.589851, "CP:CadastralParcel")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("keys differ for identical input: %q %q", k1, k2)
	}
}

func TestKey_DistinguishesPointsAndTypes(t *testing.T) {
	c, err := New(16, DefaultRes)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	base, _ := c.Key(14.366570, 37.589851, "CP:CadastralParcel")
	far, _ := c.Key(14.400000, 37.600000, "CP:CadastralParcel")
	if base == far {
		t.Fatalf("distant points share a key: %q", base)
	}
	otherType, _ := c.Key(14.366570, 37.589851, "CP:CadastralZoning")
	if base == otherType {
		t.Fatalf("different type names share a key: %q", base)
	}
}

func TestGetAdd_RoundTrip(t *testing.T) {
	c, err := New(16, DefaultRes)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key, err := c.Key(14.366570, 37.589851, "CP:CadastralParcel")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Fatalf("unexpected hit on empty cache")
	}

	feats := []model.ParcelFeature{{NationalReference: "M011_000200.2"}}
	c.Add(key, feats)

	got, ok := c.Get(key)
	if !ok {
		t.Fatalf("expected hit after Add")
	}
	if len(got) != 1 || got[0].NationalReference != "M011_000200.2" {
		t.Fatalf("got %+v", got)
	}
}

func TestNew_DefaultsOnBadArguments(t *testing.T) {
	c, err := New(0, 99)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.res != DefaultRes {
		t.Fatalf("res=%d want %d", c.res, DefaultRes)
	}
}
