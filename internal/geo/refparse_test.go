package geo

import "testing"

func TestParseNationalReference(t *testing.T) {
	cases := []struct {
		ref  string
		ok   bool
		want RefParts
	}{
		{
			ref:  "M011_000200.2",
			ok:   true,
			want: RefParts{Admin: "M011", Section: "_", Sheet: "0002", Parcel: "2"},
		},
		{
			ref:  "A944A012100.15",
			ok:   true,
			want: RefParts{Admin: "A944", Section: "A", Sheet: "0121", Parcel: "15"},
		},
		{
			// no dot: parcel stays empty
			ref:  "M011_0002",
			ok:   true,
			want: RefParts{Admin: "M011", Section: "_", Sheet: "0002"},
		},
		{ref: "M011", ok: false},
		{ref: "", ok: false},
	}
	for _, c := range cases {
		got, ok := ParseNationalReference(c.ref)
		if ok != c.ok {
			t.Fatalf("%q: ok=%v want %v", c.ref, ok, c.ok)
		}
		if ok && got != c.want {
			t.Fatalf("%q: got %+v want %+v", c.ref, got, c.want)
		}
	}
}

func TestSectionFromLocalID(t *testing.T) {
	if got := SectionFromLocalID("IT.AGE.PLA.M011_000200.2"); got != "_" {
		t.Fatalf("got %q want %q", got, "_")
	}
	if got := SectionFromLocalID("IT.AGE.PLA.A944B012100.15"); got != "B" {
		t.Fatalf("got %q want %q", got, "B")
	}
	if got := SectionFromLocalID("short"); got != "" {
		t.Fatalf("got %q want empty", got)
	}
}
