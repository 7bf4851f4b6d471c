package geo

import "strings"

// RefParts is the decomposition of a NATIONALCADASTRALREFERENCE such as
// "M011_000200.2": admin code, census section letter ("_" when absent),
// 4-digit sheet and the parcel number after the last dot.
type RefParts struct {
	Admin   string
	Section string
	Sheet   string
	Parcel  string
}

// ParseNationalReference splits a national cadastral reference into its
// positional components. ok is false when the reference is too short to
// carry the fixed-width prefix.
func ParseNationalReference(ref string) (RefParts, bool) {
	if len(ref) < 9 {
		return RefParts{}, false
	}
	p := RefParts{
		Admin:   ref[:4],
		Section: ref[4:5],
		Sheet:   ref[5:9],
	}
	if i := strings.LastIndex(ref, "."); i >= 0 && i+1 < len(ref) {
		p.Parcel = ref[i+1:]
	}
	return p, true
}

// SectionFromLocalID extracts the census section letter from an
// INSPIREID_LOCALID ("IT.AGE.PLA.M011_000200.2" -> "_"). The section sits at
// a fixed offset after the national prefix.
func SectionFromLocalID(localID string) string {
	if len(localID) < 16 {
		return ""
	}
	return localID[15:16]
}
