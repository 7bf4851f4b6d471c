package model

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteDataUnavailable marks network, HTTP or parse failures while
	// reaching a remote dataset. Never returned for empty result sets.
	ErrRemoteDataUnavailable = errors.New("remote data unavailable")

	// ErrParcelNotFound means the regional dataset holds no row for the
	// requested municipality/sheet/parcel.
	ErrParcelNotFound = errors.New("parcel not found")

	// ErrParcelGeometryNotFound means the bbox query returned zero features:
	// a staleness event between the bulk dataset and the live service.
	ErrParcelGeometryNotFound = errors.New("parcel geometry not found")

	// ErrWriteConflict marks a failed commit of a single feature.
	ErrWriteConflict = errors.New("write conflict")
)

// RemoteDataError wraps a transport or decode failure against one source so
// callers can both inspect the cause and match ErrRemoteDataUnavailable.
type RemoteDataError struct {
	Source string
	Err    error
}

func (e *RemoteDataError) Error() string {
	return fmt.Sprintf("remote data unavailable: %s: %v", e.Source, e.Err)
}

func (e *RemoteDataError) Unwrap() error { return e.Err }

func (e *RemoteDataError) Is(target error) bool { return target == ErrRemoteDataUnavailable }

// AmbiguousNameError reports a homonymous municipality name. The request is
// not completed until re-issued with one of the candidate codes.
type AmbiguousNameError struct {
	Name       string
	Candidates []IndexEntry
}

func (e *AmbiguousNameError) Error() string {
	return fmt.Sprintf("ambiguous municipality name %q: %d candidates", e.Name, len(e.Candidates))
}
