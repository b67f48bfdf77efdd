package domain

import dErrors "deltaker/pkg/domain-errors"

// Source identifies which upstream system authored a change payload.
// Invariant: the value must be one of the supported sources.
//
// Arbitration rule: LEGACY-sourced payloads take the authoritative insert
// path even when the record is already known locally; LOKAL-sourced payloads
// update in place. See internal/reconciler.
type Source string

const (
	// SourceLegacy is the external legacy registry that predates this
	// service and still owns records migrated from it.
	SourceLegacy Source = "LEGACY"

	// SourceLokal is this service's own canonical pipeline.
	SourceLokal Source = "LOKAL"
)

var validSources = map[Source]bool{
	SourceLegacy: true,
	SourceLokal:  true,
}

// ParseSource constructs a Source from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseSource(s string) (Source, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "source cannot be empty")
	}
	src := Source(s)
	if !validSources[src] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported source: "+s)
	}
	return src, nil
}
