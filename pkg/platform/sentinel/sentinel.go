package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator clients
// return these (optionally wrapped) so services can translate them into
// domain errors or typed rejections.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record/person/program does not exist in the store
// - ErrConflict: a uniqueness constraint (pending samtykke, undecided vedtak) would be violated
// - ErrInvalidState: entity in wrong state for the requested operation
// - ErrUnavailable: collaborator or store temporarily unavailable (transient, retryable upstream)
//
// For business rule rejections use the participant package's Rejection type.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
