package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "deltaker/pkg/domain-errors"
)

// Typed UUID wrappers for the aggregate identities in the system. The types
// exist so a DeltakerID can never be passed where a GjennomforingID is
// expected; the compiler enforces what naming conventions cannot.
//
// Invariant: a parsed ID is a valid, non-nil UUID. Construct via the Parse*
// helpers at trust boundaries; direct casting bypasses validation.
type (
	// DeltakerID identifies one participant record (one person in one
	// program run).
	DeltakerID uuid.UUID

	// PersonID identifies the subject person independent of enrollments.
	PersonID uuid.UUID

	// GjennomforingID identifies the program run the person is enrolled in.
	GjennomforingID uuid.UUID

	// StatusID identifies one entry in a record's status validity chain.
	StatusID uuid.UUID

	// SamtykkeID identifies a consent instance.
	SamtykkeID uuid.UUID

	// VedtakID identifies a formal decision.
	VedtakID uuid.UUID

	// EndringID identifies one history change entry.
	EndringID uuid.UUID
)

func (id DeltakerID) String() string { return uuid.UUID(id).String() }

func (id PersonID) String() string { return uuid.UUID(id).String() }

func (id GjennomforingID) String() string { return uuid.UUID(id).String() }

func (id StatusID) String() string { return uuid.UUID(id).String() }

func (id SamtykkeID) String() string { return uuid.UUID(id).String() }

func (id VedtakID) String() string { return uuid.UUID(id).String() }

func (id EndringID) String() string { return uuid.UUID(id).String() }

func (id DeltakerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id StatusID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// NewDeltakerID allocates a fresh record identity.
func NewDeltakerID() DeltakerID { return DeltakerID(uuid.New()) }

func NewPersonID() PersonID { return PersonID(uuid.New()) }

func NewGjennomforingID() GjennomforingID { return GjennomforingID(uuid.New()) }

func NewStatusID() StatusID { return StatusID(uuid.New()) }

func NewSamtykkeID() SamtykkeID { return SamtykkeID(uuid.New()) }

func NewVedtakID() VedtakID { return VedtakID(uuid.New()) }

func NewEndringID() EndringID { return EndringID(uuid.New()) }

// ParseDeltakerID constructs a DeltakerID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID; no other errors are expected.
func ParseDeltakerID(s string) (DeltakerID, error) {
	u, err := parseUUID(s, "deltaker id")
	return DeltakerID(u), err
}

func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID(s, "person id")
	return PersonID(u), err
}

func ParseGjennomforingID(s string) (GjennomforingID, error) {
	u, err := parseUUID(s, "gjennomforing id")
	return GjennomforingID(u), err
}

func ParseStatusID(s string) (StatusID, error) {
	u, err := parseUUID(s, "status id")
	return StatusID(u), err
}

func ParseSamtykkeID(s string) (SamtykkeID, error) {
	u, err := parseUUID(s, "samtykke id")
	return SamtykkeID(u), err
}

func ParseVedtakID(s string) (VedtakID, error) {
	u, err := parseUUID(s, "vedtak id")
	return VedtakID(u), err
}

func ParseEndringID(s string) (EndringID, error) {
	u, err := parseUUID(s, "endring id")
	return EndringID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil UUID")
	}
	return u, nil
}
