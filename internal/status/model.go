// Package status enumerates the participant status vocabulary and classifies
// each status. The classification table below is the single place domain-wide
// editability policy is defined; every other component consults it through
// the predicates instead of hard-coding status sets.
package status

import (
	"time"

	id "deltaker/pkg/domain"
	dErrors "deltaker/pkg/domain-errors"
)

// Type is the enrollment's phase.
type Type string

const (
	TypeKladd                 Type = "KLADD"
	TypeUtkast                Type = "UTKAST"
	TypeSoktInn               Type = "SOKT_INN"
	TypeVurderes              Type = "VURDERES"
	TypeVenteliste            Type = "VENTELISTE"
	TypePabegyntRegistrering  Type = "PABEGYNT_REGISTRERING"
	TypeVenterPaOppstart      Type = "VENTER_PA_OPPSTART"
	TypeDeltar                Type = "DELTAR"
	TypeHarSluttet            Type = "HAR_SLUTTET"
	TypeIkkeAktuell           Type = "IKKE_AKTUELL"
	TypeAvbrutt               Type = "AVBRUTT"
	TypeFullfort              Type = "FULLFORT"
	TypeFeilregistrert        Type = "FEILREGISTRERT"
)

// Class groups statuses by how the engine treats them.
type Class int

const (
	// ClassEditable statuses accept the full set of content mutations.
	ClassEditable Class = iota
	// ClassPending statuses sit before active participation; content is
	// still mutable but participation-only mutations are not.
	ClassPending
	// ClassTerminal statuses end the enrollment. Only the end-reason and
	// end-date correction rule sets apply past this point.
	ClassTerminal
)

// classification is fixed domain knowledge, loaded once and read-only.
var classification = map[Type]Class{
	TypeKladd:                ClassEditable,
	TypeUtkast:               ClassEditable,
	TypeDeltar:               ClassEditable,
	TypeSoktInn:              ClassPending,
	TypeVurderes:             ClassPending,
	TypeVenteliste:           ClassPending,
	TypePabegyntRegistrering: ClassPending,
	TypeVenterPaOppstart:     ClassPending,
	TypeHarSluttet:           ClassTerminal,
	TypeIkkeAktuell:          ClassTerminal,
	TypeAvbrutt:              ClassTerminal,
	TypeFullfort:             ClassTerminal,
	TypeFeilregistrert:       ClassTerminal,
}

// ClassOf returns the classification for a status type. Unknown types are
// treated as terminal so a bad value can never widen editability.
func ClassOf(t Type) Class {
	if c, ok := classification[t]; ok {
		return c
	}
	return ClassTerminal
}

// IsTerminal reports whether the status ends the enrollment.
func IsTerminal(t Type) bool {
	return ClassOf(t) == ClassTerminal
}

// AllowsContentMutation reports whether content/date/background mutations are
// accepted while the record holds this status.
func AllowsContentMutation(t Type) bool {
	return ClassOf(t) != ClassTerminal
}

// ParseType validates a status type received from external input.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := classification[t]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported status type: "+s)
	}
	return t, nil
}

// AarsakType enumerates why an enrollment ended or was ruled not relevant.
type AarsakType string

const (
	AarsakSyk                AarsakType = "SYK"
	AarsakFattJobb           AarsakType = "FATT_JOBB"
	AarsakTrengerAnnenStotte AarsakType = "TRENGER_ANNEN_STOTTE"
	AarsakUtdanning          AarsakType = "UTDANNING"
	AarsakIkkeMott           AarsakType = "IKKE_MOTT"
	AarsakFikkIkkePlass      AarsakType = "FIKK_IKKE_PLASS"
	AarsakAvlystKontrakt     AarsakType = "AVLYST_KONTRAKT"
	AarsakKursFullt          AarsakType = "KURS_FULLT"
	AarsakKravIkkeOppfylt    AarsakType = "KRAV_IKKE_OPPFYLT"
	AarsakAnnet              AarsakType = "ANNET"
)

// Aarsak is the structured reason attached to terminal statuses. Beskrivelse
// is required for AarsakAnnet and ignored otherwise.
type Aarsak struct {
	Type        AarsakType
	Beskrivelse string
}

// Valid reports whether the reason is well-formed.
func (a Aarsak) Valid() bool {
	switch a.Type {
	case AarsakSyk, AarsakFattJobb, AarsakTrengerAnnenStotte, AarsakUtdanning,
		AarsakIkkeMott, AarsakFikkIkkePlass, AarsakAvlystKontrakt,
		AarsakKursFullt, AarsakKravIkkeOppfylt:
		return true
	case AarsakAnnet:
		return a.Beskrivelse != ""
	default:
		return false
	}
}

// Status is one entry in a record's status validity chain. GyldigTil == nil
// marks the current status; a superseded status keeps a closed interval.
type Status struct {
	ID        id.StatusID
	Type      Type
	Aarsak    *Aarsak
	GyldigFra time.Time
	GyldigTil *time.Time
	Opprettet time.Time
}

// Current reports whether this status is the record's open one.
func (s Status) Current() bool {
	return s.GyldigTil == nil
}

// New opens a fresh current status at the given instant.
func New(t Type, aarsak *Aarsak, now time.Time) Status {
	return Status{
		ID:        id.NewStatusID(),
		Type:      t,
		Aarsak:    aarsak,
		GyldigFra: now,
		Opprettet: now,
	}
}
