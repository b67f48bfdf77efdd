// Package participant holds the aggregate root of the system: one person's
// enrollment in one program run, its status validity chain, and the
// append-only history of everything that happened to it. The transition
// engine in this package is the only write path for user-initiated
// mutations; the reconciler re-enters records through the same store
// contract so both paths share the atomicity guarantees.
package participant

import (
	"time"

	"deltaker/internal/status"
	id "deltaker/pkg/domain"
)

// Innholdselement is one checklist item from the program's content catalogue.
// Beskrivelse carries free text and is only meaningful for the "annet" item.
type Innholdselement struct {
	Kode        string
	Tekst       string
	Valgt       bool
	Beskrivelse *string
}

// Deltakelsesinnhold is the program-specific content selection on a record.
type Deltakelsesinnhold struct {
	Ledetekst string
	Elementer []Innholdselement
}

// Deltaker is the participant record aggregate.
//
// Invariants:
//   - Status is the single current status (GyldigTil == nil); every
//     superseded status lives in TidligereStatuser with a closed interval.
//   - Historikk only ever grows; entries are never rewritten.
//   - KanEndres and ErManueltDeltMedArrangor are independent of Status and
//     only change through privileged coordinator operations or the
//     authoritative insert path.
type Deltaker struct {
	ID              id.DeltakerID
	PersonID        id.PersonID
	GjennomforingID id.GjennomforingID
	Tiltakstype     id.Tiltakstype
	Innsatsgruppe   id.Innsatsgruppe

	Startdato            *time.Time
	Sluttdato            *time.Time
	DagerPerUke          *float32
	Deltakelsesprosent   *float64
	Bakgrunnsinformasjon *string
	Innhold              Deltakelsesinnhold

	Status            status.Status
	TidligereStatuser []status.Status

	KanEndres                bool
	ErManueltDeltMedArrangor bool
	Kilde                    id.Source

	SistEndretAv id.Actor
	SistEndret   time.Time
	Opprettet    time.Time

	Historikk []HistorikkEntry
}

// CurrentStatusType is a convenience accessor used by validators.
func (d Deltaker) CurrentStatusType() status.Type {
	return d.Status.Type
}

// IsDraft reports whether the record has never left the draft phase.
func (d Deltaker) IsDraft() bool {
	return d.Status.Type == status.TypeKladd
}

// SetStatus closes the current status at now and opens the given one. The
// caller is responsible for persisting the record afterwards; this only
// maintains the in-memory validity chain invariant.
func (d *Deltaker) SetStatus(next status.Status, now time.Time) {
	if !d.Status.ID.IsNil() {
		closed := d.Status
		closedAt := now
		closed.GyldigTil = &closedAt
		d.TidligereStatuser = append(d.TidligereStatuser, closed)
	}
	d.Status = next
}

// Equal compares two content selections element-wise; used by the no-op
// checks.
func (i Deltakelsesinnhold) Equal(other Deltakelsesinnhold) bool {
	if i.Ledetekst != other.Ledetekst || len(i.Elementer) != len(other.Elementer) {
		return false
	}
	for n, e := range i.Elementer {
		o := other.Elementer[n]
		if e.Kode != o.Kode || e.Tekst != o.Tekst || e.Valgt != o.Valgt {
			return false
		}
		if !equalStringPtr(e.Beskrivelse, o.Beskrivelse) {
			return false
		}
	}
	return true
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalFloat64Ptr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloat32Ptr(a, b *float32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
