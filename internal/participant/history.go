package participant

import (
	"time"

	id "deltaker/pkg/domain"
)

// HistorikkEntry is the closed set of things that can appear on a record's
// timeline. Go has no sealed hierarchies, so the union is a private marker
// method plus exhaustive switches at every consumer; an unhandled variant
// panics there instead of silently falling through.
type HistorikkEntry interface {
	historikkEntry()
	// OccurredAt returns the variant's own ordering key. Each variant
	// reads it from a different underlying field, which is why timeline
	// merging cannot sort on a shared column.
	OccurredAt() time.Time
}

// EndringKind tags what a change entry altered.
type EndringKind string

const (
	KindEndreBakgrunnsinformasjon EndringKind = "ENDRE_BAKGRUNNSINFORMASJON"
	KindEndreInnhold              EndringKind = "ENDRE_INNHOLD"
	KindEndreDeltakelsesmengde    EndringKind = "ENDRE_DELTAKELSESMENGDE"
	KindEndreStartdato            EndringKind = "ENDRE_STARTDATO"
	KindFjernOppstartsdato        EndringKind = "FJERN_OPPSTARTSDATO"
	KindAvsluttDeltakelse         EndringKind = "AVSLUTT_DELTAKELSE"
	KindForlengDeltakelse         EndringKind = "FORLENG_DELTAKELSE"
	KindEndreSluttdato            EndringKind = "ENDRE_SLUTTDATO"
	KindEndreSluttaarsak          EndringKind = "ENDRE_SLUTTAARSAK"
	KindIkkeAktuell               EndringKind = "IKKE_AKTUELL"
	KindReaktiverDeltakelse       EndringKind = "REAKTIVER_DELTAKELSE"
)

// Endring is a structured, actor-attributed delta produced by the transition
// engine. Payload holds the mutation struct that was applied, so the entry
// reproduces exactly what changed.
type Endring struct {
	ID      id.EndringID
	Kind    EndringKind
	Payload Mutation
	Endret  time.Time
	Av      id.Actor
}

func (Endring) historikkEntry()         {}
func (e Endring) OccurredAt() time.Time { return e.Endret }

// VedtakFattet marks that a formal decision bound the record's terms.
type VedtakFattet struct {
	VedtakID id.VedtakID
	Fattet   time.Time
	Av       id.Actor
	// FattetAvNav is set when the case worker decided on the person's
	// behalf rather than the person approving digitally.
	FattetAvNav bool
}

func (VedtakFattet) historikkEntry()         {}
func (v VedtakFattet) OccurredAt() time.Time { return v.Fattet }

// SamtykkeGitt marks that the person (or a case worker on their behalf)
// agreed to a proposed enrollment state.
type SamtykkeGitt struct {
	SamtykkeID id.SamtykkeID
	Gitt       time.Time
	PaVegneAv  bool
	Av         id.Actor
}

func (SamtykkeGitt) historikkEntry()         {}
func (s SamtykkeGitt) OccurredAt() time.Time { return s.Gitt }

// ImportertFraLegacy marks that the record state at that instant came from
// the legacy registry rather than a local mutation.
type ImportertFraLegacy struct {
	Importert time.Time
}

func (ImportertFraLegacy) historikkEntry()         {}
func (i ImportertFraLegacy) OccurredAt() time.Time { return i.Importert }

// KoordinatorHandling marks a privileged coordinator action that toggled a
// flag without changing status (e.g. sharing the record with the arranger).
type KoordinatorHandling struct {
	Handling string
	Utfort   time.Time
	Av       id.Actor
}

func (KoordinatorHandling) historikkEntry()         {}
func (k KoordinatorHandling) OccurredAt() time.Time { return k.Utfort }
