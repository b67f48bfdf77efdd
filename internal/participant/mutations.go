package participant

import (
	"time"

	"deltaker/internal/status"
)

// Mutation is one user-initiated change request. Each kind is its own struct
// so the fields a mutation may touch are encoded in the type; there is no
// catch-all patch object.
type Mutation interface {
	Kind() EndringKind
}

// EndreBakgrunnsinformasjon replaces the free-text background note.
type EndreBakgrunnsinformasjon struct {
	Bakgrunnsinformasjon *string
}

func (EndreBakgrunnsinformasjon) Kind() EndringKind { return KindEndreBakgrunnsinformasjon }

// EndreInnhold replaces the structured content selection.
type EndreInnhold struct {
	Innhold Deltakelsesinnhold
}

func (EndreInnhold) Kind() EndringKind { return KindEndreInnhold }

// EndreDeltakelsesmengde changes participation percentage and/or days per
// week.
type EndreDeltakelsesmengde struct {
	Deltakelsesprosent *float64
	DagerPerUke        *float32
}

func (EndreDeltakelsesmengde) Kind() EndringKind { return KindEndreDeltakelsesmengde }

// EndreStartdato moves the start date, optionally adjusting the end date in
// the same request so the interval stays ordered.
type EndreStartdato struct {
	Startdato time.Time
	Sluttdato *time.Time
}

func (EndreStartdato) Kind() EndringKind { return KindEndreStartdato }

// FjernOppstartsdato clears a start date that was set prematurely.
type FjernOppstartsdato struct{}

func (FjernOppstartsdato) Kind() EndringKind { return KindFjernOppstartsdato }

// AvsluttDeltakelse ends an active enrollment: sets the end date and reason
// and moves the record to HAR_SLUTTET.
type AvsluttDeltakelse struct {
	Sluttdato time.Time
	Aarsak    status.Aarsak
}

func (AvsluttDeltakelse) Kind() EndringKind { return KindAvsluttDeltakelse }

// ForlengDeltakelse pushes the end date further out. On an already-ended
// record a future end date reopens participation.
type ForlengDeltakelse struct {
	Sluttdato time.Time
}

func (ForlengDeltakelse) Kind() EndringKind { return KindForlengDeltakelse }

// EndreSluttdato corrects the end date of an already-ended enrollment. This
// is one of the two rule sets that remain open after a terminal status.
type EndreSluttdato struct {
	Sluttdato time.Time
}

func (EndreSluttdato) Kind() EndringKind { return KindEndreSluttdato }

// EndreSluttaarsak corrects the recorded end reason; the other post-terminal
// rule set.
type EndreSluttaarsak struct {
	Aarsak status.Aarsak
}

func (EndreSluttaarsak) Kind() EndringKind { return KindEndreSluttaarsak }

// IkkeAktuell rules the enrollment not relevant before it started.
type IkkeAktuell struct {
	Aarsak status.Aarsak
}

func (IkkeAktuell) Kind() EndringKind { return KindIkkeAktuell }

// ReaktiverDeltakelse reopens an ended or not-relevant enrollment.
type ReaktiverDeltakelse struct {
	Begrunnelse string
}

func (ReaktiverDeltakelse) Kind() EndringKind { return KindReaktiverDeltakelse }
