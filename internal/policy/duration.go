// Package policy holds pure lookup rules consulted by validation and
// presentation. The duration policy computes a boundary; it never rejects.
// Exceeding a maximum is surfaced to callers as a soft warning.
package policy

import (
	"time"

	id "deltaker/pkg/domain"
)

// Duration expresses program caps in calendar units rather than a
// time.Duration, since the rules are written in weeks and years.
type Duration struct {
	Days   int
	Months int
	Years  int
}

func weeks(n int) *Duration  { return &Duration{Days: n * 7} }
func months(n int) *Duration { return &Duration{Months: n} }
func years(n int) *Duration  { return &Duration{Years: n} }

// AddTo returns the instant the cap runs out, counted from start.
func (d Duration) AddTo(start time.Time) time.Time {
	return start.AddDate(d.Years, d.Months, d.Days)
}

type caps struct {
	soft *Duration
	max  *Duration
}

// DurationPolicy is immutable process-wide configuration: constructed once at
// startup and passed by reference to whoever consults it.
type DurationPolicy struct {
	byTiltak map[id.Tiltakstype]caps
	// oppfolging is the only program type where the needs category
	// changes the cap.
	oppfolging map[id.Innsatsgruppe]caps
}

// NewDurationPolicy loads the fixed cap table.
func NewDurationPolicy() *DurationPolicy {
	return &DurationPolicy{
		byTiltak: map[id.Tiltakstype]caps{
			id.TiltakAvklaring:                  {soft: weeks(4), max: weeks(8)},
			id.TiltakArbeidsforberedendeTrening: {soft: years(1), max: years(3)},
			id.TiltakJobbklubb:                  {soft: nil, max: weeks(12)},
			// Group training, the digital track, and permanent sheltered
			// work carry no participation cap.
			id.TiltakGruppeAMO:                 {},
			id.TiltakGruppeFagYrke:             {},
			id.TiltakDigitaltOppfolgingstiltak: {},
			id.TiltakVTA:                       {},
		},
		oppfolging: map[id.Innsatsgruppe]caps{
			id.InnsatsSituasjonsbestemt:     {soft: months(6), max: years(1)},
			id.InnsatsSpesieltTilpasset:     {soft: months(6), max: years(3)},
			id.InnsatsVarigTilpasset:        {soft: months(6), max: years(3)},
			id.InnsatsGradertVarigTilpasset: {soft: months(6), max: years(3)},
		},
	}
}

// MaxDuration returns the hard cap for the program type, or nil when no cap
// applies.
func (p *DurationPolicy) MaxDuration(tiltak id.Tiltakstype, innsats id.Innsatsgruppe) *Duration {
	return p.lookup(tiltak, innsats).max
}

// SoftMaxDuration returns the advisory cap presentation warns about before
// the hard cap is reached, or nil when no advisory cap applies.
func (p *DurationPolicy) SoftMaxDuration(tiltak id.Tiltakstype, innsats id.Innsatsgruppe) *Duration {
	return p.lookup(tiltak, innsats).soft
}

func (p *DurationPolicy) lookup(tiltak id.Tiltakstype, innsats id.Innsatsgruppe) caps {
	if tiltak == id.TiltakOppfolging {
		return p.oppfolging[innsats]
	}
	return p.byTiltak[tiltak]
}
