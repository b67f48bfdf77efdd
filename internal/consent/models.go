// Package consent manages the samtykke sub-lifecycle: a pending agreement
// snapshot that precedes a formal decision. The structural invariant is that
// a record never has more than one pending samtykke; the draft operation
// updates in place instead of inserting.
package consent

import (
	"time"

	"deltaker/internal/participant"
	id "deltaker/pkg/domain"
)

// GodkjenningAvNav marks that a case worker approved on the person's behalf
// instead of the person approving digitally. Begrunnelse is mandatory.
type GodkjenningAvNav struct {
	Begrunnelse string
	Av          id.Actor
}

// Samtykke is one consent instance attached to a record at a point in its
// lifecycle.
//
// Gitt == nil means pending. The record snapshot is taken at the moment the
// draft was (last) written, so the person sees exactly the terms they are
// agreeing to even if the live record moves on.
type Samtykke struct {
	ID            id.SamtykkeID
	DeltakerID    id.DeltakerID
	Gitt          *time.Time
	GyldigTil     time.Time
	Deltaker      participant.Deltaker
	GodkjentAvNav *GodkjenningAvNav
	Opprettet     time.Time
	SistEndret    time.Time
}

// Pending reports whether this instance still awaits an answer.
func (s Samtykke) Pending() bool {
	return s.Gitt == nil
}

// Expired reports whether a pending instance ran out before being answered.
func (s Samtykke) Expired(now time.Time) bool {
	return s.Pending() && now.After(s.GyldigTil)
}
