// Package decision manages vedtak: the formal ruling that binds an
// enrollment's current terms. A record has at most one undecided vedtak at a
// time, mirroring the consent package's single-pending invariant.
package decision

import (
	"time"

	"deltaker/internal/participant"
	id "deltaker/pkg/domain"
)

// Vedtak is a formal ruling over a record's proposed terms.
//
// Fattet == nil means the ruling has not been made yet. The snapshot freezes
// the terms the ruling applies to.
type Vedtak struct {
	ID         id.VedtakID
	DeltakerID id.DeltakerID
	Fattet     *time.Time
	GyldigTil  *time.Time

	DeltakerVedVedtak participant.Deltaker

	// FattetAvNav is set when the case worker decided on the person's
	// behalf instead of the person approving the proposal digitally.
	FattetAvNav bool

	Opprettet    time.Time
	OpprettetAv  id.Actor
	SistEndret   time.Time
	SistEndretAv id.Actor
}

// Decided reports whether the ruling has been made.
func (v Vedtak) Decided() bool {
	return v.Fattet != nil
}
