package participant

import (
	"deltaker/internal/status"
)

// allowedStatuses gates every mutation kind on the record's current status.
// The two ENDRE_SLUTT* kinds are the explicit post-terminal exceptions from
// the domain rules; everything else stops at a terminal status.
var allowedStatuses = map[EndringKind][]status.Type{
	KindEndreBakgrunnsinformasjon: nil, // any content-mutable status, see below
	KindEndreInnhold:              nil,
	KindEndreDeltakelsesmengde: {
		status.TypeKladd, status.TypeUtkast,
		status.TypeVenterPaOppstart, status.TypeDeltar,
	},
	KindEndreStartdato: {
		status.TypeVenterPaOppstart, status.TypeDeltar,
	},
	KindFjernOppstartsdato: {
		status.TypeVenterPaOppstart,
	},
	KindAvsluttDeltakelse: {
		status.TypeDeltar,
	},
	KindForlengDeltakelse: {
		status.TypeDeltar, status.TypeHarSluttet,
	},
	KindEndreSluttdato: {
		status.TypeHarSluttet, status.TypeAvbrutt, status.TypeFullfort,
	},
	KindEndreSluttaarsak: {
		status.TypeHarSluttet, status.TypeIkkeAktuell,
		status.TypeAvbrutt, status.TypeFullfort,
	},
	KindIkkeAktuell: nil, // any non-terminal status, see below
	KindReaktiverDeltakelse: {
		status.TypeHarSluttet, status.TypeIkkeAktuell,
	},
}

// Ruleset runs the mutation-specific precondition checks against the current
// record and the proposed change. It is pure: no I/O, no clock beyond the
// instant handed in.
type Ruleset struct{}

func NewRuleset() *Ruleset {
	return &Ruleset{}
}

// Validate returns nil when the mutation may be applied. isNew marks the
// draft-allocation path, which skips the must-differ checks since every field
// of a new record "differs".
func (r *Ruleset) Validate(d Deltaker, m Mutation, isNew bool) *Rejection {
	if !isNew && !d.KanEndres {
		return reject(RejectNotEditable, "record %s is locked for editing", d.ID)
	}
	if rej := r.checkRepeatedTerminal(d, m); rej != nil {
		return rej
	}
	// The allocation path validates before the record has any status; the
	// gate starts once the draft exists.
	if !isNew {
		if rej := r.checkStatus(d, m); rej != nil {
			return rej
		}
	}

	switch mut := m.(type) {
	case EndreBakgrunnsinformasjon:
		if !isNew && equalStringPtr(d.Bakgrunnsinformasjon, mut.Bakgrunnsinformasjon) {
			return reject(RejectNoChange, "background note is unchanged")
		}
	case EndreInnhold:
		if !isNew && d.Innhold.Equal(mut.Innhold) {
			return reject(RejectNoChange, "content selection is unchanged")
		}
	case EndreDeltakelsesmengde:
		if mut.Deltakelsesprosent != nil && (*mut.Deltakelsesprosent <= 0 || *mut.Deltakelsesprosent > 100) {
			return reject(RejectOutOfRange, "deltakelsesprosent must be in (0, 100], got %v", *mut.Deltakelsesprosent)
		}
		if mut.DagerPerUke != nil && (*mut.DagerPerUke < 1 || *mut.DagerPerUke > 5) {
			return reject(RejectOutOfRange, "dager per uke must be in [1, 5], got %v", *mut.DagerPerUke)
		}
		if !isNew &&
			equalFloat64Ptr(d.Deltakelsesprosent, mut.Deltakelsesprosent) &&
			equalFloat32Ptr(d.DagerPerUke, mut.DagerPerUke) {
			return reject(RejectNoChange, "participation load is unchanged")
		}
	case EndreStartdato:
		slutt := mut.Sluttdato
		if slutt == nil {
			slutt = d.Sluttdato
		}
		if slutt != nil && slutt.Before(mut.Startdato) {
			return reject(RejectOutOfRange, "end date %s is before start date %s", slutt.Format(dateFormat), mut.Startdato.Format(dateFormat))
		}
		if !isNew &&
			equalTimePtr(d.Startdato, &mut.Startdato) &&
			(mut.Sluttdato == nil || equalTimePtr(d.Sluttdato, mut.Sluttdato)) {
			return reject(RejectNoChange, "start date is unchanged")
		}
	case FjernOppstartsdato:
		if d.Startdato == nil {
			return reject(RejectNoChange, "record has no start date to remove")
		}
	case AvsluttDeltakelse:
		if !mut.Aarsak.Valid() {
			return reject(RejectMissingJustification, "a valid end reason is required to close the enrollment")
		}
		if d.Startdato != nil && mut.Sluttdato.Before(*d.Startdato) {
			return reject(RejectOutOfRange, "end date %s is before start date %s", mut.Sluttdato.Format(dateFormat), d.Startdato.Format(dateFormat))
		}
	case ForlengDeltakelse:
		if d.Sluttdato == nil {
			return reject(RejectOutOfRange, "cannot extend a record with no end date")
		}
		if !mut.Sluttdato.After(*d.Sluttdato) {
			return reject(RejectOutOfRange, "new end date %s must be after current end date %s", mut.Sluttdato.Format(dateFormat), d.Sluttdato.Format(dateFormat))
		}
	case EndreSluttdato:
		if d.Startdato != nil && mut.Sluttdato.Before(*d.Startdato) {
			return reject(RejectOutOfRange, "end date %s is before start date %s", mut.Sluttdato.Format(dateFormat), d.Startdato.Format(dateFormat))
		}
		if equalTimePtr(d.Sluttdato, &mut.Sluttdato) {
			return reject(RejectNoChange, "end date is unchanged")
		}
	case EndreSluttaarsak:
		if !mut.Aarsak.Valid() {
			return reject(RejectMissingJustification, "a valid end reason is required")
		}
		if d.Status.Aarsak != nil && *d.Status.Aarsak == mut.Aarsak {
			return reject(RejectNoChange, "end reason is unchanged")
		}
	case IkkeAktuell:
		if !mut.Aarsak.Valid() {
			return reject(RejectMissingJustification, "a valid reason is required to rule the enrollment not relevant")
		}
	case ReaktiverDeltakelse:
		if mut.Begrunnelse == "" {
			return reject(RejectMissingJustification, "reactivation requires a justification")
		}
	default:
		return reject(RejectInvalidPayload, "unknown mutation kind %T", m)
	}
	return nil
}

// checkRepeatedTerminal turns a resubmission of the terminal transition the
// record already sits on into a no-op instead of a status violation, so
// repeated identical submissions read as NO_CHANGE to the caller.
func (r *Ruleset) checkRepeatedTerminal(d Deltaker, m Mutation) *Rejection {
	switch mut := m.(type) {
	case AvsluttDeltakelse:
		if d.Status.Type == status.TypeHarSluttet &&
			d.Status.Aarsak != nil && *d.Status.Aarsak == mut.Aarsak &&
			equalTimePtr(d.Sluttdato, &mut.Sluttdato) {
			return reject(RejectNoChange, "enrollment is already closed with these terms")
		}
	case IkkeAktuell:
		if d.Status.Type == status.TypeIkkeAktuell &&
			d.Status.Aarsak != nil && *d.Status.Aarsak == mut.Aarsak {
			return reject(RejectNoChange, "enrollment is already ruled not relevant for this reason")
		}
	}
	return nil
}

func (r *Ruleset) checkStatus(d Deltaker, m Mutation) *Rejection {
	kind := m.Kind()
	allowed, known := allowedStatuses[kind]
	if !known {
		return reject(RejectInvalidPayload, "unknown mutation kind %s", kind)
	}
	current := d.CurrentStatusType()

	// Kinds with a nil set fall back to the classification table.
	if allowed == nil {
		switch kind {
		case KindIkkeAktuell:
			if status.IsTerminal(current) {
				return wrongStatus(kind, current)
			}
		default:
			if !status.AllowsContentMutation(current) {
				return wrongStatus(kind, current)
			}
		}
		return nil
	}

	for _, t := range allowed {
		if t == current {
			return nil
		}
	}
	return wrongStatus(kind, current)
}

func wrongStatus(kind EndringKind, current status.Type) *Rejection {
	return reject(RejectWrongStatus, "%s is not allowed while status is %s", kind, current)
}

const dateFormat = "2006-01-02"
