package httptransport

import (
	"fmt"
	"time"

	"deltaker/internal/participant"
	"deltaker/internal/status"
)

type opprettRequest struct {
	Personident     string                  `json:"personident"`
	GjennomforingID string                  `json:"gjennomforingId"`
	Innhold         *participant.InnholdDTO `json:"innhold,omitempty"`
}

func (r opprettRequest) innhold() participant.Deltakelsesinnhold {
	return innholdFromDTO(r.Innhold)
}

func innholdFromDTO(dto *participant.InnholdDTO) participant.Deltakelsesinnhold {
	if dto == nil {
		return participant.Deltakelsesinnhold{}
	}
	elementer := make([]participant.Innholdselement, 0, len(dto.Elementer))
	for _, e := range dto.Elementer {
		elementer = append(elementer, participant.Innholdselement{
			Kode:        e.Kode,
			Tekst:       e.Tekst,
			Valgt:       e.Valgt,
			Beskrivelse: e.Beskrivelse,
		})
	}
	return participant.Deltakelsesinnhold{Ledetekst: dto.Ledetekst, Elementer: elementer}
}

type aarsakRequest struct {
	Type        string `json:"type"`
	Beskrivelse string `json:"beskrivelse,omitempty"`
}

func (a aarsakRequest) toAarsak() status.Aarsak {
	return status.Aarsak{Type: status.AarsakType(a.Type), Beskrivelse: a.Beskrivelse}
}

// endringRequest is the wire form of one mutation. Kind selects the variant;
// only the fields that variant uses are read.
type endringRequest struct {
	Kind string `json:"kind"`

	Bakgrunnsinformasjon *string                 `json:"bakgrunnsinformasjon,omitempty"`
	Innhold              *participant.InnholdDTO `json:"innhold,omitempty"`
	Deltakelsesprosent   *float64                `json:"deltakelsesprosent,omitempty"`
	DagerPerUke          *float32                `json:"dagerPerUke,omitempty"`
	Startdato            *string                 `json:"startdato,omitempty"`
	Sluttdato            *string                 `json:"sluttdato,omitempty"`
	Aarsak               *aarsakRequest          `json:"aarsak,omitempty"`
	Begrunnelse          string                  `json:"begrunnelse,omitempty"`
}

const wireDateFormat = "2006-01-02"

func (r endringRequest) toMutation() (participant.Mutation, error) {
	switch participant.EndringKind(r.Kind) {
	case participant.KindEndreBakgrunnsinformasjon:
		return participant.EndreBakgrunnsinformasjon{Bakgrunnsinformasjon: r.Bakgrunnsinformasjon}, nil
	case participant.KindEndreInnhold:
		if r.Innhold == nil {
			return nil, fmt.Errorf("innhold is required for %s", r.Kind)
		}
		return participant.EndreInnhold{Innhold: innholdFromDTO(r.Innhold)}, nil
	case participant.KindEndreDeltakelsesmengde:
		return participant.EndreDeltakelsesmengde{
			Deltakelsesprosent: r.Deltakelsesprosent,
			DagerPerUke:        r.DagerPerUke,
		}, nil
	case participant.KindEndreStartdato:
		start, err := r.requireDate(r.Startdato, "startdato")
		if err != nil {
			return nil, err
		}
		slutt, err := r.optionalDate(r.Sluttdato, "sluttdato")
		if err != nil {
			return nil, err
		}
		return participant.EndreStartdato{Startdato: start, Sluttdato: slutt}, nil
	case participant.KindFjernOppstartsdato:
		return participant.FjernOppstartsdato{}, nil
	case participant.KindAvsluttDeltakelse:
		slutt, err := r.requireDate(r.Sluttdato, "sluttdato")
		if err != nil {
			return nil, err
		}
		if r.Aarsak == nil {
			return nil, fmt.Errorf("aarsak is required for %s", r.Kind)
		}
		return participant.AvsluttDeltakelse{Sluttdato: slutt, Aarsak: r.Aarsak.toAarsak()}, nil
	case participant.KindForlengDeltakelse:
		slutt, err := r.requireDate(r.Sluttdato, "sluttdato")
		if err != nil {
			return nil, err
		}
		return participant.ForlengDeltakelse{Sluttdato: slutt}, nil
	case participant.KindEndreSluttdato:
		slutt, err := r.requireDate(r.Sluttdato, "sluttdato")
		if err != nil {
			return nil, err
		}
		return participant.EndreSluttdato{Sluttdato: slutt}, nil
	case participant.KindEndreSluttaarsak:
		if r.Aarsak == nil {
			return nil, fmt.Errorf("aarsak is required for %s", r.Kind)
		}
		return participant.EndreSluttaarsak{Aarsak: r.Aarsak.toAarsak()}, nil
	case participant.KindIkkeAktuell:
		if r.Aarsak == nil {
			return nil, fmt.Errorf("aarsak is required for %s", r.Kind)
		}
		return participant.IkkeAktuell{Aarsak: r.Aarsak.toAarsak()}, nil
	case participant.KindReaktiverDeltakelse:
		return participant.ReaktiverDeltakelse{Begrunnelse: r.Begrunnelse}, nil
	default:
		return nil, fmt.Errorf("unknown mutation kind %q", r.Kind)
	}
}

func (endringRequest) requireDate(raw *string, field string) (time.Time, error) {
	if raw == nil {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(wireDateFormat, *raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s is not a valid date, want YYYY-MM-DD", field)
	}
	return t, nil
}

func (endringRequest) optionalDate(raw *string, field string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(wireDateFormat, *raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid date, want YYYY-MM-DD", field)
	}
	return &t, nil
}

type godkjennRequest struct {
	Begrunnelse string `json:"begrunnelse"`
}

type fattRequest struct {
	FattetAvNav bool `json:"fattetAvNav"`
}

type delMedArrangorRequest struct {
	DeltMedArrangor bool `json:"deltMedArrangor"`
}
