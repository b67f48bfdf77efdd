package reconciler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"deltaker/internal/participant"
	"deltaker/internal/status"
	id "deltaker/pkg/domain"
)

// Dato is a date-only JSON value ("2006-01-02"). The upstream feed uses
// date precision for enrollment periods and timestamp precision for
// everything else.
type Dato struct {
	time.Time
}

const datoFormat = "2006-01-02"

func (d *Dato) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	t, err := time.Parse(datoFormat, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

func (d Dato) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(datoFormat) + `"`), nil
}

// Payload is one upstream record notification. The status block is
// mandatory and must carry its own id; everything else mirrors the record's
// mutable field set.
type Payload struct {
	ID              string        `json:"id"`
	Personident     string        `json:"personident"`
	GjennomforingID string        `json:"gjennomforingId"`
	Tiltakstype     string        `json:"tiltakstype"`
	Startdato       *Dato         `json:"startdato"`
	Sluttdato       *Dato         `json:"sluttdato"`
	DagerPerUke     *float32      `json:"dagerPerUke"`
	Prosent         *float64      `json:"prosentStilling"`
	Bakgrunn        *string       `json:"bakgrunnsinformasjon"`
	Innhold         *InnholdBlock `json:"innhold"`
	Status          *StatusBlock  `json:"status"`
	Kilde           string        `json:"kilde"`
	DeltMedArrangor bool          `json:"deltMedArrangor"`
	RegistrertDato  time.Time     `json:"registrertDato"`
}

type InnholdBlock struct {
	Ledetekst string         `json:"ledetekst"`
	Elementer []ElementBlock `json:"innhold"`
}

type ElementBlock struct {
	Kode        string  `json:"innholdskode"`
	Tekst       string  `json:"tekst"`
	Valgt       bool    `json:"valgt"`
	Beskrivelse *string `json:"beskrivelse"`
}

type StatusBlock struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	Aarsak        *AarsakBlock `json:"aarsak"`
	GyldigFra     time.Time    `json:"gyldigFra"`
	OpprettetDato time.Time    `json:"opprettetDato"`
}

type AarsakBlock struct {
	Type        string `json:"type"`
	Beskrivelse string `json:"beskrivelse"`
}

// decoded is the payload after structural validation, with every identifier
// and enum parsed into its domain type.
type decoded struct {
	deltakerID      id.DeltakerID
	gjennomforingID id.GjennomforingID
	tiltakstype     id.Tiltakstype
	kilde           id.Source
	status          status.Status
	payload         Payload
}

// decodePayload validates the raw message. Any error from here means the
// message is malformed and must be dropped, not retried.
func decodePayload(value []byte) (decoded, error) {
	var p Payload
	if err := json.Unmarshal(value, &p); err != nil {
		return decoded{}, fmt.Errorf("unmarshal payload: %w", err)
	}

	deltakerID, err := id.ParseDeltakerID(p.ID)
	if err != nil {
		return decoded{}, err
	}
	gjennomforingID, err := id.ParseGjennomforingID(p.GjennomforingID)
	if err != nil {
		return decoded{}, err
	}
	tiltakstype, err := id.ParseTiltakstype(p.Tiltakstype)
	if err != nil {
		return decoded{}, err
	}
	kilde, err := id.ParseSource(p.Kilde)
	if err != nil {
		return decoded{}, err
	}
	if p.Personident == "" {
		return decoded{}, fmt.Errorf("payload carries no personident")
	}
	if p.Status == nil {
		return decoded{}, fmt.Errorf("payload carries no status block")
	}
	st, err := decodeStatus(*p.Status)
	if err != nil {
		return decoded{}, err
	}

	return decoded{
		deltakerID:      deltakerID,
		gjennomforingID: gjennomforingID,
		tiltakstype:     tiltakstype,
		kilde:           kilde,
		status:          st,
		payload:         p,
	}, nil
}

func decodeStatus(b StatusBlock) (status.Status, error) {
	statusID, err := id.ParseStatusID(b.ID)
	if err != nil {
		return status.Status{}, fmt.Errorf("status block: %w", err)
	}
	statusType, err := status.ParseType(b.Type)
	if err != nil {
		return status.Status{}, err
	}
	var aarsak *status.Aarsak
	if b.Aarsak != nil {
		aarsak = &status.Aarsak{
			Type:        status.AarsakType(b.Aarsak.Type),
			Beskrivelse: b.Aarsak.Beskrivelse,
		}
		if !aarsak.Valid() {
			return status.Status{}, fmt.Errorf("status block: invalid aarsak %q", b.Aarsak.Type)
		}
	}
	return status.Status{
		ID:        statusID,
		Type:      statusType,
		Aarsak:    aarsak,
		GyldigFra: b.GyldigFra,
		Opprettet: b.OpprettetDato,
	}, nil
}

func (d decoded) innhold() participant.Deltakelsesinnhold {
	if d.payload.Innhold == nil {
		return participant.Deltakelsesinnhold{}
	}
	elementer := make([]participant.Innholdselement, 0, len(d.payload.Innhold.Elementer))
	for _, e := range d.payload.Innhold.Elementer {
		elementer = append(elementer, participant.Innholdselement{
			Kode:        e.Kode,
			Tekst:       e.Tekst,
			Valgt:       e.Valgt,
			Beskrivelse: e.Beskrivelse,
		})
	}
	return participant.Deltakelsesinnhold{
		Ledetekst: d.payload.Innhold.Ledetekst,
		Elementer: elementer,
	}
}

func (d decoded) startdato() *time.Time {
	return datoPtr(d.payload.Startdato)
}

func (d decoded) sluttdato() *time.Time {
	return datoPtr(d.payload.Sluttdato)
}

func datoPtr(d *Dato) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
