package participant

import (
	"encoding/json"
	"fmt"
	"time"

	"deltaker/internal/status"
	id "deltaker/pkg/domain"
)

// Persistence DTOs. The typed uuid wrappers in pkg/domain intentionally do
// not round-trip through encoding/json, so everything that crosses a storage
// or wire boundary is converted here, in one place, with exhaustive switches
// over the history union.

// Discriminator values for the history table and for snapshot JSON.
const (
	EntryKindEndring      = "ENDRING"
	EntryKindVedtakFattet = "VEDTAK_FATTET"
	EntryKindSamtykkeGitt = "SAMTYKKE_GITT"
	EntryKindImportert    = "IMPORTERT_FRA_LEGACY"
	EntryKindKoordinator  = "KOORDINATOR_HANDLING"
)

type actorDTO struct {
	Ident string `json:"ident"`
	Enhet string `json:"enhet,omitempty"`
}

func encodeActor(a id.Actor) actorDTO {
	return actorDTO{Ident: string(a.Ident), Enhet: string(a.Enhet)}
}

func (a actorDTO) decode() id.Actor {
	return id.Actor{Ident: id.NavIdent(a.Ident), Enhet: id.Enhetsnummer(a.Enhet)}
}

type endringDTO struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Endret  time.Time       `json:"endret"`
	Av      actorDTO        `json:"av"`
}

type vedtakFattetDTO struct {
	VedtakID    string    `json:"vedtakId"`
	Fattet      time.Time `json:"fattet"`
	Av          actorDTO  `json:"av"`
	FattetAvNav bool      `json:"fattetAvNav"`
}

type samtykkeGittDTO struct {
	SamtykkeID string    `json:"samtykkeId"`
	Gitt       time.Time `json:"gitt"`
	PaVegneAv  bool      `json:"paVegneAv"`
	Av         actorDTO  `json:"av"`
}

type importertDTO struct {
	Importert time.Time `json:"importert"`
}

type koordinatorDTO struct {
	Handling string    `json:"handling"`
	Utfort   time.Time `json:"utfort"`
	Av       actorDTO  `json:"av"`
}

// EncodeHistorikkEntry serializes one entry into its discriminator and JSON
// body. The switch is exhaustive over the closed union; a new variant that
// reaches storage unencoded is a programming error.
func EncodeHistorikkEntry(e HistorikkEntry) (kind string, data []byte, err error) {
	switch v := e.(type) {
	case Endring:
		payload, err := json.Marshal(v.Payload)
		if err != nil {
			return "", nil, fmt.Errorf("marshal endring payload: %w", err)
		}
		data, err := json.Marshal(endringDTO{
			ID:      v.ID.String(),
			Kind:    string(v.Kind),
			Payload: payload,
			Endret:  v.Endret,
			Av:      encodeActor(v.Av),
		})
		return EntryKindEndring, data, err
	case VedtakFattet:
		data, err := json.Marshal(vedtakFattetDTO{
			VedtakID:    v.VedtakID.String(),
			Fattet:      v.Fattet,
			Av:          encodeActor(v.Av),
			FattetAvNav: v.FattetAvNav,
		})
		return EntryKindVedtakFattet, data, err
	case SamtykkeGitt:
		data, err := json.Marshal(samtykkeGittDTO{
			SamtykkeID: v.SamtykkeID.String(),
			Gitt:       v.Gitt,
			PaVegneAv:  v.PaVegneAv,
			Av:         encodeActor(v.Av),
		})
		return EntryKindSamtykkeGitt, data, err
	case ImportertFraLegacy:
		data, err := json.Marshal(importertDTO{Importert: v.Importert})
		return EntryKindImportert, data, err
	case KoordinatorHandling:
		data, err := json.Marshal(koordinatorDTO{
			Handling: v.Handling,
			Utfort:   v.Utfort,
			Av:       encodeActor(v.Av),
		})
		return EntryKindKoordinator, data, err
	default:
		panic(fmt.Sprintf("participant: unhandled history entry variant %T", e))
	}
}

// DecodeHistorikkEntry is the inverse of EncodeHistorikkEntry. Unknown
// discriminators are errors, not panics: stored data may outlive the binary
// that wrote it.
func DecodeHistorikkEntry(kind string, data []byte) (HistorikkEntry, error) {
	switch kind {
	case EntryKindEndring:
		var dto endringDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("unmarshal endring entry: %w", err)
		}
		endringID, err := id.ParseEndringID(dto.ID)
		if err != nil {
			return nil, err
		}
		payload, err := decodeMutation(EndringKind(dto.Kind), dto.Payload)
		if err != nil {
			return nil, err
		}
		return Endring{
			ID:      endringID,
			Kind:    EndringKind(dto.Kind),
			Payload: payload,
			Endret:  dto.Endret,
			Av:      dto.Av.decode(),
		}, nil
	case EntryKindVedtakFattet:
		var dto vedtakFattetDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("unmarshal vedtak entry: %w", err)
		}
		vedtakID, err := id.ParseVedtakID(dto.VedtakID)
		if err != nil {
			return nil, err
		}
		return VedtakFattet{
			VedtakID:    vedtakID,
			Fattet:      dto.Fattet,
			Av:          dto.Av.decode(),
			FattetAvNav: dto.FattetAvNav,
		}, nil
	case EntryKindSamtykkeGitt:
		var dto samtykkeGittDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("unmarshal samtykke entry: %w", err)
		}
		samtykkeID, err := id.ParseSamtykkeID(dto.SamtykkeID)
		if err != nil {
			return nil, err
		}
		return SamtykkeGitt{
			SamtykkeID: samtykkeID,
			Gitt:       dto.Gitt,
			PaVegneAv:  dto.PaVegneAv,
			Av:         dto.Av.decode(),
		}, nil
	case EntryKindImportert:
		var dto importertDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("unmarshal import entry: %w", err)
		}
		return ImportertFraLegacy{Importert: dto.Importert}, nil
	case EntryKindKoordinator:
		var dto koordinatorDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("unmarshal koordinator entry: %w", err)
		}
		return KoordinatorHandling{
			Handling: dto.Handling,
			Utfort:   dto.Utfort,
			Av:       dto.Av.decode(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown history entry discriminator %q", kind)
	}
}

func decodeMutation(kind EndringKind, data []byte) (Mutation, error) {
	switch kind {
	case KindEndreBakgrunnsinformasjon:
		return unmarshalMutation[EndreBakgrunnsinformasjon](kind, data)
	case KindEndreInnhold:
		return unmarshalMutation[EndreInnhold](kind, data)
	case KindEndreDeltakelsesmengde:
		return unmarshalMutation[EndreDeltakelsesmengde](kind, data)
	case KindEndreStartdato:
		return unmarshalMutation[EndreStartdato](kind, data)
	case KindFjernOppstartsdato:
		return unmarshalMutation[FjernOppstartsdato](kind, data)
	case KindAvsluttDeltakelse:
		return unmarshalMutation[AvsluttDeltakelse](kind, data)
	case KindForlengDeltakelse:
		return unmarshalMutation[ForlengDeltakelse](kind, data)
	case KindEndreSluttdato:
		return unmarshalMutation[EndreSluttdato](kind, data)
	case KindEndreSluttaarsak:
		return unmarshalMutation[EndreSluttaarsak](kind, data)
	case KindIkkeAktuell:
		return unmarshalMutation[IkkeAktuell](kind, data)
	case KindReaktiverDeltakelse:
		return unmarshalMutation[ReaktiverDeltakelse](kind, data)
	default:
		return nil, fmt.Errorf("unknown endring kind %q", kind)
	}
}

// unmarshalMutation decodes into a local value of the concrete mutation type
// so the payload comes back as T, not *T.
func unmarshalMutation[T Mutation](kind EndringKind, data []byte) (Mutation, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
	}
	return m, nil
}

// SnapshotDTO is a full record snapshot as stored on consent and decision
// rows. It freezes the terms the person or case worker agreed to.
type SnapshotDTO struct {
	ID                   string     `json:"id"`
	PersonID             string     `json:"personId"`
	GjennomforingID      string     `json:"gjennomforingId"`
	Tiltakstype          string     `json:"tiltakstype"`
	Innsatsgruppe        string     `json:"innsatsgruppe,omitempty"`
	Startdato            *time.Time `json:"startdato"`
	Sluttdato            *time.Time `json:"sluttdato"`
	DagerPerUke          *float32   `json:"dagerPerUke"`
	Deltakelsesprosent   *float64   `json:"deltakelsesprosent"`
	Bakgrunnsinformasjon *string    `json:"bakgrunnsinformasjon"`
	Innhold              InnholdDTO `json:"innhold"`
	Status               StatusDTO  `json:"status"`
	Kilde                string     `json:"kilde"`
	KanEndres            bool       `json:"kanEndres"`
	DeltMedArrangor      bool       `json:"deltMedArrangor"`
	SistEndret           time.Time  `json:"sistEndret"`
	SistEndretAv         actorDTO   `json:"sistEndretAv"`
	Opprettet            time.Time  `json:"opprettet"`
}

type InnholdDTO struct {
	Ledetekst string       `json:"ledetekst"`
	Elementer []ElementDTO `json:"elementer"`
}

type ElementDTO struct {
	Kode        string  `json:"kode"`
	Tekst       string  `json:"tekst"`
	Valgt       bool    `json:"valgt"`
	Beskrivelse *string `json:"beskrivelse,omitempty"`
}

type StatusDTO struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	AarsakType  *string    `json:"aarsakType,omitempty"`
	AarsakTekst string     `json:"aarsakTekst,omitempty"`
	GyldigFra   time.Time  `json:"gyldigFra"`
	GyldigTil   *time.Time `json:"gyldigTil,omitempty"`
	Opprettet   time.Time  `json:"opprettet"`
}

// EncodeSnapshot converts a record into its snapshot form. History is
// deliberately not part of the snapshot; it lives in its own table.
func EncodeSnapshot(d Deltaker) SnapshotDTO {
	return SnapshotDTO{
		ID:                   d.ID.String(),
		PersonID:             d.PersonID.String(),
		GjennomforingID:      d.GjennomforingID.String(),
		Tiltakstype:          string(d.Tiltakstype),
		Innsatsgruppe:        string(d.Innsatsgruppe),
		Startdato:            d.Startdato,
		Sluttdato:            d.Sluttdato,
		DagerPerUke:          d.DagerPerUke,
		Deltakelsesprosent:   d.Deltakelsesprosent,
		Bakgrunnsinformasjon: d.Bakgrunnsinformasjon,
		Innhold:              encodeInnhold(d.Innhold),
		Status:               EncodeStatus(d.Status),
		Kilde:                string(d.Kilde),
		KanEndres:            d.KanEndres,
		DeltMedArrangor:      d.ErManueltDeltMedArrangor,
		SistEndret:           d.SistEndret,
		SistEndretAv:         encodeActor(d.SistEndretAv),
		Opprettet:            d.Opprettet,
	}
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(dto SnapshotDTO) (Deltaker, error) {
	deltakerID, err := id.ParseDeltakerID(dto.ID)
	if err != nil {
		return Deltaker{}, err
	}
	personID, err := id.ParsePersonID(dto.PersonID)
	if err != nil {
		return Deltaker{}, err
	}
	gjennomforingID, err := id.ParseGjennomforingID(dto.GjennomforingID)
	if err != nil {
		return Deltaker{}, err
	}
	st, err := DecodeStatus(dto.Status)
	if err != nil {
		return Deltaker{}, err
	}
	return Deltaker{
		ID:                       deltakerID,
		PersonID:                 personID,
		GjennomforingID:          gjennomforingID,
		Tiltakstype:              id.Tiltakstype(dto.Tiltakstype),
		Innsatsgruppe:            id.Innsatsgruppe(dto.Innsatsgruppe),
		Startdato:                dto.Startdato,
		Sluttdato:                dto.Sluttdato,
		DagerPerUke:              dto.DagerPerUke,
		Deltakelsesprosent:       dto.Deltakelsesprosent,
		Bakgrunnsinformasjon:     dto.Bakgrunnsinformasjon,
		Innhold:                  decodeInnhold(dto.Innhold),
		Status:                   st,
		Kilde:                    id.Source(dto.Kilde),
		KanEndres:                dto.KanEndres,
		ErManueltDeltMedArrangor: dto.DeltMedArrangor,
		SistEndret:               dto.SistEndret,
		SistEndretAv:             dto.SistEndretAv.decode(),
		Opprettet:                dto.Opprettet,
	}, nil
}

// EncodeStatus converts one status chain entry for storage.
func EncodeStatus(s status.Status) StatusDTO {
	dto := StatusDTO{
		ID:        s.ID.String(),
		Type:      string(s.Type),
		GyldigFra: s.GyldigFra,
		GyldigTil: s.GyldigTil,
		Opprettet: s.Opprettet,
	}
	if s.Aarsak != nil {
		t := string(s.Aarsak.Type)
		dto.AarsakType = &t
		dto.AarsakTekst = s.Aarsak.Beskrivelse
	}
	return dto
}

// DecodeStatus is the inverse of EncodeStatus.
func DecodeStatus(dto StatusDTO) (status.Status, error) {
	statusID, err := id.ParseStatusID(dto.ID)
	if err != nil {
		return status.Status{}, err
	}
	statusType, err := status.ParseType(dto.Type)
	if err != nil {
		return status.Status{}, err
	}
	var aarsak *status.Aarsak
	if dto.AarsakType != nil {
		aarsak = &status.Aarsak{
			Type:        status.AarsakType(*dto.AarsakType),
			Beskrivelse: dto.AarsakTekst,
		}
	}
	return status.Status{
		ID:        statusID,
		Type:      statusType,
		Aarsak:    aarsak,
		GyldigFra: dto.GyldigFra,
		GyldigTil: dto.GyldigTil,
		Opprettet: dto.Opprettet,
	}, nil
}

func encodeInnhold(i Deltakelsesinnhold) InnholdDTO {
	elementer := make([]ElementDTO, 0, len(i.Elementer))
	for _, e := range i.Elementer {
		elementer = append(elementer, ElementDTO{
			Kode:        e.Kode,
			Tekst:       e.Tekst,
			Valgt:       e.Valgt,
			Beskrivelse: e.Beskrivelse,
		})
	}
	return InnholdDTO{Ledetekst: i.Ledetekst, Elementer: elementer}
}

func decodeInnhold(dto InnholdDTO) Deltakelsesinnhold {
	elementer := make([]Innholdselement, 0, len(dto.Elementer))
	for _, e := range dto.Elementer {
		elementer = append(elementer, Innholdselement{
			Kode:        e.Kode,
			Tekst:       e.Tekst,
			Valgt:       e.Valgt,
			Beskrivelse: e.Beskrivelse,
		})
	}
	return Deltakelsesinnhold{Ledetekst: dto.Ledetekst, Elementer: elementer}
}
