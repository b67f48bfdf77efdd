package httptransport

import (
	"time"

	"deltaker/internal/consent"
	"deltaker/internal/decision"
	"deltaker/internal/history"
	"deltaker/internal/participant"
)

// recordResponse is the snapshot plus the advisory duration bounds. The
// embedded snapshot flattens into the response body.
type recordResponse struct {
	participant.SnapshotDTO
	Grenser *grenserResponse `json:"grenser,omitempty"`
}

type grenserResponse struct {
	MaksSluttdato     *string `json:"maksSluttdato,omitempty"`
	SoftMaksSluttdato *string `json:"softMaksSluttdato,omitempty"`
}

func capDate(t time.Time) *string {
	v := t.Format("2006-01-02")
	return &v
}

type samtykkeResponse struct {
	ID            string                  `json:"id"`
	DeltakerID    string                  `json:"deltakerId"`
	Gitt          *time.Time              `json:"gitt"`
	GyldigTil     time.Time               `json:"gyldigTil"`
	Deltaker      participant.SnapshotDTO `json:"deltaker"`
	GodkjentAvNav *godkjenningResponse    `json:"godkjentAvNav,omitempty"`
	Opprettet     time.Time               `json:"opprettet"`
	SistEndret    time.Time               `json:"sistEndret"`
}

type godkjenningResponse struct {
	Begrunnelse string `json:"begrunnelse"`
	AvIdent     string `json:"avIdent"`
	AvEnhet     string `json:"avEnhet"`
}

func fromSamtykke(s consent.Samtykke) samtykkeResponse {
	resp := samtykkeResponse{
		ID:         s.ID.String(),
		DeltakerID: s.DeltakerID.String(),
		Gitt:       s.Gitt,
		GyldigTil:  s.GyldigTil,
		Deltaker:   participant.EncodeSnapshot(s.Deltaker),
		Opprettet:  s.Opprettet,
		SistEndret: s.SistEndret,
	}
	if s.GodkjentAvNav != nil {
		resp.GodkjentAvNav = &godkjenningResponse{
			Begrunnelse: s.GodkjentAvNav.Begrunnelse,
			AvIdent:     string(s.GodkjentAvNav.Av.Ident),
			AvEnhet:     string(s.GodkjentAvNav.Av.Enhet),
		}
	}
	return resp
}

type vedtakResponse struct {
	ID          string                  `json:"id"`
	DeltakerID  string                  `json:"deltakerId"`
	Fattet      *time.Time              `json:"fattet"`
	GyldigTil   *time.Time              `json:"gyldigTil,omitempty"`
	Deltaker    participant.SnapshotDTO `json:"deltakerVedVedtak"`
	FattetAvNav bool                    `json:"fattetAvNav"`
	Opprettet   time.Time               `json:"opprettet"`
	SistEndret  time.Time               `json:"sistEndret"`
}

func fromVedtak(v decision.Vedtak) vedtakResponse {
	return vedtakResponse{
		ID:          v.ID.String(),
		DeltakerID:  v.DeltakerID.String(),
		Fattet:      v.Fattet,
		GyldigTil:   v.GyldigTil,
		Deltaker:    participant.EncodeSnapshot(v.DeltakerVedVedtak),
		FattetAvNav: v.FattetAvNav,
		Opprettet:   v.Opprettet,
		SistEndret:  v.SistEndret,
	}
}

type historikkEntryResponse struct {
	Type          string `json:"type"`
	Tidspunkt     string `json:"tidspunkt"`
	Kind          string `json:"kind,omitempty"`
	Payload       any    `json:"payload,omitempty"`
	Handling      string `json:"handling,omitempty"`
	PaVegneAv     bool   `json:"paVegneAv"`
	UtfortAv      string `json:"utfortAv"`
	UtfortAvEnhet string `json:"utfortAvEnhet,omitempty"`
}

func fromViews(views []history.View) []historikkEntryResponse {
	out := make([]historikkEntryResponse, 0, len(views))
	for _, v := range views {
		out = append(out, historikkEntryResponse{
			Type:          string(v.Type),
			Tidspunkt:     v.Tidspunkt,
			Kind:          string(v.Kind),
			Payload:       v.Payload,
			Handling:      v.Handling,
			PaVegneAv:     v.PaVegneAv,
			UtfortAv:      v.UtfortAv,
			UtfortAvEnhet: v.UtfortAvEnhet,
		})
	}
	return out
}
