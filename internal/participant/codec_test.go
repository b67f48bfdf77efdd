package participant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltaker/internal/status"
	id "deltaker/pkg/domain"
)

func TestHistorikkEntryCodecPreservesPayloadType(t *testing.T) {
	av := id.Actor{Ident: "Z123456", Enhet: "0315"}
	entry := Endring{
		ID:   id.NewEndringID(),
		Kind: KindAvsluttDeltakelse,
		Payload: AvsluttDeltakelse{
			Sluttdato: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Aarsak:    status.Aarsak{Type: status.AarsakFattJobb},
		},
		Endret: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		Av:     av,
	}

	kind, data, err := EncodeHistorikkEntry(entry)
	require.NoError(t, err)
	assert.Equal(t, EntryKindEndring, kind)

	decoded, err := DecodeHistorikkEntry(kind, data)
	require.NoError(t, err)

	got, ok := decoded.(Endring)
	require.True(t, ok)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.Kind, got.Kind)

	payload, ok := got.Payload.(AvsluttDeltakelse)
	require.True(t, ok, "payload must come back as its concrete mutation type")
	assert.Equal(t, status.AarsakFattJobb, payload.Aarsak.Type)
	assert.True(t, payload.Sluttdato.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestHistorikkEntryCodecDecisionMarker(t *testing.T) {
	entry := VedtakFattet{
		VedtakID:    id.NewVedtakID(),
		Fattet:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Av:          id.Actor{Ident: "Z123456"},
		FattetAvNav: true,
	}

	kind, data, err := EncodeHistorikkEntry(entry)
	require.NoError(t, err)

	decoded, err := DecodeHistorikkEntry(kind, data)
	require.NoError(t, err)
	got, ok := decoded.(VedtakFattet)
	require.True(t, ok)
	assert.Equal(t, entry.VedtakID, got.VedtakID)
	assert.True(t, got.FattetAvNav)
}

func TestHistorikkEntryCodecPointerFieldPayload(t *testing.T) {
	pct := 60.0
	dager := float32(3)
	entry := Endring{
		ID:      id.NewEndringID(),
		Kind:    KindEndreDeltakelsesmengde,
		Payload: EndreDeltakelsesmengde{Deltakelsesprosent: &pct, DagerPerUke: &dager},
		Endret:  time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC),
		Av:      id.Actor{Ident: "Z123456"},
	}

	kind, data, err := EncodeHistorikkEntry(entry)
	require.NoError(t, err)

	decoded, err := DecodeHistorikkEntry(kind, data)
	require.NoError(t, err)
	got, ok := decoded.(Endring)
	require.True(t, ok)

	payload, ok := got.Payload.(EndreDeltakelsesmengde)
	require.True(t, ok, "payload must decode as the value type, not a pointer")
	require.NotNil(t, payload.Deltakelsesprosent)
	assert.Equal(t, pct, *payload.Deltakelsesprosent)
	require.NotNil(t, payload.DagerPerUke)
	assert.Equal(t, dager, *payload.DagerPerUke)
}

func TestDecodeHistorikkEntryUnknownDiscriminator(t *testing.T) {
	_, err := DecodeHistorikkEntry("SOMETHING_NEW", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOMETHING_NEW")
}

func TestSnapshotRoundTrip(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bakgrunn := "trenger tett oppfølging"
	d := Deltaker{
		ID:                   id.NewDeltakerID(),
		PersonID:             id.NewPersonID(),
		GjennomforingID:      id.NewGjennomforingID(),
		Tiltakstype:          id.TiltakOppfolging,
		Startdato:            &start,
		Bakgrunnsinformasjon: &bakgrunn,
		Innhold: Deltakelsesinnhold{
			Ledetekst: "Innholdet tilpasses deg",
			Elementer: []Innholdselement{
				{Kode: "jobbsoking", Tekst: "Støtte til jobbsøking", Valgt: true},
			},
		},
		Status:    status.New(status.TypeDeltar, nil, start),
		KanEndres: true,
		Kilde:     id.SourceLokal,
		Opprettet: start,
	}

	got, err := DecodeSnapshot(EncodeSnapshot(d))
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.Tiltakstype, got.Tiltakstype)
	assert.Equal(t, &bakgrunn, got.Bakgrunnsinformasjon)
	assert.True(t, d.Innhold.Equal(got.Innhold))
	assert.Equal(t, d.Status.ID, got.Status.ID)
	assert.True(t, got.KanEndres)
}
