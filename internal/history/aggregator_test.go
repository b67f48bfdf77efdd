package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deltaker/internal/participant"
	id "deltaker/pkg/domain"
)

type stubResolver struct {
	identNavn map[id.NavIdent]string
	enhetNavn map[id.Enhetsnummer]string
	err       error

	gotIdenter []id.NavIdent
	gotEnheter []id.Enhetsnummer
	calls      int
}

func (r *stubResolver) ResolveNames(_ context.Context, identer []id.NavIdent, enheter []id.Enhetsnummer) (map[id.NavIdent]string, map[id.Enhetsnummer]string, error) {
	r.calls++
	r.gotIdenter = identer
	r.gotEnheter = enheter
	return r.identNavn, r.enhetNavn, r.err
}

type AggregatorSuite struct {
	suite.Suite
	resolver *stubResolver
	agg      *Aggregator
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) SetupTest() {
	s.resolver = &stubResolver{
		identNavn: map[id.NavIdent]string{"Z123456": "Kari Saksbehandler"},
		enhetNavn: map[id.Enhetsnummer]string{"0315": "Nav Grünerløkka"},
	}
	s.agg = NewAggregator(s.resolver, nil)
}

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func (s *AggregatorSuite) TestRenderMergesDescendingAcrossVariants() {
	av := id.Actor{Ident: "Z123456", Enhet: "0315"}
	d := participant.Deltaker{
		ID: id.NewDeltakerID(),
		Historikk: []participant.HistorikkEntry{
			participant.ImportertFraLegacy{Importert: at(1, 9)},
			participant.Endring{
				ID:     id.NewEndringID(),
				Kind:   participant.KindEndreStartdato,
				Endret: at(3, 12),
				Av:     av,
			},
			participant.SamtykkeGitt{SamtykkeID: id.NewSamtykkeID(), Gitt: at(2, 10), Av: av},
			participant.VedtakFattet{VedtakID: id.NewVedtakID(), Fattet: at(4, 8), Av: av, FattetAvNav: true},
			participant.KoordinatorHandling{Handling: "DELT_MED_ARRANGOR", Utfort: at(2, 15), Av: av},
		},
	}

	views, err := s.agg.Render(context.Background(), d)
	s.Require().NoError(err)
	s.Require().Len(views, 5)

	s.Run("ordering is each variant's own timestamp, most recent first", func() {
		got := make([]EntryType, 0, len(views))
		for _, v := range views {
			got = append(got, v.Type)
		}
		s.Equal([]EntryType{TypeVedtak, TypeEndring, TypeKoordinator, TypeSamtykke, TypeImport}, got)
	})

	s.Run("actor and unit identifiers are resolved to names", func() {
		s.Equal("Kari Saksbehandler", views[0].UtfortAv)
		s.Equal("Nav Grünerløkka", views[0].UtfortAvEnhet)
		s.True(views[0].PaVegneAv)
	})

	s.Run("import entries are attributed to the system", func() {
		s.Equal("System", views[4].UtfortAv)
		s.Empty(views[4].UtfortAvEnhet)
	})

	s.Run("identifiers are deduplicated before resolution", func() {
		s.Equal(1, s.resolver.calls)
		s.Equal([]id.NavIdent{"Z123456"}, s.resolver.gotIdenter)
		s.Equal([]id.Enhetsnummer{"0315"}, s.resolver.gotEnheter)
	})
}

func (s *AggregatorSuite) TestRenderKeepsStableOrderOnEqualTimestamps() {
	av := id.Actor{Ident: "Z123456", Enhet: "0315"}
	ts := at(5, 9)
	first := participant.Endring{ID: id.NewEndringID(), Kind: participant.KindEndreInnhold, Endret: ts, Av: av}
	second := participant.Endring{ID: id.NewEndringID(), Kind: participant.KindEndreBakgrunnsinformasjon, Endret: ts, Av: av}
	d := participant.Deltaker{
		ID:        id.NewDeltakerID(),
		Historikk: []participant.HistorikkEntry{first, second},
	}

	views, err := s.agg.Render(context.Background(), d)
	s.Require().NoError(err)
	s.Require().Len(views, 2)
	s.Equal(participant.KindEndreInnhold, views[0].Kind)
	s.Equal(participant.KindEndreBakgrunnsinformasjon, views[1].Kind)
}

func (s *AggregatorSuite) TestRenderDegradesToRawIdentifiersOnResolverFailure() {
	s.resolver.err = errors.New("directory unavailable")
	av := id.Actor{Ident: "Z999999", Enhet: "0219"}
	d := participant.Deltaker{
		ID: id.NewDeltakerID(),
		Historikk: []participant.HistorikkEntry{
			participant.Endring{ID: id.NewEndringID(), Kind: participant.KindEndreStartdato, Endret: at(1, 9), Av: av},
		},
	}

	views, err := s.agg.Render(context.Background(), d)
	s.Require().NoError(err, "presentation reads never fail on name lookup")
	s.Require().Len(views, 1)
	s.Equal("Z999999", views[0].UtfortAv)
	s.Equal("0219", views[0].UtfortAvEnhet)
}

func (s *AggregatorSuite) TestRenderDoesNotMutateStoredHistory() {
	av := id.Actor{Ident: "Z123456"}
	d := participant.Deltaker{
		ID: id.NewDeltakerID(),
		Historikk: []participant.HistorikkEntry{
			participant.Endring{ID: id.NewEndringID(), Kind: participant.KindEndreStartdato, Endret: at(1, 9), Av: av},
			participant.VedtakFattet{VedtakID: id.NewVedtakID(), Fattet: at(3, 9), Av: av},
		},
	}

	_, err := s.agg.Render(context.Background(), d)
	s.Require().NoError(err)

	_, ok := d.Historikk[0].(participant.Endring)
	s.True(ok, "render sorts a copy, the append-only slice keeps its order")
}

func (s *AggregatorSuite) TestRenderWithoutResolver() {
	agg := NewAggregator(nil, nil)
	d := participant.Deltaker{
		ID: id.NewDeltakerID(),
		Historikk: []participant.HistorikkEntry{
			participant.Endring{ID: id.NewEndringID(), Kind: participant.KindEndreStartdato, Endret: at(1, 9), Av: id.Actor{Ident: "Z123456"}},
		},
	}

	views, err := agg.Render(context.Background(), d)
	s.Require().NoError(err)
	s.Equal("Z123456", views[0].UtfortAv)
}
