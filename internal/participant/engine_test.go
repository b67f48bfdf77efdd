package participant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deltaker/internal/status"
	id "deltaker/pkg/domain"
	"deltaker/pkg/testutil"
)

type capturingPublisher struct {
	published []Deltaker
}

func (p *capturingPublisher) Publish(_ context.Context, d Deltaker) error {
	p.published = append(p.published, d)
	return nil
}

type EngineSuite struct {
	suite.Suite
	store     *InMemoryStore
	publisher *capturingPublisher
	engine    *Engine
	now       time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.publisher = &capturingPublisher{}
	s.now = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	var err error
	s.engine, err = NewEngine(s.store, s.publisher, nil, nil)
	s.Require().NoError(err)
	s.engine.Now = testutil.FixedClock(s.now)
}

// activeRecord builds a persisted record in DELTAR with a start date and no
// end date, the starting point of the closing scenarios.
func (s *EngineSuite) activeRecord() Deltaker {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Deltaker{
		ID:              id.NewDeltakerID(),
		PersonID:        id.NewPersonID(),
		GjennomforingID: id.NewGjennomforingID(),
		Tiltakstype:     id.TiltakOppfolging,
		Startdato:       &start,
		Status:          status.New(status.TypeDeltar, nil, start),
		KanEndres:       true,
		Kilde:           id.SourceLokal,
		Opprettet:       start,
	}
	s.Require().NoError(s.store.Upsert(context.Background(), d))
	return d
}

func (s *EngineSuite) TestCloseEnrollment() {
	ctx := context.Background()
	d := s.activeRecord()
	slutt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	av := id.Actor{Ident: "Z123456", Enhet: "0315"}

	got, err := s.engine.Apply(ctx, d, AvsluttDeltakelse{
		Sluttdato: slutt,
		Aarsak:    status.Aarsak{Type: status.AarsakFattJobb},
	}, av)
	s.Require().NoError(err)

	s.Run("status becomes HAR_SLUTTET with the reason", func() {
		s.Equal(status.TypeHarSluttet, got.Status.Type)
		s.Require().NotNil(got.Status.Aarsak)
		s.Equal(status.AarsakFattJobb, got.Status.Aarsak.Type)
		s.True(got.Status.Current())
	})

	s.Run("end date is set", func() {
		s.Require().NotNil(got.Sluttdato)
		s.True(got.Sluttdato.Equal(slutt))
	})

	s.Run("old status is closed at the transition instant", func() {
		s.Require().Len(got.TidligereStatuser, 1)
		prev := got.TidligereStatuser[0]
		s.Equal(status.TypeDeltar, prev.Type)
		s.Require().NotNil(prev.GyldigTil)
		s.True(prev.GyldigTil.Equal(s.now))
	})

	s.Run("exactly one history entry appended", func() {
		s.Require().Len(got.Historikk, 1)
		entry, ok := got.Historikk[0].(Endring)
		s.Require().True(ok)
		s.Equal(KindAvsluttDeltakelse, entry.Kind)
		s.Equal(av, entry.Av)
		s.True(entry.Endret.Equal(s.now))
	})

	s.Run("actor and timestamp stamped on the record", func() {
		s.Equal(av, got.SistEndretAv)
		s.True(got.SistEndret.Equal(s.now))
	})

	s.Run("record published downstream", func() {
		s.Require().Len(s.publisher.published, 1)
		s.Equal(got.ID, s.publisher.published[0].ID)
	})
}

func (s *EngineSuite) TestIdenticalMutationIsNoOp() {
	ctx := context.Background()
	d := s.activeRecord()
	slutt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mut := AvsluttDeltakelse{Sluttdato: slutt, Aarsak: status.Aarsak{Type: status.AarsakFattJobb}}

	first, err := s.engine.Apply(ctx, d, mut, id.Actor{Ident: "Z123456"})
	s.Require().NoError(err)

	// Re-applying the identical close is a no-op, not a status violation,
	// and nothing changes.
	_, err = s.engine.Apply(ctx, first, mut, id.Actor{Ident: "Z123456"})
	s.Require().Error(err)
	rej, ok := AsRejection(err)
	s.Require().True(ok)
	s.Equal(RejectNoChange, rej.Code)

	stored, err := s.store.Get(ctx, first.ID)
	s.Require().NoError(err)
	s.Len(stored.Historikk, 1, "history must be unchanged after a rejection")
	s.Equal(status.TypeHarSluttet, stored.Status.Type)
}

func (s *EngineSuite) TestNoOpFieldMutationRejected() {
	ctx := context.Background()
	d := s.activeRecord()
	note := "trenger tett oppfolging"
	d.Bakgrunnsinformasjon = &note
	s.Require().NoError(s.store.Upsert(ctx, d))

	same := note
	_, err := s.engine.Apply(ctx, d, EndreBakgrunnsinformasjon{Bakgrunnsinformasjon: &same}, id.Actor{Ident: "Z123456"})
	s.Require().Error(err)
	rej, ok := AsRejection(err)
	s.Require().True(ok)
	s.Equal(RejectNoChange, rej.Code)
}

func (s *EngineSuite) TestSingleCurrentStatusAcrossSequence() {
	ctx := context.Background()
	d := s.activeRecord()
	av := id.Actor{Ident: "Z123456"}

	steps := []Mutation{
		AvsluttDeltakelse{Sluttdato: s.now.AddDate(0, 0, -1), Aarsak: status.Aarsak{Type: status.AarsakSyk}},
		EndreSluttaarsak{Aarsak: status.Aarsak{Type: status.AarsakFattJobb}},
		ReaktiverDeltakelse{Begrunnelse: "kom tilbake fra sykefravaer"},
	}
	current := d
	var err error
	historyLen := 0
	for _, m := range steps {
		current, err = s.engine.Apply(ctx, current, m, av)
		s.Require().NoError(err)

		open := 0
		if current.Status.Current() {
			open++
		}
		for _, prev := range current.TidligereStatuser {
			if prev.Current() {
				open++
			}
		}
		s.Equal(1, open, "exactly one current status after %T", m)

		s.Greater(len(current.Historikk), historyLen, "history must grow after %T", m)
		historyLen = len(current.Historikk)
	}
	s.Equal(status.TypeVenterPaOppstart, current.Status.Type)
	s.Nil(current.Sluttdato, "reactivation clears the end date")
}

func (s *EngineSuite) TestDraftAllocationPath() {
	ctx := context.Background()
	av := id.Actor{Ident: "Z123456", Enhet: "0315"}
	note := "soknad fra veileder"

	got, err := s.engine.Apply(ctx, Deltaker{
		PersonID:        id.NewPersonID(),
		GjennomforingID: id.NewGjennomforingID(),
		Tiltakstype:     id.TiltakAvklaring,
	}, EndreBakgrunnsinformasjon{Bakgrunnsinformasjon: &note}, av)
	s.Require().NoError(err)

	s.Run("id allocated and draft status opened", func() {
		s.False(got.ID.IsNil())
		s.Equal(status.TypeKladd, got.Status.Type)
		s.True(got.KanEndres)
		s.Equal(id.SourceLokal, got.Kilde)
	})

	s.Run("drafts are not published", func() {
		s.Empty(s.publisher.published)
	})

	s.Run("persisted with empty history", func() {
		stored, err := s.store.Get(ctx, got.ID)
		s.Require().NoError(err)
		s.Require().NotNil(stored.Bakgrunnsinformasjon)
		s.Equal(note, *stored.Bakgrunnsinformasjon)
		s.Empty(stored.Historikk, "draft edits must not write history entries")
	})
}

func (s *EngineSuite) TestLockedRecordRejectsMutations() {
	ctx := context.Background()
	d := s.activeRecord()
	d.KanEndres = false
	s.Require().NoError(s.store.Upsert(ctx, d))

	note := "ny bakgrunn"
	_, err := s.engine.Apply(ctx, d, EndreBakgrunnsinformasjon{Bakgrunnsinformasjon: &note}, id.Actor{Ident: "Z123456"})
	rej, ok := AsRejection(err)
	s.Require().True(ok)
	s.Equal(RejectNotEditable, rej.Code)
}

func (s *EngineSuite) TestDeleteDraft() {
	ctx := context.Background()

	s.Run("plain draft can be deleted", func() {
		d := Deltaker{
			ID:     id.NewDeltakerID(),
			Status: status.New(status.TypeKladd, nil, s.now),
		}
		s.Require().NoError(s.store.Upsert(ctx, d))
		s.Require().NoError(s.engine.DeleteDraft(ctx, d))
		_, err := s.store.Get(ctx, d.ID)
		s.Error(err)
	})

	s.Run("draft with change history is kept", func() {
		d := Deltaker{
			ID:     id.NewDeltakerID(),
			Status: status.New(status.TypeKladd, nil, s.now),
			Historikk: []HistorikkEntry{
				Endring{ID: id.NewEndringID(), Kind: KindEndreInnhold, Endret: s.now},
			},
		}
		err := s.engine.DeleteDraft(ctx, d)
		rej, ok := AsRejection(err)
		s.Require().True(ok)
		s.Equal(RejectWrongStatus, rej.Code)
	})

	s.Run("non-draft is never deleted", func() {
		d := s.activeRecord()
		err := s.engine.DeleteDraft(ctx, d)
		rej, ok := AsRejection(err)
		s.Require().True(ok)
		s.Equal(RejectWrongStatus, rej.Code)
	})
}

func (s *EngineSuite) TestCoordinatorActionLeavesStatusAlone() {
	ctx := context.Background()
	d := s.activeRecord()
	av := id.Actor{Ident: "Z999999", Enhet: "0393"}

	got, err := s.engine.SetDeltMedArrangor(ctx, d, true, av)
	s.Require().NoError(err)
	s.True(got.ErManueltDeltMedArrangor)
	s.Equal(status.TypeDeltar, got.Status.Type)
	s.Empty(got.TidligereStatuser, "coordinator actions must not touch the status chain")

	s.Require().Len(got.Historikk, 1)
	_, ok := got.Historikk[0].(KoordinatorHandling)
	s.True(ok)

	_, err = s.engine.SetDeltMedArrangor(ctx, got, true, av)
	rej, ok := AsRejection(err)
	s.Require().True(ok)
	s.Equal(RejectNoChange, rej.Code)
}

func (s *EngineSuite) TestExtendReopensEndedEnrollment() {
	ctx := context.Background()
	d := s.activeRecord()
	av := id.Actor{Ident: "Z123456"}

	closed, err := s.engine.Apply(ctx, d, AvsluttDeltakelse{
		Sluttdato: s.now.AddDate(0, 0, -7),
		Aarsak:    status.Aarsak{Type: status.AarsakSyk},
	}, av)
	s.Require().NoError(err)
	s.Equal(status.TypeHarSluttet, closed.Status.Type)

	extended, err := s.engine.Apply(ctx, closed, ForlengDeltakelse{
		Sluttdato: s.now.AddDate(0, 1, 0),
	}, av)
	s.Require().NoError(err)
	s.Equal(status.TypeDeltar, extended.Status.Type, "future end date reopens participation")
	s.True(extended.Sluttdato.Equal(s.now.AddDate(0, 1, 0)))
}
