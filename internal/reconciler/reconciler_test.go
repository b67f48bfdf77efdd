package reconciler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deltaker/internal/participant"
	"deltaker/internal/registry"
	"deltaker/internal/status"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

type ReconcilerSuite struct {
	suite.Suite
	store    *participant.InMemoryStore
	persons  *registry.MockPersonClient
	programs *registry.MockGjennomforingClient
	rec      *Reconciler

	program registry.Gjennomforing
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.store = participant.NewInMemoryStore()
	s.persons = &registry.MockPersonClient{WithAdresse: true}
	s.programs = &registry.MockGjennomforingClient{}

	s.program = registry.Gjennomforing{
		ID:          id.NewGjennomforingID(),
		Navn:        "Oppfølging Oslo",
		Tiltakstype: id.TiltakOppfolging,
		Startdato:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	s.programs.Seed(s.program)

	var err error
	s.rec, err = NewReconciler(s.store, s.persons, s.programs,
		[]id.Tiltakstype{id.TiltakOppfolging, id.TiltakAvklaring}, nil, nil)
	s.Require().NoError(err)
}

func (s *ReconcilerSuite) payload(deltakerID id.DeltakerID, statusID id.StatusID, kilde id.Source) Payload {
	return Payload{
		ID:              deltakerID.String(),
		Personident:     "12345678901",
		GjennomforingID: s.program.ID.String(),
		Tiltakstype:     string(id.TiltakOppfolging),
		Startdato:       &Dato{Time: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		Kilde:           string(kilde),
		RegistrertDato:  time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		Status: &StatusBlock{
			ID:            statusID.String(),
			Type:          string(status.TypeDeltar),
			GyldigFra:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			OpprettetDato: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		},
	}
}

func (s *ReconcilerSuite) handle(p Payload) Outcome {
	value, err := json.Marshal(p)
	s.Require().NoError(err)
	outcome, err := s.rec.Handle(context.Background(), p.ID, value)
	s.Require().NoError(err)
	return outcome
}

func (s *ReconcilerSuite) TestInsertUnknownRecord() {
	deltakerID := id.NewDeltakerID()
	p := s.payload(deltakerID, id.NewStatusID(), id.SourceLegacy)

	s.Equal(OutcomeInserted, s.handle(p))

	d, err := s.store.Get(context.Background(), deltakerID)
	s.Require().NoError(err)

	s.Run("status is taken verbatim from the payload", func() {
		s.Equal(status.TypeDeltar, d.Status.Type)
		s.Equal(p.Status.ID, d.Status.ID.String())
		s.True(d.Status.Current())
	})

	s.Run("record is editable and attributed to the system", func() {
		s.True(d.KanEndres)
		s.True(d.SistEndretAv.IsSystem())
	})

	s.Run("history carries exactly one import marker", func() {
		s.Require().Len(d.Historikk, 1)
		_, ok := d.Historikk[0].(participant.ImportertFraLegacy)
		s.True(ok)
	})

	s.Run("person was resolved and linked", func() {
		s.False(d.PersonID == id.PersonID{})
	})
}

func (s *ReconcilerSuite) TestReplayConverges() {
	deltakerID := id.NewDeltakerID()
	p := s.payload(deltakerID, id.NewStatusID(), id.SourceLegacy)

	s.Equal(OutcomeInserted, s.handle(p))
	s.Equal(OutcomeUnchanged, s.handle(p))
	s.Equal(OutcomeUnchanged, s.handle(p))

	d, err := s.store.Get(context.Background(), deltakerID)
	s.Require().NoError(err)
	s.Len(d.Historikk, 1, "replay must not duplicate the import marker")
	s.Empty(d.TidligereStatuser, "replay must not stack status entries")
}

func (s *ReconcilerSuite) TestLegacyPrecedenceOverLocalRecord() {
	// The record exists locally with local-canonical source; a legacy
	// payload for the same key wins and replaces the mutable fields.
	deltakerID := id.NewDeltakerID()
	local := s.payload(deltakerID, id.NewStatusID(), id.SourceLokal)
	s.Equal(OutcomeInserted, s.handle(local))

	bakgrunn := "oppdatert fra Arena"
	legacy := s.payload(deltakerID, id.NewStatusID(), id.SourceLegacy)
	legacy.Bakgrunn = &bakgrunn
	legacy.Status.Type = string(status.TypeHarSluttet)
	legacy.Status.Aarsak = &AarsakBlock{Type: "FATT_JOBB"}
	s.Equal(OutcomeInserted, s.handle(legacy))

	d, err := s.store.Get(context.Background(), deltakerID)
	s.Require().NoError(err)
	s.Equal(id.SourceLegacy, d.Kilde)
	s.Equal(status.TypeHarSluttet, d.Status.Type)
	s.Equal(&bakgrunn, d.Bakgrunnsinformasjon)

	s.Run("previous status chain survives the takeover", func() {
		s.Require().Len(d.TidligereStatuser, 1)
		s.Equal(status.TypeDeltar, d.TidligereStatuser[0].Type)
		s.False(d.TidligereStatuser[0].Current())
	})
}

func (s *ReconcilerSuite) TestUpdatePathAppendsOneStatusEntry() {
	deltakerID := id.NewDeltakerID()
	first := s.payload(deltakerID, id.NewStatusID(), id.SourceLokal)
	s.Equal(OutcomeInserted, s.handle(first))

	next := s.payload(deltakerID, id.NewStatusID(), id.SourceLokal)
	next.Status.Type = string(status.TypeHarSluttet)
	next.Status.Aarsak = &AarsakBlock{Type: "FATT_JOBB"}
	next.Status.GyldigFra = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Equal(OutcomeUpdated, s.handle(next))

	d, err := s.store.Get(context.Background(), deltakerID)
	s.Require().NoError(err)
	s.Equal(status.TypeHarSluttet, d.Status.Type)
	s.Len(d.TidligereStatuser, 1)

	s.Run("redelivery of the update is a no-op", func() {
		s.Equal(OutcomeUnchanged, s.handle(next))
		d, err := s.store.Get(context.Background(), deltakerID)
		s.Require().NoError(err)
		s.Len(d.TidligereStatuser, 1)
	})
}

func (s *ReconcilerSuite) TestUpdateTriggersPersonRefreshWhenAddressMissing() {
	s.persons.WithAdresse = false

	deltakerID := id.NewDeltakerID()
	first := s.payload(deltakerID, id.NewStatusID(), id.SourceLokal)
	s.Equal(OutcomeInserted, s.handle(first))

	next := s.payload(deltakerID, id.NewStatusID(), id.SourceLokal)
	s.handle(next)

	s.Equal([]string{"12345678901"}, s.persons.RefreshRequests())
}

func (s *ReconcilerSuite) TestTombstoneDeletes() {
	deltakerID := id.NewDeltakerID()
	p := s.payload(deltakerID, id.NewStatusID(), id.SourceLegacy)
	s.Equal(OutcomeInserted, s.handle(p))

	outcome, err := s.rec.Handle(context.Background(), deltakerID.String(), nil)
	s.Require().NoError(err)
	s.Equal(OutcomeTombstoned, outcome)

	_, err = s.store.Get(context.Background(), deltakerID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Run("tombstone replay stays idempotent", func() {
		outcome, err := s.rec.Handle(context.Background(), deltakerID.String(), nil)
		s.Require().NoError(err)
		s.Equal(OutcomeTombstoned, outcome)
	})
}

func (s *ReconcilerSuite) TestDisabledTiltakstypeIsAcknowledgedAndDropped() {
	p := s.payload(id.NewDeltakerID(), id.NewStatusID(), id.SourceLegacy)
	p.Tiltakstype = string(id.TiltakVTA)

	s.Equal(OutcomeDropped, s.handle(p))

	_, err := s.store.Get(context.Background(), id.DeltakerID{})
	s.Error(err)
}

func (s *ReconcilerSuite) TestMalformedPayloadsAreDroppedNotRetried() {
	cases := map[string]func(*Payload){
		"missing status block": func(p *Payload) { p.Status = nil },
		"nil status id":        func(p *Payload) { p.Status.ID = "" },
		"unknown status type":  func(p *Payload) { p.Status.Type = "HVILER" },
		"missing personident":  func(p *Payload) { p.Personident = "" },
		"unknown kilde":        func(p *Payload) { p.Kilde = "EKSTERN" },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			p := s.payload(id.NewDeltakerID(), id.NewStatusID(), id.SourceLegacy)
			mutate(&p)
			value, err := json.Marshal(p)
			s.Require().NoError(err)

			outcome, err := s.rec.Handle(context.Background(), p.ID, value)
			s.Require().NoError(err, "malformed payloads must not trigger redelivery")
			s.Equal(OutcomeMalformed, outcome)
		})
	}

	s.Run("non-JSON value", func() {
		outcome, err := s.rec.Handle(context.Background(), id.NewDeltakerID().String(), []byte("not json"))
		s.Require().NoError(err)
		s.Equal(OutcomeMalformed, outcome)
	})
}

func (s *ReconcilerSuite) TestUnknownProgramIsTransient() {
	p := s.payload(id.NewDeltakerID(), id.NewStatusID(), id.SourceLegacy)
	p.GjennomforingID = id.NewGjennomforingID().String()
	value, err := json.Marshal(p)
	s.Require().NoError(err)

	_, err = s.rec.Handle(context.Background(), p.ID, value)
	s.Require().Error(err, "collaborator misses must surface for redelivery")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
