package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deltaker/internal/participant"
	"deltaker/internal/status"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
	"deltaker/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	records *participant.InMemoryStore
	service *Service
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.records = participant.NewInMemoryStore()
	s.now = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	var err error
	s.service, err = NewService(s.store, s.records, nil)
	s.Require().NoError(err)
	s.service.Now = testutil.FixedClock(s.now)
}

func (s *ServiceSuite) record() participant.Deltaker {
	d := participant.Deltaker{
		ID:     id.NewDeltakerID(),
		Status: status.New(status.TypeUtkast, nil, s.now),
	}
	s.Require().NoError(s.records.Upsert(context.Background(), d))
	return d
}

func (s *ServiceSuite) TestWithdrawDraft() {
	ctx := context.Background()
	av := id.Actor{Ident: "Z123456", Enhet: "0315"}

	s.Run("nothing to withdraw", func() {
		d := s.record()
		withdrawn, err := s.service.WithdrawDraft(ctx, d)
		s.Require().NoError(err)
		s.False(withdrawn)
	})

	s.Run("withdraws the undecided draft", func() {
		d := s.record()
		draft, err := s.service.OpenOrUpdateDraft(ctx, d, av)
		s.Require().NoError(err)

		withdrawn, err := s.service.WithdrawDraft(ctx, d)
		s.Require().NoError(err)
		s.True(withdrawn)

		_, err = s.store.Get(ctx, draft.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("records past the proposal phase are left alone", func() {
		d := participant.Deltaker{
			ID:     id.NewDeltakerID(),
			Status: status.New(status.TypeDeltar, nil, s.now),
		}
		s.Require().NoError(s.records.Upsert(ctx, d))

		withdrawn, err := s.service.WithdrawDraft(ctx, d)
		s.Require().NoError(err)
		s.False(withdrawn)
	})
}

func (s *ServiceSuite) TestSingleUndecidedInvariant() {
	ctx := context.Background()
	d := s.record()
	av := id.Actor{Ident: "Z123456", Enhet: "0315"}

	first, err := s.service.OpenOrUpdateDraft(ctx, d, av)
	s.Require().NoError(err)
	s.False(first.Decided())

	second, err := s.service.OpenOrUpdateDraft(ctx, d, av)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID, "undecided vedtak is updated in place")

	s.Run("store refuses a second undecided instance outright", func() {
		err := s.store.Upsert(ctx, Vedtak{
			ID:         id.NewVedtakID(),
			DeltakerID: d.ID,
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *ServiceSuite) TestFatt() {
	ctx := context.Background()
	d := s.record()
	av := id.Actor{Ident: "Z123456", Enhet: "0315"}

	s.Run("no undecided vedtak is NotFound", func() {
		_, err := s.service.Fatt(ctx, d, av, false)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	draft, err := s.service.OpenOrUpdateDraft(ctx, d, av)
	s.Require().NoError(err)

	ruled, err := s.service.Fatt(ctx, d, av, true)
	s.Require().NoError(err)

	s.Run("vedtak is decided with actor and flag", func() {
		s.Equal(draft.ID, ruled.ID)
		s.Require().NotNil(ruled.Fattet)
		s.True(ruled.Fattet.Equal(s.now))
		s.True(ruled.FattetAvNav)
	})

	s.Run("decision marker lands on the record history", func() {
		stored, err := s.records.Get(ctx, d.ID)
		s.Require().NoError(err)
		s.Require().NotEmpty(stored.Historikk)
		marker, ok := stored.Historikk[len(stored.Historikk)-1].(participant.VedtakFattet)
		s.Require().True(ok)
		s.Equal(ruled.ID, marker.VedtakID)
	})

	s.Run("decided vedtak shows up in the decided list only", func() {
		decided, err := s.store.ListDecided(ctx, d.ID)
		s.Require().NoError(err)
		s.Len(decided, 1)

		_, err = s.store.FindUndecided(ctx, d.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
