package httptransport_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deltaker/internal/consent"
	"deltaker/internal/decision"
	"deltaker/internal/history"
	jwttoken "deltaker/internal/jwt_token"
	"deltaker/internal/participant"
	"deltaker/internal/registry"
	"deltaker/internal/status"
	httptransport "deltaker/internal/transport/http"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
	"deltaker/pkg/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type HandlerSuite struct {
	suite.Suite
	router    http.Handler
	store     *participant.InMemoryStore
	consents  *consent.InMemoryStore
	decisions *decision.InMemoryStore
	programs  *registry.MockGjennomforingClient
	program   registry.Gjennomforing
	token     string
	now       time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.store = participant.NewInMemoryStore()
	s.consents = consent.NewInMemoryStore()
	s.decisions = decision.NewInMemoryStore()

	engine, err := participant.NewEngine(s.store, nil, nil, nil)
	s.Require().NoError(err)
	engine.Now = testutil.FixedClock(s.now)

	consentSvc, err := consent.NewService(s.consents, s.store, nil)
	s.Require().NoError(err)
	consentSvc.Now = testutil.FixedClock(s.now)

	decisionSvc, err := decision.NewService(s.decisions, s.store, nil)
	s.Require().NoError(err)
	decisionSvc.Now = testutil.FixedClock(s.now)

	s.programs = &registry.MockGjennomforingClient{}
	s.program = registry.Gjennomforing{
		ID:          id.NewGjennomforingID(),
		Navn:        "Oppfølging Oslo",
		Tiltakstype: id.TiltakOppfolging,
		Startdato:   s.now.AddDate(0, -1, 0),
	}
	s.programs.Seed(s.program)

	handler := httptransport.NewHandler(
		engine,
		consentSvc,
		decisionSvc,
		history.NewAggregator(nil, nil),
		s.store,
		&registry.MockPersonClient{WithAdresse: true},
		s.programs,
		nil,
	)

	jwtSvc := jwttoken.NewJWTService("test-signing-key", "deltaker", "deltaker-api")
	s.token, err = jwtSvc.GenerateAccessToken("Z123456", "0315", time.Hour)
	s.Require().NoError(err)

	s.router = httptransport.NewRouter(handler, jwttoken.NewJWTServiceAdapter(jwtSvc), testLogger())
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+s.token)
	return testutil.DoRequest(s.router, req)
}

// createDraft drives POST /deltaker and returns the created snapshot.
func (s *HandlerSuite) createDraft() participant.SnapshotDTO {
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker", map[string]any{
		"personident":     "12345678901",
		"gjennomforingId": s.program.ID.String(),
	}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[participant.SnapshotDTO](s.T(), rr)
}

func (s *HandlerSuite) TestCreateDraft() {
	snap := s.createDraft()
	s.Equal(string(status.TypeKladd), snap.Status.Type)
	s.Equal(string(id.TiltakOppfolging), snap.Tiltakstype)
	s.True(snap.KanEndres)
	s.Equal("Z123456", snap.SistEndretAv.Ident)

	s.Run("unknown gjennomforing is a bad request", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker", map[string]any{
			"personident":     "12345678901",
			"gjennomforingId": id.NewGjennomforingID().String(),
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestAuthRequired() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/deltaker/"+id.NewDeltakerID().String())
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestGet() {
	snap := s.createDraft()

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/deltaker/"+snap.ID))
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[participant.SnapshotDTO](s.T(), rr)
	s.Equal(snap.ID, got.ID)

	s.Run("unknown id is not found", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/deltaker/"+id.NewDeltakerID().String()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id is a bad request", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/deltaker/not-a-uuid"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestDurationBoundsOnGet() {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	d := participant.Deltaker{
		ID:              id.NewDeltakerID(),
		PersonID:        id.NewPersonID(),
		GjennomforingID: s.program.ID,
		Tiltakstype:     id.TiltakAvklaring,
		Startdato:       &start,
		Status:          status.New(status.TypeDeltar, nil, start),
		KanEndres:       true,
		Kilde:           id.SourceLokal,
		Opprettet:       start,
	}
	s.Require().NoError(s.store.Upsert(context.Background(), d))

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/deltaker/"+d.ID.String()))
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[map[string]any](s.T(), rr)

	grenser, ok := (*got)["grenser"].(map[string]any)
	s.Require().True(ok, "avklaring records with a start date carry duration bounds")
	s.Equal("2024-03-28", grenser["maksSluttdato"], "hard cap is eight weeks from start")
	s.Equal("2024-02-29", grenser["softMaksSluttdato"], "advisory cap is four weeks from start")

	s.Run("drafts without a start date carry no bounds", func() {
		snap := s.createDraft()
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/deltaker/"+snap.ID))
		testutil.AssertStatusOK(s.T(), rr)
		got := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.NotContains(*got, "grenser")
	})
}

func (s *HandlerSuite) TestEndring() {
	snap := s.createDraft()

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/endring", map[string]any{
		"kind":                 "ENDRE_BAKGRUNNSINFORMASJON",
		"bakgrunnsinformasjon": "trenger tett oppfølging",
	}))
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[participant.SnapshotDTO](s.T(), rr)
	s.Require().NotNil(got.Bakgrunnsinformasjon)
	s.Equal("trenger tett oppfølging", *got.Bakgrunnsinformasjon)

	s.Run("no-op mutation is rejected as bad request", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/endring", map[string]any{
			"kind":                 "ENDRE_BAKGRUNNSINFORMASJON",
			"bakgrunnsinformasjon": "trenger tett oppfølging",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("wrong-status mutation is a conflict", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/endring", map[string]any{
			"kind":      "AVSLUTT_DELTAKELSE",
			"sluttdato": "2024-04-01",
			"aarsak":    map[string]any{"type": "FATT_JOBB"},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("out-of-range load is a bad request", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/endring", map[string]any{
			"kind":               "ENDRE_DELTAKELSESMENGDE",
			"deltakelsesprosent": 140,
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown kind is a bad request", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/endring", map[string]any{
			"kind": "GJOER_NOE_RART",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestDeleteDraft() {
	snap := s.createDraft()
	deltakerID, err := id.ParseDeltakerID(snap.ID)
	s.Require().NoError(err)

	// Open both workflow drafts so the delete has something to clean up.
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/samtykke", nil))
	testutil.AssertStatusOK(s.T(), rr)
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/vedtak", nil))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/deltaker/"+snap.ID))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/deltaker/"+snap.ID))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)

	s.Run("no samtykke or vedtak outlives the draft", func() {
		ctx := context.Background()
		_, err := s.consents.FindPending(ctx, deltakerID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.decisions.FindUndecided(ctx, deltakerID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *HandlerSuite) TestSamtykkeFlow() {
	snap := s.createDraft()

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/samtykke", nil))
	testutil.AssertStatusOK(s.T(), rr)
	first := testutil.UnmarshalResponse[map[string]any](s.T(), rr)

	s.Run("reopening updates in place with the same id", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/samtykke", nil))
		testutil.AssertStatusOK(s.T(), rr)
		second := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal((*first)["id"], (*second)["id"])
	})

	s.Run("granting without justification is a bad request", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/samtykke/godkjenn", map[string]any{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("granting on behalf stamps the approval", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/samtykke/godkjenn", map[string]any{
			"begrunnelse": "deltaker har ikke digital tilgang",
		}))
		testutil.AssertStatusOK(s.T(), rr)
		granted := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.NotNil((*granted)["gitt"])
	})
}

func (s *HandlerSuite) TestVedtakFlow() {
	snap := s.createDraft()

	s.Run("fatt without a draft vedtak is not found", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/vedtak/fatt", map[string]any{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/vedtak", nil))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/vedtak/fatt", map[string]any{
		"fattetAvNav": true,
	}))
	testutil.AssertStatusOK(s.T(), rr)
	decided := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.NotNil((*decided)["fattet"])
	s.Equal(true, (*decided)["fattetAvNav"])
}

func (s *HandlerSuite) TestHistorikk() {
	snap := s.createDraft()

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/samtykke/godkjenn", map[string]any{
		"begrunnelse": "deltaker har ikke digital tilgang",
	}))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/vedtak", nil))
	testutil.AssertStatusOK(s.T(), rr)
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/vedtak/fatt", map[string]any{
		"fattetAvNav": true,
	}))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/deltaker/"+snap.ID+"/historikk"))
	testutil.AssertStatusOK(s.T(), rr)
	entries := testutil.UnmarshalResponse[[]map[string]any](s.T(), rr)
	s.Require().Len(*entries, 2)

	types := []string{(*entries)[0]["type"].(string), (*entries)[1]["type"].(string)}
	s.Contains(types, "SAMTYKKE")
	s.Contains(types, "VEDTAK")
}

func (s *HandlerSuite) TestDelMedArrangor() {
	snap := s.createDraft()

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/del-med-arrangor", map[string]any{
		"deltMedArrangor": true,
	}))
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[participant.SnapshotDTO](s.T(), rr)
	s.True(got.DeltMedArrangor)

	s.Run("toggling to the same value is a bad request", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deltaker/"+snap.ID+"/del-med-arrangor", map[string]any{
			"deltMedArrangor": true,
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}
