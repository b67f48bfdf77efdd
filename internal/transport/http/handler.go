// Package httptransport is the thin HTTP layer over the participant engine
// and its workflows. Handlers decode, delegate and translate; business rules
// live in the domain packages.
package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"deltaker/internal/consent"
	"deltaker/internal/decision"
	"deltaker/internal/history"
	"deltaker/internal/participant"
	"deltaker/internal/platform/middleware"
	"deltaker/internal/policy"
	"deltaker/internal/registry"
	id "deltaker/pkg/domain"
	dErrors "deltaker/pkg/domain-errors"
	"deltaker/pkg/platform/httputil"
	"deltaker/pkg/platform/sentinel"
)

// Engine is the mutation surface the transport needs from the participant
// package.
type Engine interface {
	Apply(ctx context.Context, d participant.Deltaker, m participant.Mutation, av id.Actor) (participant.Deltaker, error)
	DeleteDraft(ctx context.Context, d participant.Deltaker) error
	SetDeltMedArrangor(ctx context.Context, d participant.Deltaker, shared bool, av id.Actor) (participant.Deltaker, error)
}

// ConsentService is the samtykke workflow surface.
type ConsentService interface {
	OpenOrUpdateDraft(ctx context.Context, d participant.Deltaker) (consent.Samtykke, error)
	GrantOnBehalf(ctx context.Context, d participant.Deltaker, begrunnelse string, av id.Actor) (consent.Samtykke, error)
	WithdrawDraft(ctx context.Context, d participant.Deltaker) (bool, error)
}

// DecisionService is the vedtak workflow surface.
type DecisionService interface {
	OpenOrUpdateDraft(ctx context.Context, d participant.Deltaker, av id.Actor) (decision.Vedtak, error)
	Fatt(ctx context.Context, d participant.Deltaker, av id.Actor, paVegneAv bool) (decision.Vedtak, error)
	WithdrawDraft(ctx context.Context, d participant.Deltaker) (bool, error)
}

// Timeline renders a record's history for presentation.
type Timeline interface {
	Render(ctx context.Context, d participant.Deltaker) ([]history.View, error)
}

// Handler wires record endpoints to the domain services.
type Handler struct {
	engine    Engine
	consents  ConsentService
	decisions DecisionService
	timeline  Timeline
	records   participant.Store
	persons   registry.PersonClient
	programs  registry.GjennomforingClient
	durations *policy.DurationPolicy
	logger    *slog.Logger
}

func NewHandler(
	engine Engine,
	consents ConsentService,
	decisions DecisionService,
	timeline Timeline,
	records participant.Store,
	persons registry.PersonClient,
	programs registry.GjennomforingClient,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:    engine,
		consents:  consents,
		decisions: decisions,
		timeline:  timeline,
		records:   records,
		persons:   persons,
		programs:  programs,
		durations: policy.NewDurationPolicy(),
		logger:    logger,
	}
}

// HandleOpprett handles POST /deltaker: open a new draft record for a person
// on a program run.
func (h *Handler) HandleOpprett(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[opprettRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Personident == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "personident is required"))
		return
	}
	gjennomforingID, err := id.ParseGjennomforingID(req.GjennomforingID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "gjennomforingId is not a valid id"))
		return
	}

	person, err := h.persons.ResolveOrCreate(ctx, req.Personident)
	if err != nil {
		h.logger.ErrorContext(ctx, "person resolution failed",
			"request_id", requestID,
			"personident", registry.MaskPersonident(req.Personident),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "person registry unavailable"))
		return
	}
	program, err := h.programs.Get(ctx, gjennomforingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown gjennomforing"))
			return
		}
		h.logger.ErrorContext(ctx, "program lookup failed",
			"request_id", requestID,
			"gjennomforing_id", gjennomforingID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "program registry unavailable"))
		return
	}

	draft := participant.Deltaker{
		PersonID:        person.ID,
		GjennomforingID: program.ID,
		Tiltakstype:     program.Tiltakstype,
		Innsatsgruppe:   person.Innsatsgruppe,
	}
	mutation := participant.EndreInnhold{Innhold: req.innhold()}
	created, err := h.engine.Apply(ctx, draft, mutation, actor)
	if err != nil {
		h.writeApplyError(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "draft record created",
		"request_id", requestID,
		"deltaker_id", created.ID.String(),
		"gjennomforing_id", program.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, participant.EncodeSnapshot(created))
}

// HandleGet handles GET /deltaker/{id}. The response carries the computed
// duration bounds alongside the snapshot; the bounds are advisory and never
// block a mutation.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordResponse{
		SnapshotDTO: participant.EncodeSnapshot(d),
		Grenser:     h.grenserFor(d),
	})
}

// grenserFor computes the advisory end-date bounds for a record with a start
// date. Nil when no start date is set or no cap applies.
func (h *Handler) grenserFor(d participant.Deltaker) *grenserResponse {
	if d.Startdato == nil {
		return nil
	}
	maks := h.durations.MaxDuration(d.Tiltakstype, d.Innsatsgruppe)
	soft := h.durations.SoftMaxDuration(d.Tiltakstype, d.Innsatsgruppe)
	if maks == nil && soft == nil {
		return nil
	}
	resp := &grenserResponse{}
	if maks != nil {
		resp.MaksSluttdato = capDate(maks.AddTo(*d.Startdato))
	}
	if soft != nil {
		resp.SoftMaksSluttdato = capDate(soft.AddTo(*d.Startdato))
	}
	return resp
}

// HandleEndring handles POST /deltaker/{id}/endring: one user-initiated
// mutation through the transition engine.
func (h *Handler) HandleEndring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[endringRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	mutation, err := req.toMutation()
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error()))
		return
	}

	updated, err := h.engine.Apply(ctx, d, mutation, actor)
	if err != nil {
		h.writeApplyError(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "mutation applied",
		"request_id", requestID,
		"deltaker_id", updated.ID.String(),
		"kind", string(mutation.Kind()),
		"status", string(updated.Status.Type),
	)
	httputil.WriteJSON(w, http.StatusOK, participant.EncodeSnapshot(updated))
}

// HandleDelete handles DELETE /deltaker/{id}. Only drafts can be deleted;
// the pending samtykke and undecided vedtak drafts are withdrawn in the same
// request so nothing outlives the record.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	if _, err := h.consents.WithdrawDraft(ctx, d); err != nil {
		h.logger.ErrorContext(ctx, "failed to withdraw pending samtykke",
			"request_id", requestID,
			"deltaker_id", d.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "withdraw pending samtykke"))
		return
	}
	if _, err := h.decisions.WithdrawDraft(ctx, d); err != nil {
		h.logger.ErrorContext(ctx, "failed to withdraw undecided vedtak",
			"request_id", requestID,
			"deltaker_id", d.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "withdraw undecided vedtak"))
		return
	}
	if err := h.engine.DeleteDraft(ctx, d); err != nil {
		h.writeApplyError(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "draft record deleted",
		"request_id", requestID,
		"deltaker_id", d.ID.String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleHistorikk handles GET /deltaker/{id}/historikk.
func (h *Handler) HandleHistorikk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	views, err := h.timeline.Render(ctx, d)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to render history",
			"request_id", requestID,
			"deltaker_id", d.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "render history"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromViews(views))
}

// HandleSamtykke handles POST /deltaker/{id}/samtykke: open or refresh the
// pending samtykke draft.
func (h *Handler) HandleSamtykke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	samtykke, err := h.consents.OpenOrUpdateDraft(ctx, d)
	if err != nil {
		h.writeApplyError(ctx, w, requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromSamtykke(samtykke))
}

// HandleSamtykkeGodkjenn handles POST /deltaker/{id}/samtykke/godkjenn:
// grant consent on the person's behalf with an explicit justification.
func (h *Handler) HandleSamtykkeGodkjenn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[godkjennRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	samtykke, err := h.consents.GrantOnBehalf(ctx, d, req.Begrunnelse, actor)
	if err != nil {
		h.writeApplyError(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "samtykke granted on behalf",
		"request_id", requestID,
		"deltaker_id", d.ID.String(),
		"samtykke_id", samtykke.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromSamtykke(samtykke))
}

// HandleVedtak handles POST /deltaker/{id}/vedtak: open or refresh the
// undecided vedtak over the record's current terms.
func (h *Handler) HandleVedtak(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	vedtak, err := h.decisions.OpenOrUpdateDraft(ctx, d, actor)
	if err != nil {
		h.writeApplyError(ctx, w, requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVedtak(vedtak))
}

// HandleVedtakFatt handles POST /deltaker/{id}/vedtak/fatt: rule on the
// undecided vedtak.
func (h *Handler) HandleVedtakFatt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[fattRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	vedtak, err := h.decisions.Fatt(ctx, d, actor, req.FattetAvNav)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "record has no undecided vedtak"))
			return
		}
		h.writeApplyError(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "vedtak fattet",
		"request_id", requestID,
		"deltaker_id", d.ID.String(),
		"vedtak_id", vedtak.ID.String(),
		"fattet_av_nav", req.FattetAvNav,
	)
	httputil.WriteJSON(w, http.StatusOK, fromVedtak(vedtak))
}

// HandleDelMedArrangor handles POST /deltaker/{id}/del-med-arrangor: the
// privileged coordinator toggle for sharing the record with the arranger.
func (h *Handler) HandleDelMedArrangor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}
	d, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[delMedArrangorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.engine.SetDeltMedArrangor(ctx, d, req.DeltMedArrangor, actor)
	if err != nil {
		h.writeApplyError(ctx, w, requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participant.EncodeSnapshot(updated))
}

// loadRecord parses the path id and fetches the record, writing the error
// response itself when either step fails.
func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request) (participant.Deltaker, bool) {
	ctx := r.Context()
	deltakerID, err := id.ParseDeltakerID(pathID(r))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "deltaker id is not a valid id"))
		return participant.Deltaker{}, false
	}
	d, err := h.records.Get(ctx, deltakerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "record not found"))
			return participant.Deltaker{}, false
		}
		h.logger.ErrorContext(ctx, "failed to load record",
			"request_id", middleware.GetRequestID(ctx),
			"deltaker_id", deltakerID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load record"))
		return participant.Deltaker{}, false
	}
	return d, true
}

// writeApplyError maps engine and workflow failures. Typed rejections are
// expected outcomes and render as 4xx with their message; sentinel conflicts
// from the stores become 409; the rest is internal.
func (h *Handler) writeApplyError(ctx context.Context, w http.ResponseWriter, requestID string, err error) {
	if rej, ok := participant.AsRejection(err); ok {
		httputil.WriteError(w, dErrors.New(rejectionCode(rej.Code), rej.Message))
		return
	}
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, "concurrent change, retry the request"))
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "record not found"))
	default:
		h.logger.ErrorContext(ctx, "operation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "operation failed"))
	}
}

func rejectionCode(code participant.RejectionCode) dErrors.Code {
	switch code {
	case participant.RejectWrongStatus, participant.RejectNotEditable:
		return dErrors.CodeConflict
	default:
		return dErrors.CodeBadRequest
	}
}

func requireActor(ctx context.Context, w http.ResponseWriter) (id.Actor, bool) {
	actor := middleware.GetActor(ctx)
	if actor.Ident == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Actor{}, false
	}
	return actor, true
}
