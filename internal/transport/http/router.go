package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deltaker/internal/platform/middleware"
)

// NewRouter mounts the record API. Everything under /deltaker requires a
// valid bearer token; health and metrics stay open for the platform.
func NewRouter(h *Handler, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))

		r.Post("/deltaker", h.HandleOpprett)
		r.Route("/deltaker/{deltakerID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleDelete)
			r.Post("/endring", h.HandleEndring)
			r.Get("/historikk", h.HandleHistorikk)
			r.Post("/samtykke", h.HandleSamtykke)
			r.Post("/samtykke/godkjenn", h.HandleSamtykkeGodkjenn)
			r.Post("/vedtak", h.HandleVedtak)
			r.Post("/vedtak/fatt", h.HandleVedtakFatt)
			r.Post("/del-med-arrangor", h.HandleDelMedArrangor)
		})
	})

	return r
}

func pathID(r *http.Request) string {
	return chi.URLParam(r, "deltakerID")
}
