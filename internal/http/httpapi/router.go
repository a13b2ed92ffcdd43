package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter wires the API surface. Auth-protected routes sit behind the JWT
// middleware; the payment-events route is for the payment boundary and
// carries its own shared-secret check at the ingress, not here.
func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Cfg.CORSOrigins),
		middleware.RateLimit(app.Limiter, app.Cfg.APIRateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/stats/summary", app.StatsSummary)

	r.Post("/v1/payments/events", app.PaymentEventsCreate)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Cfg.JWTSecret))
		r.Post("/v1/translate", app.TranslateCreate)
		r.Get("/v1/credits", app.CreditsGet)
		r.Get("/v1/history", app.HistoryList)
	})

	return r
}
