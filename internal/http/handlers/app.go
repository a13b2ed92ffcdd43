package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/credit"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/payment"
	"server/internal/ratelimit"
	"server/internal/translation"
)

// App is the handler container. Every collaborator is injected at startup;
// handlers hold no package-level state.
type App struct {
	Cfg        *infra.Config
	Logger     zerolog.Logger
	SQL        infra.SQLExecutor
	Users      domain.UserRepository
	Engine     *credit.Engine
	Limiter    *ratelimit.Limiter
	Applier    *payment.Applier
	Translator *translation.Service
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": errCode, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) currentPlan(r *http.Request) domain.Plan {
	return middleware.PlanFromContext(r.Context())
}
