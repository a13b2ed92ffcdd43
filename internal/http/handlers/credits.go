package handlers

import "net/http"

// CreditsGet reports the caller's remaining balance in the current window.
func (a *App) CreditsGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	plan := a.currentPlan(r)

	available, err := a.Engine.Available(r.Context(), userID, plan)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("read balance failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"available": available,
		"plan":      plan,
	})
}
