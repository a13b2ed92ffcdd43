package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/sqlinline"
)

type translateRequest struct {
	Text        string   `json:"text"`
	TargetLangs []string `json:"target_langs"`
	SourceLang  string   `json:"source_lang"`
}

type translateResponse struct {
	Success         bool              `json:"success"`
	Results         map[string]string `json:"results"`
	CreditsUsed     int64             `json:"credits_used"`
	OriginalCredits int64             `json:"original_credits"`
	Remaining       int64             `json:"remaining"`
	FromCache       bool              `json:"from_cache"`
}

// TranslateCreate is the metered endpoint: rate-limit gate, cache probe,
// atomic credit deduction, then translation. Deduction happens before the
// provider call, so a request the user cannot pay for never reaches the
// provider; a provider failure after deduction is logged as an accounting
// mismatch rather than rolled back.
func (a *App) TranslateCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	plan := a.currentPlan(r)

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Text == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "text is required")
		return
	}
	if len(req.TargetLangs) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one target language is required")
		return
	}
	for _, lang := range req.TargetLangs {
		if _, err := language.Parse(lang); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported target language: "+lang)
			return
		}
	}
	if req.SourceLang == "" {
		req.SourceLang = a.Cfg.DefaultSourceLang
	}

	ip := middleware.ClientIPForRateLimit(r)
	limit := a.Limiter.Check("translate:"+userID+":"+ip, a.Cfg.TranslateRateLimitMax, a.Cfg.TranslateRateLimitWindow)
	if !limit.Allowed {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limit.ResetAt.UnixMilli(), 10))
		a.json(w, http.StatusTooManyRequests, map[string]any{
			"error":    "rate_limited",
			"message":  "too many requests, try again later",
			"reset_at": limit.ResetAt.UnixMilli(),
		})
		return
	}

	ctx := r.Context()
	fromCache := a.Translator.FullyCached(ctx, req.Text, req.SourceLang, req.TargetLangs)

	auth, err := a.Engine.MeterAndAuthorize(ctx, userID, plan, req.Text, req.TargetLangs, fromCache)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			a.json(w, http.StatusPaymentRequired, map[string]any{
				"error":     "insufficient_credits",
				"required":  auth.CreditsCharged,
				"available": auth.Remaining,
				"message":   "not enough credits for this request",
			})
			return
		}
		// Fail closed: no deduction, no translation.
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("metering failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to meter request")
		return
	}

	results, err := a.Translator.TranslateMany(ctx, req.Text, req.SourceLang, req.TargetLangs)
	if err != nil {
		// Credits are already spent; surface the mismatch for reconciliation
		// instead of undoing the deduction.
		a.Logger.Error().Err(err).
			Str("user_id", userID).
			Int64("credits_charged", auth.CreditsCharged).
			Msg("translation failed after deduction")
		if len(results) == 0 {
			a.error(w, http.StatusBadGateway, "provider_failure", "translation provider failed")
			return
		}
	}

	a.saveHistory(r, userID, req, results, auth.CreditsCharged)

	a.json(w, http.StatusOK, translateResponse{
		Success:         true,
		Results:         results,
		CreditsUsed:     auth.CreditsCharged,
		OriginalCredits: auth.Price,
		Remaining:       auth.Remaining,
		FromCache:       fromCache,
	})
}

// saveHistory records the request best-effort; a history write must not fail
// a translation that already happened and was paid for.
func (a *App) saveHistory(r *http.Request, userID string, req translateRequest, results map[string]string, creditsUsed int64) {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		a.Logger.Error().Err(err).Msg("marshal history results failed")
		return
	}
	_, err = a.SQL.Exec(r.Context(), sqlinline.QInsertHistory,
		uuid.NewString(), userID, req.Text, req.TargetLangs, resultsJSON, creditsUsed)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("save history failed")
	}
}
