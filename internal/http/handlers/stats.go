package handlers

import (
	"net/http"

	"server/internal/sqlinline"
)

// StatsSummary reports service-wide counters for the operations dashboard.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	row := a.SQL.QueryRow(r.Context(), sqlinline.QStatsSummary)
	var totalUsers, totalTranslations, translations24h, creditsSpent24h, totalPurchases, creditsGrantedTotal int64
	if err := row.Scan(&totalUsers, &totalTranslations, &translations24h, &creditsSpent24h, &totalPurchases, &creditsGrantedTotal); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"total_users":           totalUsers,
		"total_translations":    totalTranslations,
		"translations_24h":      translations24h,
		"credits_spent_24h":     creditsSpent24h,
		"total_purchases":       totalPurchases,
		"credits_granted_total": creditsGrantedTotal,
	})
}
