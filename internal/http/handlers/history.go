package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"server/internal/sqlinline"
)

// HistoryList returns the caller's recent translations, newest first.
func (a *App) HistoryList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := a.SQL.Query(r.Context(), sqlinline.QListHistoryByUser, userID, limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	defer rows.Close()

	var items []map[string]any
	for rows.Next() {
		var id, sourceText string
		var targetLangs []string
		var results []byte
		var creditsUsed int64
		var createdAt time.Time
		if err := rows.Scan(&id, &sourceText, &targetLangs, &results, &creditsUsed, &createdAt); err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
			return
		}
		items = append(items, map[string]any{
			"id":           id,
			"source_text":  sourceText,
			"target_langs": targetLangs,
			"results":      json.RawMessage(results),
			"credits_used": creditsUsed,
			"created_at":   createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}

	a.json(w, http.StatusOK, map[string]any{"items": items})
}
