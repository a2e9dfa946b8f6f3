package handlers

import (
	"net/http"
	"strconv"

	"server/internal/sqlinline"
)

type platformStats struct {
	TotalResources int64 `json:"total_resources"`
	TotalDownloads int64 `json:"total_downloads"`
	TotalUsers     int64 `json:"total_users"`
	ProUsers       int64 `json:"pro_users"`
}

func (a *App) PlatformStats(w http.ResponseWriter, r *http.Request) {
	var stats platformStats
	row := a.SQL.QueryRow(r.Context(), sqlinline.QPlatformStats)
	if err := row.Scan(&stats.TotalResources, &stats.TotalDownloads, &stats.TotalUsers, &stats.ProUsers); err != nil {
		a.Logger.Error().Err(err).Msg("platform stats failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, stats)
}

func (a *App) TopResources(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QTopResourcesByDownloads, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("top resources failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load top resources")
		return
	}
	defer rows.Close()
	items := make([]map[string]any, 0)
	for rows.Next() {
		var id, title, author, category string
		var downloads int64
		var avg float64
		if err := rows.Scan(&id, &title, &author, &category, &downloads, &avg); err != nil {
			continue
		}
		items = append(items, map[string]any{
			"id":             id,
			"title":          title,
			"author":         author,
			"category":       category,
			"downloads":      downloads,
			"average_rating": avg,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
