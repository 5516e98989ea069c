package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ssoforge/pkg/apierr"
	"ssoforge/pkg/middleware"
	"ssoforge/pkg/store"
)

func (a *App) samlLogs(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	logs, err := a.idps.SAMLLogs(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"logs": logsJSON(logs)}, http.StatusOK)
}

func (a *App) oauthLogs(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	logs, err := a.idps.OAuthLogs(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"logs": logsJSON(logs)}, http.StatusOK)
}

func logsJSON(logs []store.AccessLog) []map[string]any {
	out := make([]map[string]any, 0, len(logs))
	for _, l := range logs {
		out = append(out, map[string]any{
			"id":        l.ID,
			"spId":      l.SPID,
			"spName":    l.SPName,
			"payload":   l.Payload,
			"createdAt": l.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
