package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ssoforge/internal/idp"
	"ssoforge/pkg/apierr"
	"ssoforge/pkg/middleware"
	"ssoforge/pkg/store"
)

func (a *App) listIdPs(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	var includeIDs []string
	if inc := r.URL.Query().Get("include"); inc != "" {
		for _, id := range strings.Split(inc, ",") {
			if id = strings.TrimSpace(id); id != "" {
				includeIDs = append(includeIDs, id)
			}
		}
	}
	idps, err := a.idps.List(r.Context(), caller, includeIDs)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	out := make([]map[string]any, 0, len(idps))
	for _, p := range idps {
		out = append(out, map[string]any{"id": p.ID, "name": p.Name, "code": p.Code})
	}
	writeJSON(w, map[string]any{"idps": out}, http.StatusOK)
}

func (a *App) createIdP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	caller := middleware.CallerFrom(r.Context())
	p, err := a.idps.Create(r.Context(), caller, in.Name, in.Code)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	out := idpJSON(p, nil)
	// The private key is handed out exactly once, at creation.
	out["saml"].(map[string]any)["privateKey"] = p.PrivateKey
	writeJSON(w, out, http.StatusOK)
}

func (a *App) getIdP(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	p, users, err := a.idps.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, idpJSON(p, users), http.StatusOK)
}

func (a *App) updateIdP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name *string `json:"name"`
		Code *string `json:"code"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	caller := middleware.CallerFrom(r.Context())
	p, users, err := a.idps.Update(r.Context(), caller, chi.URLParam(r, "id"), idp.UpdateInput{Name: in.Name, Code: in.Code})
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, idpJSON(p, users), http.StatusOK)
}

func (a *App) deleteIdP(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	id := chi.URLParam(r, "id")
	if err := a.idps.Delete(r.Context(), caller, id); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"deletedIDP": id}, http.StatusOK)
}

func idpJSON(p *store.IdP, users []store.IdPUser) map[string]any {
	out := map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"code":      p.Code,
		"createdAt": p.CreatedAt.Format(time.RFC3339),
		"saml": map[string]any{
			"certificate": p.Certificate,
		},
	}
	if users != nil {
		us := make([]map[string]any, 0, len(users))
		for _, u := range users {
			us = append(us, map[string]any{
				"id":        u.ID,
				"firstName": u.FirstName,
				"lastName":  u.LastName,
				"email":     u.Email,
			})
		}
		out["users"] = us
	}
	return out
}
