package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ssoforge/internal/idp"
	"ssoforge/pkg/apierr"
	"ssoforge/pkg/middleware"
	"ssoforge/pkg/store"
)

// ---- service providers

func (a *App) listSPs(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	sps, err := a.idps.ListSPs(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	out := make([]map[string]any, 0, len(sps))
	for i := range sps {
		out = append(out, spJSON(&sps[i]))
	}
	writeJSON(w, map[string]any{"sps": out}, http.StatusOK)
}

func (a *App) createSP(w http.ResponseWriter, r *http.Request) {
	var in idp.SPInput
	if !readJSON(w, r, &in) {
		return
	}
	caller := middleware.CallerFrom(r.Context())
	sp, err := a.idps.CreateSP(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, spJSON(sp), http.StatusOK)
}

func (a *App) updateSP(w http.ResponseWriter, r *http.Request) {
	var in idp.SPInput
	if !readJSON(w, r, &in) {
		return
	}
	caller := middleware.CallerFrom(r.Context())
	sp, err := a.idps.UpdateSP(r.Context(), caller, chi.URLParam(r, "id"), chi.URLParam(r, "spID"), in)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, spJSON(sp), http.StatusOK)
}

func (a *App) deleteSP(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	spID := chi.URLParam(r, "spID")
	if err := a.idps.DeleteSP(r.Context(), caller, chi.URLParam(r, "id"), spID); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"deletedIDPSP": spID}, http.StatusOK)
}

func spJSON(sp *store.ServiceProvider) map[string]any {
	return map[string]any{
		"id":                 sp.ID,
		"name":               sp.Name,
		"entityId":           sp.EntityID,
		"serviceUrl":         sp.ServiceURL,
		"callbackUrl":        sp.CallbackURL,
		"logoutUrl":          sp.LogoutURL,
		"logoutCallbackUrl":  sp.LogoutCallbackURL,
		"oauth2ClientId":     sp.OAuth2ClientID,
		"oauth2ClientSecret": sp.OAuth2ClientSecret,
		"oauth2RedirectUri":  sp.OAuth2RedirectURI,
		"createdAt":          sp.CreatedAt.Format(time.RFC3339),
	}
}

// ---- IdP-local users

func (a *App) listIdPUsers(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	users, err := a.idps.ListUsers(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	out := make([]map[string]any, 0, len(users))
	for i := range users {
		out = append(out, idpUserJSON(&users[i]))
	}
	writeJSON(w, map[string]any{"users": out}, http.StatusOK)
}

func (a *App) createIdPUser(w http.ResponseWriter, r *http.Request) {
	var in idp.CreateUserInput
	if !readJSON(w, r, &in) {
		return
	}
	caller := middleware.CallerFrom(r.Context())
	u, err := a.idps.CreateUser(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, idpUserJSON(u), http.StatusOK)
}

func (a *App) updateIdPUser(w http.ResponseWriter, r *http.Request) {
	var in idp.UpdateUserInput
	if !readJSON(w, r, &in) {
		return
	}
	caller := middleware.CallerFrom(r.Context())
	u, err := a.idps.UpdateUser(r.Context(), caller, chi.URLParam(r, "id"), chi.URLParam(r, "userID"), in)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, idpUserJSON(u), http.StatusOK)
}

func (a *App) deleteIdPUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	userID := chi.URLParam(r, "userID")
	if err := a.idps.DeleteUser(r.Context(), caller, chi.URLParam(r, "id"), userID); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"deletedUser": userID}, http.StatusOK)
}

func idpUserJSON(u *store.IdPUser) map[string]any {
	attrs := u.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return map[string]any{
		"id":         u.ID,
		"firstName":  u.FirstName,
		"lastName":   u.LastName,
		"email":      u.Email,
		"attributes": attrs,
		"createdAt":  u.CreatedAt.Format(time.RFC3339),
	}
}

// ---- attributes

func (a *App) listAttributes(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	attrs, err := a.idps.ListAttributes(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	out := make([]map[string]any, 0, len(attrs))
	for i := range attrs {
		out = append(out, attributeJSON(&attrs[i]))
	}
	writeJSON(w, map[string]any{"attributes": out}, http.StatusOK)
}

func (a *App) createAttribute(w http.ResponseWriter, r *http.Request) {
	var in idp.CreateAttributeInput
	if !readJSON(w, r, &in) {
		return
	}
	caller := middleware.CallerFrom(r.Context())
	at, err := a.idps.CreateAttribute(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, attributeJSON(at), http.StatusOK)
}

func (a *App) updateAttribute(w http.ResponseWriter, r *http.Request) {
	var in idp.UpdateAttributeInput
	if !readJSON(w, r, &in) {
		return
	}
	caller := middleware.CallerFrom(r.Context())
	at, err := a.idps.UpdateAttribute(r.Context(), caller, chi.URLParam(r, "id"), chi.URLParam(r, "attrID"), in)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, attributeJSON(at), http.StatusOK)
}

func (a *App) deleteAttribute(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	attrID := chi.URLParam(r, "attrID")
	if err := a.idps.DeleteAttribute(r.Context(), caller, chi.URLParam(r, "id"), attrID); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"deletedAttribute": attrID}, http.StatusOK)
}

func attributeJSON(at *store.Attribute) map[string]any {
	return map[string]any{
		"id":           at.ID,
		"name":         at.Name,
		"defaultValue": at.DefaultValue,
		"samlMapping":  at.SAMLMapping,
		"createdAt":    at.CreatedAt.Format(time.RFC3339),
	}
}
