package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ssoforge/internal/accounts"
	"ssoforge/pkg/apierr"
	"ssoforge/pkg/middleware"
	"ssoforge/pkg/store"
)

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if !readJSON(w, r, &in) {
		return
	}
	token, err := a.accounts.Register(r.Context(), in)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"token": token}, http.StatusOK)
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email       string   `json:"email"`
		Password    string   `json:"password"`
		IdPsToClaim []string `json:"idpsToClaim"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	token, err := a.accounts.Login(r.Context(), in.Email, in.Password, in.IdPsToClaim)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"token": token}, http.StatusOK)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	caller := requireAuth(w, r)
	if caller == nil {
		return
	}
	if err := a.accounts.Logout(r.Context(), caller, middleware.CurrentTokenFrom(r.Context())); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"loggedOut": true}, http.StatusOK)
}

func (a *App) enrol(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	token, err := a.accounts.Enrol(r.Context(), in.Token, in.Password)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"token": token}, http.StatusOK)
}

func (a *App) updatePassword(w http.ResponseWriter, r *http.Request) {
	var in accounts.UpdatePasswordInput
	if !readJSON(w, r, &in) {
		return
	}
	// Token-based resets are legal for anonymous callers.
	caller := middleware.CallerFrom(r.Context())
	if err := a.accounts.UpdatePassword(r.Context(), caller, in); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"passwordUpdated": true}, http.StatusOK)
}

func (a *App) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.accounts.RequestPasswordReset(r.Context(), in.Email); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"passwordResetEmailSent": true}, http.StatusOK)
}

func (a *App) deleteAccount(w http.ResponseWriter, r *http.Request) {
	caller := requireAuth(w, r)
	if caller == nil {
		return
	}
	var in struct {
		Password string `json:"password"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.accounts.Delete(r.Context(), caller, in.Password); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, map[string]any{"deletedUser": caller.ID}, http.StatusOK)
}

func (a *App) me(w http.ResponseWriter, r *http.Request) {
	caller := requireAuth(w, r)
	if caller == nil {
		return
	}
	writeJSON(w, accountJSON(caller), http.StatusOK)
}

func (a *App) updateProfile(w http.ResponseWriter, r *http.Request) {
	caller := requireAuth(w, r)
	if caller == nil {
		return
	}
	var in accounts.UpdateProfileInput
	if !readJSON(w, r, &in) {
		return
	}
	updated, err := a.accounts.UpdateProfile(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, accountJSON(updated), http.StatusOK)
}

func accountJSON(a *store.Account) map[string]any {
	subs := a.Subscriptions
	if subs == nil {
		subs = []string{}
	}
	return map[string]any{
		"id":            a.ID,
		"firstName":     a.FirstName,
		"lastName":      a.LastName,
		"email":         a.Email,
		"subscriptions": subs,
	}
}
