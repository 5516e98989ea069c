package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ssoforge/pkg/middleware"
)

const rateWindow = time.Minute

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.CORS(a.cfg.CORSOrigins))
	r.Use(middleware.Tracing())
	r.Use(middleware.Metrics())
	r.Use(middleware.SessionAuth(a.accounts))

	// Credential endpoints get a tight per-client budget; everything else a
	// per-user default.
	tight := a.limiter.Limit(5, rateWindow, middleware.ByClient)
	perUser := a.limiter.Limit(5, rateWindow, middleware.ByUser)
	deflt := a.limiter.Limit(20, rateWindow, middleware.ByUser)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/accounts", func(ar chi.Router) {
		ar.With(tight).Post("/", a.register)
		ar.With(deflt).Delete("/", a.deleteAccount)
		ar.With(tight).Post("/enrol", a.enrol)
		ar.With(tight).Post("/sessions", a.login)
		ar.With(deflt).Delete("/sessions", a.logout)
		ar.With(perUser).Put("/password", a.updatePassword)
		ar.With(tight).Post("/password/reset", a.requestPasswordReset)
	})

	r.Route("/users", func(ur chi.Router) {
		ur.Use(deflt)
		ur.Get("/me", a.me)
		ur.Put("/{id}", a.updateProfile)
	})

	r.Route("/idps", func(ir chi.Router) {
		ir.Use(deflt)
		ir.Get("/", a.listIdPs)
		ir.Post("/", a.createIdP)
		ir.Route("/{id}", func(pr chi.Router) {
			pr.Get("/", a.getIdP)
			pr.Put("/", a.updateIdP)
			pr.Delete("/", a.deleteIdP)

			pr.Get("/sps", a.listSPs)
			pr.Post("/sps", a.createSP)
			pr.Put("/sps/{spID}", a.updateSP)
			pr.Delete("/sps/{spID}", a.deleteSP)

			pr.Get("/users", a.listIdPUsers)
			pr.Post("/users", a.createIdPUser)
			pr.Put("/users/{userID}", a.updateIdPUser)
			pr.Delete("/users/{userID}", a.deleteIdPUser)

			pr.Get("/attributes", a.listAttributes)
			pr.Post("/attributes", a.createAttribute)
			pr.Put("/attributes/{attrID}", a.updateAttribute)
			pr.Delete("/attributes/{attrID}", a.deleteAttribute)

			pr.Get("/saml2/logs", a.samlLogs)
			pr.Get("/oauth2/logs", a.oauthLogs)
		})
	})

	return r
}
