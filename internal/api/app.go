// Package api exposes the public HTTP API consumed by the dashboard.
// Handlers are methods on App; business rules live in the account and IdP
// services, handlers only translate HTTP to service calls.
package api

import (
	"go.uber.org/zap"

	"ssoforge/internal/accounts"
	"ssoforge/internal/idp"
	"ssoforge/pkg/config"
	"ssoforge/pkg/middleware"
)

// App is the api-service application container. Shared deps and config only;
// request-scoped work uses context.
type App struct {
	log      *zap.SugaredLogger
	cfg      config.Config
	accounts *accounts.Service
	idps     *idp.Service
	limiter  *middleware.Limiter
}

func New(log *zap.SugaredLogger, cfg config.Config, acct *accounts.Service, idps *idp.Service, limiter *middleware.Limiter) *App {
	return &App{log: log, cfg: cfg, accounts: acct, idps: idps, limiter: limiter}
}
