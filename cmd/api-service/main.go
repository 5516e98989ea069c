// cmd/api-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ssoforge/internal/accounts"
	"ssoforge/internal/api"
	"ssoforge/internal/idp"
	"ssoforge/internal/mailer"
	"ssoforge/pkg/config"
	"ssoforge/pkg/db"
	"ssoforge/pkg/logger"
	"ssoforge/pkg/middleware"
	"ssoforge/pkg/security"
	"ssoforge/pkg/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)

	var st store.Store
	if pool != nil {
		if err := store.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		st = store.NewPostgres(pool, log)
	} else {
		log.Warnw("no DATABASE_URL, using in-memory store")
		st = store.NewMemory()
	}

	rdb := db.MustRedis(cfg, log)

	signer := security.NewSigner(cfg.JWTSecret)
	mail := mailer.New(cfg, log)

	acct := accounts.New(st, signer, mail, log, cfg.BasePublicURL)
	idps := idp.New(st, log)
	limiter := middleware.NewLimiter(rdb, log)

	app := api.New(log, cfg, acct, idps, limiter)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("api-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("api-service stopped")
}
