package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/taletunes/taletunes/pkg/database"
	"github.com/taletunes/taletunes/pkg/migrations"
	"github.com/taletunes/taletunes/pkg/ratelimit"
	"github.com/taletunes/taletunes/pkg/server"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/taletunes/taletunes/pkg/version"
	"github.com/taletunes/taletunes/pkg/worker"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting taletunes", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Err(err).Fatal("storage error")
	}
	log.Info("storage initialized", logger.Data{"driver": cfg.StorageDriver})

	limiter, err := ratelimit.New(cfg)
	if err != nil {
		log.Err(err).Fatal("rate limiter error")
	}

	wrkr := worker.New(cfg, db, store)

	srv, err := server.New(cfg, db, store, limiter)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started", logger.Data{"orphan_sweep_interval": cfg.OrphanSweepInterval.String()})

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
