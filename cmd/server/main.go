package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/greenwinther/guess-the-song2/internal/config"
	"github.com/greenwinther/guess-the-song2/internal/httpapi"
	"github.com/greenwinther/guess-the-song2/internal/hub"
	"github.com/greenwinther/guess-the-song2/internal/logging"
	"github.com/greenwinther/guess-the-song2/internal/persist"
	"github.com/greenwinther/guess-the-song2/internal/store"
	"github.com/greenwinther/guess-the-song2/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.StorePath, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// Rooms outlive the signal so the final flush can still read them.
	h := hub.NewHub(context.Background(), hub.Options{
		RoomTTL:  cfg.RoomTTL,
		SavedTTL: cfg.SavedRoomTTL,
		Logger:   log,
	})
	defer h.Shutdown()

	p := persist.New(h, st, persist.Options{
		SaveInterval: cfg.PersistInterval,
		GCInterval:   cfg.GCInterval,
		Logger:       log,
	})
	if _, err := p.Load(ctx); err != nil {
		log.Warn("restoring rooms failed, saving is paused until a retry succeeds", zap.Error(err))
	}
	if _, err := p.Sweep(ctx); err != nil {
		log.Warn("initial sweep failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(h, httpapi.Options{
			Logger: log,
			WS: ws.Options{
				RatePerSec:     cfg.WSRatePerSec,
				Burst:          cfg.WSRateBurst,
				OriginPatterns: cfg.AllowedOrigins,
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		return p.Run(gctx)
	})

	err = g.Wait()
	log.Info("shut down")
	return err
}
