package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"notesync/config"
	"notesync/config/database"
	"notesync/internal/events"
	"notesync/internal/note/repository"
	"notesync/internal/note/service"
	"notesync/pkg/logger"
	"notesync/router"
	"notesync/socket"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API and the editor websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	bus, err := newBus(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	notes := service.NewNoteService(repository.NewNoteRepository(db))
	items := service.NewItemService(repository.NewItemRepository(db), bus)
	cards := service.NewCardService(repository.NewCardRepository(db), items, bus)

	hub := socket.NewHub(notes, bus, socket.Options{
		Debounce:     cfg.Autosave.Debounce,
		WriteTimeout: cfg.Autosave.WriteTimeout,
		FlushOnClose: cfg.Autosave.FlushOnClose,
	})
	// The hub tears sessions down when hubCtx ends; it must finish before the
	// deferred db.Close so flushed and in-flight writes reach the store.
	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)
	defer func() {
		stopHub()
		<-hub.Done()
	}()

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router.Setup(db, hub, notes, items, cards, []byte(cfg.Auth.JWTSecret)),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Sugar.Infof("Go Backend listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Sugar.Info("Shutting down")
	stopHub()
	<-hub.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newBus picks the redis bus when an address is configured so item events
// reach sessions on every instance.
func newBus(ctx context.Context, cfg config.RedisConfig) (events.Bus, error) {
	if cfg.Addr == "" {
		logger.Sugar.Info("Using in-process event bus")
		return events.NewLocalBus(), nil
	}

	bus := events.NewRedisBus(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, events.DefaultChannel)
	if err := bus.Ping(ctx); err != nil {
		bus.Close()
		return nil, err
	}
	go func() {
		<-ctx.Done()
		bus.Close()
	}()
	logger.Sugar.Infof("Using redis event bus at %s", cfg.Addr)
	return bus, nil
}
