package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"
	"gopkg.in/natefinch/lumberjack.v2"

	"filmlog/api"
	"filmlog/config"
	"filmlog/handlers"
	"filmlog/internal/database"
	"filmlog/services/feed"
	"filmlog/services/follows"
	"filmlog/services/metadata"
	"filmlog/services/movies"
	"filmlog/services/records"
	"filmlog/services/scheduler"
	"filmlog/services/search"
	"filmlog/services/stats"
	"filmlog/services/tasks"
	"filmlog/services/users"
)

// taskTimeout bounds a single background task run.
const taskTimeout = 2 * time.Minute

func main() {
	worker := flag.Bool("worker", false, "consume background tasks from the AMQP queue instead of serving HTTP")
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: could not read .env: %v", err)
	}

	configPath := os.Getenv(config.EnvConfigPath)
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
	settings = config.ApplyEnv(settings)
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	setupLogging(settings.Log)
	if settings.Server.DevMode {
		slog.Warn("development mode enabled: provider catalog drift is fatal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		Driver: settings.Database.Driver,
		DSN:    settings.Database.DSN,
	})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	metaClient := metadata.NewClient(metadata.Config{
		TMDBAPIKey: settings.Metadata.TMDBAPIKey,
		OMDBAPIKey: settings.Metadata.OMDBAPIKey,
		Language:   settings.Metadata.Language,
		Country:    settings.Metadata.Country,
		Timeout:    settings.Metadata.RequestTimeout(),
	}, nil)
	movieStore := movies.NewStore(db, metaClient, movies.Options{
		Country: metaClient.Country(),
		DevMode: settings.Server.DevMode,
		// primary and secondary lookups run back to back
		FetchTimeout: 2 * settings.Metadata.RequestTimeout(),
	})

	registry := tasks.NewRegistry()
	registry.Register(tasks.TaskRefreshWatchData, func(ctx context.Context, task tasks.Task) error {
		return movieStore.RefreshProviders(ctx, task.MovieID)
	})

	amqpOpts := tasks.AMQPOptions{URL: settings.Tasks.AMQPURL, Queue: settings.Tasks.Queue}
	if *worker {
		if err := runWorker(ctx, amqpOpts, registry, settings.Tasks.Workers); err != nil {
			log.Fatalf("worker failed: %v", err)
		}
		return
	}

	dispatcher, err := newDispatcher(ctx, settings.Tasks, amqpOpts, registry)
	if err != nil {
		log.Fatalf("failed to start task dispatcher: %v", err)
	}
	defer dispatcher.Close()

	usersSvc, err := users.NewService(db, users.Options{
		JWTSecret: settings.Server.JWTSecret,
		TokenTTL:  time.Duration(settings.Server.TokenTTLHours) * time.Hour,
	})
	if err != nil {
		log.Fatalf("failed to init users service: %v", err)
	}
	recordsSvc := records.NewService(db, movieStore, dispatcher)
	followsSvc := follows.NewService(db)
	feedSvc := feed.NewService(db, settings.Feed.PageSize)
	statsSvc := stats.NewService(db, settings.Stats.TopN)
	searchSvc := search.NewService(metaClient, recordsSvc, search.Options{
		MinPopularity: settings.Search.MinPopularity,
		MaxResults:    settings.Search.MaxResults,
	})

	schedulerSvc := scheduler.NewService(cfgManager, movieStore)
	if err := schedulerSvc.Start(ctx); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	r := mux.NewRouter()
	api.Register(r, api.Handlers{
		Users:          handlers.NewUsersHandler(usersSvc),
		Records:        handlers.NewRecordsHandler(recordsSvc),
		Movies:         handlers.NewMoviesHandler(movieStore),
		Feed:           handlers.NewFeedHandler(feedSvc),
		Stats:          handlers.NewStatsHandler(statsSvc, usersSvc, followsSvc),
		Follows:        handlers.NewFollowsHandler(followsSvc, usersSvc),
		Search:         handlers.NewSearchHandler(searchSvc),
		ScheduledTasks: handlers.NewScheduledTasksHandler(cfgManager, schedulerSvc),
	}, usersSvc)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", addr, err)
	}
	if n := settings.Server.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	go func() {
		log.Printf("[server] listening on %s", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[server] shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] shutdown error: %v", err)
	}
	if err := schedulerSvc.Stop(shutdownCtx); err != nil {
		log.Printf("[scheduler] stop error: %v", err)
	}

	log.Println("[server] shutdown complete")
}

// setupLogging mirrors the standard logger to a rotated file when configured
// and installs an slog handler at the configured level.
func setupLogging(cfg config.LogConfig) {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		logDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			})
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
	}
	log.SetOutput(out)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	if cfg.File != "" {
		log.Printf("Logging to file: %s", cfg.File)
	}
}

func newDispatcher(ctx context.Context, cfg config.TaskSettings, opts tasks.AMQPOptions, registry *tasks.Registry) (tasks.Dispatcher, error) {
	switch cfg.Backend {
	case config.TaskBackendAMQP:
		d, err := tasks.NewAMQPDispatcher(ctx, opts)
		if err != nil {
			return nil, err
		}
		log.Printf("[tasks] publishing to AMQP queue %s", opts.Queue)
		return d, nil
	default:
		log.Printf("[tasks] running in-process with %d workers", cfg.Workers)
		return tasks.NewMemoryDispatcher(registry, cfg.Workers, taskTimeout), nil
	}
}

func runWorker(ctx context.Context, opts tasks.AMQPOptions, registry *tasks.Registry, workers int) error {
	if opts.URL == "" {
		return errors.New("worker mode needs an AMQP url (tasks.amqpUrl or " + config.EnvAMQPURL + ")")
	}
	consumer, err := tasks.NewConsumer(ctx, opts, registry, workers, taskTimeout)
	if err != nil {
		return err
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
