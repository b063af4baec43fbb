package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"envscope/internal/config"
	"envscope/internal/db"
	"envscope/internal/httpapi"
	"envscope/internal/migrate"
	"envscope/internal/modules/analysis"
	"envscope/internal/modules/analysis/completion"
	"envscope/internal/modules/analysis/repository"
	"envscope/internal/modules/analysis/session"
	"envscope/internal/modules/analysis/views"
	"envscope/internal/mqtt"
)

const sweepInterval = time.Minute

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
		"llmBaseURL", cfg.LLMBaseURL,
		"llmModel", cfg.LLMModel,
		"inFlightPolicy", cfg.InFlightPolicy,
		"sessionIdleTTL", cfg.SessionIdleTTL,
		"sinkWorkers", cfg.SinkWorkers,
		"sinkQueue", cfg.SinkQueue,
	)
	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(dbConn); err != nil {
		return err
	}

	var ok int
	err = dbConn.QueryRow(`SELECT 1`).Scan(&ok)
	if err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	slog.Info("database connection successful")

	if err := views.LoadTemplates(); err != nil {
		return err
	}

	completer := completion.NewClient(completion.Options{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	})

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	err = completer.HealthCheck(healthCtx)
	healthCancel()
	if err != nil {
		slog.Warn("completion service unreachable (chat will answer with an apology until it recovers)", "error", err)
	}

	publisher := mqtt.NewPublisher(cfg, slog.Default().With("component", "mqtt"))

	// Short timeout so startup is not blocked when the broker is down; the
	// client keeps retrying in the background.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = publisher.Connect(connectCtx)
	connectCancel()
	if err != nil {
		slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}

	store := session.NewStore(completer, session.Options{
		Policy:  session.Policy(cfg.InFlightPolicy),
		IdleTTL: cfg.SessionIdleTTL,
		Sinks: []session.RecordSink{
			repository.NewRecordLog(repository.NewRepository(dbConn), nil),
			publisher,
		},
		SinkWorkers: cfg.SinkWorkers,
		SinkQueue:   cfg.SinkQueue,
		Logger:      slog.Default().With("component", "session"),
	})

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go store.RunSweeper(sweepCtx, sweepInterval)

	mux := httpapi.NewMux(dbConn, cfg.StaticDir, publisher)
	analysis.RegisterFeature(mux, dbConn, store)

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("flushing record sinks")
	if err := store.Close(shutdownCtx); err != nil {
		slog.Warn("record sinks not flushed before shutdown", "error", err)
	}

	slog.Info("mqtt disconnecting")
	publisher.Disconnect()

	return ctx.Err()
}
