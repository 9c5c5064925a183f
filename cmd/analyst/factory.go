package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/analyst/internal/agent"
	"github.com/ShayCichocki/analyst/internal/config"
	"github.com/ShayCichocki/analyst/internal/database"
	"github.com/ShayCichocki/analyst/internal/history"
	"github.com/ShayCichocki/analyst/internal/llm"
	"github.com/ShayCichocki/analyst/internal/pipeline"
)

type appOptions struct {
	// events wires an EventEmitter into the orchestrator.
	events bool
	// watchSchema reloads schema.path when it changes.
	watchSchema bool
}

// app holds the collaborators built from configuration.
type app struct {
	orchestrator *pipeline.Orchestrator
	emitter      *pipeline.EventEmitter
	client       llm.Client
	db           *sql.DB
	history      *history.DB
	watcher      *agent.SchemaWatcher
	logger       *zap.Logger
}

// newApp connects to the database, builds the language model client and
// wires both into an orchestrator.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	a := &app{logger: logger}

	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.LLM.Provider, err)
	}
	a.client = client

	schema, err := a.loadSchema(cfg, opts.watchSchema)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, database.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		PingTimeout:     cfg.Database.PingTimeout,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to %s: %w", config.MaskURL(cfg.Database.URL), err)
	}
	a.db = db

	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path = config.DefaultHistoryPath()
		}
		h, err := history.Open(path)
		if err != nil {
			// History is diagnostics only.
			logger.Warn("run history disabled", zap.String("path", path), zap.Error(err))
		} else {
			a.history = h
		}
	}

	translator := agent.NewTranslator(client, agent.TranslatorConfig{
		Dialect:     cfg.Database.Dialect,
		Schema:      schema,
		Temperature: cfg.LLM.TranslateTemperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      logger.Named("translator"),
	})
	composer := agent.NewComposer(client, agent.ComposerConfig{
		Temperature: cfg.LLM.ComposeTemperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      logger.Named("composer"),
	})
	executor := database.NewExecutor(db, logger.Named("executor"))

	pol := cfg.Pipeline.Policy()
	pipeOpts := []pipeline.Option{
		pipeline.WithPolicy(pol),
		pipeline.WithLogger(logger.Named("pipeline")),
	}
	if opts.events {
		a.emitter = pipeline.NewEventEmitter(pol.EventBufferSize, logger.Named("events"))
		pipeOpts = append(pipeOpts, pipeline.WithEventEmitter(a.emitter))
	}

	a.orchestrator, err = pipeline.New(pipeline.RequiredConfig{
		Translator: translator,
		Executor:   executor,
		Composer:   composer,
	}, pipeOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	logger.Debug("analyst ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", client.Model()),
		zap.String("driver", cfg.Database.Driver),
		zap.String("dialect", cfg.Database.Dialect),
		zap.Int("max_retries", cfg.Pipeline.MaxRetries))

	return a, nil
}

func (a *app) loadSchema(cfg *config.Config, watch bool) (agent.SchemaSource, error) {
	if cfg.Schema.Path == "" {
		return agent.DefaultSchema(), nil
	}
	if watch {
		w, err := agent.NewSchemaWatcher(cfg.Schema.Path, a.logger.Named("schema"))
		if err != nil {
			return nil, fmt.Errorf("watch schema: %w", err)
		}
		a.watcher = w
		return w, nil
	}
	s, err := agent.LoadSchema(cfg.Schema.Path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return s, nil
}

// ask runs one question and records it in the history store.
func (a *app) ask(ctx context.Context, question string) (*pipeline.Report, error) {
	report, err := a.orchestrator.Run(ctx, question)
	if report != nil && a.history != nil {
		if recErr := a.history.Record(history.FromReport(report, err)); recErr != nil {
			a.logger.Warn("failed to record run", zap.String("run_id", report.ID), zap.Error(recErr))
		}
	}
	return report, err
}

// Close releases every resource newApp acquired. The emitter is closed last
// so event consumers see the final events of every run.
func (a *app) Close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.emitter != nil {
		a.emitter.Close()
		a.emitter = nil
	}
	return errors.Join(errs...)
}
