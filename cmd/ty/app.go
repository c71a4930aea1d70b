package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zulandar/trendyard/internal/config"
	"github.com/zulandar/trendyard/internal/db"
	"github.com/zulandar/trendyard/internal/llm"
	"github.com/zulandar/trendyard/internal/logging"
	"github.com/zulandar/trendyard/internal/notify"
	"github.com/zulandar/trendyard/internal/session"
	"github.com/zulandar/trendyard/internal/source"
	"github.com/zulandar/trendyard/internal/synthesis"
	"github.com/zulandar/trendyard/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app is the fully wired runtime shared by the commands.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	session *session.Service
}

// loadConfig reads the config file and overlays credentials from the
// environment.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// connect opens and migrates the configured database.
func connect(cfg *config.Config) (*gorm.DB, error) {
	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	gdb, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	completer, err := newCompleter(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	synth, err := synthesis.New(synthesis.Opts{
		LLM:         synthesis.NewRecordingCompleter(completer, gdb, log),
		CallTimeout: cfg.LLM.Timeout,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	engine, err := workflow.New(workflow.Opts{
		Synth:         synth,
		Sources:       newSources(cfg.Sources, log),
		EnrichLimit:   cfg.Sources.EnrichLimit,
		ReportLimit:   cfg.Sources.ReportLimit,
		SourceTimeout: cfg.Sources.Timeout,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return nil, err
	}

	svc, err := session.New(session.Opts{
		DB:       gdb,
		Engine:   engine,
		Notifier: notifier,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, db: gdb, session: svc}, nil
}

// Close releases the database and flushes the logger.
func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.log.Sync()
}

func newCompleter(ctx context.Context, cfg config.LLMConfig) (synthesis.Completer, error) {
	switch cfg.Provider {
	case "mock":
		return llm.NewMock(), nil
	case "gemini":
		return llm.NewGemini(ctx, llm.GeminiOpts{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	}
	return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
}

func newSources(cfg config.SourcesConfig, log *zap.Logger) source.Set {
	return source.Set{
		WebSearch: source.NewWebSearch(source.WebSearchOpts{
			APIKey:       cfg.WebSearch.APIKey,
			Endpoint:     cfg.WebSearch.Endpoint,
			MaxResults:   cfg.WebSearch.MaxResults,
			TrendDomains: cfg.TrendDomains,
			Logger:       log,
		}),
		Community: source.NewCommunity(source.CommunityOpts{
			APIKey:     cfg.Community.APIKey,
			UserID:     cfg.Community.UserID,
			Endpoint:   cfg.Community.Endpoint,
			Subreddits: cfg.Community.Subreddits,
			Logger:     log,
		}),
		Extra: []source.Source{
			source.NewGitHub(source.GitHubOpts{Token: cfg.GitHub.Token, Logger: log}),
		},
	}
}
