package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/tutormesh/audit"
	"github.com/hupe1980/tutormesh/catalog"
	"github.com/hupe1980/tutormesh/config"
	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/logging"
	"github.com/hupe1980/tutormesh/model"
	anthropicmodel "github.com/hupe1980/tutormesh/model/anthropic"
	"github.com/hupe1980/tutormesh/model/gemini"
	openaimodel "github.com/hupe1980/tutormesh/model/openai"
	"github.com/hupe1980/tutormesh/session"
	"github.com/hupe1980/tutormesh/sqlite"
	"github.com/hupe1980/tutormesh/tutor"
)

//go:embed agents.yaml
var defaultAgents []byte

// app holds the wired service for the lifetime of one command.
type app struct {
	cfg    *config.Config
	svc    *tutor.Service
	db     *sqlite.Store
	logger logging.Logger
}

// open wires stores, catalog and model from cfg.
func (a *app) open(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	a.cfg = cfg
	a.logger = logging.NewLogger(&logging.LoggerConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: logOut,
	})

	agents, err := loadAgents(cfg.AgentsFile)
	if err != nil {
		return err
	}

	m, err := buildModel(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []func(o *tutor.Options){func(o *tutor.Options) {
		o.Model = m
		o.UseAIRouting = cfg.UseAIRouting
		o.HistoryLimit = cfg.HistoryLimit
		o.CallTimeout = cfg.CallTimeout
		o.Collaboration.Style = cfg.CollabStyle
		o.Collaboration.MaxAgents = cfg.CollabMaxAgents
		o.Logger = a.logger
	}}

	if cfg.Persistent() {
		db, err := sqlite.Open(ctx, cfg.DBPath, func(o *sqlite.Options) { o.Logger = a.logger })
		if err != nil {
			return err
		}
		if err := db.Ping(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("database health check: %w", err)
		}
		if err := db.UpsertAgents(ctx, agents...); err != nil {
			_ = db.Close()
			return err
		}
		a.db = db
		opts = append(opts, func(o *tutor.Options) {
			o.Store = db
			o.Catalog = db
			o.AuditSink = db
			o.AuditReader = db
		})
	} else {
		cat := catalog.NewInMemoryCatalog()
		for _, ag := range agents {
			if err := cat.Put(ag); err != nil {
				return err
			}
		}
		mem := audit.NewInMemoryStore()
		opts = append(opts, func(o *tutor.Options) {
			o.Store = session.NewInMemoryStore()
			o.Catalog = cat
			o.AuditSink = mem
			o.AuditReader = mem
		})
	}

	a.svc = tutor.New(opts...)
	a.logger.Debug("Tutor service ready", "provider", cfg.Provider, "persistent", cfg.Persistent(), "agents", len(agents))
	return nil
}

// close flushes pending audit writes before releasing the database.
func (a *app) close() error {
	if a.svc != nil {
		_ = a.svc.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func loadAgents(path string) ([]*core.Agent, error) {
	if path == "" {
		return catalog.LoadYAML(bytes.NewReader(defaultAgents))
	}
	return catalog.LoadYAMLFile(path)
}

func buildModel(ctx context.Context, cfg *config.Config) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		var clientOpts []option.RequestOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
		}
		client := openai.NewClient(clientOpts...)
		return openaimodel.NewModelFromClient(&client, func(o *openaimodel.Options) {
			o.Model = cfg.Model
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		}), nil
	case config.ProviderAnthropic:
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(cfg.Model)
			o.MaxTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
		}), nil
	case config.ProviderGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.Model = cfg.Model
			o.MaxOutputTokens = int32(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return model.NewMockModel("mock", config.ProviderMock), nil
	}
}
