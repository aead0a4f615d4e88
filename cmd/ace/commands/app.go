// ABOUTME: Shared construction of config, logger, stores and pipeline for commands
// ABOUTME: Optional pieces (playbook index) degrade to warnings instead of failing
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	charmlog "github.com/charmbracelet/log"
	"github.com/harper/ace-pipeline/internal/agents"
	"github.com/harper/ace-pipeline/internal/charm"
	"github.com/harper/ace-pipeline/internal/config"
	"github.com/harper/ace-pipeline/internal/llm"
	"github.com/harper/ace-pipeline/internal/logger"
	"github.com/harper/ace-pipeline/internal/playbook"
	"github.com/harper/ace-pipeline/internal/service"
	"github.com/harper/ace-pipeline/internal/store"
	"github.com/joho/godotenv"
)

// app holds the collaborators a command needs. Close releases them in
// reverse order of acquisition.
type app struct {
	cfg     *config.Config
	log     *charmlog.Logger
	store   *store.Store
	kv      *charm.Client
	index   *playbook.Index
	runner  *service.Runner
	closers []io.Closer
}

// loadSettings reads .env (if present) and the environment
func loadSettings() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp loads settings and the logger only
func newApp() (*app, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}

	level := logger.Level(cfg.LogLevel)
	switch {
	case verbose:
		level = logger.DebugLevel
	case quiet:
		level = logger.ErrorLevel
	}
	log, closer, err := logger.New(logger.Config{
		Level: level,
		JSON:  cfg.LogFormat == "json",
		Dir:   cfg.LogDir,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log, closers: []io.Closer{closer}}, nil
}

func (a *app) context(ctx context.Context) context.Context {
	return logger.ContextWithLogger(ctx, a.log)
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the run database
func (a *app) openStore() error {
	st, err := store.Open(a.cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st)
	return nil
}

// openKV opens the charm KV backing the playbook index
func (a *app) openKV() error {
	if a.kv != nil {
		return nil
	}
	kv, err := charm.NewClient(charm.ConfigFromSettings(a.cfg))
	if err != nil {
		return err
	}
	a.kv = kv
	a.closers = append(a.closers, kv)
	return nil
}

// openIndex opens the playbook index. Embeddings always use OpenAI.
func (a *app) openIndex() error {
	if a.cfg.OpenAIKey == "" {
		return errors.New("OPENAI_API_KEY is required for playbook embeddings")
	}
	embedder, err := llm.NewOpenAIClientWithConfig(llm.ConfigFromSettings(a.cfg))
	if err != nil {
		return err
	}

	if err := a.openKV(); err != nil {
		return err
	}

	ix, err := playbook.NewIndex(a.kv, embedder, a.cfg.PlaybookCollection, playbook.WithAutoSync(a.cfg.AutoSync))
	if err != nil {
		return err
	}
	a.index = ix
	return nil
}

// newProvider builds the configured chat provider
func newProvider(cfg *config.Config) (llm.Provider, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}
	if cfg.Provider == "anthropic" {
		return llm.NewAnthropicClient(llm.AnthropicConfigFromSettings(cfg))
	}
	return llm.NewOpenAIClientWithConfig(llm.ConfigFromSettings(cfg))
}

// openRunner builds the full pipeline. Without a playbook index the
// generator runs without retrieval.
func (a *app) openRunner() error {
	provider, err := newProvider(a.cfg)
	if err != nil {
		return err
	}
	if err := a.openStore(); err != nil {
		return err
	}

	var retriever agents.Retriever
	if err := a.openIndex(); err != nil {
		a.log.Warn("playbook retrieval disabled", "err", err)
	} else {
		retriever = a.index
	}

	pipeline, err := agents.NewPipeline(a.cfg, provider, retriever)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	a.runner = service.NewRunner(pipeline, a.store)
	return nil
}
