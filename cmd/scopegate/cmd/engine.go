package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/scopegate/scopegate/internal/adapter/outbound/fileaudit"
	"github.com/scopegate/scopegate/internal/adapter/outbound/memory"
	"github.com/scopegate/scopegate/internal/adapter/outbound/postgres"
	"github.com/scopegate/scopegate/internal/adapter/outbound/rediscache"
	"github.com/scopegate/scopegate/internal/adapter/outbound/snapshotfile"
	"github.com/scopegate/scopegate/internal/config"
	"github.com/scopegate/scopegate/internal/domain/audit"
	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/domain/model"
	"github.com/scopegate/scopegate/internal/domain/scope"
	"github.com/scopegate/scopegate/internal/service"
)

// engine bundles the wired services for one CLI invocation.
type engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	scopes     scope.Provider
	access     *service.AccessService
	guardrails *service.GuardrailService
	models     *service.ModelService
	validator  *service.RequestValidator

	closers []func() error
}

// close releases backend handles in reverse wiring order.
func (e *engine) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// buildEngine loads configuration and wires the full service stack for one
// command. The --snapshot flag forces the file source regardless of config.
func buildEngine() (*engine, error) {
	cfg, err := config.LoadConfigForCLI(snapshotFile)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Engine.LogLevel),
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Debug("loaded config", "file", configFile)
	}

	e := &engine{cfg: cfg, logger: logger}

	var (
		scopes      scope.Provider
		guardrails  guardrail.Provider
		catalog     model.Catalog
		guardrailSv *service.GuardrailService
	)

	switch cfg.Snapshot.Source {
	case "postgres":
		store, err := postgres.Open(cfg.Snapshot.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot database: %w", err)
		}
		e.closers = append(e.closers, store.Close)
		scopes, guardrails, catalog = store, store, store

		if cfg.Snapshot.Redis.Enabled {
			client := redis.NewClient(&redis.Options{Addr: cfg.Snapshot.Redis.Addr})
			e.closers = append(e.closers, client.Close)
			cache := rediscache.New(client, scopes, guardrails,
				rediscache.WithTTL(cfg.RedisTTL()),
				rediscache.WithLogger(logger),
			)
			scopes, guardrails = cache, cache
		}

	default:
		fixture, err := snapshotfile.Load(cfg.Snapshot.File)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot file: %w", err)
		}

		scopeStore := memory.NewScopeStore()
		scopeStore.SetSnapshot(fixture.Scope)
		for _, p := range fixture.Principals {
			scopeStore.SetPrincipal(p)
		}

		guardrailStore := memory.NewGuardrailStore()
		guardrailStore.SetGuardrails(fixture.Guardrails)

		modelCatalog := memory.NewModelCatalog()
		for _, m := range fixture.Models {
			modelCatalog.SetModel(m)
		}
		modelCatalog.SetTiers(fixture.Tiers)

		scopes, guardrails, catalog = scopeStore, guardrailStore, modelCatalog
	}

	audits, err := openAuditStore(cfg, e)
	if err != nil {
		return nil, err
	}

	guardrailSv, err = service.NewGuardrailService(guardrails, logger,
		service.WithPolicyCacheSize(cfg.Engine.PolicyCacheSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create guardrail service: %w", err)
	}

	e.scopes = scopes
	e.guardrails = guardrailSv
	e.access = service.NewAccessService(scopes, logger, service.WithAuditStore(audits))
	e.models = service.NewModelService(catalog, scopes, guardrailSv, logger,
		service.WithModelAuditStore(audits),
	)
	e.validator = service.NewRequestValidator(e.models, guardrailSv, scopes, logger,
		service.WithValidatorAuditStore(audits),
	)

	return e, nil
}

// openAuditStore resolves the audit output target. CLI invocations audit to
// the configured sink so offline evaluations leave the same trail as an
// embedded engine would.
func openAuditStore(cfg *config.Config, e *engine) (audit.Store, error) {
	if cfg.Audit.Output == "stdout" {
		// Decisions print to stdout; drop the audit stream so JSON output
		// stays parseable.
		return memory.NewAuditStoreWithWriter(io.Discard, cfg.Audit.BufferSize), nil
	}

	path := strings.TrimPrefix(cfg.Audit.Output, "file://")
	store, err := fileaudit.New(fileaudit.Config{Path: path}, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	e.closers = append(e.closers, store.Close)
	return store, nil
}

// parseLogLevel converts a config log level string to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
