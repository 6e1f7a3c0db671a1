package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/config"
	"github.com/kailas-cloud/medrag/internal/db"
	dbRedis "github.com/kailas-cloud/medrag/internal/db/redis"
	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/metrics"
	"github.com/kailas-cloud/medrag/internal/repository/embcache"
	"github.com/kailas-cloud/medrag/internal/repository/registry/postgres"
	"github.com/kailas-cloud/medrag/internal/repository/registry/static"
	"github.com/kailas-cloud/medrag/internal/repository/resultcache"
	"github.com/kailas-cloud/medrag/internal/repository/vectorstore"
	"github.com/kailas-cloud/medrag/internal/repository/vectorstore/guard"
	"github.com/kailas-cloud/medrag/internal/repository/vectorstore/memory"
	"github.com/kailas-cloud/medrag/internal/repository/vectorstore/qdrant"
	vsredis "github.com/kailas-cloud/medrag/internal/repository/vectorstore/redis"
	natsbus "github.com/kailas-cloud/medrag/internal/transport/nats"
	openaiT "github.com/kailas-cloud/medrag/internal/transport/openai"
	answeruc "github.com/kailas-cloud/medrag/internal/usecase/answer"
	chunkuc "github.com/kailas-cloud/medrag/internal/usecase/chunk"
	embeddinguc "github.com/kailas-cloud/medrag/internal/usecase/embedding"
	escalationuc "github.com/kailas-cloud/medrag/internal/usecase/escalation"
	healthuc "github.com/kailas-cloud/medrag/internal/usecase/health"
	queryuc "github.com/kailas-cloud/medrag/internal/usecase/query"
	scopeuc "github.com/kailas-cloud/medrag/internal/usecase/scope"
)

// registry is what the composition root needs from a facility registry.
type registry interface {
	scopeuc.Registry
	HealthCheck(ctx context.Context) error
}

// app is the composition root shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store     vectorstore.Store
	registry  registry
	pgRepo    *postgres.Repo // nil unless registry.driver is postgres
	docEmbed  domain.Embedder
	completer *openaiT.Completer
	cache     *resultcache.Cache
	bus       *natsbus.Bus
	writeBack *answeruc.WriteBack

	chunks  *chunkuc.Service
	queries *queryuc.Service
	health  *healthuc.Service

	closers []func()
}

// buildApp wires every component from cfg. Close must be called on success.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()

	kv, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.buildRegistry(ctx); err != nil {
		return nil, err
	}

	var queryEmbed domain.Embedder
	a.docEmbed, queryEmbed = a.buildEmbedders(kv)
	a.completer = openaiT.NewCompleter(&openaiT.CompleterConfig{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond,
		Rate:         cfg.LLM.Rate,
		Burst:        cfg.LLM.Burst,
		Logger:       logger,
	})

	escCfg := escalationConfig(cfg.Escalation)
	if err := escCfg.Validate(); err != nil {
		return nil, fmt.Errorf("escalation config: %w", err)
	}
	router := escalationuc.New(a.store, a.completer, escCfg, logger)

	a.cache = resultcache.New(logger,
		resultcache.WithTTL(time.Duration(cfg.Cache.TTLSec)*time.Second),
		resultcache.WithMaxEntries(cfg.Cache.MaxEntries),
	)

	// Pass nil interface (not typed nil pointer!) when events are disabled.
	var broadcaster chunkuc.Broadcaster
	if cfg.Events.NATSURL != "" {
		a.bus, err = natsbus.Connect(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			return nil, fmt.Errorf("connect events: %w", err)
		}
		a.closers = append(a.closers, func() { _ = a.bus.Close() })
		broadcaster = a.bus
	}

	a.chunks = chunkuc.New(a.store, a.docEmbed, a.cache, broadcaster, logger)
	if a.bus != nil {
		if err := a.bus.Subscribe(a.chunks.RemoteInvalidate); err != nil {
			return nil, fmt.Errorf("subscribe invalidations: %w", err)
		}
	}

	var writeBack queryuc.WriteBack
	if cfg.WriteBack.Enabled {
		a.writeBack = answeruc.NewWriteBack(a.docEmbed, a.chunks, answeruc.WriteBackConfig{
			Enabled: true,
			Policy:  answeruc.Policy(cfg.WriteBack.Policy),
			Timeout: time.Duration(cfg.WriteBack.TimeoutSec) * time.Second,
		}, logger)
		writeBack = a.writeBack
	}

	assembler := answeruc.NewAssembler(answeruc.AssemblerConfig{
		GroundingFloor: cfg.Answer.GroundingFloor,
		PreviewChars:   cfg.Answer.PreviewChars,
	})
	a.queries = queryuc.New(scopeuc.New(a.registry), queryEmbed, a.cache, router, assembler, writeBack, logger)
	a.health = healthuc.New(a.store, a.registry, healthChecker(a.docEmbed), a.completer)

	logger.Info("Components wired",
		zap.String("vector_store", cfg.VectorStore.Driver),
		zap.String("registry", cfg.Registry.Driver),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("write_back", cfg.WriteBack.Enabled),
		zap.Bool("events", a.bus != nil),
	)
	return a, nil
}

// buildStore connects the vector store. The returned kv store is nil for backends without one.
func (a *app) buildStore(ctx context.Context) (*dbRedis.Store, error) {
	vs := a.cfg.VectorStore
	var inner vectorstore.Store
	var kv *dbRedis.Store

	switch vs.Driver {
	case "valkey", "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: vs.Addrs, Password: vs.Password})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", vs.Driver, err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.WaitForReady(ctx, time.Duration(vs.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("%s not ready: %w", vs.Driver, err)
		}
		inner = vsredis.New(store, vs.Dimensions, db.HNSW{M: vs.HNSWM, EFConstruct: vs.HNSWEFConstruct, EFRuntime: vs.HNSWEFRuntime})
		kv = store
	case "qdrant":
		repo, err := qdrant.Dial(qdrant.Config{
			Host:       vs.Qdrant.Host,
			Port:       vs.Qdrant.Port,
			UseTLS:     vs.Qdrant.UseTLS,
			APIKey:     vs.Qdrant.APIKey,
			Collection: vs.Qdrant.Collection,
			Dimensions: vs.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = repo.Close() })
		inner = repo
	case "memory":
		inner = memory.New(vs.Dimensions)
	default:
		return nil, fmt.Errorf("unknown vector store driver %q", vs.Driver)
	}

	a.store = guard.New(inner, vs.Driver, a.logger)
	a.logger.Info("Vector store ready", zap.String("driver", vs.Driver))
	return kv, nil
}

func (a *app) buildRegistry(ctx context.Context) error {
	rc := a.cfg.Registry
	switch rc.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, rc.DSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.pgRepo = postgres.New(pool)
		a.registry = a.pgRepo
	case "static":
		a.registry = static.New(staticFacilities(rc.Facilities))
	default:
		return fmt.Errorf("unknown registry driver %q", rc.Driver)
	}
	return nil
}

// buildEmbedders assembles OpenAI -> Cached -> Instrumented for documents and
// OpenAI -> Cached -> Instruction -> Instrumented for queries. The cache key
// covers the instruction prefix.
func (a *app) buildEmbedders(kv *dbRedis.Store) (doc, query domain.Embedder) {
	ec := a.cfg.Embedding
	base := openaiT.NewEmbedder(&openaiT.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     a.logger,
	})

	var embedder domain.Embedder = base
	if kv != nil {
		embedder = embcache.New(base, kv, embcache.Options{
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			TTL:        time.Duration(ec.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, a.logger)
	}

	doc = embeddinguc.NewInstrumentedEmbedder(embedder, embeddinguc.PurposeDocument, ec.Provider, ec.Model, a.logger)
	queryInner := embedder
	if ec.Instruction != "" {
		queryInner = domain.NewInstructionEmbedder(embedder, ec.Instruction)
	}
	return doc, embeddinguc.NewInstrumentedEmbedder(queryInner, embeddinguc.PurposeQuery, ec.Provider, ec.Model, a.logger)
}

// Close drains background write-backs, then releases connections in reverse order.
func (a *app) Close(ctx context.Context) {
	if a.writeBack != nil {
		if err := a.writeBack.Close(ctx); err != nil {
			a.logger.Warn("Write-backs not drained", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func escalationConfig(ec config.EscalationConfig) escalationuc.Config {
	return escalationuc.Config{
		TopK:          ec.TopK,
		TargetMatches: ec.TargetMatches,
		TierTimeout:   time.Duration(ec.TierTimeoutMs) * time.Millisecond,
		DerivedMargin: ec.DerivedMargin,
		Patient:       escalationuc.TierPolicy{Threshold: ec.Patient.Threshold, MinScore: ec.Patient.MinScore},
		Facility:      escalationuc.TierPolicy{Threshold: ec.Facility.Threshold, MinScore: ec.Facility.MinScore},
		General:       escalationuc.TierPolicy{Threshold: ec.General.Threshold, MinScore: ec.General.MinScore},
	}
}

func staticFacilities(fc []config.FacilityConfig) []static.Facility {
	out := make([]static.Facility, len(fc))
	for i, f := range fc {
		out[i] = static.Facility{ID: f.ID, Name: f.Name, Address: f.Address, Patients: f.Patients}
	}
	return out
}

// healthChecker adapts an embedder to health.Checker. Embedders without a probe always pass.
func healthChecker(e domain.Embedder) healthuc.Checker {
	if hc, ok := e.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}
