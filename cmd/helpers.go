package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/ctxpack/internal/assembler"
	"github.com/ziadkadry99/ctxpack/internal/compress"
	"github.com/ziadkadry99/ctxpack/internal/config"
	"github.com/ziadkadry99/ctxpack/internal/db"
	"github.com/ziadkadry99/ctxpack/internal/docstore"
	"github.com/ziadkadry99/ctxpack/internal/embeddings"
	"github.com/ziadkadry99/ctxpack/internal/indexer"
	"github.com/ziadkadry99/ctxpack/internal/llm"
	"github.com/ziadkadry99/ctxpack/internal/logging"
	"github.com/ziadkadry99/ctxpack/internal/metrics"
	"github.com/ziadkadry99/ctxpack/internal/packer"
	"github.com/ziadkadry99/ctxpack/internal/progress"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
	"github.com/ziadkadry99/ctxpack/internal/stats"
	"github.com/ziadkadry99/ctxpack/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `ctxpack init` to create a config file", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(level, cfg.Log.Format)
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = config.ProviderOpenAI
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider, cfg.Quality).EmbeddingModel
	}

	switch provider {
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, 768, os.Getenv("OLLAMA_HOST")), nil
	case config.ProviderGoogle:
		apiKey := os.Getenv(llm.APIKeyEnvVar(llm.ProviderGoogle))
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY environment variable is required for Google embeddings")
		}
		return embeddings.NewGoogleEmbedder(apiKey, embeddings.GoogleModel(model)), nil
	default:
		apiKey := os.Getenv(llm.APIKeyEnvVar(llm.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model)), nil
	}
}

// newPolicy builds the provider selection policy. Every provider other than
// the configured one is a fallback, in a fixed order.
func newPolicy(cfg *config.Config) *llm.Policy {
	var fallback []string
	for _, p := range []string{llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderGoogle, llm.ProviderOpenRouter, llm.ProviderOllama} {
		if p != string(cfg.Provider) {
			fallback = append(fallback, p)
		}
	}
	return &llm.Policy{
		Default:           string(cfg.Provider),
		Fallback:          fallback,
		Models:            cfg.ProviderModels(),
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}
}

// app holds everything a command needs to run context assembly.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	db      *db.DB
	store   *docstore.Store
	vectors *vectordb.ChromemStore
	metrics *metrics.Metrics
	svc     *assembler.Service
}

type appOptions struct {
	// metrics registers Prometheus collectors.
	metrics bool
	// requireVectors creates the semantic index even when none exists on disk.
	requireVectors bool
}

func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    database,
		store: docstore.NewStore(database),
	}
	if opts.metrics {
		a.metrics = metrics.New()
	}
	a.vectors = loadVectors(ctx, cfg, log, opts.requireVectors)
	a.svc = a.newService()
	return a, nil
}

// loadVectors returns the semantic index, or nil when it cannot be used.
// Retrieval then falls back to keyword search.
func loadVectors(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, create bool) *vectordb.ChromemStore {
	exists := vectordb.Exists(cfg.IndexDir())
	if !exists && !create {
		log.Debug("no semantic index on disk, using keyword search")
		return nil
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		log.WithError(err).Warn("semantic index disabled, using keyword search")
		return nil
	}
	store, err := vectordb.NewChromemStore(embeddings.NewCached(embedder, 0))
	if err != nil {
		log.WithError(err).Warn("semantic index disabled, using keyword search")
		return nil
	}
	if exists {
		if err := store.Load(ctx, cfg.IndexDir()); err != nil {
			log.WithError(err).WithField("dir", cfg.IndexDir()).Warn("could not load semantic index")
			if !create {
				return nil
			}
		}
	}
	return store
}

func (a *app) newService() *assembler.Service {
	cfg := a.cfg

	var searcher retrieval.Searcher = docstore.NewKeywordSearcher(a.store)
	if a.vectors != nil {
		searcher = vectordb.NewSearcher(a.vectors)
	}
	retriever := retrieval.NewAggregator(a.store, searcher,
		retrieval.WithSearchTimeout(cfg.Retrieval.SearchTimeout),
		retrieval.WithDefaults(cfg.Retrieval.Limit, cfg.Retrieval.MinScore),
		retrieval.WithLogger(a.log),
		retrieval.WithMetrics(a.metrics),
	)

	pk := packer.NewPacker(nil, a.metrics)
	pk.ResponseBuffer = cfg.Budget.ResponseBuffer
	pk.MinFragmentTokens = cfg.Budget.MinFragmentTokens

	policy := newPolicy(cfg)
	compressor := compress.New(a.store, policy,
		compress.WithSettings(a.store),
		compress.WithTimeout(cfg.Compression.Timeout),
		compress.WithCacheTTL(cfg.Compression.CacheTTL),
		compress.WithMaxSummaryTokens(cfg.Compression.MaxSummaryTokens),
		compress.WithLogger(a.log),
		compress.WithMetrics(a.metrics),
	)

	reporter := stats.NewReporter(a.store, a.store, a.log)
	reporter.Ceiling = cfg.Stats.ContextCeiling
	reporter.CanAddMorePercent = cfg.Stats.CanAddMorePercent

	return assembler.New(assembler.Deps{
		Retriever:        retriever,
		Packer:           pk,
		Compressor:       compressor,
		Reporter:         reporter,
		Conversations:    a.store,
		Writer:           a.store,
		Settings:         a.store,
		Selector:         policy,
		Log:              a.log,
		DefaultMaxTokens: cfg.Budget.MaxTokens,
		DefaultWindow:    cfg.Compression.Window,
	})
}

// newIndexer returns an indexer writing to the app's store and semantic index.
func (a *app) newIndexer(reporter progress.Reporter) *indexer.Indexer {
	var vectors vectordb.VectorStore
	if a.vectors != nil {
		vectors = a.vectors
	}
	return indexer.New(indexer.Deps{
		Store:       a.store,
		Vectors:     vectors,
		IndexDir:    a.cfg.IndexDir(),
		StateDir:    a.cfg.DataDir,
		Reporter:    reporter,
		Log:         a.log,
		ChunkTokens: a.cfg.Index.ChunkTokens,
	})
}

func (a *app) Close() error {
	return a.db.Close()
}

// minScoreFlag returns the min-score flag when the user set it. Nil leaves
// the configured default to the aggregator.
func minScoreFlag(changed bool, value float64) *float64 {
	if changed {
		return &value
	}
	return nil
}
