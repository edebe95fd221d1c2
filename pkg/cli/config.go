package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/ditto/pkg/adapter"
	"github.com/m-mizutani/ditto/pkg/embedding"
	"github.com/m-mizutani/ditto/pkg/generator"
	"github.com/m-mizutani/ditto/pkg/repository"
	"github.com/m-mizutani/ditto/pkg/usecase/answer"
	"github.com/m-mizutani/ditto/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// History store
	store      string
	project    string
	database   string
	sqlitePath string

	// Redis, shared by the redis store and the redis embedding cache
	redisAddr     string
	redisPassword string
	redisDB       int64

	// LLM
	llm                  string
	generator            string
	geminiProject        string
	geminiLocation       string
	geminiAPIKey         string
	geminiModel          string
	geminiEmbeddingModel string
	openaiAPIKey         string
	openaiBaseURL        string
	openaiModel          string
	openaiEmbeddingModel string
	anthropicAPIKey      string
	claudeModel          string
	claudeMaxTokens      int64

	// Matching
	threshold  float64
	dimensions int64
	cache      string
	cacheSize  int64
	cacheTTL   time.Duration

	// User
	userID      string
	profilePath string

	redisClient  *redis.Client
	geminiClient *adapter.GeminiClient
	openaiClient *adapter.OpenAIClient
	closers      []func() error
}

// storeFlags returns flags selecting and configuring the history store
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "History store backend (memory, sqlite, firestore, redis)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("DITTO_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database file for the sqlite store",
			Value:       "ditto.db",
			Sources:     cli.EnvVars("DITTO_SQLITE_PATH"),
			Destination: &cfg.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID of Firestore",
			Sources:     cli.EnvVars("DITTO_FIRESTORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("DITTO_FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port) for the redis store and embedding cache",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("DITTO_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("DITTO_REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("DITTO_REDIS_DB"),
			Destination: &cfg.redisDB,
		},
	}
}

// llmFlags returns flags for the answer generator and embedding provider
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm",
			Usage:       "LLM provider for embeddings, and for answers unless --generator is set (gemini, openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("DITTO_LLM"),
			Destination: &cfg.llm,
		},
		&cli.StringFlag{
			Name:        "generator",
			Usage:       "LLM provider for answers (gemini, openai, claude). Defaults to --llm",
			Sources:     cli.EnvVars("DITTO_GENERATOR"),
			Destination: &cfg.generator,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("DITTO_GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("DITTO_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key. Used instead of Vertex AI when set",
			Sources:     cli.EnvVars("DITTO_GEMINI_API_KEY", "GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model for answers",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("DITTO_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "gemini-embedding-model",
			Usage:       "Gemini model for embeddings",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("DITTO_GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.geminiEmbeddingModel,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("DITTO_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI compatible API",
			Sources:     cli.EnvVars("DITTO_OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "OpenAI model for answers",
			Value:       "gpt-4o-mini",
			Sources:     cli.EnvVars("DITTO_OPENAI_MODEL"),
			Destination: &cfg.openaiModel,
		},
		&cli.StringFlag{
			Name:        "openai-embedding-model",
			Usage:       "OpenAI model for embeddings",
			Value:       "text-embedding-3-small",
			Sources:     cli.EnvVars("DITTO_OPENAI_EMBEDDING_MODEL"),
			Destination: &cfg.openaiEmbeddingModel,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key for the claude generator",
			Sources:     cli.EnvVars("DITTO_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model for answers",
			Value:       "claude-sonnet-4-5",
			Sources:     cli.EnvVars("DITTO_CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
		&cli.IntFlag{
			Name:        "claude-max-tokens",
			Usage:       "Maximum output tokens of a Claude answer",
			Value:       1024,
			Sources:     cli.EnvVars("DITTO_CLAUDE_MAX_TOKENS"),
			Destination: &cfg.claudeMaxTokens,
		},
	}
}

// matchFlags returns flags tuning paraphrase matching
func matchFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{
			Name:        "threshold",
			Usage:       "Cosine similarity a paraphrase must exceed to reuse a prior answer, in (0, 1]",
			Value:       answer.DefaultThreshold,
			Sources:     cli.EnvVars("DITTO_THRESHOLD"),
			Destination: &cfg.threshold,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Embedding dimensionality. 0 keeps the model default",
			Sources:     cli.EnvVars("DITTO_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.dimensions,
		},
		&cli.StringFlag{
			Name:        "embedding-cache",
			Usage:       "Embedding cache (none, memory, redis)",
			Value:       "memory",
			Sources:     cli.EnvVars("DITTO_EMBEDDING_CACHE"),
			Destination: &cfg.cache,
		},
		&cli.IntFlag{
			Name:        "embedding-cache-size",
			Usage:       "Maximum entries of the memory embedding cache",
			Value:       1024,
			Sources:     cli.EnvVars("DITTO_EMBEDDING_CACHE_SIZE"),
			Destination: &cfg.cacheSize,
		},
		&cli.DurationFlag{
			Name:        "embedding-cache-ttl",
			Usage:       "TTL of redis embedding cache entries. 0 keeps them forever",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("DITTO_EMBEDDING_CACHE_TTL"),
			Destination: &cfg.cacheTTL,
		},
	}
}

// userFlags returns flags identifying the user and the profile answers are based on
func userFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID owning the answer history",
			Value:       "default",
			Sources:     cli.EnvVars("DITTO_USER"),
			Destination: &cfg.userID,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Path to the user profile YAML file",
			Value:       "profile.yaml",
			Sources:     cli.EnvVars("DITTO_PROFILE"),
			Destination: &cfg.profilePath,
		},
	}
}

// Close releases every client opened from this config
func (cfg *config) Close() {
	for i := len(cfg.closers) - 1; i >= 0; i-- {
		if err := cfg.closers[i](); err != nil {
			logging.Default().Warn("failed to close client", "error", err)
		}
	}
	cfg.closers = nil
}

func (cfg *config) redis() *redis.Client {
	if cfg.redisClient == nil {
		cfg.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       int(cfg.redisDB),
		})
		cfg.closers = append(cfg.closers, cfg.redisClient.Close)
	}
	return cfg.redisClient
}

// newHistoryStore creates the configured history store
func (cfg *config) newHistoryStore(ctx context.Context) (repository.HistoryStore, error) {
	switch strings.ToLower(cfg.store) {
	case "memory":
		return repository.NewMemory(), nil

	case "sqlite":
		store, err := repository.NewSQLite(ctx, cfg.sqlitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open sqlite store")
		}
		cfg.closers = append(cfg.closers, store.Close)
		return store, nil

	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for firestore store")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required for firestore store")
		}
		store, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore store")
		}
		cfg.closers = append(cfg.closers, store.Close)
		return store, nil

	case "redis":
		return repository.NewRedis(cfg.redis()), nil

	default:
		return nil, goerr.New("unknown store", goerr.V("store", cfg.store))
	}
}

func (cfg *config) gemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiClient != nil {
		return cfg.geminiClient, nil
	}

	opts := []adapter.GeminiOption{
		adapter.WithGenerativeModel(cfg.geminiModel),
		adapter.WithEmbeddingModel(cfg.geminiEmbeddingModel),
	}

	var (
		client *adapter.GeminiClient
		err    error
	)
	switch {
	case cfg.geminiAPIKey != "":
		client, err = adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opts...)
	case cfg.geminiProject != "":
		client, err = adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	default:
		return nil, goerr.New("gemini-api-key or gemini-project is required")
	}
	if err != nil {
		return nil, err
	}
	cfg.geminiClient = client
	return client, nil
}

func (cfg *config) openai() (*adapter.OpenAIClient, error) {
	if cfg.openaiClient != nil {
		return cfg.openaiClient, nil
	}
	if cfg.openaiAPIKey == "" {
		return nil, goerr.New("openai-api-key is required")
	}
	cfg.openaiClient = adapter.NewOpenAI(cfg.openaiAPIKey, cfg.openaiBaseURL,
		adapter.WithOpenAIModel(cfg.openaiModel),
		adapter.WithOpenAIEmbeddingModel(cfg.openaiEmbeddingModel),
	)
	return cfg.openaiClient, nil
}

// embeddingModel identifies the configured embedding space as provider:model:dimensions.
// It namespaces cached vectors and is stored with every recorded embedding.
func (cfg *config) embeddingModel() (string, error) {
	var name string
	switch strings.ToLower(cfg.llm) {
	case "gemini":
		name = "gemini:" + cfg.geminiEmbeddingModel
	case "openai":
		name = "openai:" + cfg.openaiEmbeddingModel
	default:
		return "", goerr.New("unknown llm provider", goerr.V("llm", cfg.llm))
	}
	return name + ":" + strconv.FormatInt(cfg.dimensions, 10), nil
}

// newEmbeddingProvider creates the embedding provider of the configured LLM, behind the configured cache
func (cfg *config) newEmbeddingProvider(ctx context.Context) (embedding.Provider, error) {
	namespace, err := cfg.embeddingModel()
	if err != nil {
		return nil, err
	}

	var provider embedding.Provider
	switch strings.ToLower(cfg.llm) {
	case "gemini":
		client, err := cfg.gemini(ctx)
		if err != nil {
			return nil, err
		}
		provider = embedding.NewGemini(client, int(cfg.dimensions))

	case "openai":
		client, err := cfg.openai()
		if err != nil {
			return nil, err
		}
		provider = embedding.NewOpenAI(client, int(cfg.dimensions))
	}

	switch strings.ToLower(cfg.cache) {
	case "none", "":
	case "memory":
		cache, err := embedding.NewMemoryCache(int(cfg.cacheSize))
		if err != nil {
			return nil, err
		}
		provider = embedding.NewCachedProvider(provider, cache, namespace)
	case "redis":
		provider = embedding.NewCachedProvider(provider, embedding.NewRedisCache(cfg.redis(), cfg.cacheTTL), namespace)
	default:
		return nil, goerr.New("unknown embedding cache", goerr.V("cache", cfg.cache))
	}

	return provider, nil
}

// newGenerator creates the answer generator of --generator, or of --llm when unset
func (cfg *config) newGenerator(ctx context.Context) (generator.Generator, error) {
	name := cfg.generator
	if name == "" {
		name = cfg.llm
	}

	switch strings.ToLower(name) {
	case "gemini":
		client, err := cfg.gemini(ctx)
		if err != nil {
			return nil, err
		}
		return generator.NewGemini(client)

	case "openai":
		client, err := cfg.openai()
		if err != nil {
			return nil, err
		}
		return generator.NewOpenAI(client)

	case "claude":
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required for claude generator")
		}
		client := adapter.NewClaude(cfg.anthropicAPIKey,
			adapter.WithClaudeModel(cfg.claudeModel),
			adapter.WithClaudeMaxTokens(cfg.claudeMaxTokens),
		)
		return generator.NewClaude(client)

	default:
		return nil, goerr.New("unknown generator", goerr.V("generator", name))
	}
}

// newUseCase creates the answer use case with the history store and LLM
func (cfg *config) newUseCase(ctx context.Context) (*answer.UseCase, error) {
	if err := answer.ValidateThreshold(cfg.threshold); err != nil {
		return nil, err
	}

	store, err := cfg.newHistoryStore(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := cfg.newEmbeddingProvider(ctx)
	if err != nil {
		return nil, err
	}
	gen, err := cfg.newGenerator(ctx)
	if err != nil {
		return nil, err
	}
	space, err := cfg.embeddingModel()
	if err != nil {
		return nil, err
	}

	return answer.New(store, provider, gen,
		answer.WithThreshold(cfg.threshold),
		answer.WithEmbeddingModel(space),
	)
}

// newHistoryUseCase creates an answer use case that only manages history
func (cfg *config) newHistoryUseCase(ctx context.Context) (*answer.UseCase, error) {
	store, err := cfg.newHistoryStore(ctx)
	if err != nil {
		return nil, err
	}
	return answer.New(store, nil, nil)
}
