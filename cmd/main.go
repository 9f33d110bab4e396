package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"shop-assistant/handler"
	"shop-assistant/internal/config"
	"shop-assistant/internal/integrations/gemini"
	"shop-assistant/internal/integrations/openai"
	"shop-assistant/internal/integrations/paramstore"
	"shop-assistant/internal/llm"
	"shop-assistant/internal/logging"
	"shop-assistant/internal/repository"
	"shop-assistant/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", "json")
		fatal(boot, err, "failed to load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal(log, err, "failed to load AWS config")
	}

	// ---- Clients ----
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		fatal(log, err, "failed to create SSM client")
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		fatal(log, err, "failed to create state client")
	}

	provider, err := newProvider(cfg, params)
	if err != nil {
		fatal(log, err, "failed to create completion provider")
	}
	gateway, err := llm.New(provider, llm.Config{
		HistoryLimit:    cfg.HistoryLimit,
		Timeout:         cfg.LLMTimeout,
		Language:        cfg.ReplyLanguage,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerCooldown: cfg.BreakerCooldown,
	}, log)
	if err != nil {
		fatal(log, err, "failed to create completion gateway")
	}

	var catalog usecase.CatalogReader = store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		cache, err := repository.NewCatalogCache(store, rdb, cfg.CatalogTTL, log.With().Str("component", "catalog_cache").Logger())
		if err != nil {
			fatal(log, err, "failed to create catalog cache")
		}
		catalog = cache
	}

	// ---- Handler ----
	svc, err := usecase.NewService(gateway, usecase.Stores{
		Contexts: store,
		Catalog:  catalog,
		Products: store,
		Carts:    store,
		Orders:   store,
		Profiles: store,
	}, usecase.Options{
		ContextWindow:    cfg.ContextWindow,
		MaxPromptLength:  cfg.MaxPromptLength,
		ReserveInventory: cfg.ReserveInventoryOnCheckout,
	})
	if err != nil {
		fatal(log, err, "failed to create chat service")
	}

	h, err := handler.NewHandler(svc, log)
	if err != nil {
		fatal(log, err, "failed to create handler")
	}

	log.Info().Str("provider", provider.Name()).Bool("catalog_cache", cfg.RedisAddr != "").Msg("starting")
	lambda.Start(h.Handle)
}

func newProvider(cfg *config.Config, params *paramstore.Client) (llm.Provider, error) {
	switch cfg.AIProvider {
	case "gemini":
		return gemini.NewClient(params, cfg.ParamPrefix, cfg.GeminiModel,
			gemini.WithBaseURL(cfg.GeminiBaseURL), gemini.WithMaxTokens(cfg.LLMMaxTokens))
	default:
		opts := []openai.Option{openai.WithMaxTokens(cfg.LLMMaxTokens)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return openai.NewClient(params, cfg.ParamPrefix, cfg.OpenAIModel, opts...)
	}
}

func fatal(log zerolog.Logger, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	os.Exit(1)
}
