package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"shop-assistant/internal/catalogseed"
	"shop-assistant/internal/config"
	"shop-assistant/internal/logging"
	"shop-assistant/internal/repository"
)

// seed writes the categories and products of SEED_FILE into STATE_TABLE.
func main() {
	boot := logging.New("info", "console")
	cfg, err := config.LoadSeed()
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := log.WithContext(context.Background())

	res, err := run(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Int("categories", res.Categories).Int("products", res.Products).Msg("seed failed")
	}
	log.Info().Str("table", cfg.StateTable).Int("categories", res.Categories).Int("products", res.Products).Msg("catalog seeded")
}

func run(ctx context.Context, cfg *config.SeedConfig) (catalogseed.Result, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return catalogseed.Result{}, fmt.Errorf("load AWS config: %w", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		return catalogseed.Result{}, fmt.Errorf("create state client: %w", err)
	}

	f, err := os.Open(cfg.SeedFile)
	if err != nil {
		return catalogseed.Result{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	return catalogseed.Load(ctx, store, f)
}
