package cmd

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/enclaro/backend/internal/analysis"
	"github.com/enclaro/backend/internal/api"
	"github.com/enclaro/backend/internal/claude"
	"github.com/enclaro/backend/internal/config"
	"github.com/enclaro/backend/internal/database"
	"github.com/enclaro/backend/internal/history"
	"github.com/enclaro/backend/internal/logging"
	"github.com/enclaro/backend/internal/prompts"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Enclaro API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	// A .env file is optional; deployments set real environment variables.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Pretty)

	store, err := prompts.NewStore()
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}
	composer := prompts.NewComposer(store)

	client := claude.New(claude.Config{
		APIKey:    cfg.Claude.APIKey,
		Model:     cfg.Claude.Model,
		MaxTokens: cfg.Claude.MaxTokens,
		Timeout:   time.Duration(cfg.Claude.TimeoutSeconds) * time.Second,
	})
	defer client.Close()

	if cfg.Claude.APIKey == "" {
		log.Warn().Msg("CLAUDE_API_KEY is not set; analyze requests will fail until it is configured")
	}

	var historyStore analysis.HistoryStore
	if cfg.Database.URL != "" {
		db, err := database.NewDB(cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		hs := history.NewStore(db)
		if err := hs.EnsureSchema(c.Context); err != nil {
			return fmt.Errorf("failed to ensure database schema: %w", err)
		}
		historyStore = hs
		log.Info().Msg("History persistence enabled")
	} else {
		log.Warn().Msg("No database URL configured; history persistence is disabled")
	}

	service := analysis.NewService(analysis.Config{
		MaxInputLength: cfg.Analysis.MaxInputLength,
		PremiumUsers:   cfg.Premium.Users,
	}, composer, client, historyStore)

	log.Info().Int("port", cfg.Server.Port).Str("model", cfg.Claude.Model).Msg("Starting Enclaro API server")

	return api.NewServer(cfg.Server.Port, service).Start()
}
