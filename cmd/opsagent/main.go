package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"opsagent/internal/cli"
	"opsagent/internal/config"
	"opsagent/internal/llm"
	"opsagent/internal/logger"
)

func main() {
	// Optional; API keys can come from the environment directly.
	_ = godotenv.Load()

	// OPSAGENT_CONFIG overrides the default search path (., $HOME/.opsagent).
	cfg, err := config.Load(os.Getenv("OPSAGENT_CONFIG"))
	if err != nil {
		log.Fatalf("Fatal Error: Could not load configuration: %v", err)
	}

	if err := logger.Init(cfg.General.LogLevel, cfg.General.LogFile); err != nil {
		log.Fatalf("Fatal Error: Could not initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := llm.Init(llm.Config{
		Backend:    cfg.LLM.Backend,
		Model:      cfg.LLM.Model,
		OllamaHost: cfg.LLM.OllamaHost,
	}); err != nil {
		log.Fatalf("Fatal Error: Could not initialize LLM client: %v", err)
	}

	if err := cli.Execute(cfg); err != nil {
		log.Fatalf("Fatal Error: %v", err)
	}
}
