package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotInitialized = errors.New("llm provider not initialized")

type Config struct {
	Backend    string
	Model      string
	OllamaHost string
}

// Provider is the language-model collaborator. GenerateJSON constrains the
// response to JSON (with an optional schema); GenerateVisionJSON additionally
// grounds the model with a PNG screenshot.
type Provider interface {
	Init(cfg Config) error
	DefaultModel() string
	AllowedModelOrDefault(model string) string
	Generate(ctx context.Context, prompt, model string) (string, error)
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
	GenerateVisionJSON(ctx context.Context, prompt string, image []byte, model string, schema any) (string, error)
}

var (
	active   Provider
	activeID string
)

func Init(cfg Config) error {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	var p Provider
	switch backend {
	case "ollama":
		p = &ollamaProvider{}
		activeID = "ollama"
	case "gemini":
		p = &geminiProvider{}
		activeID = "gemini"
	default:
		return fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return err
	}
	active = p
	return nil
}

// SetProvider swaps the active provider. Tests use it to install fakes.
func SetProvider(p Provider, id string) {
	active = p
	activeID = id
}

func ActiveBackend() string {
	if active == nil {
		return ""
	}
	return activeID
}

func Generate(ctx context.Context, prompt, model string) (string, error) {
	if active == nil {
		return "", ErrNotInitialized
	}
	return active.Generate(ctx, prompt, model)
}

func GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error) {
	if active == nil {
		return "", ErrNotInitialized
	}
	return active.GenerateJSON(ctx, prompt, model, schema)
}

func GenerateVisionJSON(ctx context.Context, prompt string, image []byte, model string, schema any) (string, error) {
	if active == nil {
		return "", ErrNotInitialized
	}
	return active.GenerateVisionJSON(ctx, prompt, image, model, schema)
}
