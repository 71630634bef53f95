package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the resolver.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Engine     EngineConfig     `mapstructure:"engine"`
	RPA        RPAConfig        `mapstructure:"rpa"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	Connectors []ConnectorEntry `mapstructure:"connectors"`
}

type GeneralConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type LLMConfig struct {
	Backend    string `mapstructure:"backend"` // "gemini" or "ollama"
	Model      string `mapstructure:"model"`
	OllamaHost string `mapstructure:"ollama_host"`
}

// EngineConfig carries the per-stage timeouts. The observed source behavior
// has none; they are configurable here so a hung collaborator cannot stall a
// flow forever.
type EngineConfig struct {
	ClassifyTimeout time.Duration `mapstructure:"classify_timeout"`
	PlanTimeout     time.Duration `mapstructure:"plan_timeout"`
	ExecuteTimeout  time.Duration `mapstructure:"execute_timeout"`
	BatchLimit      int           `mapstructure:"batch_limit"`
}

type RPAConfig struct {
	MaxSteps           int           `mapstructure:"max_steps"`
	SettleInterval     time.Duration `mapstructure:"settle_interval"`
	DegradeOnMalformed bool          `mapstructure:"degrade_on_malformed"`
}

type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	PoolSize       int           `mapstructure:"pool_size"`
}

type MCPConfig struct {
	Command         string        `mapstructure:"command"`
	DiscoverTimeout time.Duration `mapstructure:"discover_timeout"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	MaxOutputBytes  int64         `mapstructure:"max_output_bytes"`
}

// ConnectorEntry declares one domain API connector (MES/SCADA/ERP/OA).
type ConnectorEntry struct {
	Name      string            `mapstructure:"name"`
	BaseURL   string            `mapstructure:"base_url"`
	AuthToken string            `mapstructure:"auth_token"`
	Endpoints map[string]string `mapstructure:"endpoints"` // endpoint name -> path
}

// Load reads opsagent.yaml (searched in "." and $HOME/.opsagent) and applies
// OPSAGENT_* environment overrides. A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("opsagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.opsagent")
	}

	v.SetEnvPrefix("OPSAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_file", "opsagent.log")

	v.SetDefault("llm.backend", "gemini")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.ollama_host", "http://localhost:11434")

	v.SetDefault("engine.classify_timeout", 30*time.Second)
	v.SetDefault("engine.plan_timeout", 30*time.Second)
	v.SetDefault("engine.execute_timeout", 10*time.Minute)
	v.SetDefault("engine.batch_limit", 4)

	v.SetDefault("rpa.max_steps", 50)
	v.SetDefault("rpa.settle_interval", 500*time.Millisecond)
	v.SetDefault("rpa.degrade_on_malformed", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.command_timeout", 30*time.Second)
	v.SetDefault("browser.pool_size", 2)

	v.SetDefault("mcp.command", "mcporter")
	v.SetDefault("mcp.discover_timeout", 30*time.Second)
	v.SetDefault("mcp.call_timeout", 60*time.Second)
	v.SetDefault("mcp.max_output_bytes", int64(10*1024*1024))
}
