package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	BotToken     string `mapstructure:"bot_token"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`
	DBPath       string `mapstructure:"db_path"`
	LogLevel     string `mapstructure:"log_level"`
}

// Load reads configuration from the environment (BOT_TOKEN,
// OPENAI_API_KEY, OPENAI_MODEL, DB_PATH, LOG_LEVEL). The two
// credentials are required; everything else has a default.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("openai_model", "gpt-4.1")
	v.SetDefault("db_path", "offers.db")
	v.SetDefault("log_level", "info")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{"bot_token", "openai_api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.BotToken == "" {
		return nil, eris.New("config: BOT_TOKEN is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, eris.New("config: OPENAI_API_KEY is required")
	}

	return &cfg, nil
}

// InitLogger builds the global zap logger at the configured level.
func InitLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, eris.Wrapf(err, "config: parse log level %q", level)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level.SetLevel(parsed)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
