package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all CLI configuration.
type Config struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string

	ChatProvider   string
	ChatModel      string
	EmbeddingModel string

	CacheDir  string
	RedisAddr string
}

// LoadConfig loads configuration from an optional config file and
// environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"OpenAIAPIKey":    "OPENAI_API_KEY",
		"AnthropicAPIKey": "ANTHROPIC_API_KEY",
		"ChatProvider":    "TOOLGROUPS_CHAT_PROVIDER",
		"ChatModel":       "TOOLGROUPS_CHAT_MODEL",
		"EmbeddingModel":  "TOOLGROUPS_EMBEDDING_MODEL",
		"CacheDir":        "TOOLGROUPS_CACHE_DIR",
		"RedisAddr":       "TOOLGROUPS_REDIS_ADDR",
	}
	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind env var %s: %w", envVar, err)
		}
	}

	v.SetConfigName("toolgroups")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/toolgroups")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ChatProvider", "openai")
	v.SetDefault("ChatModel", "gpt-4o-mini")
	v.SetDefault("EmbeddingModel", "text-embedding-3-small")
	v.SetDefault("CacheDir", ".toolgroups")
}
