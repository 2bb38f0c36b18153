// Package config loads runtime settings for the parksuite core from the
// environment, with RAG_-prefixed keys matching the original service's
// configuration surface.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is the fully-resolved configuration for one process.
type Settings struct {
	DatabaseURL string
	EmbeddingDim int

	DeepseekAPIKey  string
	DeepseekBaseURL string
	DeepseekModel   string

	BizAPIBaseURL        string
	BizAPITimeoutSeconds float64

	MemoryTTLSeconds         int
	MemoryMaxTurns           int
	MemoryMaxClarifyMessages int

	LLMLogFullPayload bool
	LLMLogMaxChars    int

	RedisAddr string
	LogLevel  string

	HTTPAddr string
}

// Load reads a .env file (if present, never an error when absent) and then
// binds RAG_-prefixed environment variables over a set of sane defaults,
// mirroring original_source/config.py's Settings shape.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("RAG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("embedding_dim", 1536)
	v.SetDefault("biz_api_timeout_seconds", 10.0)
	v.SetDefault("memory_ttl_seconds", 1800)
	v.SetDefault("memory_max_turns", 20)
	v.SetDefault("memory_max_clarify_messages", 20)
	v.SetDefault("llm_log_max_chars", 2000)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")

	// DEEPSEEK_* and BIZ_API_BASE_URL are not RAG_-prefixed in the original
	// service; bind them explicitly alongside the prefixed keys.
	for _, key := range []string{"DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "DEEPSEEK_MODEL", "BIZ_API_BASE_URL"} {
		if err := v.BindEnv(strings.ToLower(key), key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	s := &Settings{
		DatabaseURL:              v.GetString("database_url"),
		EmbeddingDim:             v.GetInt("embedding_dim"),
		DeepseekAPIKey:           v.GetString("deepseek_api_key"),
		DeepseekBaseURL:          v.GetString("deepseek_base_url"),
		DeepseekModel:            v.GetString("deepseek_model"),
		BizAPIBaseURL:            v.GetString("biz_api_base_url"),
		BizAPITimeoutSeconds:     v.GetFloat64("biz_api_timeout_seconds"),
		MemoryTTLSeconds:         v.GetInt("memory_ttl_seconds"),
		MemoryMaxTurns:           v.GetInt("memory_max_turns"),
		MemoryMaxClarifyMessages: v.GetInt("memory_max_clarify_messages"),
		LLMLogFullPayload:        v.GetBool("llm_log_full_payload"),
		LLMLogMaxChars:           v.GetInt("llm_log_max_chars"),
		RedisAddr:                v.GetString("redis_addr"),
		LogLevel:                 v.GetString("log_level"),
		HTTPAddr:                 v.GetString("http_addr"),
	}
	return s, nil
}

// BizAPITimeout returns the configured business-API timeout as a
// time.Duration.
func (s *Settings) BizAPITimeout() time.Duration {
	return time.Duration(s.BizAPITimeoutSeconds * float64(time.Second))
}

// MemoryTTL returns the configured session memory TTL as a time.Duration.
func (s *Settings) MemoryTTL() time.Duration {
	return time.Duration(s.MemoryTTLSeconds) * time.Second
}
