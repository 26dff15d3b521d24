package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrNotConfigured はJIRA接続設定が不足している場合のエラーです
var ErrNotConfigured = errors.New("jira connection is not configured")

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// JIRA API設定
	JiraURL        string `mapstructure:"jira_url"`
	JiraEmail      string `mapstructure:"jira_email"`
	JiraAPIToken   string `mapstructure:"jira_api_token"`
	JiraProjectKey string `mapstructure:"jira_project_key"`

	// 通信設定
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	MetaCacheTTL time.Duration `mapstructure:"meta_cache_ttl"`
	MaxRetries   int           `mapstructure:"max_retries"`

	// ストレージ設定
	StorageBackend string `mapstructure:"storage_backend"` // sqlite | redis | memory
	StoragePath    string `mapstructure:"storage_path"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`

	// ログ設定
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogOutput string `mapstructure:"log_output"`

	// プロキシサーバー設定
	ServerAddr    string `mapstructure:"server_addr"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// LoadConfig は .env・設定ファイル・環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	// .envファイルを読み込む (存在しなくてもよい)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("jirabulk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("設定の展開エラー: %w", err)
	}
	cfg.JiraURL = strings.TrimRight(cfg.JiraURL, "/")

	return cfg, nil
}

// Validate はJIRAへの接続に必要な項目が揃っているかを確認します
func (c *Config) Validate() error {
	var missing []string
	if c.JiraURL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if c.JiraEmail == "" {
		missing = append(missing, "JIRA_EMAIL")
	}
	if c.JiraAPIToken == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("meta_cache_ttl", 10*time.Minute)
	v.SetDefault("max_retries", 3)

	v.SetDefault("storage_backend", "sqlite")
	v.SetDefault("storage_path", ".jirabulk/state.db")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_output", "stderr")

	v.SetDefault("server_addr", ":5174")
	v.SetDefault("allowed_origin", "http://localhost:5173")
}

// bindEnv は JIRABULK_ 接頭辞付きと接頭辞なしの両方の環境変数を受け付けます
func bindEnv(v *viper.Viper) {
	keys := []string{
		"jira_url", "jira_email", "jira_api_token", "jira_project_key",
		"http_timeout", "meta_cache_ttl", "max_retries",
		"storage_backend", "storage_path", "redis_addr", "redis_password", "redis_db",
		"log_level", "log_format", "log_output",
		"server_addr", "allowed_origin",
	}
	for _, key := range keys {
		upper := strings.ToUpper(key)
		_ = v.BindEnv(key, "JIRABULK_"+upper, upper)
	}
}
