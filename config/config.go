package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppName    string `mapstructure:"app_name"`
	ListenIP   string `mapstructure:"listen_ip"`
	ListenPort int    `mapstructure:"listen_port"`
	SessionKey string `mapstructure:"session_key"`
	Debug      bool   `mapstructure:"debug"`

	// SecureCookies marks cookies Secure and treats requests as HTTPS for CSRF checks.
	SecureCookies bool `mapstructure:"secure_cookies"`

	DBPath      string `mapstructure:"db_path"`
	DataDir     string `mapstructure:"data_dir"`
	AvatarDir   string `mapstructure:"avatar_dir"`
	UsersFile   string `mapstructure:"users_file"`
	SecretsFile string `mapstructure:"secrets_file"`

	// RedisAddr switches the failed-login tracker from process memory to Redis.
	RedisAddr string `mapstructure:"redis_addr"`

	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutWindow    time.Duration `mapstructure:"lockout_window"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	UsernamePolicy   string        `mapstructure:"username_policy"`
	RequireCaptcha   bool          `mapstructure:"require_captcha"`
	SignupPerHour    int           `mapstructure:"signup_per_hour"`

	AIModel           string        `mapstructure:"ai_model"`
	AIBaseURL         string        `mapstructure:"ai_base_url"`
	AITimeout         time.Duration `mapstructure:"ai_timeout"`
	ContextRows       int           `mapstructure:"context_rows"`
	ChatRatePerMinute int           `mapstructure:"chat_rate_per_minute"`

	// GoogleAPIKey comes from the secrets file or the GOOGLE_API_KEY variable.
	GoogleAPIKey string `mapstructure:"-"`

	// SessionKeyGenerated is set when no session key was configured and a
	// random one was generated for this process.
	SessionKeyGenerated bool `mapstructure:"-"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "Multi-Domain Intelligence Platform")
	v.SetDefault("listen_ip", "127.0.0.1")
	v.SetDefault("listen_port", 8080)
	v.SetDefault("session_key", "")
	v.SetDefault("debug", false)
	v.SetDefault("secure_cookies", false)
	v.SetDefault("db_path", "DATA/intelligence_platform.db")
	v.SetDefault("data_dir", "DATA")
	v.SetDefault("avatar_dir", "DATA/user_images")
	v.SetDefault("users_file", "DATA/users.txt")
	v.SetDefault("secrets_file", ".secrets/secrets.toml")
	v.SetDefault("redis_addr", "")
	v.SetDefault("lockout_threshold", 3)
	v.SetDefault("lockout_window", 300*time.Second)
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("username_policy", "alnum")
	v.SetDefault("require_captcha", false)
	v.SetDefault("signup_per_hour", 20)
	v.SetDefault("ai_model", "gemini-2.5-flash")
	v.SetDefault("ai_base_url", "")
	v.SetDefault("ai_timeout", 60*time.Second)
	v.SetDefault("context_rows", 50)
	v.SetDefault("chat_rate_per_minute", 10)
}

// LoadConfig reads the JSON config at path into AppConfig. An empty path
// loads defaults only. INTEL_* environment variables override both.
func LoadConfig(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("INTEL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	// If no key is provided or it's the placeholder, generate a secure random one
	if cfg.SessionKey == "" || cfg.SessionKey == "CHANGE_ME_IN_PRODUCTION" {
		cfg.SessionKeyGenerated = true
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err != nil {
			return err
		}
		cfg.SessionKey = hex.EncodeToString(randomKey)
	}

	key, err := loadAPIKey(cfg.SecretsFile)
	if err != nil {
		return err
	}
	cfg.GoogleAPIKey = key

	AppConfig = cfg
	return nil
}

// loadAPIKey reads GOOGLE_API_KEY from the TOML secrets file. A missing file
// is not an error; the assistant reports the missing key instead.
func loadAPIKey(path string) (string, error) {
	if env := os.Getenv("GOOGLE_API_KEY"); env != "" {
		return env, nil
	}
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read secrets: %w", err)
	}
	return v.GetString("GOOGLE_API_KEY"), nil
}
