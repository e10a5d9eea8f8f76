package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Redis struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		TTL       string `yaml:"ttl"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Trivia struct {
		BaseURL        string `yaml:"base_url"`
		Amount         int    `yaml:"amount"`
		Category       int    `yaml:"category"`
		Difficulty     string `yaml:"difficulty"`
		Type           string `yaml:"type"`
		RequestTimeout string `yaml:"request_timeout"`
		CacheDuration  string `yaml:"cache_duration"`
		MaxRetries     *int   `yaml:"max_retries"`
		RetryBaseDelay string `yaml:"retry_base_delay"`
	} `yaml:"trivia"`
	Quiz struct {
		QuestionTime string `yaml:"question_time"`
		GraceDelay   string `yaml:"grace_delay"`
	} `yaml:"quiz"`
	Email struct {
		BaseURL    string `yaml:"base_url"`
		PublicKey  string `yaml:"public_key"`
		ServiceID  string `yaml:"service_id"`
		TemplateID string `yaml:"template_id"`
		ToEmail    string `yaml:"to_email"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"email"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields the defaults plus environment values.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case os.IsNotExist(err):
	default:
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overlays the email settings from the environment, the way the
// public widget receives them at build time.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"EMAILJS_PUBLIC_KEY", &c.Email.PublicKey},
		{"EMAILJS_SERVICE_ID", &c.Email.ServiceID},
		{"EMAILJS_TEMPLATE_ID", &c.Email.TemplateID},
		{"QUIZ_TO_EMAIL", &c.Email.ToEmail},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"POSTGRES_URL", &c.Postgres.URL},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// StoreDriver resolves which key/value backend to use.
func (c Config) StoreDriver() string {
	if c.Store.Driver != "" {
		return c.Store.Driver
	}
	if c.Redis.Addr != "" {
		return "redis"
	}
	if c.Postgres.URL != "" {
		return "postgres"
	}
	return "memory"
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
