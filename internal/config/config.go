package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath задает конфиг, который ищется в рабочем каталоге, если --config не задан.
const DefaultPath = "config.yaml"

// Переменные окружения, перекрывающие значения файла.
const (
	EnvOllamaHost  = "AITOMATE_OLLAMA_HOST"
	EnvOllamaModel = "AITOMATE_OLLAMA_MODEL"
	EnvLogLevel    = "LOG_LEVEL"
)

var errEmptyConfig = errors.New("config file is empty")

// Config описывает основные параметры агента.
type Config struct {
	Agent struct {
		LogLevel string `yaml:"log_level"`
		MaxSteps int    `yaml:"max_steps"`
	} `yaml:"agent"`
	Ollama struct {
		Host     string `yaml:"host"`
		Model    string `yaml:"model"`
		TimeoutS int    `yaml:"timeout_s"`
	} `yaml:"ollama"`
	Logs struct {
		Auth   string `yaml:"auth"`
		Threat string `yaml:"threat"`
	} `yaml:"logs"`
	Tools struct {
		Shell           []string `yaml:"shell"`
		CommandTimeoutS int      `yaml:"command_timeout_s"`
		SSHTimeoutS     int      `yaml:"ssh_timeout_s"`
		MaxOutputBytes  int      `yaml:"max_output_bytes"`
		ReadLimitBytes  int64    `yaml:"read_limit_bytes"`
	} `yaml:"tools"`
	Security struct {
		AuthAllowlist map[string][]string `yaml:"auth_allowlist"`
		RateLimit     struct {
			Requests int `yaml:"requests"`
			WindowS  int `yaml:"window_s"`
		} `yaml:"rate_limit"`
	} `yaml:"security"`
	SQLite struct {
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"sqlite"`
	Web struct {
		Enabled            bool       `yaml:"enabled"`
		ListenAddr         string     `yaml:"listen_addr"`
		ReadTimeoutMS      int        `yaml:"read_timeout_ms"`
		WriteTimeoutMS     int        `yaml:"write_timeout_ms"`
		RequestTimeoutMS   int        `yaml:"request_timeout_ms"`
		ShutdownTimeoutS   int        `yaml:"shutdown_timeout_s"`
		MaxBodyBytes       int64      `yaml:"max_body_bytes"`
		CORSOrigins        []string   `yaml:"cors_origins"`
		CORSMethods        []string   `yaml:"cors_methods"`
		CORSHeaders        []string   `yaml:"cors_headers"`
		CORSMaxAgeS        int        `yaml:"cors_max_age_s"`
		AllowSubjectHeader bool       `yaml:"allow_subject_header"`
		Tokens             []WebToken `yaml:"tokens"`
	} `yaml:"web"`
}

// WebToken связывает хеш bearer-токена с субъектом и его ролями.
type WebToken struct {
	Subject string   `yaml:"subject"`
	SHA256  string   `yaml:"sha256"`
	Roles   []string `yaml:"roles"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Agent.LogLevel = "info"
	cfg.Agent.MaxSteps = 8
	cfg.Ollama.Host = "http://localhost:11434"
	cfg.Ollama.Model = "llama3.1"
	cfg.Ollama.TimeoutS = 120
	cfg.Logs.Auth = "/var/log/auth.log"
	cfg.Logs.Threat = "threats.log"
	cfg.Tools.CommandTimeoutS = 30
	cfg.Tools.SSHTimeoutS = 30
	cfg.Tools.MaxOutputBytes = 1 << 20
	cfg.Tools.ReadLimitBytes = 1 << 20
	cfg.Security.AuthAllowlist = map[string][]string{"cli": {"*"}, "chat": {"*"}, "monitor": {"*"}, "mcp": {"*"}, "web": {}}
	cfg.Security.RateLimit.Requests = 30
	cfg.Security.RateLimit.WindowS = 60
	cfg.SQLite.Path = "aitomate.db"
	cfg.SQLite.RetentionDays = 30
	cfg.Web.Enabled = false
	cfg.Web.ListenAddr = "127.0.0.1:8080"
	cfg.Web.ReadTimeoutMS = 2000
	cfg.Web.WriteTimeoutMS = 65000
	cfg.Web.RequestTimeoutMS = 60000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.MaxBodyBytes = 1 << 20
	return cfg
}

// Load читает конфиг из файла YAML поверх значений по умолчанию и применяет
// переменные окружения. Отсутствующий файл по пути DefaultPath не считается ошибкой.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается доверенным оператором/CI.
	switch {
	case err == nil:
		if len(data) == 0 {
			return cfg, fmt.Errorf("%s: %w", path, errEmptyConfig)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvOllamaHost); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv(EnvOllamaModel); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Agent.LogLevel = v
	}
}

// CommandTimeout возвращает таймаут run_command по умолчанию.
func (c Config) CommandTimeout() time.Duration {
	return time.Duration(c.Tools.CommandTimeoutS) * time.Second
}

// SSHTimeout возвращает таймаут ssh_command по умолчанию.
func (c Config) SSHTimeout() time.Duration {
	return time.Duration(c.Tools.SSHTimeoutS) * time.Second
}
