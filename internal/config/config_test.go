package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
ollama:
  host: http://gpu-box:11434
  model: qwen2.5
logs:
  auth: /tmp/auth.log
tools:
  command_timeout_s: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ollama.Host != "http://gpu-box:11434" || cfg.Ollama.Model != "qwen2.5" {
		t.Fatalf("unexpected ollama section: %+v", cfg.Ollama)
	}
	if cfg.Logs.Auth != "/tmp/auth.log" || cfg.Logs.Threat != "threats.log" {
		t.Fatalf("unexpected logs section: %+v", cfg.Logs)
	}
	if cfg.CommandTimeout() != 10*time.Second || cfg.SSHTimeout() != 30*time.Second {
		t.Fatalf("unexpected timeouts: %s %s", cfg.CommandTimeout(), cfg.SSHTimeout())
	}
	if cfg.Agent.MaxSteps != 8 {
		t.Fatalf("default max steps lost: %d", cfg.Agent.MaxSteps)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvOllamaHost, "http://env-host:11434")
	t.Setenv(EnvOllamaModel, "mistral")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(writeConfig(t, "ollama:\n  host: http://file-host\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ollama.Host != "http://env-host:11434" || cfg.Ollama.Model != "mistral" || cfg.Agent.LogLevel != "debug" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Ollama, cfg.Agent)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("missing default config must not fail: %v", err)
	}
	if cfg.Ollama.Model != Default().Ollama.Model {
		t.Fatalf("expected defaults, got %+v", cfg.Ollama)
	}
}

func TestLoadEmptyAndInvalid(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Fatalf("expected error for empty config")
	}
	if _, err := Load(writeConfig(t, "ollama: [unclosed")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadWebTokensAndCORS(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
web:
  enabled: true
  cors_origins: ["https://ops.example"]
  cors_methods: [GET]
  cors_max_age_s: 600
  tokens:
    - subject: ops
      sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
      roles: [operator, auditor]
    - subject: bot
      sha256: 60303ae22b998861bce3b28f33eec1be758a213c86c93c076dbe9f558c11c752
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Web.Tokens) != 2 {
		t.Fatalf("tokens = %+v", cfg.Web.Tokens)
	}
	if ops := cfg.Web.Tokens[0]; ops.Subject != "ops" || len(ops.Roles) != 2 || ops.Roles[1] != "auditor" {
		t.Fatalf("ops token = %+v", ops)
	}
	if bot := cfg.Web.Tokens[1]; bot.Subject != "bot" || len(bot.Roles) != 0 {
		t.Fatalf("bot token = %+v", bot)
	}
	if len(cfg.Web.CORSMethods) != 1 || cfg.Web.CORSMaxAgeS != 600 || len(cfg.Web.CORSHeaders) != 0 {
		t.Fatalf("cors = %v %v %d", cfg.Web.CORSMethods, cfg.Web.CORSHeaders, cfg.Web.CORSMaxAgeS)
	}
	if cfg.Web.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("listen default lost: %q", cfg.Web.ListenAddr)
	}
}
