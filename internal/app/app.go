// Package app собирает зависимости агента из конфигурации.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dvbondoy/aitomate/internal/config"
	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/llm/ollama"
	"github.com/dvbondoy/aitomate/internal/modules"
	"github.com/dvbondoy/aitomate/internal/storage"
	"github.com/dvbondoy/aitomate/internal/storage/sqlite"
	"github.com/dvbondoy/aitomate/internal/transports/common"
	"github.com/dvbondoy/aitomate/internal/transports/mcpstdio"
	"github.com/dvbondoy/aitomate/internal/transports/web"
)

// Источники вызовов, под которыми пишется аудит и проверяется allowlist.
const (
	SourceCLI     = "cli"
	SourceChat    = "chat"
	SourceMonitor = "monitor"
	SourceWeb     = "web"
	SourceMCP     = "mcp"
)

// MonitorTools перечисляет инструменты автономного режима.
var MonitorTools = []string{"read_file", "append_log"}

var errWebDisabled = errors.New("web transport is disabled (set web.enabled: true)")

// App агрегирует зависимости ядра.
type App struct {
	Config     config.Config
	Registry   *core.Registry
	Catalog    *modules.Catalog
	Authorizer core.Authorizer
	Store      storage.Store
	Audit      storage.AuditWriter
	Transports *core.TransportManager
	Logger     *slog.Logger

	limiter *common.RateLimiter
}

// New строит приложение: реестр модулей, каталог инструментов, хранилище аудита
// и web-транспорт, если он включен.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := core.NewRegistry()
	err := modules.Register(ctx, reg, modules.Options{
		Logger:         logger,
		Shell:          cfg.Tools.Shell,
		CommandTimeout: cfg.CommandTimeout(),
		SSHTimeout:     cfg.SSHTimeout(),
		MaxOutputBytes: cfg.Tools.MaxOutputBytes,
		ReadLimit:      cfg.Tools.ReadLimitBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("register modules: %w", err)
	}

	a := &App{
		Config:     cfg,
		Registry:   reg,
		Catalog:    modules.DefaultCatalog(),
		Authorizer: core.NewAllowlistAuthorizer(cfg.Security.AuthAllowlist),
		Transports: core.NewTransportManager(),
		Logger:     logger,
		limiter:    common.NewRateLimiter(cfg.Security.RateLimit.Requests, time.Duration(cfg.Security.RateLimit.WindowS)*time.Second),
	}

	st, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		logger.Warn("audit storage unavailable, writing audit to log", "path", cfg.SQLite.Path, "err", err)
		a.Audit = storage.LogWriter{Logger: logger}
	} else {
		a.Store = st
		a.Audit = st
		a.pruneAudit(ctx)
	}

	if cfg.Web.Enabled {
		if err := a.Transports.Register(a.newWebAdapter()); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("register web transport: %w", err)
		}
	}
	return a, nil
}

func (a *App) pruneAudit(ctx context.Context) {
	days := a.Config.SQLite.RetentionDays
	if days <= 0 || a.Store == nil {
		return
	}
	before := time.Now().AddDate(0, 0, -days)
	n, err := a.Store.PruneAudit(ctx, before)
	if err != nil {
		a.Logger.Warn("prune audit", "err", err)
		return
	}
	if n > 0 {
		a.Logger.Info("audit pruned", "removed", n, "before", before.Format(time.RFC3339))
	}
}

func (a *App) newWebAdapter() *web.Adapter {
	cfg := a.Config.Web
	tokens := make([]web.Token, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens = append(tokens, web.Token{Subject: t.Subject, SHA256: t.SHA256, Roles: t.Roles})
	}
	return web.NewAdapter(a.Service(SourceWeb), a.Store, web.Config{
		ListenAddr:         cfg.ListenAddr,
		ReadTimeout:        time.Duration(cfg.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:       time.Duration(cfg.WriteTimeoutMS) * time.Millisecond,
		RequestTimeout:     time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		ShutdownTimeout:    time.Duration(cfg.ShutdownTimeoutS) * time.Second,
		MaxRequestBody:     cfg.MaxBodyBytes,
		AllowSubjectHeader: cfg.AllowSubjectHeader,
		Tokens:             tokens,
		CORS: web.CORSConfig{
			Origins: cfg.CORSOrigins,
			Methods: cfg.CORSMethods,
			Headers: cfg.CORSHeaders,
			MaxAgeS: cfg.CORSMaxAgeS,
		},
	}, a.Logger.With("transport", SourceWeb))
}

// Service возвращает пайплайн исполнения для источника. Лимит запросов действует только для web.
func (a *App) Service(source string) *common.Service {
	svc := &common.Service{
		Source:     source,
		Registry:   a.Registry,
		Catalog:    a.Catalog,
		Authorizer: a.Authorizer,
		AuditSink:  a.Audit,
		Logger:     a.Logger,
	}
	switch source {
	case SourceWeb:
		svc.RateLimiter = a.limiter
	case SourceMonitor:
		svc.Catalog = a.Catalog.Restrict(MonitorTools...)
	}
	return svc
}

// MCPServer публикует каталог по MCP от имени subject с источником mcp.
func (a *App) MCPServer(subject, version string) *mcpstdio.Server {
	return mcpstdio.New(a.Service(SourceMCP), a.Catalog, subject, version, a.Logger.With("transport", SourceMCP))
}

// LLM создает клиента модели по секции ollama.
func (a *App) LLM() *ollama.Client {
	return ollama.New(a.Config.Ollama.Host, a.Config.Ollama.Model, time.Duration(a.Config.Ollama.TimeoutS)*time.Second)
}

// Serve запускает транспорты и блокируется до отмены контекста.
func (a *App) Serve(ctx context.Context) error {
	if len(a.Transports.Names()) == 0 {
		return errWebDisabled
	}
	if err := a.Transports.StartAll(ctx); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Transports.StopAll(stopCtx); err != nil {
		return fmt.Errorf("stop transports: %w", err)
	}
	return nil
}

// Close высвобождает ресурсы приложения.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
