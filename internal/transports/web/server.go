// Package web публикует каталог инструментов по HTTP.
//
// Маршруты:
//
//	GET  /v1/health         без аутентификации
//	GET  /v1/me             субъект, роли и способ входа
//	GET  /v1/tools          каталог с аргументами
//	POST /v1/tools/execute  {"tool": "...", "args": {...}}, роль operator
//	GET  /v1/audit          журнал аудита, роль auditor
//
// Вызовы инструментов идут через общий пайплайн Service с источником "web".
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dvbondoy/aitomate/internal/storage"
	"github.com/dvbondoy/aitomate/internal/transports/common"
)

// Значения по умолчанию для незаданных полей Config.
const (
	DefaultListenAddr     = "127.0.0.1:8080"
	DefaultMaxRequestBody = 1 << 20
)

// Config определяет параметры HTTP-транспорта.
type Config struct {
	ListenAddr         string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	RequestTimeout     time.Duration
	MaxRequestBody     int64
	AllowSubjectHeader bool
	Tokens             []Token
	CORS               CORSConfig
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 65 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MaxRequestBody <= 0 {
		c.MaxRequestBody = DefaultMaxRequestBody
	}
	c.CORS = c.CORS.withDefaults()
	return c
}

// Adapter реализует core.Transport поверх net/http.
type Adapter struct {
	svc    *common.Service
	store  storage.Store
	cfg    Config
	tokens tokenTable
	cors   corsPolicy
	logger *slog.Logger

	mu   sync.Mutex
	srv  *http.Server
	addr net.Addr
}

// NewAdapter создает web transport. store может быть nil: тогда /v1/audit отвечает 503.
func NewAdapter(svc *common.Service, store storage.Store, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Adapter{
		svc:    svc,
		store:  store,
		cfg:    cfg,
		tokens: newTokenTable(cfg.Tokens, logger),
		cors:   newCORSPolicy(cfg.CORS),
		logger: logger,
	}
}

func (a *Adapter) Name() string { return "web" }

// Start занимает адрес синхронно, чтобы ошибка bind вернулась вызывающему,
// и обслуживает запросы до отмены ctx.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.srv != nil {
		return errors.New("web transport already started")
	}
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:      a.routes(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}
	a.srv = srv
	a.addr = ln.Addr()

	go func() {
		a.logger.Info("web transport listening", "addr", ln.Addr().String(), "tokens", len(a.tokens))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("web transport failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()
	return nil
}

// Addr возвращает фактический адрес после Start (полезно при порте 0).
func (a *Adapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Stop завершает HTTP server. Повторный вызов ничего не делает.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.srv
	a.srv = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (a *Adapter) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", a.handleHealth)
	mux.Handle("GET /v1/me", a.protect(route{name: "me"}, a.handleMe))
	mux.Handle("GET /v1/tools", a.protect(route{name: "tools"}, a.handleTools))
	mux.Handle("POST /v1/tools/execute", a.protect(route{name: "execute", role: RoleOperator, body: true}, a.handleExecute))
	mux.Handle("GET /v1/audit", a.protect(route{name: "audit", role: RoleAuditor, module: "audit", command: "read"}, a.handleAudit))
	mux.Handle("/v1/", a.protect(route{name: "not_found"}, func(w http.ResponseWriter, r *http.Request, _ principal) {
		writeError(w, r, http.StatusNotFound, "not_found")
	}))
	return withRequestID(a.cors.wrap(mux))
}
