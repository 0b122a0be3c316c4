package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/storage"
	"github.com/dvbondoy/aitomate/internal/transports/common"
)

// route описывает требования защищенного маршрута. Если module задан,
// субъект дополнительно проверяется по allowlist источника web;
// доступ к инструментам проверяет сам Service.
type route struct {
	name    string
	role    string
	module  string
	command string
	body    bool
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, p principal)

// protect ограничивает время запроса, аутентифицирует субъекта и проверяет роль.
func (a *Adapter) protect(rt route, h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), a.cfg.RequestTimeout)
		defer cancel()
		r = r.WithContext(ctx)

		p, code := a.authenticate(r)
		if code != "" {
			writeError(w, r, http.StatusUnauthorized, code)
			return
		}
		if !p.has(rt.role) {
			a.audit(ctx, p, "web:"+rt.name, storage.AuditDenied, map[string]string{"missing_role": rt.role})
			writeError(w, r, http.StatusForbidden, "role_required")
			return
		}
		if rt.module != "" {
			action := core.Action{Module: rt.module, Command: rt.command}
			if err := a.svc.Authorizer.Authorize(core.Subject{Source: a.svc.Source, ID: p.Subject}, action); err != nil {
				a.audit(ctx, p, "web:"+rt.name, storage.AuditDenied, nil)
				writeError(w, r, http.StatusForbidden, "access_denied")
				return
			}
		}
		if rt.body {
			r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxRequestBody)
		}
		h(w, r, p)
	})
}

// withRequestID принимает X-Request-ID клиента, если он безопасен для журналов,
// иначе выдает новый.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !validRequestID(id) {
			id = common.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}

// CORSConfig задает политику для браузерных клиентов. Пустой Origins
// отклоняет любой запрос с заголовком Origin.
type CORSConfig struct {
	Origins []string
	Methods []string
	Headers []string
	MaxAgeS int
}

func (c CORSConfig) withDefaults() CORSConfig {
	if len(c.Methods) == 0 {
		c.Methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(c.Headers) == 0 {
		c.Headers = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	return c
}

type corsPolicy struct {
	origins      map[string]bool
	methods      map[string]bool
	headers      map[string]bool
	allowMethods string
	allowHeaders string
	maxAge       string
}

func newCORSPolicy(c CORSConfig) corsPolicy {
	p := corsPolicy{
		origins: make(map[string]bool, len(c.Origins)),
		methods: make(map[string]bool, len(c.Methods)),
		headers: make(map[string]bool, len(c.Headers)),
	}
	for _, o := range c.Origins {
		if o = strings.TrimSpace(o); o != "" {
			p.origins[o] = true
		}
	}
	var methods, headers []string
	for _, m := range c.Methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != "" && !p.methods[m] {
			p.methods[m] = true
			methods = append(methods, m)
		}
	}
	for _, h := range c.Headers {
		h = http.CanonicalHeaderKey(strings.TrimSpace(h))
		if h != "" && !p.headers[h] {
			p.headers[h] = true
			headers = append(headers, h)
		}
	}
	p.allowMethods = strings.Join(methods, ", ")
	p.allowHeaders = strings.Join(headers, ", ")
	if c.MaxAgeS > 0 {
		p.maxAge = strconv.Itoa(c.MaxAgeS)
	}
	return p
}

// wrap пропускает запросы без Origin как есть; запросы из браузера
// проверяются по origin, а preflight еще и по методу и заголовкам.
func (p corsPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Origin")
		if !p.origins[origin] {
			writeError(w, r, http.StatusForbidden, "cors_denied")
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")

		if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
			if !p.methods[r.Method] {
				writeError(w, r, http.StatusForbidden, "cors_method_denied")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !p.methods[strings.ToUpper(r.Header.Get("Access-Control-Request-Method"))] {
			writeError(w, r, http.StatusForbidden, "cors_method_denied")
			return
		}
		for _, h := range strings.Split(r.Header.Get("Access-Control-Request-Headers"), ",") {
			if h = strings.TrimSpace(h); h != "" && !p.headers[http.CanonicalHeaderKey(h)] {
				writeError(w, r, http.StatusForbidden, "cors_header_denied")
				return
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", p.allowMethods)
		w.Header().Set("Access-Control-Allow-Headers", p.allowHeaders)
		if p.maxAge != "" {
			w.Header().Set("Access-Control-Max-Age", p.maxAge)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
