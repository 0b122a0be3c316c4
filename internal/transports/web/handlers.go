package web

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/storage"
	"github.com/dvbondoy/aitomate/internal/transports/common"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"tools":  len(a.svc.Catalog.Tools()),
		"audit":  a.store != nil,
	})
}

func (a *Adapter) handleMe(w http.ResponseWriter, r *http.Request, p principal) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id":  common.RequestIDFromContext(r.Context()),
		"subject":     p.Subject,
		"roles":       p.Roles,
		"auth_method": p.Method,
		"can_execute": p.has(RoleOperator),
		"can_audit":   p.has(RoleAuditor),
	})
}

type paramDTO struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type toolDTO struct {
	Name        string     `json:"name"`
	Signature   string     `json:"signature"`
	Description string     `json:"description"`
	Params      []paramDTO `json:"params"`
	Executes    bool       `json:"executes"`
}

func (a *Adapter) handleTools(w http.ResponseWriter, r *http.Request, _ principal) {
	tools := a.svc.Catalog.Tools()
	items := make([]toolDTO, 0, len(tools))
	for _, t := range tools {
		params := make([]paramDTO, 0, len(t.Params))
		for _, p := range t.Params {
			params = append(params, paramDTO{Name: p.Name, Type: string(p.Kind), Required: p.Required})
		}
		items = append(items, toolDTO{
			Name:        t.Name,
			Signature:   t.Signature,
			Description: t.Description,
			Params:      params,
			Executes:    t.Executes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": common.RequestIDFromContext(r.Context()),
		"items":      items,
	})
}

type executeRequest struct {
	Tool string    `json:"tool"`
	Args core.Args `json:"args"`
}

func decodeExecute(r *http.Request) (executeRequest, int, string) {
	var req executeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, http.StatusRequestEntityTooLarge, "payload_too_large"
		}
		return req, http.StatusBadRequest, "invalid_json"
	}
	if dec.More() {
		return req, http.StatusBadRequest, "invalid_json"
	}
	req.Tool = strings.TrimSpace(req.Tool)
	if req.Tool == "" {
		return req, http.StatusBadRequest, "tool_required"
	}
	if req.Args == nil {
		req.Args = core.Args{}
	}
	return req, 0, ""
}

func (a *Adapter) handleExecute(w http.ResponseWriter, r *http.Request, p principal) {
	ctx := r.Context()
	req, status, code := decodeExecute(r)
	if code != "" {
		a.audit(ctx, p, "web:execute", string(core.StatusError), map[string]string{"error_code": code})
		writeError(w, r, status, code)
		return
	}

	resp, err := a.svc.ExecuteTool(ctx, p.Subject, req.Tool, req.Args)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
		return
	case common.IsUnknownTool(err):
		writeError(w, r, http.StatusNotFound, "unknown_tool")
		return
	case core.IsAccessDenied(err):
		writeError(w, r, http.StatusForbidden, "access_denied")
		return
	case common.IsRateLimited(err):
		if wait, ok := common.RetryAfter(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		writeError(w, r, http.StatusTooManyRequests, "rate_limited")
		return
	}

	body := map[string]interface{}{
		"request_id": common.RequestIDFromContext(ctx),
		"tool":       req.Tool,
		"status":     resp.Status,
	}
	if resp.Data != nil {
		body["data"] = resp.Data
	}
	if resp.ErrorCode != "" {
		body["error_code"] = resp.ErrorCode
		body["error"] = resp.Error
	}
	// ошибка аргументов до запуска инструмента; результат инструмента (в том числе error) это 200
	if err != nil {
		writeJSON(w, http.StatusBadRequest, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func parseAuditQuery(r *http.Request) (storage.AuditQuery, string) {
	v := r.URL.Query()
	q := storage.AuditQuery{Subject: v.Get("subject"), Source: v.Get("source"), Limit: defaultAuditLimit}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return q, "bad_limit"
		}
		q.Limit = min(n, maxAuditLimit)
	}
	for _, f := range []struct {
		key  string
		dst  *time.Time
		code string
	}{{"from", &q.From, "bad_from"}, {"to", &q.To, "bad_to"}} {
		s := v.Get(f.key)
		if s == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, f.code
		}
		*f.dst = ts
	}
	return q, ""
}

type auditEventDTO struct {
	TS        string          `json:"ts"`
	Subject   string          `json:"subject"`
	Source    string          `json:"source"`
	Action    string          `json:"action"`
	Status    string          `json:"status"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (a *Adapter) handleAudit(w http.ResponseWriter, r *http.Request, p principal) {
	ctx := r.Context()
	q, code := parseAuditQuery(r)
	if code != "" {
		writeError(w, r, http.StatusBadRequest, code)
		return
	}
	if a.store == nil {
		writeError(w, r, http.StatusServiceUnavailable, "audit_unavailable")
		return
	}
	events, err := a.store.QueryAudit(ctx, q)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
			return
		}
		a.logger.Warn("audit query failed", "subject", p.Subject, "err", err)
		writeError(w, r, http.StatusInternalServerError, "query_failed")
		return
	}

	items := make([]auditEventDTO, 0, len(events))
	for _, ev := range events {
		item := auditEventDTO{
			TS:        ev.TS.UTC().Format(time.RFC3339),
			Subject:   ev.Subject,
			Source:    ev.Source,
			Action:    ev.Action,
			Status:    ev.Status,
			RequestID: ev.RequestID,
		}
		if json.Valid(ev.Payload) {
			item.Payload = ev.Payload
		}
		items = append(items, item)
	}
	a.audit(ctx, p, "web:audit", "ok", map[string]int{"items": len(items)})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": common.RequestIDFromContext(ctx),
		"items":      items,
	})
}

// audit пишет событие уровня HTTP: отказ по роли, разбор тела, чтение журнала.
func (a *Adapter) audit(ctx context.Context, p principal, action, status string, payload interface{}) {
	if a.svc.AuditSink == nil {
		return
	}
	var raw []byte
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	err := a.svc.AuditSink.Write(ctx, storage.AuditEvent{
		Subject:   p.Subject,
		Action:    action,
		Source:    a.svc.Source,
		Status:    status,
		RequestID: common.RequestIDFromContext(ctx),
		Payload:   raw,
	})
	if err != nil {
		a.logger.Warn("web audit write failed", "action", action, "err", err)
	}
}
