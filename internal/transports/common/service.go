package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/modules"
	"github.com/dvbondoy/aitomate/internal/storage"
)

var (
	errEmptyCommand = errors.New("empty command")
	errRateLimited  = errors.New("rate limit exceeded")
	errUnknownTool  = errors.New("unknown tool")
)

// IsRateLimited проверяет, отклонен ли вызов лимитером.
func IsRateLimited(err error) bool { return errors.Is(err, errRateLimited) }

type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", errRateLimited, e.retryAfter)
}

func (e *rateLimitError) Unwrap() error { return errRateLimited }

// RetryAfter возвращает время до освобождения лимита, если вызов отклонен лимитером.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *rateLimitError
	if errors.As(err, &rl) {
		return rl.retryAfter, true
	}
	return 0, false
}

// IsUnknownTool проверяет, что инструмент не найден в каталоге.
func IsUnknownTool(err error) bool { return errors.Is(err, errUnknownTool) }

// Service объединяет общий пайплайн tool->authz->ratelimit->core->audit.
type Service struct {
	Source      string
	Registry    *core.Registry
	Catalog     *modules.Catalog
	Authorizer  core.Authorizer
	RateLimiter *RateLimiter
	AuditSink   AuditSink
	Logger      *slog.Logger
}

// ExecuteTool находит инструмент в каталоге и выполняет его.
func (s *Service) ExecuteTool(ctx context.Context, subjectID, tool string, args core.Args) (core.Response, error) {
	t, ok := s.Catalog.Lookup(tool)
	if !ok {
		return core.Response{Status: core.StatusError, ErrorCode: "unknown_tool", Error: fmt.Sprintf("Unknown tool '%s'.", tool)},
			fmt.Errorf("%s: %w", tool, errUnknownTool)
	}
	return s.Execute(ctx, subjectID, t.Module, t.Command, args)
}

// Execute проверяет доступ и лимит, вызывает модуль и пишет аудит.
func (s *Service) Execute(ctx context.Context, subjectID, module, command string, args core.Args) (core.Response, error) {
	subject := core.Subject{Source: s.Source, ID: subjectID}
	action := core.Action{Module: module, Command: command}
	if err := s.Authorizer.Authorize(subject, action); err != nil {
		s.writeAudit(ctx, subject, action, storage.AuditDenied, args, "")
		return core.Response{Status: core.StatusError, ErrorCode: "access_denied", Error: err.Error()}, err
	}
	if s.RateLimiter != nil {
		if ok, wait := s.RateLimiter.Reserve(s.Source+":"+subjectID, time.Now()); !ok {
			s.writeAudit(ctx, subject, action, storage.AuditRateLimited, args, "")
			return core.Response{Status: core.StatusError, ErrorCode: "rate_limited", Error: errRateLimited.Error()},
				&rateLimitError{retryAfter: wait}
		}
	}
	resp, execErr := s.Registry.Execute(ctx, module, command, args)
	status := string(resp.Status)
	if status == "" || (execErr != nil && resp.OK()) {
		status = string(core.StatusError)
	}
	s.writeAudit(ctx, subject, action, status, args, resp.ErrorCode)
	s.logger().Debug("tool executed", "source", s.Source, "module", module, "command", command, "status", status)
	return resp, execErr
}

// Decline фиксирует отказ оператора от выполнения инструмента.
func (s *Service) Decline(ctx context.Context, subjectID, tool string, args core.Args) {
	t, ok := s.Catalog.Lookup(tool)
	if !ok {
		return
	}
	s.writeAudit(ctx, core.Subject{Source: s.Source, ID: subjectID}, core.Action{Module: t.Module, Command: t.Command}, storage.AuditDeclined, args, "")
}

func (s *Service) writeAudit(ctx context.Context, subject core.Subject, action core.Action, status string, args core.Args, errorCode string) {
	if s.AuditSink == nil {
		return
	}
	err := s.AuditSink.Write(ctx, storage.AuditEvent{
		Subject:   subject.ID,
		Action:    fmt.Sprintf("%s:%s", action.Module, action.Command),
		Source:    subject.Source,
		Status:    status,
		RequestID: RequestIDFromContext(ctx),
		Payload:   buildAuditPayload(action.Module, action.Command, args, errorCode),
	})
	if err != nil {
		s.logger().Warn("audit write failed", "action", action.Module+":"+action.Command, "err", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ParseTextCommand переводит текст в имя инструмента и аргументы.
// Формат: /tool arg1 key=value ...; позиционные аргументы раскладываются по Tool.Positional.
func ParseTextCommand(catalog *modules.Catalog, text string) (string, core.Args, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", nil, errEmptyCommand
	}
	t = strings.TrimPrefix(t, "/")
	parts := strings.Fields(t)
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("invalid command format: %w", errEmptyCommand)
	}
	tool, ok := catalog.Lookup(parts[0])
	if !ok {
		return "", nil, fmt.Errorf("%s: %w", parts[0], errUnknownTool)
	}
	var plain, kv []string
	for _, tok := range parts[1:] {
		if isKeyValue(tok) {
			kv = append(kv, tok)
		} else {
			plain = append(plain, tok)
		}
	}
	// Последний позиционный аргумент забирает остаток строки: /run_command ls -la /tmp
	if n := len(tool.Positional); n > 0 && len(plain) > n {
		plain = append(plain[:n-1:n-1], strings.Join(plain[n-1:], " "))
	}
	args, err := core.ParseArgs(append(plain, kv...), tool.Positional...)
	if err != nil {
		return "", nil, err
	}
	return tool.Name, args, nil
}

func isKeyValue(tok string) bool {
	k, _, ok := strings.Cut(tok, "=")
	if !ok || k == "" {
		return false
	}
	return strings.Trim(k, "abcdefghijklmnopqrstuvwxyz_") == ""
}
