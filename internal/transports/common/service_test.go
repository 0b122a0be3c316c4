package common

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/modules"
	"github.com/dvbondoy/aitomate/internal/storage"
)

type memorySink struct {
	mu     sync.Mutex
	events []storage.AuditEvent
}

func (m *memorySink) Write(_ context.Context, ev storage.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

type stubProvider struct {
	name  string
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Commands() []string { return []string{"read", "append"} }

func (p *stubProvider) Init(ctx context.Context) error { return nil }

func (p *stubProvider) Execute(ctx context.Context, cmd string, args core.Args) (core.Response, error) {
	p.calls++
	if args.String("path") == "" {
		return core.Response{Status: core.StatusError, ErrorCode: "invalid_argument", Error: "path is required"}, nil
	}
	return core.Response{Status: core.StatusOK, Data: args.String("path")}, nil
}

func newTestService(t *testing.T, allow map[string][]string) (*Service, *stubProvider, *memorySink) {
	t.Helper()
	reg := core.NewRegistry()
	prov := &stubProvider{name: "files"}
	if err := reg.Register(context.Background(), prov); err != nil {
		t.Fatalf("register: %v", err)
	}
	sink := &memorySink{}
	return &Service{
		Source:     "chat",
		Registry:   reg,
		Catalog:    modules.DefaultCatalog(),
		Authorizer: core.NewAllowlistAuthorizer(allow),
		AuditSink:  sink,
	}, prov, sink
}

func TestExecuteToolAuditsResult(t *testing.T) {
	svc, prov, sink := newTestService(t, map[string][]string{"chat": {"*"}})
	ctx := WithRequestID(context.Background(), "session-1")

	resp, err := svc.ExecuteTool(ctx, "local", "read_file", core.Args{"path": "/etc/hostname"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !resp.OK() || resp.Data != "/etc/hostname" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if prov.calls != 1 {
		t.Fatalf("expected one call, got %d", prov.calls)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Action != "files:read" || ev.Status != "ok" || ev.Source != "chat" || ev.RequestID != "session-1" {
		t.Fatalf("unexpected audit event: %+v", ev)
	}
}

func TestExecuteToolEnvelopeErrorAudited(t *testing.T) {
	svc, _, sink := newTestService(t, map[string][]string{"chat": {"*"}})

	resp, err := svc.ExecuteTool(context.Background(), "local", "read_file", core.Args{})
	if err != nil {
		t.Fatalf("envelope errors are not Go errors: %v", err)
	}
	if resp.Status != core.StatusError {
		t.Fatalf("unexpected status %s", resp.Status)
	}
	if sink.events[0].Status != "error" {
		t.Fatalf("unexpected audit status %s", sink.events[0].Status)
	}
}

func TestExecuteToolDenied(t *testing.T) {
	svc, prov, sink := newTestService(t, map[string][]string{"chat": {"alice"}})

	resp, err := svc.ExecuteTool(context.Background(), "mallory", "read_file", core.Args{"path": "/etc/shadow"})
	if !core.IsAccessDenied(err) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if resp.ErrorCode != "access_denied" || prov.calls != 0 {
		t.Fatalf("provider must not be called: %+v calls=%d", resp, prov.calls)
	}
	if sink.events[0].Status != storage.AuditDenied {
		t.Fatalf("unexpected audit status %s", sink.events[0].Status)
	}
}

func TestExecuteToolRateLimited(t *testing.T) {
	svc, _, sink := newTestService(t, map[string][]string{"chat": {"*"}})
	svc.RateLimiter = NewRateLimiter(1, time.Minute)

	if _, err := svc.ExecuteTool(context.Background(), "local", "read_file", core.Args{"path": "a"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := svc.ExecuteTool(context.Background(), "local", "read_file", core.Args{"path": "b"})
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if wait, ok := RetryAfter(err); !ok || wait <= 0 || wait > 2*time.Minute {
		t.Fatalf("retry after = %s, %v", wait, ok)
	}
	if _, ok := RetryAfter(errors.New("other")); ok {
		t.Fatalf("plain errors carry no retry-after")
	}
	if sink.events[1].Status != storage.AuditRateLimited {
		t.Fatalf("unexpected audit status %s", sink.events[1].Status)
	}
}

func TestExecuteToolUnknown(t *testing.T) {
	svc, _, sink := newTestService(t, map[string][]string{"chat": {"*"}})

	resp, err := svc.ExecuteTool(context.Background(), "local", "format_disk", nil)
	if !IsUnknownTool(err) {
		t.Fatalf("expected unknown tool, got %v", err)
	}
	if resp.Error != "Unknown tool 'format_disk'." {
		t.Fatalf("unexpected message %q", resp.Error)
	}
	if len(sink.events) != 0 {
		t.Fatalf("unknown tools are not audited")
	}
}

func TestDecline(t *testing.T) {
	svc, prov, sink := newTestService(t, map[string][]string{"chat": {"*"}})

	svc.Decline(context.Background(), "local", "append_log", core.Args{"path": "x", "text": "y"})

	if prov.calls != 0 {
		t.Fatalf("declined tool must not run")
	}
	if len(sink.events) != 1 || sink.events[0].Status != storage.AuditDeclined || sink.events[0].Action != "files:append" {
		t.Fatalf("unexpected audit: %+v", sink.events)
	}
}

func TestParseTextCommand(t *testing.T) {
	cat := modules.DefaultCatalog()

	tool, args, err := ParseTextCommand(cat, "/run_command ls -la /tmp timeout=5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tool != "run_command" || args.String("command") != "ls -la /tmp" || args.String("timeout") != "5" {
		t.Fatalf("unexpected parse: %s %#v", tool, args)
	}

	tool, args, err = ParseTextCommand(cat, "/scan_port 10.0.0.5 443")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tool != "scan_port" || args.String("host") != "10.0.0.5" || args.String("port") != "443" {
		t.Fatalf("unexpected parse: %s %#v", tool, args)
	}

	tool, args, err = ParseTextCommand(cat, "/system_info")
	if err != nil || tool != "system_info" || len(args) != 0 {
		t.Fatalf("unexpected parse: %s %#v %v", tool, args, err)
	}
}

func TestParseTextCommandInvalid(t *testing.T) {
	cat := modules.DefaultCatalog()
	if _, _, err := ParseTextCommand(cat, "   "); !errors.Is(err, errEmptyCommand) {
		t.Fatalf("expected empty command error, got %v", err)
	}
	if _, _, err := ParseTextCommand(cat, "/reboot now"); !IsUnknownTool(err) {
		t.Fatalf("expected unknown tool, got %v", err)
	}
	if _, _, err := ParseTextCommand(cat, "/system_info extra"); !core.IsInvalidArguments(err) {
		t.Fatalf("expected invalid arguments, got %v", err)
	}
}
