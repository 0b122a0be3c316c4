package transports

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/modules"
	"github.com/dvbondoy/aitomate/internal/storage"
	"github.com/dvbondoy/aitomate/internal/transports/common"
)

type recordingSink struct {
	mu     sync.Mutex
	events []storage.AuditEvent
}

func (s *recordingSink) Write(_ context.Context, ev storage.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func TestTextCommandPipelineAcrossSources(t *testing.T) {
	ctx := context.Background()
	reg := core.NewRegistry()
	if err := modules.Register(ctx, reg, modules.Options{}); err != nil {
		t.Fatalf("register modules: %v", err)
	}
	catalog := modules.DefaultCatalog()
	authz := core.NewAllowlistAuthorizer(map[string][]string{"chat": {"*"}, "web": {"1001"}})
	sink := &recordingSink{}

	chat := &common.Service{Source: "chat", Registry: reg, Catalog: catalog, Authorizer: authz, AuditSink: sink}
	web := &common.Service{
		Source:      "web",
		Registry:    reg,
		Catalog:     catalog,
		Authorizer:  authz,
		RateLimiter: common.NewRateLimiter(1, time.Second),
		AuditSink:   sink,
	}

	path := filepath.Join(t.TempDir(), "threats.log")
	tool, args, err := common.ParseTextCommand(catalog, "/append_log "+path+" failed login for root")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	resp, err := chat.ExecuteTool(ctx, "alice", tool, args)
	if err != nil || resp.Status != core.StatusOK {
		t.Fatalf("chat append: resp=%+v err=%v", resp, err)
	}

	tool, args, err = common.ParseTextCommand(catalog, "/read_file "+path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	resp, err = web.ExecuteTool(ctx, "1001", tool, args)
	if err != nil || resp.Status != core.StatusOK {
		t.Fatalf("web read: resp=%+v err=%v", resp, err)
	}

	if _, err := web.ExecuteTool(ctx, "9999", tool, args); !core.IsAccessDenied(err) {
		t.Fatalf("non-allowlisted subject must be denied, got %v", err)
	}
	if _, err := web.ExecuteTool(ctx, "1001", tool, args); !common.IsRateLimited(err) {
		t.Fatalf("rate limit must block second immediate call, got %v", err)
	}

	want := []struct{ source, status string }{
		{"chat", "ok"},
		{"web", "ok"},
		{"web", storage.AuditDenied},
		{"web", storage.AuditRateLimited},
	}
	if len(sink.events) != len(want) {
		t.Fatalf("audit events = %d, want %d", len(sink.events), len(want))
	}
	for i, w := range want {
		if sink.events[i].Source != w.source || sink.events[i].Status != w.status {
			t.Fatalf("event %d = %s/%s, want %s/%s", i, sink.events[i].Source, sink.events[i].Status, w.source, w.status)
		}
	}
}
