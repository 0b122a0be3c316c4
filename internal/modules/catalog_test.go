package modules

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/modules/network"
)

func TestCatalogMapsEveryToolToRegisteredCommand(t *testing.T) {
	reg := core.NewRegistry()
	if err := Register(context.Background(), reg, Options{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	cat := DefaultCatalog()
	if got := len(cat.Tools()); got != 7 {
		t.Fatalf("expected 7 tools, got %d", got)
	}
	for _, tool := range cat.Tools() {
		cmds, err := reg.Commands(tool.Module)
		if err != nil {
			t.Fatalf("%s: %v", tool.Name, err)
		}
		found := false
		for _, c := range cmds {
			if c == tool.Command {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: module %s has no command %s", tool.Name, tool.Module, tool.Command)
		}
	}
}

func TestParamsCoverPositionalArguments(t *testing.T) {
	for _, tool := range DefaultCatalog().Tools() {
		params := make(map[string]Param, len(tool.Params))
		for _, p := range tool.Params {
			if _, dup := params[p.Name]; dup {
				t.Fatalf("%s: duplicate param %s", tool.Name, p.Name)
			}
			params[p.Name] = p
		}
		for _, name := range tool.Positional {
			p, ok := params[name]
			if !ok || !p.Required {
				t.Fatalf("%s: positional %s must be a required param", tool.Name, name)
			}
			if !strings.Contains(tool.Signature, name) {
				t.Fatalf("%s: signature %q does not mention %s", tool.Name, tool.Signature, name)
			}
		}
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := core.NewRegistry()
	if err := Register(context.Background(), reg, Options{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(context.Background(), reg, Options{}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestPreviewShowsRealCommand(t *testing.T) {
	cat := DefaultCatalog()

	run, _ := cat.Lookup("run_command")
	if got := run.Preview(core.Args{"command": "df -h"}); got != "df -h" {
		t.Fatalf("run preview = %q", got)
	}

	ssh, _ := cat.Lookup("ssh_command")
	got := ssh.Preview(core.Args{"host": "db1", "user": "ops", "command": "uptime"})
	want := "ssh -p 22 -o BatchMode=yes -o ConnectTimeout=30 ops@db1 uptime"
	if got != want {
		t.Fatalf("ssh preview = %q, want %q", got, want)
	}

	ping, _ := cat.Lookup("ping_host")
	if got := ping.Preview(core.Args{"host": "10.0.0.1", "count": 1.0}); !strings.HasPrefix(got, "ping ") || !strings.HasSuffix(got, "10.0.0.1") {
		t.Fatalf("ping preview = %q", got)
	}
}

func TestPingPreviewMatchesExecutedArgs(t *testing.T) {
	ping, _ := DefaultCatalog().Lookup("ping_host")
	args := core.Args{"host": "127.0.0.1", "count": 1.0, "timeout": 2.5}

	want := "ping " + strings.Join(network.BuildPingArgs(runtime.GOOS, "127.0.0.1", 1, 2500*time.Millisecond), " ")
	if got := ping.Preview(args); got != want {
		t.Fatalf("ping preview = %q, want %q", got, want)
	}
	if runtime.GOOS == "linux" && want != "ping -c 1 -W 3 127.0.0.1" {
		t.Fatalf("fractional timeout must round up, got %q", want)
	}
}

func TestRestrict(t *testing.T) {
	cat := DefaultCatalog().Restrict("read_file", "append_log", "nope")
	if len(cat.Tools()) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(cat.Tools()))
	}
	if _, ok := cat.Lookup("run_command"); ok {
		t.Fatalf("run_command must not be available")
	}
	for _, tool := range cat.Tools() {
		if tool.Executes {
			t.Fatalf("%s must not execute processes", tool.Name)
		}
	}
}
