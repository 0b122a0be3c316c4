// Package modules собирает модули-помощники и публикует их как инструменты
// с именами, которые видит модель и оператор.
package modules

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/modules/files"
	"github.com/dvbondoy/aitomate/internal/modules/host"
	"github.com/dvbondoy/aitomate/internal/modules/network"
	"github.com/dvbondoy/aitomate/internal/modules/remote"
	"github.com/dvbondoy/aitomate/internal/modules/shell"
)

// ParamKind задает JSON-тип аргумента инструмента.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindNumber  ParamKind = "number"
	KindInteger ParamKind = "integer"
)

// Param описывает аргумент инструмента для внешних клиентов со схемой.
type Param struct {
	Name     string
	Kind     ParamKind
	Required bool
}

func required(name string) Param { return Param{Name: name, Kind: KindString, Required: true} }

// Tool связывает публичное имя инструмента с командой модуля.
// Positional задает порядок позиционных аргументов для текстового ввода,
// Executes отмечает инструменты, которые запускают процессы или ходят в сеть.
type Tool struct {
	Name        string
	Module      string
	Command     string
	Signature   string
	Description string
	Positional  []string
	Params      []Param
	Executes    bool

	preview func(core.Args) string
}

// Preview возвращает команду в том виде, в котором она будет выполнена.
func (t Tool) Preview(args core.Args) string {
	if t.preview == nil {
		return t.Name
	}
	return t.preview(args)
}

// Catalog хранит неизменяемый набор инструментов.
type Catalog struct {
	tools map[string]Tool
}

// DefaultCatalog возвращает все инструменты агента.
func DefaultCatalog() *Catalog {
	c := &Catalog{tools: make(map[string]Tool)}
	for _, t := range []Tool{
		{
			Name: "read_file", Module: "files", Command: "read",
			Signature:   "read_file(path)",
			Description: "Return the contents of a text file.",
			Positional:  []string{"path"},
			Params:      []Param{required("path")},
			preview:     func(a core.Args) string { return "read " + shellescape.Quote(a.String("path")) },
		},
		{
			Name: "append_log", Module: "files", Command: "append",
			Signature:   "append_log(path, text)",
			Description: "Append one line of text to a log file.",
			Positional:  []string{"path", "text"},
			Params:      []Param{required("path"), required("text")},
			preview: func(a core.Args) string {
				return fmt.Sprintf("append %s to %s", shellescape.Quote(a.String("text")), shellescape.Quote(a.String("path")))
			},
		},
		{
			Name: "run_command", Module: "shell", Command: "run",
			Signature:   "run_command(command, timeout=30)",
			Description: "Execute a shell command and return stdout, stderr and returncode.",
			Positional:  []string{"command"},
			Params:      []Param{required("command"), {Name: "timeout", Kind: KindNumber}},
			Executes:    true,
			preview:     func(a core.Args) string { return a.String("command") },
		},
		{
			Name: "system_info", Module: "host", Command: "info",
			Signature:   "system_info()",
			Description: "Return platform, CPU, load average, memory and uptime.",
			preview:     func(core.Args) string { return "system info" },
		},
		{
			Name: "ping_host", Module: "net", Command: "ping",
			Signature:   "ping_host(host, count=4, timeout=2)",
			Description: "Ping a host and return packet statistics.",
			Positional:  []string{"host"},
			Params:      []Param{required("host"), {Name: "count", Kind: KindInteger}, {Name: "timeout", Kind: KindNumber}},
			Executes:    true,
			preview:     previewPing,
		},
		{
			Name: "scan_port", Module: "net", Command: "scan",
			Signature:   "scan_port(host, port, timeout=2.0)",
			Description: "Attempt a TCP connection to determine whether a port is open.",
			Positional:  []string{"host", "port"},
			Params: []Param{
				required("host"),
				{Name: "port", Kind: KindInteger, Required: true},
				{Name: "timeout", Kind: KindNumber},
			},
			Executes: true,
			preview: func(a core.Args) string {
				return "tcp connect " + a.String("host") + ":" + a.String("port")
			},
		},
		{
			Name: "ssh_command", Module: "ssh", Command: "exec",
			Signature:   "ssh_command(host, command, user=None, port=22, key_path=None, timeout=30)",
			Description: "Run a command on a remote host with the local ssh client in batch mode.",
			Positional:  []string{"host", "command"},
			Params: []Param{
				required("host"),
				required("command"),
				{Name: "user", Kind: KindString},
				{Name: "port", Kind: KindInteger},
				{Name: "key_path", Kind: KindString},
				{Name: "timeout", Kind: KindNumber},
			},
			Executes: true,
			preview:  previewSSH,
		},
	} {
		c.tools[t.Name] = t
	}
	return c
}

// Lookup ищет инструмент по имени.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Tools возвращает инструменты в алфавитном порядке.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Restrict возвращает каталог только с перечисленными инструментами.
func (c *Catalog) Restrict(names ...string) *Catalog {
	r := &Catalog{tools: make(map[string]Tool, len(names))}
	for _, n := range names {
		if t, ok := c.tools[n]; ok {
			r.tools[n] = t
		}
	}
	return r
}

func previewPing(a core.Args) string {
	count, _ := a.Int("count", network.DefaultPingCount)
	timeout, _ := a.Seconds("timeout", network.DefaultPingTimeout)
	argv := append([]string{"ping"}, network.BuildPingArgs(runtime.GOOS, a.String("host"), count, timeout)...)
	return shellescape.QuoteCommand(argv)
}

func previewSSH(a core.Args) string {
	port, _ := a.Int("port", remote.DefaultPort)
	timeout, _ := a.Seconds("timeout", remote.DefaultTimeout)
	req := remote.Request{
		Host:    a.String("host"),
		Command: a.String("command"),
		User:    a.String("user"),
		Port:    port,
		KeyPath: a.String("key_path"),
		Timeout: timeout,
	}
	return shellescape.QuoteCommand(append([]string{"ssh"}, remote.BuildArgs(req)...))
}

// Options настраивает модули при регистрации.
type Options struct {
	Logger         *slog.Logger
	Shell          []string
	CommandTimeout time.Duration
	SSHTimeout     time.Duration
	MaxOutputBytes int
	ReadLimit      int64
}

// Register создает модули-помощники и добавляет их в реестр.
func Register(ctx context.Context, reg *core.Registry, opts Options) error {
	runner := &shell.Runner{Shell: opts.Shell, MaxOutputBytes: opts.MaxOutputBytes, Logger: opts.Logger}
	providers := []core.CommandProvider{
		&files.Module{ReadLimit: opts.ReadLimit},
		&shell.Module{Runner: runner, DefaultTimeout: opts.CommandTimeout},
		&host.Module{},
		&network.Module{Pinger: network.Pinger{Runner: runner}},
		&remote.Module{Client: remote.Client{Runner: runner}, DefaultTimeout: opts.SSHTimeout},
	}
	for _, p := range providers {
		if err := reg.Register(ctx, p); err != nil {
			return fmt.Errorf("register %s: %w", p.Name(), err)
		}
	}
	return nil
}
