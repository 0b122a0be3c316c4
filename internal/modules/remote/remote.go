// Package remote выполняет команды на удаленных узлах через системный клиент ssh.
//
// Клиент всегда запускается в пакетном режиме (BatchMode=yes): ошибки
// аутентификации превращаются в ненулевой код возврата вместо ожидания пароля.
package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/modules/shell"
)

const (
	DefaultPort    = 22
	DefaultTimeout = 30 * time.Second

	CodeSSHUnavailable = "ssh_unavailable"
)

// Request описывает удаленный вызов. Пустые User и KeyPath не передаются клиенту,
// Binary переопределяет поиск ssh в PATH. Timeout обязателен; значение по умолчанию
// подставляет только Module, когда аргумент не передан.
type Request struct {
	Host    string
	Command string
	User    string
	Port    int
	KeyPath string
	Timeout time.Duration
	Binary  string
}

// RemoteOutput описывает результат удаленной команды.
type RemoteOutput struct {
	Target string `json:"target"`
	Port   int    `json:"port"`
	shell.Output
}

// Target возвращает адрес в виде [user@]host.
func (r Request) Target() string {
	if r.User != "" {
		return r.User + "@" + r.Host
	}
	return r.Host
}

func (r Request) withDefaults() Request {
	r.Host = strings.TrimSpace(r.Host)
	r.User = strings.TrimSpace(r.User)
	if r.Port == 0 {
		r.Port = DefaultPort
	}
	if r.Binary == "" {
		r.Binary = "ssh"
	}
	return r
}

func (r Request) validate() error {
	switch {
	case r.Host == "":
		return errors.New("host is required")
	case strings.HasPrefix(r.Host, "-") || strings.ContainsAny(r.Host, " \t\r\n@"):
		return fmt.Errorf("invalid host %q", r.Host)
	case strings.HasPrefix(r.User, "-") || strings.ContainsAny(r.User, " \t\r\n@"):
		return fmt.Errorf("invalid user %q", r.User)
	case strings.TrimSpace(r.Command) == "":
		return errors.New("command is required")
	case r.Port < 1 || r.Port > 65535:
		return errors.New("port must be between 1 and 65535")
	case r.Timeout <= 0:
		return errors.New("timeout must be positive")
	}
	return nil
}

// BuildArgs собирает аргументы клиента без имени программы:
// -p <port> -o BatchMode=yes -o ConnectTimeout=<t> [-i <key>] [user@]host <command>.
func BuildArgs(r Request) []string {
	r = r.withDefaults()
	connect := int(math.Ceil(r.Timeout.Seconds()))
	if connect < 1 {
		connect = 1
	}
	args := []string{
		"-p", strconv.Itoa(r.Port),
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=" + strconv.Itoa(connect),
	}
	if r.KeyPath != "" {
		args = append(args, "-i", r.KeyPath)
	}
	return append(args, r.Target(), r.Command)
}

// Client запускает ssh через Runner.
type Client struct {
	Runner *shell.Runner
}

// Exec выполняет r пакетным клиентом по умолчанию.
func Exec(ctx context.Context, r Request) core.Result[RemoteOutput] {
	var c Client
	return c.Exec(ctx, r)
}

// Exec проверяет наличие клиента до любой сетевой активности и выполняет команду.
// Ненулевой код возврата (в том числе 255 при ошибке соединения) возвращается как данные.
func (c *Client) Exec(ctx context.Context, r Request) core.Result[RemoteOutput] {
	r = r.withDefaults()
	if err := r.validate(); err != nil {
		return core.Fail[RemoteOutput](core.CodeInvalidArgument, err.Error())
	}
	bin, err := exec.LookPath(r.Binary)
	if err != nil {
		return core.Unavailable[RemoteOutput](CodeSSHUnavailable, "ssh binary not available")
	}

	runner := c.Runner
	if runner == nil {
		runner = &shell.Runner{}
	}
	res := runner.Exec(ctx, append([]string{bin}, BuildArgs(r)...), r.Timeout)
	out := RemoteOutput{Target: r.Target(), Port: r.Port, Output: res.Data}

	switch res.Status {
	case core.StatusOK:
		return core.OK(out)
	case core.StatusTimeout:
		return core.TimedOut(out, fmt.Sprintf("ssh command timed out after %s", r.Timeout))
	default:
		fail := core.Fail[RemoteOutput](res.Failure.Code, res.Failure.Message)
		if res.Failure.Code == core.CodeCanceled {
			return fail.WithData(out)
		}
		return fail
	}
}

// Module публикует удаленное выполнение под именем "ssh".
type Module struct {
	Client         Client
	DefaultTimeout time.Duration
}

func (m *Module) Name() string { return "ssh" }

func (m *Module) Commands() []string { return []string{"exec"} }

func (m *Module) Init(context.Context) error {
	if m.DefaultTimeout <= 0 {
		m.DefaultTimeout = DefaultTimeout
	}
	return nil
}

func (m *Module) Execute(ctx context.Context, cmd string, args core.Args) (core.Response, error) {
	if cmd != "exec" {
		return core.UnknownCommand(m.Name(), cmd)
	}
	port, err := args.Int("port", DefaultPort)
	if err != nil {
		return core.BadArguments(err)
	}
	timeout, err := args.Seconds("timeout", m.DefaultTimeout)
	if err != nil {
		return core.BadArguments(err)
	}
	req := Request{
		Host:    args.String("host"),
		Command: args.String("command"),
		User:    args.String("user"),
		Port:    port,
		KeyPath: args.String("key_path"),
		Timeout: timeout,
	}
	return m.Client.Exec(ctx, req).Response(), nil
}
