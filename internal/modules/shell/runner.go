// Package shell запускает команды локальной оболочки с ограничением по времени.
package shell

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/go-cmd/cmd"

	"github.com/dvbondoy/aitomate/internal/core"
)

const (
	// DefaultTimeout применяется, если вызывающий не передал timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputBytes ограничивает каждый поток вывода. Байты сверх лимита читаются и отбрасываются.
	DefaultMaxOutputBytes = 1 << 20

	killGrace   = 2 * time.Second
	truncMarker = "\n[output truncated]"
)

// Output описывает результат запуска процесса.
type Output struct {
	Command    string `json:"command"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
	DurationMS int64  `json:"duration_ms"`
}

// DefaultShell возвращает оболочку хоста вместе с флагом передачи команды.
func DefaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"/bin/sh", "-c"}
}

// Runner исполняет команды. Нулевое значение готово к использованию.
type Runner struct {
	Shell          []string
	MaxOutputBytes int
	Logger         *slog.Logger
}

// Run выполняет команду через оболочку по умолчанию.
func Run(ctx context.Context, command string, timeout time.Duration) core.Result[Output] {
	var r Runner
	return r.Run(ctx, command, timeout)
}

// Run выполняет command через оболочку. Ненулевой код возврата считается данными, а не ошибкой.
func (r *Runner) Run(ctx context.Context, command string, timeout time.Duration) core.Result[Output] {
	if strings.TrimSpace(command) == "" {
		return core.Fail[Output](core.CodeInvalidArgument, "command cannot be empty")
	}
	sh := r.Shell
	if len(sh) == 0 {
		sh = DefaultShell()
	}
	argv := make([]string, 0, len(sh)+1)
	argv = append(argv, sh...)
	argv = append(argv, command)

	res := r.Exec(ctx, argv, timeout)
	res.Data.Command = command
	return res
}

// Exec запускает argv без оболочки. Используется ping и ssh.
func (r *Runner) Exec(ctx context.Context, argv []string, timeout time.Duration) core.Result[Output] {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return core.Fail[Output](core.CodeInvalidArgument, "executable is required")
	}
	if timeout <= 0 {
		return core.Fail[Output](core.CodeInvalidArgument, "timeout must be positive")
	}
	lg := r.logger()
	display := shellescape.QuoteCommand(argv)

	stdout := newCappedBuffer(r.MaxOutputBytes)
	stderr := newCappedBuffer(r.MaxOutputBytes)
	c := cmd.NewCmdOptions(cmd.Options{
		BeforeExec: []func(*exec.Cmd){func(ec *exec.Cmd) {
			ec.Stdout = stdout
			ec.Stderr = stderr
		}},
	}, argv[0], argv[1:]...)
	started := time.Now()
	statusCh := c.Start()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		st     cmd.Status
		reason string
	)
	select {
	case st = <-statusCh:
	case <-timer.C:
		reason = core.CodeTimeout
		st = r.terminate(c, statusCh)
	case <-ctx.Done():
		reason = core.CodeCanceled
		st = r.terminate(c, statusCh)
	}

	out := Output{
		Command:    display,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ReturnCode: st.Exit,
		DurationMS: time.Since(started).Milliseconds(),
	}

	switch {
	case reason == core.CodeTimeout:
		lg.Debug("command timed out", "command", display, "timeout", timeout)
		return core.TimedOut(out, fmt.Sprintf("command timed out after %s", timeout))
	case reason == core.CodeCanceled:
		lg.Debug("command canceled", "command", display, "err", ctx.Err())
		return core.Fail[Output](core.CodeCanceled, fmt.Sprintf("command canceled: %v", ctx.Err())).WithData(out)
	case st.PID == 0 && st.Error != nil:
		lg.Debug("command failed to start", "command", display, "err", st.Error)
		return core.Fail[Output](core.CodeStartFailed, st.Error.Error())
	}
	lg.Debug("command finished", "command", display, "exit", st.Exit, "duration_ms", out.DurationMS)
	return core.OK(out)
}

// terminate останавливает группу процессов: SIGTERM, затем SIGKILL по истечении killGrace.
func (r *Runner) terminate(c *cmd.Cmd, statusCh <-chan cmd.Status) cmd.Status {
	_ = c.Stop()
	grace := time.NewTimer(killGrace)
	defer grace.Stop()
	select {
	case st := <-statusCh:
		return st
	case <-grace.C:
	}

	pid := c.Status().PID
	if err := killProcessGroup(pid); err != nil {
		r.logger().Warn("kill process group", "pid", pid, "err", err)
	}
	select {
	case st := <-statusCh:
		return st
	case <-time.After(killGrace):
		return c.Status()
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
