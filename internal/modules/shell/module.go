package shell

import (
	"context"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
)

// Module публикует Runner в реестре под именем "shell".
type Module struct {
	Runner         *Runner
	DefaultTimeout time.Duration
}

func (m *Module) Name() string { return "shell" }

func (m *Module) Commands() []string { return []string{"run"} }

func (m *Module) Init(context.Context) error {
	if m.Runner == nil {
		m.Runner = &Runner{}
	}
	if m.DefaultTimeout <= 0 {
		m.DefaultTimeout = DefaultTimeout
	}
	return nil
}

func (m *Module) Execute(ctx context.Context, cmd string, args core.Args) (core.Response, error) {
	switch cmd {
	case "run":
		timeout, err := args.Seconds("timeout", m.DefaultTimeout)
		if err != nil {
			return core.BadArguments(err)
		}
		return m.Runner.Run(ctx, args.String("command"), timeout).Response(), nil
	default:
		return core.UnknownCommand(m.Name(), cmd)
	}
}
